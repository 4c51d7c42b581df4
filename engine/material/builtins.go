package material

import (
	"embed"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/*.wgsl
var assets embed.FS

func builtin(file string) string {
	b, err := assets.ReadFile("assets/" + file)
	if err != nil {
		panic("material: missing built-in shader " + file)
	}
	return string(b)
}

// NewBasicColor creates an unlit material drawing a single color.
//
// Parameters:
//   - color: the RGBA color, stored in the "color" uniform
//   - opts: a variadic list of MaterialBuilderOption functions
//
// Returns:
//   - Material: the new material
func NewBasicColor(color mgl32.Vec4, opts ...MaterialBuilderOption) Material {
	m := New("BasicColor", append([]MaterialBuilderOption{WithSource(builtin("basic_color.wgsl"))}, opts...)...)
	if err := m.Set("color", color); err != nil {
		log.Error("cannot set color", "material", m.Name(), "err", err)
	}
	return m
}

// NewNormalColor creates a material visualizing surface normals, remapped to [0, 1] or as
// absolute values when the "absolute" uniform is set.
func NewNormalColor(opts ...MaterialBuilderOption) Material {
	return New("NormalColor", append([]MaterialBuilderOption{WithSource(builtin("normal_color.wgsl"))}, opts...)...)
}

// NewUVColor creates a material visualizing texture coordinates, repeated "scale" times.
func NewUVColor(opts ...MaterialBuilderOption) Material {
	return New("UVColor", append([]MaterialBuilderOption{WithSource(builtin("uv_color.wgsl"))}, opts...)...)
}

// NewBasicTexture creates an unlit material sampling one texture, tinted by "color".
//
// Parameters:
//   - tex: the texture bound to the "albedo" slot, or nil to set it later with SetTexture
//   - opts: a variadic list of MaterialBuilderOption functions
//
// Returns:
//   - Material: the new material
func NewBasicTexture(tex gpu.Texture, opts ...MaterialBuilderOption) Material {
	m := New("BasicTexture", append([]MaterialBuilderOption{
		WithSource(builtin("basic_texture.wgsl")),
		WithTexture("albedo", ""),
	}, opts...)...)
	if tex != nil {
		m.SetTexture(0, tex, nil)
	}
	return m
}

// NewLive creates a material whose shader is loaded from path and recompiled on change.
func NewLive(name, path string, opts ...MaterialBuilderOption) Material {
	return New(name, append([]MaterialBuilderOption{WithSourcePath(path), WithLive()}, opts...)...)
}

// NewFromSource creates a material from inline WGSL.
func NewFromSource(name, source string, opts ...MaterialBuilderOption) Material {
	return New(name, append([]MaterialBuilderOption{WithSource(source)}, opts...)...)
}
