package main

import (
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/gputest"
	"github.com/Carmen-Shannon/prism/engine/light"
	"github.com/Carmen-Shannon/prism/internal/config"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialFactory(t *testing.T) {
	lights := light.NewSystem()
	v := &viewer{textures: make(map[*common.Image]gpu.Texture)}
	for _, name := range []string{"basic", "normal", "uv", "lambert", "texture"} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Scene.Material = name
			newMaterial, err := v.materialFactory(cfg, lights)
			require.NoError(t, err)
			a, b := newMaterial(mgl32.Vec4{1, 0, 0, 1}, nil), newMaterial(mgl32.Vec4{0, 1, 0, 1}, nil)
			require.NotNil(t, a)
			assert.NotSame(t, a, b, "every mesh gets its own material")
		})
	}

	cfg := config.Default()
	cfg.Scene.Material = "pbr"
	_, err := v.materialFactory(cfg, lights)
	assert.ErrorContains(t, err, "pbr")

	cfg.Scene.Material = "texture"
	cfg.Scene.Texture = filepath.Join(t.TempDir(), "absent.png")
	_, err = v.materialFactory(cfg, lights)
	assert.Error(t, err, "a configured texture must exist")
}

func TestUploadSharesTextures(t *testing.T) {
	ctx := gpu.NewContext(gputest.NewDevice(), gpu.WithSynchronousTasks())
	t.Cleanup(ctx.Release)
	v := &viewer{ctx: ctx, textures: make(map[*common.Image]gpu.Texture)}

	img := &common.Image{Pixels: make([]byte, 4*4*2), Width: 4, Height: 2}
	tex := v.upload(img)
	require.NotNil(t, tex)
	assert.Equal(t, 4, tex.Descriptor().Width)
	assert.Equal(t, gpu.FormatRGBA8UnormSrgb, tex.Descriptor().Format)
	assert.Same(t, tex, v.upload(img))
	assert.Nil(t, v.upload(nil))

	v.release()
	assert.Empty(t, v.textures)
}

func TestPrimitivesHaveGeometry(t *testing.T) {
	for _, name := range config.Primitives {
		g := primitive(name)
		assert.Equal(t, name, g.Label())
		assert.Positive(t, g.VertexCount())
	}
}

func TestGroundSitsUnderTheBounds(t *testing.T) {
	b := common.Box{Min: mgl32.Vec3{-1, 2, -1}, Max: mgl32.Vec3{1, 4, 1}}
	g := ground(b).WorldBounds()
	assert.InDelta(t, 2, g.Min.Y(), 1e-5)
	assert.InDelta(t, 2, g.Max.Y(), 1e-5, "flat")
	assert.Greater(t, g.Extent().X(), b.Extent().X())
}

func TestRunWritesConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "prism.toml")
	require.NoError(t, run([]string{"-model", "fox.glb", "-write-config", out}))

	cfg, err := config.Load(out)
	require.NoError(t, err)
	assert.Equal(t, "fox.glb", cfg.Scene.Model)
}

func TestRunRejectsBadFlags(t *testing.T) {
	assert.Error(t, run([]string{"-log-level", "loud"}))
	assert.Error(t, run([]string{"-config", filepath.Join(t.TempDir(), "absent.toml")}))
}
