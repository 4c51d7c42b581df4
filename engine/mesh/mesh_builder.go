package mesh

import (
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/object"
)

// MeshBuilderOption is a function that configures a mesh during construction.
type MeshBuilderOption func(*Mesh)

// WithLabel sets the mesh's label.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - MeshBuilderOption: a function that applies the label option to a mesh
func WithLabel(label string) MeshBuilderOption {
	return func(m *Mesh) {
		m.SetLabel(label)
	}
}

// WithTransform applies object options to the mesh's transform node.
//
// Parameters:
//   - options: object options such as object.WithPosition
//
// Returns:
//   - MeshBuilderOption: a function that applies the options to the mesh's node
func WithTransform(options ...object.ObjectBuilderOption) MeshBuilderOption {
	return func(m *Mesh) {
		for _, option := range options {
			option(m.Object)
		}
	}
}

// WithSubmeshes adds submeshes in draw order.
func WithSubmeshes(submeshes ...*Submesh) MeshBuilderOption {
	return func(m *Mesh) {
		for _, s := range submeshes {
			s.mesh = m
			m.submeshes = append(m.submeshes, s)
		}
	}
}

// WithCullMode sets the faces discarded when drawing.
func WithCullMode(c gpu.CullMode) MeshBuilderOption {
	return func(m *Mesh) {
		m.cullMode = c
	}
}

// WithWinding overrides the geometry's front-face winding.
func WithWinding(w gpu.Winding) MeshBuilderOption {
	return func(m *Mesh) {
		m.winding, m.windingSet = w, true
	}
}

// WithFillMode selects solid or wireframe rasterization.
func WithFillMode(f gpu.FillMode) MeshBuilderOption {
	return func(m *Mesh) {
		m.fillMode = f
	}
}

// WithInstanceCount sets the default number of instances drawn.
func WithInstanceCount(n int) MeshBuilderOption {
	return func(m *Mesh) {
		m.instances = max(n, 0)
	}
}

// WithShadows sets whether the mesh is drawn into shadow maps and whether its materials
// should sample them.
//
// Parameters:
//   - cast: draw the mesh in shadow passes
//   - receive: a hint for materials that sample shadow maps
//
// Returns:
//   - MeshBuilderOption: a function that applies the shadow flags
func WithShadows(cast, receive bool) MeshBuilderOption {
	return func(m *Mesh) {
		m.castShadow, m.receiveShadow = cast, receive
	}
}
