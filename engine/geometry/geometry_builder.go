package geometry

import "github.com/Carmen-Shannon/prism/engine/gpu"

// GeometryBuilderOption is a function that configures a geometry during construction.
type GeometryBuilderOption func(*geometry)

// WithLabel sets the debug label of the geometry's device buffers.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - GeometryBuilderOption: a function that applies the label option to a geometry
func WithLabel(label string) GeometryBuilderOption {
	return func(g *geometry) {
		g.label = label
	}
}

// WithTopology sets the primitive topology, triangle lists by default.
func WithTopology(t gpu.Topology) GeometryBuilderOption {
	return func(g *geometry) {
		g.topology = t
	}
}

// WithWinding sets the front face winding, counter-clockwise by default.
func WithWinding(w gpu.Winding) GeometryBuilderOption {
	return func(g *geometry) {
		g.winding = w
	}
}

// WithDelegate sets the object notified of data changes.
func WithDelegate(d Delegate) GeometryBuilderOption {
	return func(g *geometry) {
		g.delegate = d
	}
}
