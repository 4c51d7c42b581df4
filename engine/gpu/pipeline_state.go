package gpu

import "fmt"

// ColorWriteAll enables writes to every color channel.
const ColorWriteAll uint32 = 0xF

// PipelineState is the fixed-function configuration a shader is compiled against: depth
// testing, blending, topology and the default rasterizer state. Meshes may override the
// rasterizer state per draw through the encoder.
type PipelineState struct {
	DepthTestEnabled    bool
	DepthWriteEnabled   bool
	DepthCompare        CompareFunction
	DepthBias           int32
	DepthBiasSlopeScale float32
	Blending            Blending
	Topology            Topology
	CullMode            CullMode
	Winding             Winding
	WriteMask           uint32
}

// NewPipelineState returns the default state, depth tested and written with less-equal,
// no blending, triangle lists, no culling, counter-clockwise front faces, then applies
// the options in order.
//
// Parameters:
//   - opts: a variadic list of PipelineStateOption functions
//
// Returns:
//   - PipelineState: the configured state
func NewPipelineState(opts ...PipelineStateOption) PipelineState {
	s := PipelineState{
		DepthTestEnabled:  true,
		DepthWriteEnabled: true,
		DepthCompare:      CompareLessEqual,
		Blending:          BlendingDisabled,
		Topology:          TopologyTriangleList,
		CullMode:          CullNone,
		Winding:           WindingCounterClockwise,
		WriteMask:         ColorWriteAll,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// DepthState returns the depth configuration the state describes.
func (s PipelineState) DepthState() DepthState {
	d := DepthState{
		Compare:        CompareAlways,
		Write:          s.DepthWriteEnabled,
		Bias:           s.DepthBias,
		BiasSlopeScale: s.DepthBiasSlopeScale,
	}
	if s.DepthTestEnabled {
		d.Compare = s.DepthCompare
	}
	return d
}

// Apply copies the state into a render pipeline descriptor.
func (s PipelineState) Apply(desc *RenderPipelineDescriptor) {
	desc.Blend = s.Blending.BlendState()
	desc.Depth = s.DepthState()
	desc.Topology = s.Topology
	desc.CullMode = s.CullMode
	desc.Winding = s.Winding
	desc.ColorWriteMask = s.WriteMask
}

// Key returns a compact string identifying every field, for use in pipeline cache keys.
func (s PipelineState) Key() string {
	return fmt.Sprintf("d%t%t%d/%d/%g|b%d|t%d|c%d|w%d|m%x",
		s.DepthTestEnabled, s.DepthWriteEnabled, s.DepthCompare, s.DepthBias, s.DepthBiasSlopeScale,
		s.Blending, s.Topology, s.CullMode, s.Winding, s.WriteMask)
}
