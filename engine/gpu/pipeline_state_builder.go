package gpu

// PipelineStateOption is a functional option used to configure a PipelineState.
type PipelineStateOption func(*PipelineState)

// WithDepthTestEnabled sets whether depth testing is enabled.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - PipelineStateOption: a function that sets the depth test enabled state
func WithDepthTestEnabled(enabled bool) PipelineStateOption {
	return func(s *PipelineState) {
		s.DepthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled sets whether fragments write depth.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writes should be enabled
//
// Returns:
//   - PipelineStateOption: a function that sets the depth write enabled state
func WithDepthWriteEnabled(enabled bool) PipelineStateOption {
	return func(s *PipelineState) {
		s.DepthWriteEnabled = enabled
	}
}

// WithDepthCompare sets the depth comparison used when depth testing is enabled.
func WithDepthCompare(compare CompareFunction) PipelineStateOption {
	return func(s *PipelineState) {
		s.DepthCompare = compare
	}
}

// WithDepthBias sets the constant and slope-scaled depth bias, used by shadow pipelines
// to avoid acne.
//
// Parameters:
//   - bias: the constant depth bias
//   - slopeScale: the slope-scaled depth bias
//
// Returns:
//   - PipelineStateOption: a function that sets the depth bias
func WithDepthBias(bias int32, slopeScale float32) PipelineStateOption {
	return func(s *PipelineState) {
		s.DepthBias = bias
		s.DepthBiasSlopeScale = slopeScale
	}
}

// WithBlending sets the blending mode.
//
// Parameters:
//   - blending: one of BlendingDisabled, BlendingAlpha or BlendingAdditive
//
// Returns:
//   - PipelineStateOption: a function that sets the blending mode
func WithBlending(blending Blending) PipelineStateOption {
	return func(s *PipelineState) {
		s.Blending = blending
	}
}

// WithTopology sets the primitive topology.
func WithTopology(topology Topology) PipelineStateOption {
	return func(s *PipelineState) {
		s.Topology = topology
	}
}

// WithCullMode sets the default face culling mode.
func WithCullMode(mode CullMode) PipelineStateOption {
	return func(s *PipelineState) {
		s.CullMode = mode
	}
}

// WithWinding sets the default front-facing winding.
func WithWinding(w Winding) PipelineStateOption {
	return func(s *PipelineState) {
		s.Winding = w
	}
}

// WithWriteMask sets which color channels are written.
//
// Parameters:
//   - mask: a bit set of red (1), green (2), blue (4) and alpha (8)
//
// Returns:
//   - PipelineStateOption: a function that sets the color write mask
func WithWriteMask(mask uint32) PipelineStateOption {
	return func(s *PipelineState) {
		s.WriteMask = mask
	}
}
