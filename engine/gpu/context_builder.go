package gpu

// ContextBuilderOption is a function that configures a Context during construction.
type ContextBuilderOption func(*Context)

// WithColorFormat sets the color attachment format pipelines are compiled for.
//
// Parameters:
//   - format: the color format, usually the surface format
//
// Returns:
//   - ContextBuilderOption: a function that applies the color format option
func WithColorFormat(format TextureFormat) ContextBuilderOption {
	return func(c *Context) {
		c.ColorFormat = format
	}
}

// WithDepthFormat sets the depth attachment format. FormatUndefined disables depth.
func WithDepthFormat(format TextureFormat) ContextBuilderOption {
	return func(c *Context) {
		c.DepthFormat = format
	}
}

// WithSampleCount sets the multisample count of the render targets.
func WithSampleCount(n int) ContextBuilderOption {
	return func(c *Context) {
		c.SampleCount = max(n, 1)
	}
}

// WithMaxFramesInFlight sets the ring depth of per-frame uniform buffers.
//
// Parameters:
//   - n: the number of frames the CPU may run ahead of the GPU, at least 1
//
// Returns:
//   - ContextBuilderOption: a function that applies the frames in flight option
func WithMaxFramesInFlight(n int) ContextBuilderOption {
	return func(c *Context) {
		c.MaxFramesInFlight = max(n, 1)
	}
}

// WithWorkers sets the number of background workers used for shader recompiles.
func WithWorkers(n int) ContextBuilderOption {
	return func(c *Context) {
		c.workers = max(n, 1)
	}
}

// WithSynchronousTasks makes Submit run tasks inline on the calling goroutine.
func WithSynchronousTasks() ContextBuilderOption {
	return func(c *Context) {
		c.synchronous = true
	}
}

// WithPipelineCache shares an existing pipeline cache, for contexts that render the same
// materials into targets with different formats.
func WithPipelineCache(cache *PipelineCache) ContextBuilderOption {
	return func(c *Context) {
		if cache != nil {
			c.Pipelines = cache
		}
	}
}
