// Package gpu defines the opaque device boundary the toolkit renders and computes through.
//
// Every scene, material and compute type allocates resources through a Device and records
// work through CommandBuffer encoders; none of them call a graphics API directly. The
// wgpudevice package implements this boundary on WebGPU and gputest implements a recording
// fake for tests.
package gpu

// Device allocates GPU resources and command buffers.
type Device interface {
	// NewBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: the buffer label, size in bytes and usage
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: error if the allocation fails
	NewBuffer(desc BufferDescriptor) (Buffer, error)

	// NewTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture shape, format and usage
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: error if the allocation fails
	NewTexture(desc TextureDescriptor) (Texture, error)

	// NewSampler creates a sampler.
	NewSampler(desc SamplerDescriptor) (Sampler, error)

	// NewLibrary compiles shader source into a library of entry points.
	//
	// Parameters:
	//   - label: a debug label, usually the shader name
	//   - source: the complete assembled shader source
	//
	// Returns:
	//   - Library: the compiled library
	//   - error: the compiler diagnostic if compilation fails
	NewLibrary(label, source string) (Library, error)

	// NewRenderPipeline builds a render pipeline from a compiled library.
	NewRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	// NewComputePipeline builds a compute pipeline from a compiled library.
	NewComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)

	// NewCommandBuffer starts recording a new command buffer.
	NewCommandBuffer(label string) CommandBuffer

	// SupportsNonUniformThreadgroups reports whether DispatchThreads may launch partial
	// threadgroups at the grid edge.
	SupportsNonUniformThreadgroups() bool

	// MaxThreadsPerThreadgroup returns the device limit on invocations per threadgroup.
	MaxThreadsPerThreadgroup() int

	// Release destroys the device. Resources allocated from it must not be used afterwards.
	Release()
}

// Buffer is a linear GPU memory region.
type Buffer interface {
	Label() string
	Size() int

	// Write copies data into the buffer at offset. Writes are ordered before any command
	// buffer committed afterwards.
	Write(offset int, data []byte)

	// Read copies size bytes starting at offset back to the CPU, waiting for outstanding
	// GPU work that writes the buffer.
	Read(offset, size int) ([]byte, error)

	Release()
}

// Texture is a GPU image.
type Texture interface {
	Label() string
	Descriptor() TextureDescriptor

	// Write uploads tightly packed texel rows into one layer of one mip level.
	//
	// Parameters:
	//   - layer: the array layer, cube face or depth slice
	//   - level: the mip level
	//   - data: the texels, BytesPerPixel * width * height bytes for that level
	Write(layer, level int, data []byte)

	Release()
}

// Sampler is an immutable sampling configuration.
type Sampler interface {
	Release()
}

// Library is a compiled shader module.
type Library interface {
	Label() string

	// Functions lists the entry points the module declares.
	Functions() []string

	// HasFunction reports whether the module declares the named entry point.
	HasFunction(name string) bool

	Release()
}

// RenderPipeline is a compiled render pipeline state.
type RenderPipeline interface {
	Label() string
	Descriptor() RenderPipelineDescriptor
	Release()
}

// ComputePipeline is a compiled compute pipeline state.
type ComputePipeline interface {
	Label() string

	// MaxTotalThreadsPerThreadgroup returns the upper bound on invocations per threadgroup.
	MaxTotalThreadsPerThreadgroup() int

	// ThreadExecutionWidth returns the SIMD width the device executes in lockstep.
	ThreadExecutionWidth() int

	// ThreadgroupSize returns a threadgroup size fixed by the kernel source, or zeros when
	// the size is chosen at dispatch time.
	ThreadgroupSize() [3]int

	Release()
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	Label string
	// Color is the color attachment. With multisampling it is the multisampled target and
	// Resolve receives the resolved image.
	Color      Texture
	Resolve    Texture
	ClearColor [4]float64
	// Load keeps the previous attachment contents instead of clearing.
	Load       bool
	Depth      Texture
	ClearDepth float32
}

// CommandBuffer records passes and submits them to the device queue.
type CommandBuffer interface {
	BeginRenderPass(desc RenderPassDescriptor) RenderEncoder
	BeginComputePass(label string) ComputeEncoder

	// Commit submits the recorded work. The buffer cannot record after Commit.
	Commit()

	// WaitUntilCompleted blocks until the committed work has finished on the GPU.
	WaitUntilCompleted()
}

// RenderEncoder records draw commands inside a render pass.
type RenderEncoder interface {
	SetPipeline(p RenderPipeline)
	SetFrontFacing(w Winding)
	SetCullMode(c CullMode)
	SetFillMode(f FillMode)
	SetVertexBuffer(slot int, b Buffer, offset int)

	// SetBuffer binds a range of b to (group, binding). A size of zero binds from offset
	// to the end of the buffer.
	SetBuffer(group, binding int, b Buffer, offset, size int)
	SetTexture(group, binding int, t Texture)
	SetSampler(group, binding int, s Sampler)

	Draw(vertexCount, instanceCount int)
	DrawIndexed(indices Buffer, format IndexFormat, firstIndex, indexCount, instanceCount int)
	End()
}

// ComputeEncoder records dispatches inside a compute pass.
type ComputeEncoder interface {
	SetPipeline(p ComputePipeline)
	SetBuffer(group, binding int, b Buffer, offset, size int)

	// SetTexture binds one mip level of t to (group, binding), or every level when level
	// is AllMipLevels. Storage bindings need a single level.
	SetTexture(group, binding int, t Texture, level int)
	SetSampler(group, binding int, s Sampler)

	// DispatchThreads launches exactly grid invocations. Only valid when the device
	// supports non-uniform threadgroups.
	DispatchThreads(grid, threadsPerGroup [3]int)

	// DispatchThreadgroups launches groups full threadgroups.
	DispatchThreadgroups(groups, threadsPerGroup [3]int)
	End()
}

// RenderPipelineDescriptor describes a render pipeline.
type RenderPipelineDescriptor struct {
	Label          string
	Library        Library
	VertexEntry    string
	FragmentEntry  string
	VertexLayouts  []VertexLayout
	ColorFormat    TextureFormat
	DepthFormat    TextureFormat
	SampleCount    int
	Blend          *BlendState
	Depth          DepthState
	Topology       Topology
	CullMode       CullMode
	Winding        Winding
	FillMode       FillMode
	ColorWriteMask uint32
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label   string
	Library Library
	Entry   string
}
