package buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("buffer")

// UniformAlignment is the minimum offset alignment of dynamically bound uniform ranges.
const UniformAlignment = 256

// uniformBuffer is the implementation of the UniformBuffer interface.
type uniformBuffer struct {
	device    gpu.Device
	ctx       *gpu.Context
	label     string
	source    Source
	regions   int
	alignment int
	size      int
	aligned   int
	index     int
	gpu       gpu.Buffer
	scratch   []byte
}

// UniformBuffer is a ring of in-flight regions holding the same uniform struct. Each
// Update advances to the next region before writing so the CPU never overwrites a region
// a frame still in flight may be reading.
type UniformBuffer interface {
	// GPU retrieves the underlying device buffer, regions * aligned stride bytes long.
	GPU() gpu.Buffer

	// Source retrieves the struct the buffer packs.
	Source() Source

	// Size retrieves the packed struct size, the range to bind.
	Size() int

	// Stride retrieves the distance between regions, Size rounded up to the uniform
	// offset alignment.
	Stride() int

	// Regions retrieves the ring length.
	Regions() int

	// Index retrieves the region written by the last Update.
	Index() int

	// Offset retrieves the byte offset of the region written by the last Update. It is only
	// valid until the next Update.
	Offset() int

	// Update advances to the next region, modulo Regions, and writes the packed source there.
	// When the source's size changed since the last write, the ring is reallocated first.
	Update()

	// Bind binds the current region's range to (group, binding) on a render encoder.
	Bind(enc gpu.RenderEncoder, group, binding int)

	// BindCompute binds the current region's range to (group, binding) on a compute encoder.
	BindCompute(enc gpu.ComputeEncoder, group, binding int)

	Release()
}

var _ UniformBuffer = &uniformBuffer{}

// NewUniformBuffer allocates a ring buffer for source and fills every region with the
// current source image. The first Update writes region 0.
//
// Parameters:
//   - device: the device to allocate from
//   - source: the uniform struct
//   - opts: a variadic list of UniformBufferBuilderOption functions
//
// Returns:
//   - UniformBuffer: the new ring buffer
//   - error: ErrEmptyLayout if source packs no bytes, or the allocation error
func NewUniformBuffer(device gpu.Device, source Source, opts ...UniformBufferBuilderOption) (UniformBuffer, error) {
	u := &uniformBuffer{
		device:    device,
		label:     "uniforms",
		source:    source,
		regions:   gpu.DefaultMaxFramesInFlight,
		alignment: UniformAlignment,
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := u.allocate(source.Stride()); err != nil {
		return nil, err
	}
	return u, nil
}

// allocate creates the ring for a packed size and fills every region with the current
// source image. The next Update writes region 0. A replaced device buffer is retired
// through the context, since frames in flight may still read it.
func (u *uniformBuffer) allocate(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyLayout, u.label)
	}
	aligned := common.RoundUp(u.alignment, size)
	g, err := u.device.NewBuffer(gpu.BufferDescriptor{
		Label: u.label,
		Size:  aligned * u.regions,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("buffer: allocate %s: %w", u.label, err)
	}
	if u.gpu != nil {
		u.ctx.Retire(u.gpu)
	}
	u.gpu, u.size, u.aligned = g, size, aligned
	u.scratch = make([]byte, size)
	u.source.Pack(u.scratch)
	for i := 0; i < u.regions; i++ {
		g.Write(i*aligned, u.scratch)
	}
	u.index = u.regions - 1
	return nil
}

func (u *uniformBuffer) GPU() gpu.Buffer {
	return u.gpu
}

func (u *uniformBuffer) Source() Source {
	return u.source
}

func (u *uniformBuffer) Size() int {
	return u.size
}

func (u *uniformBuffer) Stride() int {
	return u.aligned
}

func (u *uniformBuffer) Regions() int {
	return u.regions
}

func (u *uniformBuffer) Index() int {
	return u.index
}

func (u *uniformBuffer) Offset() int {
	return u.index * u.aligned
}

func (u *uniformBuffer) Update() {
	if n := u.source.Stride(); n != u.size {
		if err := u.allocate(n); err != nil {
			log.Error("cannot resize uniform buffer", "buffer", u.label, "size", n, "err", err)
			return
		}
		log.Debug("uniform buffer resized", "buffer", u.label, "size", n)
	}
	u.index = (u.index + 1) % u.regions
	u.source.Pack(u.scratch)
	u.gpu.Write(u.Offset(), u.scratch)
}

func (u *uniformBuffer) Bind(enc gpu.RenderEncoder, group, binding int) {
	enc.SetBuffer(group, binding, u.gpu, u.Offset(), u.size)
}

func (u *uniformBuffer) BindCompute(enc gpu.ComputeEncoder, group, binding int) {
	enc.SetBuffer(group, binding, u.gpu, u.Offset(), u.size)
}

func (u *uniformBuffer) Release() {
	if u.gpu != nil {
		u.gpu.Release()
		u.gpu = nil
	}
}
