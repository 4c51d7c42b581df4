// Package buffer copies packed parameter images into GPU memory.
package buffer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/prism/engine/gpu"
)

var (
	// ErrEmptyLayout is returned when a buffer is requested for a source that packs no bytes.
	ErrEmptyLayout = errors.New("buffer: source has an empty layout")
	// ErrInvalidCount is returned for element counts below one.
	ErrInvalidCount = errors.New("buffer: element count must be positive")
	// ErrLayoutChanged is returned by Buffer.Update when the source no longer packs the
	// stride the buffer was allocated with.
	ErrLayoutChanged = errors.New("buffer: source layout changed")
)

// Source produces the packed image of one element. parameter.Group and the GPU structs of
// the scene packages implement it.
type Source interface {
	// Stride returns the byte length of one packed element.
	Stride() int
	// Pack writes one element into dst, which holds at least Stride bytes.
	Pack(dst []byte)
}

// Unpacker is implemented by sources that can be refreshed from GPU memory.
type Unpacker interface {
	Unpack(src []byte) error
}

// buffer is the implementation of the Buffer interface.
type buffer struct {
	label   string
	usage   gpu.BufferUsage
	source  Source
	count   int
	stride  int
	gpu     gpu.Buffer
	scratch []byte
}

// Buffer is a GPU array of count elements, each the packed image of a Source at the time
// of the last Update for that index.
type Buffer interface {
	// GPU retrieves the underlying device buffer.
	//
	// Returns:
	//   - gpu.Buffer: the device buffer, stride * count bytes long
	GPU() gpu.Buffer

	// Stride retrieves the element size in bytes fixed at construction.
	Stride() int

	// Count retrieves the number of elements.
	Count() int

	// Update packs the source and writes it at byte offset index * stride.
	//
	// Parameters:
	//   - index: the element index, in [0, Count)
	//
	// Returns:
	//   - error: error if index is out of range, or ErrLayoutChanged when the source's
	//     stride differs from the one fixed at construction
	Update(index int) error

	// Sync reads element index back from the GPU and unpacks it into the source, the
	// inverse of Update.
	//
	// Parameters:
	//   - index: the element index, in [0, Count)
	//
	// Returns:
	//   - error: error if the read fails or the source cannot unpack
	Sync(index int) error

	// Release destroys the device buffer.
	Release()
}

var _ Buffer = &buffer{}

// NewBuffer allocates a buffer of count elements laid out like source and uploads the
// current source image into every element.
//
// Parameters:
//   - device: the device to allocate from
//   - source: the element layout and contents
//   - count: the number of elements, at least 1
//   - opts: a variadic list of BufferBuilderOption functions
//
// Returns:
//   - Buffer: the new buffer
//   - error: ErrInvalidCount, ErrEmptyLayout if source packs no bytes, or the allocation error
func NewBuffer(device gpu.Device, source Source, count int, opts ...BufferBuilderOption) (Buffer, error) {
	b := &buffer{
		label:  "buffer",
		usage:  gpu.BufferUsageStorage | gpu.BufferUsageCopyDst | gpu.BufferUsageCopySrc,
		source: source,
		count:  count,
		stride: source.Stride(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.count <= 0 {
		return nil, fmt.Errorf("%w: %s has %d", ErrInvalidCount, b.label, b.count)
	}
	if b.stride <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyLayout, b.label)
	}

	g, err := device.NewBuffer(gpu.BufferDescriptor{Label: b.label, Size: b.stride * b.count, Usage: b.usage})
	if err != nil {
		return nil, fmt.Errorf("buffer: allocate %s: %w", b.label, err)
	}
	b.gpu = g
	b.scratch = make([]byte, b.stride)
	for i := 0; i < b.count; i++ {
		if err := b.Update(i); err != nil {
			g.Release()
			return nil, err
		}
	}
	return b, nil
}

func (b *buffer) GPU() gpu.Buffer {
	return b.gpu
}

func (b *buffer) Stride() int {
	return b.stride
}

func (b *buffer) Count() int {
	return b.count
}

func (b *buffer) Update(index int) error {
	if index < 0 || index >= b.count {
		return fmt.Errorf("buffer: %s: index %d out of range [0, %d)", b.label, index, b.count)
	}
	if n := b.source.Stride(); n != b.stride {
		return fmt.Errorf("%w: %s packs %d bytes, allocated for %d", ErrLayoutChanged, b.label, n, b.stride)
	}
	b.source.Pack(b.scratch)
	b.gpu.Write(index*b.stride, b.scratch)
	return nil
}

func (b *buffer) Sync(index int) error {
	if index < 0 || index >= b.count {
		return fmt.Errorf("buffer: %s: index %d out of range [0, %d)", b.label, index, b.count)
	}
	u, ok := b.source.(Unpacker)
	if !ok {
		return fmt.Errorf("buffer: %s: source %T cannot unpack", b.label, b.source)
	}
	data, err := b.gpu.Read(index*b.stride, b.stride)
	if err != nil {
		return fmt.Errorf("buffer: %s: read element %d: %w", b.label, index, err)
	}
	return u.Unpack(data)
}

func (b *buffer) Release() {
	if b.gpu != nil {
		b.gpu.Release()
		b.gpu = nil
	}
}
