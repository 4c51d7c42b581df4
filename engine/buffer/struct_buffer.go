package buffer

import (
	"fmt"
	"unsafe"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/gpu"
)

// StructBuffer is a typed storage array of fixed-layout Go structs. T must match the
// shader struct byte for byte, including explicit padding fields.
type StructBuffer[T any] struct {
	label string
	count int
	gpu   gpu.Buffer
}

// NewStructBuffer allocates storage for count elements of T and uploads data, if any.
//
// Parameters:
//   - device: the device to allocate from
//   - label: a debug label
//   - count: the element count, at least 1
//   - data: optional initial contents, at most count elements
//
// Returns:
//   - *StructBuffer[T]: the new buffer
//   - error: ErrInvalidCount, ErrEmptyLayout for zero-size T, or the allocation error
func NewStructBuffer[T any](device gpu.Device, label string, count int, data []T) (*StructBuffer[T], error) {
	var zero T
	stride := int(unsafe.Sizeof(zero))
	if count <= 0 {
		return nil, fmt.Errorf("%w: %s has %d", ErrInvalidCount, label, count)
	}
	if stride == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyLayout, label)
	}
	g, err := device.NewBuffer(gpu.BufferDescriptor{
		Label: label,
		Size:  stride * count,
		Usage: gpu.BufferUsageStorage | gpu.BufferUsageVertex | gpu.BufferUsageCopyDst | gpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer: allocate %s: %w", label, err)
	}
	s := &StructBuffer[T]{label: label, count: count, gpu: g}
	if len(data) > 0 {
		s.Update(0, data)
	}
	return s, nil
}

func (s *StructBuffer[T]) GPU() gpu.Buffer { return s.gpu }
func (s *StructBuffer[T]) Count() int      { return s.count }

// Stride returns the size of T in bytes.
func (s *StructBuffer[T]) Stride() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Update writes data starting at element first. Elements past Count are dropped.
func (s *StructBuffer[T]) Update(first int, data []T) {
	if first < 0 || first >= s.count {
		return
	}
	n := min(len(data), s.count-first)
	s.gpu.Write(first*s.Stride(), common.SliceToBytes(data[:n]))
}

// Read copies every element back from the GPU.
func (s *StructBuffer[T]) Read() ([]T, error) {
	data, err := s.gpu.Read(0, s.count*s.Stride())
	if err != nil {
		return nil, fmt.Errorf("buffer: %s: %w", s.label, err)
	}
	out := make([]T, s.count)
	copy(out, common.BytesToSlice[T](data))
	return out, nil
}

func (s *StructBuffer[T]) Release() {
	if s.gpu != nil {
		s.gpu.Release()
		s.gpu = nil
	}
}
