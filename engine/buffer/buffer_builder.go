package buffer

import "github.com/Carmen-Shannon/prism/engine/gpu"

// BufferBuilderOption is a function that configures a buffer during construction.
type BufferBuilderOption func(*buffer)

// WithLabel sets the debug label of the device buffer.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - BufferBuilderOption: a function that applies the label option to a buffer
func WithLabel(label string) BufferBuilderOption {
	return func(b *buffer) {
		b.label = label
	}
}

// WithUsage replaces the default storage usage of the device buffer.
func WithUsage(usage gpu.BufferUsage) BufferBuilderOption {
	return func(b *buffer) {
		b.usage = usage
	}
}

// UniformBufferBuilderOption is a function that configures a uniform ring buffer during construction.
type UniformBufferBuilderOption func(*uniformBuffer)

// WithUniformLabel sets the debug label of the device buffer.
func WithUniformLabel(label string) UniformBufferBuilderOption {
	return func(u *uniformBuffer) {
		u.label = label
	}
}

// WithRegions sets the ring length, normally the context's frames in flight.
//
// Parameters:
//   - n: the number of regions, at least 1
//
// Returns:
//   - UniformBufferBuilderOption: a function that applies the region count
func WithRegions(n int) UniformBufferBuilderOption {
	return func(u *uniformBuffer) {
		u.regions = max(n, 1)
	}
}

// WithAlignment overrides the region alignment, for devices with a smaller dynamic offset
// alignment.
func WithAlignment(align int) UniformBufferBuilderOption {
	return func(u *uniformBuffer) {
		u.alignment = max(align, 1)
	}
}

// WithContext retires the device buffers the ring replaces after a layout change through
// ctx, instead of releasing them while frames in flight may still read them.
func WithContext(ctx *gpu.Context) UniformBufferBuilderOption {
	return func(u *uniformBuffer) {
		u.ctx = ctx
	}
}
