package compute

import (
	"github.com/Carmen-Shannon/prism/engine/parameter"
	"github.com/Carmen-Shannon/prism/engine/shader"
)

// options collects the configuration shared by buffer and texture systems.
type options struct {
	source     string
	path       string
	resolver   shader.Resolver
	watcher    *shader.Watcher
	uniforms   *parameter.Group
	feedback   bool
	live       bool
	preCompute PreCompute
	buffers    []BufferSpec
}

// ComputeBuilderOption is a function that configures a compute system during construction.
type ComputeBuilderOption func(*options)

// WithSource sets inline kernel source.
//
// Parameters:
//   - source: WGSL declaring <name>Reset and/or <name>Update compute entry points
//
// Returns:
//   - ComputeBuilderOption: a function that applies the source option
func WithSource(source string) ComputeBuilderOption {
	return func(o *options) {
		o.source = source
	}
}

// WithSourcePath reads the kernel from a file resolved through the resolver.
func WithSourcePath(path string) ComputeBuilderOption {
	return func(o *options) {
		o.path = path
	}
}

// WithResolver sets the resolver used to expand includes.
func WithResolver(r shader.Resolver) ComputeBuilderOption {
	return func(o *options) {
		o.resolver = r
	}
}

// WithWatcher shares a file watcher with a live system instead of starting its own.
func WithWatcher(w *shader.Watcher) ComputeBuilderOption {
	return func(o *options) {
		o.watcher = w
	}
}

// WithUniforms supplies the uniforms group instead of parsing it from the kernel source.
// The group's struct declaration is injected into the source.
//
// Parameters:
//   - g: the uniforms, bound at UniformsGroup binding 0
//
// Returns:
//   - ComputeBuilderOption: a function that applies the uniforms option
func WithUniforms(g *parameter.Group) ComputeBuilderOption {
	return func(o *options) {
		o.uniforms = g
	}
}

// WithFeedback keeps two copies of every resource and alternates them between input and
// output on every update.
func WithFeedback(feedback bool) ComputeBuilderOption {
	return func(o *options) {
		o.feedback = feedback
	}
}

// WithPreCompute registers the callback run before every dispatch.
func WithPreCompute(fn PreCompute) ComputeBuilderOption {
	return func(o *options) {
		o.preCompute = fn
	}
}

// WithBuffers declares the buffers of a BufferComputeSystem, in binding order.
//
// Parameters:
//   - specs: the buffer names and element types
//
// Returns:
//   - ComputeBuilderOption: a function that applies the buffers option
func WithBuffers(specs ...BufferSpec) ComputeBuilderOption {
	return func(o *options) {
		o.buffers = append(o.buffers, specs...)
	}
}
