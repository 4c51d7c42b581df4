// Package compute runs double-buffered compute kernels over GPU buffers and textures.
//
// A system owns one copy of each output resource, or two with feedback. With feedback,
// every Update reads the copy written by the previous Update and writes the other one, so
// a kernel can evolve state such as a particle simulation without read/write hazards. A
// reset pass initializes every copy before the first update reads it, and again after
// the resources are reallocated.
//
// Kernels are named explicitly. A system called "Particles" runs the entry points
// particlesReset and particlesUpdate, either of which may be omitted, and reads its
// uniforms from a ParticlesUniforms struct when the source declares one.
//
// Bindings follow a fixed convention. Resources live in ResourceGroup: with feedback, the
// input copy of resource i is bound at 2i as <name>In and the output copy at 2i+1 as
// <name>Out; without feedback resource i is bound at i under its own name. The uniforms
// struct is bound in UniformsGroup at binding 0 as uniforms.
package compute

import (
	"fmt"

	"github.com/Carmen-Shannon/prism/engine/buffer"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/parameter"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("compute")

const (
	// ResourceGroup holds the ping-pong resources.
	ResourceGroup = 0
	// UniformsGroup holds the uniforms struct at binding 0.
	UniformsGroup = 1
)

// PreCompute is called before every dispatch, after the system bound its own resources,
// to bind extra resources. iteration counts the update passes run so far and is -1 for
// reset passes.
type PreCompute func(enc gpu.ComputeEncoder, iteration int)

// resources is the variant-specific half of a system: the physical copies of its outputs.
type resources interface {
	// ensure (re)allocates the copies for prog and reports whether they changed.
	ensure(ctx *gpu.Context, prog *Program, copies int) (changed bool, err error)
	// bind binds copy in as input and copy out as output. Without feedback only out is bound.
	bind(enc gpu.ComputeEncoder, in, out int, feedback bool)
	// grid returns the invocation grid of one dispatch.
	grid() [3]int
	release()
}

// system is the shared ping-pong core of buffer and texture compute systems.
type system struct {
	name       string
	kernel     *kernel
	feedback   bool
	preCompute PreCompute

	ctx          *gpu.Context
	uniforms     *parameter.Group
	ubuf         buffer.UniformBuffer
	layout       uint64
	seen         *Program
	resetPending bool
	ping         int
	iteration    int
}

func newSystem(name string, o *options) *system {
	if name == "" {
		panic("compute: a compute system must have a name")
	}
	k := &kernel{
		name:     name,
		path:     o.path,
		inline:   o.source,
		resolver: o.resolver,
		params:   o.uniforms,
		live:     o.live,
		feedback: o.feedback,
		watcher:  o.watcher,
		watches:  make(map[string]func()),
	}
	if k.resolver == nil {
		k.resolver = shader.NewFileResolver()
	}
	return &system{
		name:         name,
		kernel:       k,
		feedback:     o.feedback,
		preCompute:   o.preCompute,
		uniforms:     k.parse(),
		resetPending: true,
	}
}

func (s *system) Name() string                { return s.name }
func (s *system) Feedback() bool              { return s.feedback }
func (s *system) Live() bool                  { return s.kernel.live }
func (s *system) Uniforms() *parameter.Group  { return s.uniforms }
func (s *system) Program() *Program           { return s.kernel.compiled.Load() }
func (s *system) Iteration() int              { return s.iteration }
func (s *system) SetPreCompute(fn PreCompute) { s.preCompute = fn }
func (s *system) ResetPending() bool          { return s.resetPending }

// Reset schedules the reset pass to run again before the next update.
func (s *system) Reset() {
	s.resetPending = true
}

// Set assigns a uniform value, written to the GPU on the next Update.
func (s *system) Set(label string, value any) error {
	return s.uniforms.Set(label, value)
}

// copies returns the number of physical copies of each resource.
func (s *system) copies() int {
	if s.feedback {
		return 2
	}
	return 1
}

// pingPong returns the copies the next update reads and writes.
func (s *system) pingPong() (in, out int) {
	if !s.feedback {
		return 0, 0
	}
	return s.ping, 1 - s.ping
}

func (s *system) setup(ctx *gpu.Context) error {
	s.ctx = ctx
	return s.kernel.setup(ctx)
}

// adopt merges the parameters of a newly published program and reallocates the uniform
// ring when the layout changed.
func (s *system) adopt(prog *Program) {
	if prog == s.seen {
		return
	}
	s.seen = prog
	if prog.Parameters != nil && prog.Parameters != s.uniforms {
		s.uniforms.SetLabel(prog.Parameters.Label())
		s.uniforms.Merge(prog.Parameters)
	}
	if s.uniforms.Size() == 0 {
		s.releaseUniforms()
		return
	}
	if s.ubuf != nil && s.uniforms.LayoutHash() == s.layout {
		return
	}
	s.releaseUniforms()
	b, err := buffer.NewUniformBuffer(s.ctx.Device, s.uniforms,
		buffer.WithUniformLabel(fmt.Sprintf("%s uniforms", s.name)),
		buffer.WithRegions(s.ctx.MaxFramesInFlight),
		buffer.WithContext(s.ctx),
	)
	if err != nil {
		log.Error("cannot allocate uniforms", "system", s.name, "err", err)
		return
	}
	s.ubuf, s.layout = b, s.uniforms.LayoutHash()
}

// update runs the pending reset passes and one update pass into cmd. It reports whether
// anything was encoded.
func (s *system) update(cmd gpu.CommandBuffer, r resources) bool {
	if s.ctx == nil {
		return false
	}
	prog := s.kernel.compiled.Load()
	if prog == nil || prog.Err != nil || (prog.Reset == nil && prog.Update == nil) {
		return false
	}
	s.adopt(prog)
	changed, err := r.ensure(s.ctx, prog, s.copies())
	if err != nil {
		log.Error("cannot allocate resources", "system", s.name, "err", err)
		return false
	}
	if changed {
		s.resetPending = true
		s.ping = 0
	}
	runReset := s.resetPending && prog.Reset != nil
	if !runReset && prog.Update == nil {
		return false
	}
	if s.ubuf != nil {
		s.ubuf.Update()
	}

	enc := cmd.BeginComputePass(s.name)
	defer enc.End()
	if runReset {
		for c := range s.copies() {
			s.dispatch(enc, prog.Reset, r, (c+1)%s.copies(), c, -1)
		}
		s.resetPending = false
		s.ping = 0
	}
	if prog.Update != nil {
		in, out := s.pingPong()
		s.dispatch(enc, prog.Update, r, in, out, s.iteration)
		s.ping = out
		s.iteration++
	}
	return true
}

func (s *system) dispatch(enc gpu.ComputeEncoder, p gpu.ComputePipeline, r resources, in, out, iteration int) {
	enc.SetPipeline(p)
	r.bind(enc, in, out, s.feedback)
	if s.ubuf != nil {
		s.ubuf.BindCompute(enc, UniformsGroup, 0)
	}
	if s.preCompute != nil {
		s.preCompute(enc, iteration)
	}
	gpu.DispatchSize(r.grid(), p, s.ctx.Device.SupportsNonUniformThreadgroups()).Encode(enc)
}

func (s *system) releaseUniforms() {
	if s.ubuf != nil {
		s.ubuf.Release()
		s.ubuf = nil
	}
}

func (s *system) release(r resources) {
	r.release()
	s.releaseUniforms()
	s.kernel.release()
	s.seen = nil
	s.ctx = nil
	s.resetPending = true
}
