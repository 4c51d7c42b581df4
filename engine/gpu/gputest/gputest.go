// Package gputest provides an in-memory implementation of the gpu boundary that records
// every allocation and encoder call, for tests that must not touch a real GPU.
package gputest

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/prism/engine/gpu"
)

var (
	entryPointRegex    = regexp.MustCompile(`@(vertex|fragment|compute)\b[^{]*?\bfn\s+(\w+)`)
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?\)[^{]*?\bfn\s+(\w+)`)
)

// Device is a recording fake of gpu.Device. Fields may be set before use to change its
// behavior; everything else is populated as the device is used.
type Device struct {
	// NonUniform is returned by SupportsNonUniformThreadgroups.
	NonUniform bool
	// MaxThreads is the per-threadgroup limit reported by the device and its pipelines.
	MaxThreads int
	// ExecutionWidth is reported by compute pipelines.
	ExecutionWidth int
	// FailSources makes NewLibrary fail for any source containing one of the substrings.
	FailSources []string
	// FailAllocations makes NewBuffer and NewTexture fail.
	FailAllocations bool

	mu               sync.Mutex
	Buffers          []*Buffer
	Textures         []*Texture
	Samplers         []*Sampler
	Libraries        []*Library
	RenderPipelines  []*RenderPipeline
	ComputePipelines []*ComputePipeline
	CommandBuffers   []*CommandBuffer
	Released         bool
}

var _ gpu.Device = &Device{}

// NewDevice returns a fake device with a 256 thread limit and 32-wide execution.
func NewDevice() *Device {
	return &Device{MaxThreads: 256, ExecutionWidth: 32}
}

func (d *Device) NewBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if d.FailAllocations {
		return nil, fmt.Errorf("gputest: allocation of %q failed", desc.Label)
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("gputest: buffer %q has size %d", desc.Label, desc.Size)
	}
	b := &Buffer{Desc: desc, Data: make([]byte, desc.Size)}
	d.mu.Lock()
	d.Buffers = append(d.Buffers, b)
	d.mu.Unlock()
	return b, nil
}

func (d *Device) NewTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if d.FailAllocations {
		return nil, fmt.Errorf("gputest: allocation of %q failed", desc.Label)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("gputest: texture %q has size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	t := &Texture{Desc: desc, Data: make(map[[2]int][]byte)}
	d.mu.Lock()
	d.Textures = append(d.Textures, t)
	d.mu.Unlock()
	return t, nil
}

func (d *Device) NewSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	s := &Sampler{Desc: desc}
	d.mu.Lock()
	d.Samplers = append(d.Samplers, s)
	d.mu.Unlock()
	return s, nil
}

func (d *Device) NewLibrary(label, source string) (gpu.Library, error) {
	for _, f := range d.FailSources {
		if strings.Contains(source, f) {
			return nil, fmt.Errorf("gputest: %s: compile error near %q", label, f)
		}
	}
	l := &Library{label: label, Source: source, sizes: make(map[string][3]int)}
	for _, m := range entryPointRegex.FindAllStringSubmatch(source, -1) {
		l.functions = append(l.functions, m[2])
	}
	for _, m := range workgroupSizeRegex.FindAllStringSubmatch(source, -1) {
		var size [3]int
		for i := 0; i < 3; i++ {
			size[i] = 1
			if m[i+1] != "" {
				size[i], _ = strconv.Atoi(m[i+1])
			}
		}
		l.sizes[m[4]] = size
	}
	d.mu.Lock()
	d.Libraries = append(d.Libraries, l)
	d.mu.Unlock()
	return l, nil
}

func (d *Device) NewRenderPipeline(desc gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if desc.Library == nil {
		return nil, fmt.Errorf("gputest: render pipeline %q has no library", desc.Label)
	}
	lib, _ := desc.Library.(*Library)
	if lib != nil && lib.Freed() {
		return nil, fmt.Errorf("gputest: render pipeline %q uses released library %q", desc.Label, lib.label)
	}
	for _, entry := range []string{desc.VertexEntry, desc.FragmentEntry} {
		if entry != "" && !desc.Library.HasFunction(entry) {
			return nil, fmt.Errorf("gputest: entry point %q not found", entry)
		}
	}
	p := &RenderPipeline{Desc: desc, lib: lib}
	if lib != nil {
		lib.retain()
	}
	d.mu.Lock()
	d.RenderPipelines = append(d.RenderPipelines, p)
	d.mu.Unlock()
	return p, nil
}

func (d *Device) NewComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if desc.Library == nil || !desc.Library.HasFunction(desc.Entry) {
		return nil, fmt.Errorf("gputest: entry point %q not found", desc.Entry)
	}
	p := &ComputePipeline{Desc: desc, maxThreads: d.MaxThreads, width: d.ExecutionWidth}
	if l, ok := desc.Library.(*Library); ok {
		p.size = l.sizes[desc.Entry]
	}
	d.mu.Lock()
	d.ComputePipelines = append(d.ComputePipelines, p)
	d.mu.Unlock()
	return p, nil
}

func (d *Device) NewCommandBuffer(label string) gpu.CommandBuffer {
	cb := &CommandBuffer{Label: label}
	d.mu.Lock()
	d.CommandBuffers = append(d.CommandBuffers, cb)
	d.mu.Unlock()
	return cb
}

func (d *Device) SupportsNonUniformThreadgroups() bool {
	return d.NonUniform
}

func (d *Device) MaxThreadsPerThreadgroup() int {
	return d.MaxThreads
}

func (d *Device) Release() {
	d.Released = true
}

// ComputePasses returns every compute pass recorded on the device, in order.
func (d *Device) ComputePasses() []*ComputePass {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*ComputePass
	for _, cb := range d.CommandBuffers {
		out = append(out, cb.ComputePasses...)
	}
	return out
}

// LiveRenderPipelines returns the render pipelines that have not been released.
func (d *Device) LiveRenderPipelines() []*RenderPipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*RenderPipeline
	for _, p := range d.RenderPipelines {
		if !p.Released {
			out = append(out, p)
		}
	}
	return out
}

// Buffer is a fake buffer backed by a byte slice.
type Buffer struct {
	Desc     gpu.BufferDescriptor
	Data     []byte
	Writes   int
	Released bool
}

func (b *Buffer) Label() string { return b.Desc.Label }
func (b *Buffer) Size() int     { return len(b.Data) }

func (b *Buffer) Write(offset int, data []byte) {
	copy(b.Data[offset:], data)
	b.Writes++
}

func (b *Buffer) Read(offset, size int) ([]byte, error) {
	if offset < 0 || offset+size > len(b.Data) {
		return nil, fmt.Errorf("gputest: read [%d, %d) out of range of %d bytes", offset, offset+size, len(b.Data))
	}
	return slices.Clone(b.Data[offset : offset+size]), nil
}

func (b *Buffer) Release() { b.Released = true }

// Texture is a fake texture storing uploads per (layer, level).
type Texture struct {
	Desc     gpu.TextureDescriptor
	Data     map[[2]int][]byte
	Released bool
}

func (t *Texture) Label() string                     { return t.Desc.Label }
func (t *Texture) Descriptor() gpu.TextureDescriptor { return t.Desc }

func (t *Texture) Write(layer, level int, data []byte) {
	t.Data[[2]int{layer, level}] = slices.Clone(data)
}

func (t *Texture) Release() { t.Released = true }

// Sampler is a fake sampler.
type Sampler struct {
	Desc     gpu.SamplerDescriptor
	Released bool
}

func (s *Sampler) Release() { s.Released = true }

// Library is a fake shader library whose entry points are found by scanning the source.
// Render pipelines keep their library alive after Release, like real shader modules that
// are referenced by pipeline variants built later.
type Library struct {
	label     string
	Source    string
	functions []string
	sizes     map[string][3]int
	Released  bool

	mu       sync.Mutex
	retained int
}

func (l *Library) Label() string       { return l.label }
func (l *Library) Functions() []string { return slices.Clone(l.functions) }

func (l *Library) HasFunction(name string) bool {
	return slices.Contains(l.functions, name)
}

func (l *Library) Release() {
	l.mu.Lock()
	l.Released = true
	l.mu.Unlock()
}

// Freed reports whether the library was released and no pipeline holds it anymore.
func (l *Library) Freed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Released && l.retained == 0
}

func (l *Library) retain() {
	l.mu.Lock()
	l.retained++
	l.mu.Unlock()
}

func (l *Library) drop() {
	l.mu.Lock()
	l.retained--
	l.mu.Unlock()
}

// RenderPipeline is a fake render pipeline.
type RenderPipeline struct {
	Desc     gpu.RenderPipelineDescriptor
	Released bool
	lib      *Library
}

func (p *RenderPipeline) Label() string                           { return p.Desc.Label }
func (p *RenderPipeline) Descriptor() gpu.RenderPipelineDescriptor { return p.Desc }

// Library returns the library the pipeline was created from.
func (p *RenderPipeline) Library() *Library { return p.lib }

func (p *RenderPipeline) Release() {
	if p.Released {
		return
	}
	p.Released = true
	if p.lib != nil {
		p.lib.drop()
	}
}

// ComputePipeline is a fake compute pipeline.
type ComputePipeline struct {
	Desc       gpu.ComputePipelineDescriptor
	maxThreads int
	width      int
	size       [3]int
	Released   bool
}

func (p *ComputePipeline) Label() string                      { return p.Desc.Label }
func (p *ComputePipeline) MaxTotalThreadsPerThreadgroup() int { return p.maxThreads }
func (p *ComputePipeline) ThreadExecutionWidth() int          { return p.width }
func (p *ComputePipeline) ThreadgroupSize() [3]int            { return p.size }
func (p *ComputePipeline) Release()                           { p.Released = true }

// Command is one recorded encoder call.
type Command struct {
	Op       string
	Group    int
	Binding  int
	Buffer   gpu.Buffer
	Texture  gpu.Texture
	Sampler  gpu.Sampler
	Offset   int
	Size     int
	Level    int
	Pipeline any
	Value    any
	Counts   [3]int
	Threads  [3]int
}

// CommandBuffer records passes.
type CommandBuffer struct {
	Label         string
	RenderPasses  []*RenderPass
	ComputePasses []*ComputePass
	Committed     bool
	Waited        bool
}

func (c *CommandBuffer) BeginRenderPass(desc gpu.RenderPassDescriptor) gpu.RenderEncoder {
	p := &RenderPass{Desc: desc}
	c.RenderPasses = append(c.RenderPasses, p)
	return p
}

func (c *CommandBuffer) BeginComputePass(label string) gpu.ComputeEncoder {
	p := &ComputePass{Label: label}
	c.ComputePasses = append(c.ComputePasses, p)
	return p
}

func (c *CommandBuffer) Commit()             { c.Committed = true }
func (c *CommandBuffer) WaitUntilCompleted() { c.Waited = true }

// RenderPass records render encoder calls. Calls a real device would reject, such as
// setting a released pipeline or drawing with a rasterizer state whose pipeline variant
// cannot be built anymore, are described in Misuse.
type RenderPass struct {
	Desc     gpu.RenderPassDescriptor
	Commands []Command
	Ended    bool
	Misuse   []string

	pipeline *RenderPipeline
	cull     gpu.CullMode
	winding  gpu.Winding
}

func (p *RenderPass) record(c Command) { p.Commands = append(p.Commands, c) }

func (p *RenderPass) misuse(format string, args ...any) {
	p.Misuse = append(p.Misuse, fmt.Sprintf(format, args...))
}

func (p *RenderPass) SetPipeline(rp gpu.RenderPipeline) {
	p.record(Command{Op: "SetPipeline", Pipeline: rp})
	fake, _ := rp.(*RenderPipeline)
	if fake != nil && fake.Released {
		p.misuse("pipeline %q set after release", fake.Label())
	}
	p.pipeline = fake
}

// drawn checks that the current pipeline can be drawn with the current rasterizer state.
// A state other than the pipeline's own needs a variant compiled from its library.
func (p *RenderPass) drawn() {
	rp := p.pipeline
	if rp == nil {
		return
	}
	if rp.Released {
		p.misuse("draw with released pipeline %q", rp.Label())
		return
	}
	if (p.cull != rp.Desc.CullMode || p.winding != rp.Desc.Winding) && rp.lib != nil && rp.lib.Freed() {
		p.misuse("pipeline %q needs a variant but its library was freed", rp.Label())
	}
}
func (p *RenderPass) SetFillMode(f gpu.FillMode) { p.record(Command{Op: "SetFillMode", Value: f}) }

func (p *RenderPass) SetFrontFacing(w gpu.Winding) {
	p.record(Command{Op: "SetFrontFacing", Value: w})
	p.winding = w
}

func (p *RenderPass) SetCullMode(c gpu.CullMode) {
	p.record(Command{Op: "SetCullMode", Value: c})
	p.cull = c
}

func (p *RenderPass) SetVertexBuffer(slot int, b gpu.Buffer, offset int) {
	p.record(Command{Op: "SetVertexBuffer", Binding: slot, Buffer: b, Offset: offset})
}

func (p *RenderPass) SetBuffer(group, binding int, b gpu.Buffer, offset, size int) {
	p.record(Command{Op: "SetBuffer", Group: group, Binding: binding, Buffer: b, Offset: offset, Size: size})
}

func (p *RenderPass) SetTexture(group, binding int, t gpu.Texture) {
	p.record(Command{Op: "SetTexture", Group: group, Binding: binding, Texture: t})
}

func (p *RenderPass) SetSampler(group, binding int, s gpu.Sampler) {
	p.record(Command{Op: "SetSampler", Group: group, Binding: binding, Sampler: s})
}

func (p *RenderPass) Draw(vertexCount, instanceCount int) {
	p.record(Command{Op: "Draw", Counts: [3]int{vertexCount, instanceCount}})
	p.drawn()
}

func (p *RenderPass) DrawIndexed(indices gpu.Buffer, format gpu.IndexFormat, firstIndex, indexCount, instanceCount int) {
	p.record(Command{Op: "DrawIndexed", Buffer: indices, Value: format, Offset: firstIndex, Counts: [3]int{indexCount, instanceCount}})
	p.drawn()
}

func (p *RenderPass) End() { p.Ended = true }

// Ops returns the recorded commands whose Op matches any of ops, in order.
func (p *RenderPass) Ops(ops ...string) []Command {
	return filter(p.Commands, ops)
}

// ComputePass records compute encoder calls.
type ComputePass struct {
	Label    string
	Commands []Command
	Ended    bool
}

func (p *ComputePass) record(c Command) { p.Commands = append(p.Commands, c) }

func (p *ComputePass) SetPipeline(cp gpu.ComputePipeline) {
	p.record(Command{Op: "SetPipeline", Pipeline: cp})
}

func (p *ComputePass) SetBuffer(group, binding int, b gpu.Buffer, offset, size int) {
	p.record(Command{Op: "SetBuffer", Group: group, Binding: binding, Buffer: b, Offset: offset, Size: size})
}

func (p *ComputePass) SetTexture(group, binding int, t gpu.Texture, level int) {
	p.record(Command{Op: "SetTexture", Group: group, Binding: binding, Texture: t, Level: level})
}

func (p *ComputePass) SetSampler(group, binding int, s gpu.Sampler) {
	p.record(Command{Op: "SetSampler", Group: group, Binding: binding, Sampler: s})
}

func (p *ComputePass) DispatchThreads(grid, threadsPerGroup [3]int) {
	p.record(Command{Op: "DispatchThreads", Counts: grid, Threads: threadsPerGroup})
}

func (p *ComputePass) DispatchThreadgroups(groups, threadsPerGroup [3]int) {
	p.record(Command{Op: "DispatchThreadgroups", Counts: groups, Threads: threadsPerGroup})
}

func (p *ComputePass) End() { p.Ended = true }

// Ops returns the recorded commands whose Op matches any of ops, in order.
func (p *ComputePass) Ops(ops ...string) []Command {
	return filter(p.Commands, ops)
}

// Dispatches splits the pass into one slice of commands per dispatch: every call since the
// previous dispatch, ending with the dispatch itself.
func (p *ComputePass) Dispatches() [][]Command {
	var out [][]Command
	var cur []Command
	for _, c := range p.Commands {
		cur = append(cur, c)
		if c.Op == "DispatchThreads" || c.Op == "DispatchThreadgroups" {
			out = append(out, cur)
			cur = nil
		}
	}
	return out
}

func filter(cmds []Command, ops []string) []Command {
	var out []Command
	for _, c := range cmds {
		if slices.Contains(ops, c.Op) {
			out = append(out, c)
		}
	}
	return out
}
