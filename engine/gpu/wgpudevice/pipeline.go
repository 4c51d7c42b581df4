package wgpudevice

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var errForeignLibrary = errors.New("wgpudevice: library was not created by this device")

var (
	functionRegex    = regexp.MustCompile(`\bfn\s+([A-Za-z_]\w*)\s*\(`)
	identifierRegex  = regexp.MustCompile(`[A-Za-z_]\w*`)
	lineCommentRegex = regexp.MustCompile(`//[^\n]*`)
)

type library struct {
	device     *Device
	label      string
	module     *wgpu.ShaderModule
	reflection shader.Reflection
	// references maps each function to the identifiers its body mentions.
	references map[string][]string
	// refs counts the caller's handle plus every render pipeline that may still build
	// variants from the module.
	refs atomic.Int32
}

var _ gpu.Library = &library{}

func (d *Device) NewLibrary(label, source string) (gpu.Library, error) {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: compile %s: %w", label, err)
	}
	l := &library{
		device:     d,
		label:      label,
		module:     module,
		reflection: shader.Reflect(source),
		references: functionReferences(source),
	}
	l.refs.Store(1)
	return l, nil
}

func (l *library) Label() string       { return l.label }
func (l *library) Functions() []string { return l.reflection.Functions() }

func (l *library) HasFunction(n string) bool {
	_, ok := l.reflection.EntryPoint(n)
	return ok
}

// Release drops the caller's handle. The module is freed once no render pipeline holds
// the library either.
func (l *library) Release() {
	l.unref()
}

func (l *library) retain() {
	l.refs.Add(1)
}

func (l *library) unref() {
	if l.refs.Add(-1) != 0 {
		return
	}
	if l.module != nil {
		l.module.Release()
		l.module = nil
	}
}

func (l *library) alive() bool {
	return l.refs.Load() > 0 && l.module != nil
}

// functionReferences collects the identifiers mentioned in each function body.
func functionReferences(source string) map[string][]string {
	source = lineCommentRegex.ReplaceAllString(source, "")
	out := make(map[string][]string)
	for _, m := range functionRegex.FindAllStringSubmatchIndex(source, -1) {
		open := strings.IndexByte(source[m[1]:], '{')
		if open < 0 {
			continue
		}
		start := m[1] + open
		end := closingBrace(source, start)
		out[source[m[2]:m[3]]] = identifierRegex.FindAllString(source[start:end], -1)
	}
	return out
}

func closingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s)
}

// uses returns the identifiers reachable from entry through function calls, or nil when
// the entry point's body cannot be found.
func (l *library) uses(entry string) map[string]bool {
	if _, ok := l.references[entry]; !ok {
		return nil
	}
	seen := map[string]bool{entry: true}
	names := make(map[string]bool)
	queue := []string{entry}
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, id := range l.references[fn] {
			names[id] = true
			if _, isFn := l.references[id]; isFn && !seen[id] {
				seen[id] = true
				queue = append(queue, id)
			}
		}
	}
	return names
}

// bindLayout is the explicit pipeline layout of the declarations a set of entry points
// use. Groups between used ones get empty layouts.
type bindLayout struct {
	device   *Device
	groups   []*wgpu.BindGroupLayout
	bindings [][]shader.Declaration
	layout   *wgpu.PipelineLayout
}

func (d *Device) newBindLayout(label string, lib *library, stages map[string]wgpu.ShaderStage) (*bindLayout, error) {
	visibility := make(map[string]wgpu.ShaderStage)
	for entry, stage := range stages {
		used := lib.uses(entry)
		for _, decl := range lib.reflection.Declarations {
			if used == nil || used[decl.Name] {
				visibility[decl.Name] |= stage
			}
		}
	}

	l := &bindLayout{device: d}
	for _, decl := range lib.reflection.Declarations {
		if visibility[decl.Name] == 0 {
			continue
		}
		for len(l.bindings) <= decl.Group {
			l.bindings = append(l.bindings, nil)
		}
		l.bindings[decl.Group] = append(l.bindings[decl.Group], decl)
	}

	for g, decls := range l.bindings {
		if len(decls) == 0 {
			empty, err := d.emptyLayout()
			if err != nil {
				l.release()
				return nil, fmt.Errorf("wgpudevice: %s: empty layout: %w", label, err)
			}
			l.groups = append(l.groups, empty)
			continue
		}
		entries := make([]wgpu.BindGroupLayoutEntry, len(decls))
		for i, decl := range decls {
			entries[i] = layoutEntry(decl, visibility[decl.Name])
		}
		layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", label, g),
			Entries: entries,
		})
		if err != nil {
			l.release()
			return nil, fmt.Errorf("wgpudevice: %s: layout of group %d: %w", label, g, err)
		}
		l.groups = append(l.groups, layout)
	}

	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: l.groups,
	})
	if err != nil {
		l.release()
		return nil, fmt.Errorf("wgpudevice: %s: pipeline layout: %w", label, err)
	}
	l.layout = layout
	return l, nil
}

func (l *bindLayout) release() {
	for _, g := range l.groups {
		l.device.evict(g)
		if g != l.device.empty {
			g.Release()
		}
	}
	l.groups = nil
	if l.layout != nil {
		l.layout.Release()
		l.layout = nil
	}
}

type rasterKey struct {
	cull    gpu.CullMode
	winding gpu.Winding
}

type renderPipeline struct {
	device *Device
	desc   gpu.RenderPipelineDescriptor
	lib    *library
	layout *bindLayout

	mu       sync.Mutex
	variants map[rasterKey]*wgpu.RenderPipeline
}

var _ gpu.RenderPipeline = &renderPipeline{}

func (d *Device) NewRenderPipeline(desc gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	lib, ok := desc.Library.(*library)
	if !ok || !lib.alive() {
		return nil, errForeignLibrary
	}
	stages := map[string]wgpu.ShaderStage{}
	if ep, ok := lib.reflection.EntryPoint(desc.VertexEntry); !ok || ep.Stage != shader.StageVertex {
		return nil, fmt.Errorf("wgpudevice: %s: no vertex entry point %q", desc.Label, desc.VertexEntry)
	}
	stages[desc.VertexEntry] |= wgpu.ShaderStageVertex
	if desc.FragmentEntry != "" {
		if ep, ok := lib.reflection.EntryPoint(desc.FragmentEntry); !ok || ep.Stage != shader.StageFragment {
			return nil, fmt.Errorf("wgpudevice: %s: no fragment entry point %q", desc.Label, desc.FragmentEntry)
		}
		stages[desc.FragmentEntry] |= wgpu.ShaderStageFragment
	}
	if desc.FillMode == gpu.FillLines {
		log.Warn("line fill is not supported, drawing solid", "pipeline", desc.Label)
	}

	layout, err := d.newBindLayout(desc.Label, lib, stages)
	if err != nil {
		return nil, err
	}
	lib.retain()
	p := &renderPipeline{
		device:   d,
		desc:     desc,
		lib:      lib,
		layout:   layout,
		variants: make(map[rasterKey]*wgpu.RenderPipeline),
	}
	if _, err := p.variant(desc.CullMode, desc.Winding); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *renderPipeline) Label() string                            { return p.desc.Label }
func (p *renderPipeline) Descriptor() gpu.RenderPipelineDescriptor { return p.desc }

// variant returns the pipeline compiled for one rasterizer state, building it on first use.
func (p *renderPipeline) variant(cull gpu.CullMode, winding gpu.Winding) (*wgpu.RenderPipeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := rasterKey{cull: cull, winding: winding}
	if v, ok := p.variants[key]; ok {
		return v, nil
	}
	if p.layout == nil || !p.lib.alive() {
		return nil, fmt.Errorf("wgpudevice: pipeline %s was released", p.desc.Label)
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.desc.Label,
		Layout: p.layout.layout,
		Vertex: wgpu.VertexState{
			Module:     p.lib.module,
			EntryPoint: p.desc.VertexEntry,
			Buffers:    vertexLayouts(p.desc.VertexLayouts),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(p.desc.Topology),
			FrontFace: frontFace(winding),
			CullMode:  cullMode(cull),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(max(p.desc.SampleCount, 1)),
			Mask:  0xFFFFFFFF,
		},
	}
	if p.desc.FragmentEntry != "" {
		fragment := &wgpu.FragmentState{Module: p.lib.module, EntryPoint: p.desc.FragmentEntry}
		if format, ok := textureFormat(p.desc.ColorFormat); ok {
			mask := wgpu.ColorWriteMask(p.desc.ColorWriteMask)
			if mask == 0 {
				mask = wgpu.ColorWriteMaskAll
			}
			fragment.Targets = []wgpu.ColorTargetState{{
				Format:    format,
				Blend:     blendState(p.desc.Blend),
				WriteMask: mask,
			}}
		}
		desc.Fragment = fragment
	}
	if format, ok := textureFormat(p.desc.DepthFormat); ok {
		compare := compareFunction(p.desc.Depth.Compare)
		if compare == wgpu.CompareFunctionUndefined {
			compare = wgpu.CompareFunctionAlways
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              format,
			DepthWriteEnabled:   p.desc.Depth.Write,
			DepthCompare:        compare,
			DepthBias:           p.desc.Depth.Bias,
			DepthBiasSlopeScale: p.desc.Depth.BiasSlopeScale,
			StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	v, err := p.device.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: render pipeline %s: %w", p.desc.Label, err)
	}
	p.variants[key] = v
	return v, nil
}

func (p *renderPipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range p.variants {
		v.Release()
		delete(p.variants, k)
	}
	if p.layout != nil {
		p.layout.release()
		p.layout = nil
		p.lib.unref()
	}
}

type computePipeline struct {
	device *Device
	label  string
	raw    *wgpu.ComputePipeline
	layout *bindLayout
	size   [3]int
}

var _ gpu.ComputePipeline = &computePipeline{}

func (d *Device) NewComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	lib, ok := desc.Library.(*library)
	if !ok || !lib.alive() {
		return nil, errForeignLibrary
	}
	ep, ok := lib.reflection.EntryPoint(desc.Entry)
	if !ok || ep.Stage != shader.StageCompute {
		return nil, fmt.Errorf("wgpudevice: %s: no compute entry point %q", desc.Label, desc.Entry)
	}
	if total := ep.WorkgroupSize[0] * ep.WorkgroupSize[1] * ep.WorkgroupSize[2]; total > d.MaxThreadsPerThreadgroup() {
		return nil, fmt.Errorf("wgpudevice: %s: workgroup of %d invocations exceeds the limit of %d",
			desc.Label, total, d.MaxThreadsPerThreadgroup())
	}

	layout, err := d.newBindLayout(desc.Label, lib, map[string]wgpu.ShaderStage{desc.Entry: wgpu.ShaderStageCompute})
	if err != nil {
		return nil, err
	}
	raw, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     lib.module,
			EntryPoint: desc.Entry,
		},
	})
	if err != nil {
		layout.release()
		return nil, fmt.Errorf("wgpudevice: compute pipeline %s: %w", desc.Label, err)
	}
	return &computePipeline{device: d, label: desc.Label, raw: raw, layout: layout, size: ep.WorkgroupSize}, nil
}

func (p *computePipeline) Label() string                     { return p.label }
func (p *computePipeline) MaxTotalThreadsPerThreadgroup() int { return p.device.MaxThreadsPerThreadgroup() }
func (p *computePipeline) ThreadExecutionWidth() int          { return executionWidth }
func (p *computePipeline) ThreadgroupSize() [3]int            { return p.size }

func (p *computePipeline) Release() {
	if p.raw == nil {
		return
	}
	p.raw.Release()
	p.raw = nil
	p.layout.release()
}
