package wgpudevice

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// warned holds the messages logged once per process, keyed by pipeline and cause.
var warned sync.Map

func warnOnce(key, msg string, args ...any) {
	if _, loaded := warned.LoadOrStore(key, true); !loaded {
		log.Warn(msg, args...)
	}
}

type commandBuffer struct {
	device    *Device
	label     string
	encoder   *wgpu.CommandEncoder
	committed bool
}

var _ gpu.CommandBuffer = &commandBuffer{}

func (c *commandBuffer) recording() bool {
	if c.committed {
		log.Error("command buffer already committed", "label", c.label)
		return false
	}
	return c.encoder != nil
}

func (c *commandBuffer) BeginRenderPass(desc gpu.RenderPassDescriptor) gpu.RenderEncoder {
	e := &renderEncoder{device: c.device, label: desc.Label, bound: make(map[[2]int]resource), vertex: make(map[int]vertexBuffer)}
	if !c.recording() {
		return e
	}

	pass := &wgpu.RenderPassDescriptor{Label: desc.Label}
	if desc.Color != nil {
		view, err := attachment(desc.Color)
		if err != nil {
			log.Error("render pass color attachment", "pass", desc.Label, "err", err)
			return e
		}
		color := wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: desc.ClearColor[0], G: desc.ClearColor[1], B: desc.ClearColor[2], A: desc.ClearColor[3]},
		}
		if desc.Load {
			color.LoadOp = wgpu.LoadOpLoad
		}
		if desc.Resolve != nil {
			resolve, err := attachment(desc.Resolve)
			if err != nil {
				log.Error("render pass resolve attachment", "pass", desc.Label, "err", err)
				return e
			}
			color.ResolveTarget = resolve
			// only the resolved image outlives the pass
			color.StoreOp = wgpu.StoreOpDiscard
		}
		pass.ColorAttachments = []wgpu.RenderPassColorAttachment{color}
	}
	if desc.Depth != nil {
		view, err := attachment(desc.Depth)
		if err != nil {
			log.Error("render pass depth attachment", "pass", desc.Label, "err", err)
			return e
		}
		depth := &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: desc.ClearDepth,
		}
		if desc.Load {
			depth.DepthLoadOp = wgpu.LoadOpLoad
		}
		if desc.Depth.Descriptor().Format == gpu.FormatDepth24PlusStencil8 {
			depth.StencilLoadOp = wgpu.LoadOpClear
			depth.StencilStoreOp = wgpu.StoreOpStore
		}
		pass.DepthStencilAttachment = depth
	}
	e.pass = c.encoder.BeginRenderPass(pass)
	return e
}

func (c *commandBuffer) BeginComputePass(label string) gpu.ComputeEncoder {
	e := &computeEncoder{device: c.device, label: label, bound: make(map[[2]int]resource)}
	if !c.recording() {
		return e
	}
	e.pass = c.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	return e
}

func (c *commandBuffer) Commit() {
	if !c.recording() {
		return
	}
	c.committed = true
	cmd, err := c.encoder.Finish(&wgpu.CommandBufferDescriptor{Label: c.label})
	c.encoder.Release()
	c.encoder = nil
	if err != nil {
		log.Error("cannot finish command buffer", "label", c.label, "err", err)
		return
	}
	c.device.queue.Submit(cmd)
	cmd.Release()
}

func (c *commandBuffer) WaitUntilCompleted() {
	c.device.device.Poll(true, nil)
}

func attachment(t gpu.Texture) (*wgpu.TextureView, error) {
	tex, ok := t.(*texture)
	if !ok {
		return nil, fmt.Errorf("wgpudevice: texture %q was not created by this device", t.Label())
	}
	return tex.view(wgpu.TextureViewDimensionUndefined, 0)
}

// resource is one binding an encoder has been given.
type resource struct {
	buffer  *buffer
	offset  int
	size    int
	texture *texture
	level   int
	sampler *sampler
}

// bindGroups resolves the bound resources against layout and calls set for every group.
// It returns false, having set nothing, when a binding the layout declares is missing.
func bindGroups(d *Device, pipeline string, layout *bindLayout, bound map[[2]int]resource, set func(int, *wgpu.BindGroup)) bool {
	groups := make([]*wgpu.BindGroup, len(layout.groups))
	for g, decls := range layout.bindings {
		var key strings.Builder
		fmt.Fprintf(&key, "%p", layout.groups[g])
		entries := make([]wgpu.BindGroupEntry, 0, len(decls))
		users := []any{layout.groups[g]}

		for _, decl := range decls {
			r, ok := bound[[2]int{g, decl.Binding}]
			entry := wgpu.BindGroupEntry{Binding: uint32(decl.Binding)}
			switch decl.Kind {
			case shader.ResourceUniform, shader.ResourceStorage, shader.ResourceReadOnlyStorage:
				ok = ok && r.buffer != nil && r.buffer.raw != nil
				if ok {
					entry.Buffer = r.buffer.raw
					entry.Offset = uint64(r.offset)
					entry.Size = wgpu.WholeSize
					if r.size > 0 {
						entry.Size = uint64(r.size)
					}
					fmt.Fprintf(&key, "|%d:%p@%d+%d", decl.Binding, r.buffer, r.offset, r.size)
					users = append(users, r.buffer)
				}
			case shader.ResourceSampler:
				ok = ok && r.sampler != nil && r.sampler.raw != nil
				if ok {
					entry.Sampler = r.sampler.raw
					fmt.Fprintf(&key, "|%d:%p", decl.Binding, r.sampler)
					users = append(users, r.sampler)
				}
			default:
				ok = ok && r.texture != nil && r.texture.raw != nil
				if ok {
					level := r.level
					if decl.Kind == shader.ResourceStorageTexture && level == gpu.AllMipLevels {
						level = 0
					}
					view, err := r.texture.view(viewDimension(decl), level)
					if err != nil {
						warnOnce(pipeline+"/"+decl.Name, "cannot view texture", "pipeline", pipeline, "binding", decl.Name, "err", err)
						return false
					}
					entry.TextureView = view
					fmt.Fprintf(&key, "|%d:%p#%d", decl.Binding, r.texture, level)
					users = append(users, r.texture)
				}
			}
			if !ok {
				warnOnce(pipeline+"/"+decl.Name, "binding not set, skipping", "pipeline", pipeline, "group", g, "binding", decl.Binding, "name", decl.Name)
				return false
			}
			entries = append(entries, entry)
		}

		group, err := d.bindGroup(key.String(), &wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d", pipeline, g),
			Layout:  layout.groups[g],
			Entries: entries,
		}, users)
		if err != nil {
			warnOnce(fmt.Sprintf("%s/group %d", pipeline, g), "cannot create bind group", "pipeline", pipeline, "group", g, "err", err)
			return false
		}
		groups[g] = group
	}
	for g, group := range groups {
		set(g, group)
	}
	return true
}

type vertexBuffer struct {
	buffer *buffer
	offset int
}

type renderEncoder struct {
	device *Device
	label  string
	pass   *wgpu.RenderPassEncoder

	pipeline   *renderPipeline
	cull       gpu.CullMode
	winding    gpu.Winding
	cullSet    bool
	windingSet bool
	bound      map[[2]int]resource
	vertex     map[int]vertexBuffer
}

var _ gpu.RenderEncoder = &renderEncoder{}

func (e *renderEncoder) SetPipeline(p gpu.RenderPipeline) {
	rp, ok := p.(*renderPipeline)
	if !ok {
		log.Error("render pipeline was not created by this device", "pass", e.label)
		return
	}
	e.pipeline = rp
}

func (e *renderEncoder) SetFrontFacing(w gpu.Winding) { e.winding, e.windingSet = w, true }
func (e *renderEncoder) SetCullMode(c gpu.CullMode)   { e.cull, e.cullSet = c, true }

func (e *renderEncoder) SetFillMode(f gpu.FillMode) {
	if f == gpu.FillLines {
		warnOnce("fill lines", "line fill is not supported, drawing solid")
	}
}

func (e *renderEncoder) SetVertexBuffer(slot int, b gpu.Buffer, offset int) {
	if buf, ok := b.(*buffer); ok {
		e.vertex[slot] = vertexBuffer{buffer: buf, offset: offset}
	}
}

func (e *renderEncoder) SetBuffer(group, binding int, b gpu.Buffer, offset, size int) {
	if buf, ok := b.(*buffer); ok {
		e.bound[[2]int{group, binding}] = resource{buffer: buf, offset: offset, size: size}
	}
}

func (e *renderEncoder) SetTexture(group, binding int, t gpu.Texture) {
	if tex, ok := t.(*texture); ok {
		e.bound[[2]int{group, binding}] = resource{texture: tex, level: gpu.AllMipLevels}
	}
}

func (e *renderEncoder) SetSampler(group, binding int, s gpu.Sampler) {
	if smp, ok := s.(*sampler); ok {
		e.bound[[2]int{group, binding}] = resource{sampler: smp}
	}
}

// prepare sets the pipeline variant, bind groups and vertex buffers for a draw.
func (e *renderEncoder) prepare() bool {
	if e.pass == nil || e.pipeline == nil {
		return false
	}
	desc := e.pipeline.desc
	cull, winding := desc.CullMode, desc.Winding
	if e.cullSet {
		cull = e.cull
	}
	if e.windingSet {
		winding = e.winding
	}
	variant, err := e.pipeline.variant(cull, winding)
	if err != nil {
		warnOnce(desc.Label+"/variant", "cannot build pipeline variant", "pipeline", desc.Label, "err", err)
		return false
	}
	if e.pipeline.layout == nil {
		return false
	}
	e.pass.SetPipeline(variant)
	ok := bindGroups(e.device, desc.Label, e.pipeline.layout, e.bound, func(g int, group *wgpu.BindGroup) {
		e.pass.SetBindGroup(uint32(g), group, nil)
	})
	if !ok {
		return false
	}
	for slot := range desc.VertexLayouts {
		vb, found := e.vertex[slot]
		if !found || vb.buffer.raw == nil {
			warnOnce(desc.Label+"/vertex", "vertex buffer not set, skipping", "pipeline", desc.Label, "slot", slot)
			return false
		}
		e.pass.SetVertexBuffer(uint32(slot), vb.buffer.raw, uint64(vb.offset), wgpu.WholeSize)
	}
	return true
}

func (e *renderEncoder) Draw(vertexCount, instanceCount int) {
	if vertexCount <= 0 || instanceCount <= 0 || !e.prepare() {
		return
	}
	e.pass.Draw(uint32(vertexCount), uint32(instanceCount), 0, 0)
}

func (e *renderEncoder) DrawIndexed(indices gpu.Buffer, format gpu.IndexFormat, firstIndex, indexCount, instanceCount int) {
	ib, ok := indices.(*buffer)
	if !ok || ib.raw == nil || indexCount <= 0 || instanceCount <= 0 || !e.prepare() {
		return
	}
	e.pass.SetIndexBuffer(ib.raw, indexFormat(format), 0, wgpu.WholeSize)
	e.pass.DrawIndexed(uint32(indexCount), uint32(instanceCount), uint32(firstIndex), 0, 0)
}

func (e *renderEncoder) End() {
	if e.pass == nil {
		return
	}
	e.pass.End()
	e.pass.Release()
	e.pass = nil
}

type computeEncoder struct {
	device   *Device
	label    string
	pass     *wgpu.ComputePassEncoder
	pipeline *computePipeline
	bound    map[[2]int]resource
}

var _ gpu.ComputeEncoder = &computeEncoder{}

func (e *computeEncoder) SetPipeline(p gpu.ComputePipeline) {
	cp, ok := p.(*computePipeline)
	if !ok {
		log.Error("compute pipeline was not created by this device", "pass", e.label)
		return
	}
	e.pipeline = cp
}

func (e *computeEncoder) SetBuffer(group, binding int, b gpu.Buffer, offset, size int) {
	if buf, ok := b.(*buffer); ok {
		e.bound[[2]int{group, binding}] = resource{buffer: buf, offset: offset, size: size}
	}
}

func (e *computeEncoder) SetTexture(group, binding int, t gpu.Texture, level int) {
	if tex, ok := t.(*texture); ok {
		e.bound[[2]int{group, binding}] = resource{texture: tex, level: level}
	}
}

func (e *computeEncoder) SetSampler(group, binding int, s gpu.Sampler) {
	if smp, ok := s.(*sampler); ok {
		e.bound[[2]int{group, binding}] = resource{sampler: smp}
	}
}

func (e *computeEncoder) prepare() bool {
	if e.pass == nil || e.pipeline == nil || e.pipeline.raw == nil {
		return false
	}
	e.pass.SetPipeline(e.pipeline.raw)
	return bindGroups(e.device, e.pipeline.label, e.pipeline.layout, e.bound, func(g int, group *wgpu.BindGroup) {
		e.pass.SetBindGroup(uint32(g), group, nil)
	})
}

// DispatchThreads rounds the grid up to whole workgroups; kernels guard their bounds.
func (e *computeEncoder) DispatchThreads(grid, threadsPerGroup [3]int) {
	var groups [3]int
	for i := range groups {
		tpg := max(threadsPerGroup[i], 1)
		groups[i] = (grid[i] + tpg - 1) / tpg
	}
	e.DispatchThreadgroups(groups, threadsPerGroup)
}

func (e *computeEncoder) DispatchThreadgroups(groups, _ [3]int) {
	if groups[0] <= 0 || groups[1] <= 0 || groups[2] <= 0 || !e.prepare() {
		return
	}
	e.pass.DispatchWorkgroups(uint32(groups[0]), uint32(groups[1]), uint32(groups[2]))
}

func (e *computeEncoder) End() {
	if e.pass == nil {
		return
	}
	e.pass.End()
	e.pass.Release()
	e.pass = nil
}
