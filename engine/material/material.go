// Package material pairs a shader with the uniforms, textures and external buffers a draw
// binds.
//
// A material owns a parameter group named after its shader's uniforms struct and a ring
// buffer the group is written into once per frame. When the shader recompiles, parameters
// parsed from the new source are merged into the existing group so that values set by the
// application, and references to the group's parameters, survive the reload.
package material

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/prism/engine/buffer"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/parameter"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("material")

// Binding is a buffer owned by another system and bound at a slot of
// shader.ExternalGroup. Materials only read it.
type Binding interface {
	// Declaration returns the struct and variable the shader declares for the buffer.
	Declaration() shader.External

	// Bind binds the buffer's current range to (group, binding).
	Bind(enc gpu.RenderEncoder, group, binding int)
}

// Delegate is notified on the frame loop goroutine after a material adopted a new
// compilation of its shader.
type Delegate interface {
	MaterialUpdated(m Material)
}

// material is the implementation of the Material interface.
type material struct {
	name     string
	shader   shader.Shader
	uniforms *parameter.Group
	delegate Delegate

	// construction inputs for the owned shader
	source      string
	path        string
	live        bool
	resolver    shader.Resolver
	state       gpu.PipelineState
	stateSet    bool
	shaderOpts  []shader.ShaderBuilderOption
	textureDecl []shader.TextureSlot

	ctx      *gpu.Context
	buffer   buffer.UniformBuffer
	layout   uint64
	textures []gpu.Texture
	samplers []gpu.Sampler
	owned    []gpu.Sampler
	bindings map[int]Binding

	ownShader bool
	seen      *shader.Compiled
	frame     uint64
	updated   bool
}

// Material is a shader plus the resources a draw binds with it.
type Material interface {
	// Name retrieves the material name, which is also the name of an owned shader.
	Name() string

	// Shader retrieves the shader the material draws with.
	Shader() shader.Shader

	// Uniforms retrieves the material's parameter group. The group keeps its identity
	// across shader reloads.
	Uniforms() *parameter.Group

	// Set assigns a uniform value.
	//
	// Parameters:
	//   - label: the parameter label
	//   - value: the new value in the parameter's natural Go type
	//
	// Returns:
	//   - error: parameter.ErrNotFound or parameter.ErrTypeMismatch
	Set(label string, value any) error

	// Setup compiles the shader against ctx and allocates the uniform buffer. A compile
	// failure is logged and returned; the material then draws nothing.
	//
	// Parameters:
	//   - ctx: the context to compile against
	//
	// Returns:
	//   - error: the compile error, if any
	Setup(ctx *gpu.Context) error

	// Context retrieves the context of the last Setup, or nil.
	Context() *gpu.Context

	// Update adopts a pending shader recompilation and writes the uniforms into the next
	// ring region. Calls with a frame number already seen do nothing, so a material shared
	// by several meshes advances its ring once per frame.
	//
	// Parameters:
	//   - frame: the renderer's frame counter
	Update(frame uint64)

	// Bind sets the pipeline and binds the uniforms, textures and external buffers.
	//
	// Parameters:
	//   - enc: the render encoder
	//   - shadow: bind the depth-only shadow pipeline instead of the main one
	//
	// Returns:
	//   - bool: false if there is nothing to draw with, in which case nothing was recorded
	Bind(enc gpu.RenderEncoder, shadow bool) bool

	// Pipeline retrieves the compiled pipeline, or nil.
	Pipeline() gpu.RenderPipeline

	// ShadowPipeline retrieves the compiled shadow pipeline, or nil.
	ShadowPipeline() gpu.RenderPipeline

	// Drawable reports whether the material has a compiled pipeline.
	Drawable() bool

	// SetTexture sets the texture of a declared slot and optionally its sampler.
	//
	// Parameters:
	//   - slot: the texture slot, in declaration order
	//   - tex: the texture
	//   - sampler: the sampler, or nil to use a linear sampler
	SetTexture(slot int, tex gpu.Texture, sampler gpu.Sampler)

	// SetBinding binds an external buffer at slot of shader.ExternalGroup, redeclaring it in
	// the shader.
	SetBinding(slot int, b Binding)

	// RemoveBinding removes the external buffer at slot.
	RemoveBinding(slot int)

	// Blending retrieves the blending mode.
	Blending() gpu.Blending

	// SetBlending changes the blending mode, recompiling the shader.
	SetBlending(b gpu.Blending)

	// SetPipelineState changes the fixed-function state, recompiling the shader.
	SetPipelineState(state gpu.PipelineState)

	// SetDelegate sets the receiver of update notifications.
	SetDelegate(d Delegate)

	// Save writes the uniforms to path as JSON, or YAML for .yaml and .yml files.
	Save(path string) error

	// Load updates the uniforms from a file written by Save. Parameters not in the file, and
	// records for labels the material does not have, are left alone.
	//
	// Parameters:
	//   - path: the source file
	//
	// Returns:
	//   - int: the number of records skipped
	//   - error: error if the file cannot be read or decoded
	Load(path string) (int, error)

	// Release releases the uniform buffer, owned samplers and the shader if the material
	// created it.
	Release()
}

var _ Material = &material{}

// New creates a material named name. Without WithShader the material creates its own
// shader from WithSource or WithSourcePath. The uniforms struct is parsed from the source
// at construction so that values can be set before Setup.
//
// Parameters:
//   - name: the material and shader name
//   - opts: a variadic list of MaterialBuilderOption functions
//
// Returns:
//   - Material: the new material
func New(name string, opts ...MaterialBuilderOption) Material {
	m := &material{
		name:     name,
		uniforms: parameter.NewGroup(shader.UniformsName(name)),
		bindings: make(map[int]Binding),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.shader == nil {
		m.shader, m.ownShader = m.newShader(), true
	} else if p := m.shader.Parameters(); p != nil {
		m.uniforms.SetLabel(p.Label())
		m.uniforms.SetFrom(p)
	}
	m.textures = make([]gpu.Texture, len(m.shader.Textures()))
	m.samplers = make([]gpu.Sampler, len(m.textures))
	return m
}

// newShader builds the owned shader. Static materials generate their uniforms struct from
// the group parsed here; live ones keep parsing it from the changing source.
func (m *material) newShader() shader.Shader {
	if m.resolver == nil {
		m.resolver = shader.NewFileResolver()
	}
	opts := []shader.ShaderBuilderOption{shader.WithResolver(m.resolver)}
	if m.stateSet {
		opts = append(opts, shader.WithPipelineState(m.state))
	}
	for _, t := range m.textureDecl {
		opts = append(opts, shader.WithTexture(t.Name, t.Type))
	}

	var src shader.Source
	var err error
	if m.path != "" {
		src, err = m.resolver.Parse(m.path)
	} else {
		src, err = m.resolver.Expand(m.name, m.source)
	}
	if err == nil {
		var parsed *parameter.Group
		if parsed, err = parameter.ParseStruct(src.Text, m.uniforms.Label()); err == nil {
			m.uniforms.SetFrom(parsed)
		}
	}
	if err != nil && !errors.Is(err, parameter.ErrStructNotFound) {
		log.Error("cannot read material uniforms", "material", m.name, "err", err)
	}

	opts = append(opts, m.shaderOpts...)
	if m.live {
		return shader.NewLiveShader(m.name, m.path, opts...)
	}
	if m.uniforms.Len() > 0 {
		opts = append(opts, shader.WithParameters(m.uniforms))
	}
	if m.path != "" {
		opts = append(opts, shader.WithSourcePath(m.path))
	} else {
		opts = append(opts, shader.WithSource(m.source))
	}
	return shader.NewShader(m.name, opts...)
}

func (m *material) Name() string                       { return m.name }
func (m *material) Shader() shader.Shader              { return m.shader }
func (m *material) Uniforms() *parameter.Group         { return m.uniforms }
func (m *material) Context() *gpu.Context              { return m.ctx }
func (m *material) Pipeline() gpu.RenderPipeline       { return m.shader.Pipeline() }
func (m *material) ShadowPipeline() gpu.RenderPipeline { return m.shader.ShadowPipeline() }
func (m *material) Drawable() bool                     { return m.shader.Pipeline() != nil }
func (m *material) Blending() gpu.Blending             { return m.shader.State().Blending }
func (m *material) SetDelegate(d Delegate)             { m.delegate = d }

func (m *material) Set(label string, value any) error {
	return m.uniforms.Set(label, value)
}

func (m *material) Setup(ctx *gpu.Context) error {
	m.ctx = ctx
	err := m.shader.Setup(ctx)
	m.adopt(m.shader.Compiled())
	for i := range m.samplers {
		if m.samplers[i] != nil {
			continue
		}
		s, serr := ctx.Device.NewSampler(gpu.LinearSampler)
		if serr != nil {
			log.Error("cannot create sampler", "material", m.name, "err", serr)
			continue
		}
		m.samplers[i] = s
		m.owned = append(m.owned, s)
	}
	return err
}

func (m *material) Update(frame uint64) {
	if m.updated && frame == m.frame {
		return
	}
	m.frame, m.updated = frame, true
	if c := m.shader.Compiled(); c != m.seen {
		m.adopt(c)
	}
	if m.buffer != nil {
		m.buffer.Update()
	}
}

// adopt merges the parameters of a new compilation and reallocates the uniform buffer when
// the layout changed.
func (m *material) adopt(c *shader.Compiled) {
	if c == nil || c == m.seen {
		return
	}
	m.seen = c
	if c.Parameters != nil && c.Parameters != m.uniforms {
		m.uniforms.Merge(c.Parameters)
	}
	m.ensureBuffer()
	if m.delegate != nil {
		m.delegate.MaterialUpdated(m)
	}
}

func (m *material) ensureBuffer() {
	if m.ctx == nil {
		return
	}
	if m.uniforms.Size() == 0 {
		m.releaseBuffer()
		return
	}
	hash := m.uniforms.LayoutHash()
	if m.buffer != nil && hash == m.layout {
		return
	}
	m.releaseBuffer()
	b, err := buffer.NewUniformBuffer(m.ctx.Device, m.uniforms,
		buffer.WithUniformLabel(fmt.Sprintf("%s uniforms", m.name)),
		buffer.WithRegions(m.ctx.MaxFramesInFlight),
		buffer.WithContext(m.ctx),
	)
	if err != nil {
		log.Error("cannot allocate uniforms", "material", m.name, "err", err)
		return
	}
	m.buffer, m.layout = b, hash
}

func (m *material) releaseBuffer() {
	if m.buffer != nil {
		m.buffer.Release()
		m.buffer = nil
	}
}

func (m *material) Bind(enc gpu.RenderEncoder, shadow bool) bool {
	c := m.shader.Compiled()
	if c == nil || c != m.seen {
		return false
	}
	p := c.Pipeline
	if shadow {
		p = c.Shadow
	}
	if p == nil || (m.uniforms.Size() > 0 && m.buffer == nil) {
		return false
	}

	enc.SetPipeline(p)
	if m.buffer != nil {
		m.buffer.Bind(enc, shader.MaterialGroup, 0)
	}
	if !shadow {
		for i, t := range m.textures {
			if t == nil || m.samplers[i] == nil {
				continue
			}
			enc.SetTexture(shader.MaterialGroup, shader.TextureBinding(i), t)
			enc.SetSampler(shader.MaterialGroup, shader.SamplerBinding(i), m.samplers[i])
		}
	}
	for _, slot := range slices.Sorted(maps.Keys(m.bindings)) {
		m.bindings[slot].Bind(enc, shader.ExternalGroup, slot)
	}
	return true
}

func (m *material) SetTexture(slot int, tex gpu.Texture, sampler gpu.Sampler) {
	if slot < 0 || slot >= len(m.textures) {
		panic(fmt.Sprintf("material: %s has no texture slot %d", m.name, slot))
	}
	m.textures[slot] = tex
	if sampler != nil {
		m.samplers[slot] = sampler
	}
}

func (m *material) SetBinding(slot int, b Binding) {
	m.bindings[slot] = b
	m.shader.SetExternal(slot, b.Declaration())
	m.adopt(m.shader.Compiled())
}

func (m *material) RemoveBinding(slot int) {
	if _, ok := m.bindings[slot]; !ok {
		return
	}
	delete(m.bindings, slot)
	m.shader.RemoveExternal(slot)
	m.adopt(m.shader.Compiled())
}

func (m *material) SetBlending(b gpu.Blending) {
	state := m.shader.State()
	state.Blending = b
	m.SetPipelineState(state)
}

func (m *material) SetPipelineState(state gpu.PipelineState) {
	m.shader.SetState(state)
	m.adopt(m.shader.Compiled())
}

func (m *material) Save(path string) error {
	return m.uniforms.Save(path)
}

func (m *material) Load(path string) (int, error) {
	return m.uniforms.Load(path)
}

func (m *material) Release() {
	m.releaseBuffer()
	for _, s := range m.owned {
		s.Release()
	}
	m.owned = nil
	if m.ownShader {
		m.shader.Release()
	}
}
