// Package shader assembles WGSL source from templates, includes and generated declarations
// and compiles it into render pipelines.
//
// A Shader is named explicitly. The name selects the entry points the source must declare
// ("BasicColor" expects basicColorVertex and basicColorFragment) and the uniforms struct
// its parameters are parsed from (BasicColorUniforms). Compiled pipelines are published
// atomically so that the frame loop always sees either the previous or the next pipeline,
// never one under construction.
package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/parameter"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("shader")

// ErrMissingEntryPoint is returned when compiled source lacks a required entry point.
var ErrMissingEntryPoint = errors.New("shader: missing entry point")

// VertexUniformsSource is the WGSL declaration of the per-mesh VertexUniforms struct.
//
//go:embed assets/prism/vertex_uniforms.wgsl
var VertexUniformsSource string

//go:embed assets/prism/constants.wgsl
var constantsSource string

// DefaultTemplate is the built-in template providing the shared vertex function.
const DefaultTemplate = "prism/vertex.wgsl"

// Bind groups of render shaders.
const (
	// VertexGroup holds the vertex uniforms at binding 0.
	VertexGroup = 0
	// MaterialGroup holds the material uniforms at binding 0 followed by texture and
	// sampler pairs.
	MaterialGroup = 1
	// ExternalGroup holds buffers owned by other systems, bound at their slot.
	ExternalGroup = 2
)

// TextureBinding returns the binding of the i-th material texture in MaterialGroup.
func TextureBinding(i int) int { return 1 + 2*i }

// SamplerBinding returns the binding of the sampler paired with the i-th texture.
func SamplerBinding(i int) int { return 2 + 2*i }

// EntryName returns the entry point a shader called name declares for a stage suffix:
// EntryName("BasicColor", "Vertex") gives basicColorVertex.
func EntryName(name, suffix string) string {
	return camelCase(name) + suffix
}

// UniformsName returns the uniforms struct name of a shader called name, its words
// capitalized and joined with "Uniforms" appended: "basic_color" gives BasicColorUniforms.
func UniformsName(name string) string {
	return pascalCase(name) + "Uniforms"
}

// External is a struct declaration and binding supplied by another system, such as the
// lights of a scene. Materials only read external buffers.
type External struct {
	// Name is the variable name in the shader.
	Name string
	// Type is the WGSL type of the variable.
	Type string
	// Source declares Type. It is emitted once even if several externals share the type.
	Source string
	// Space is the address space, AddressSpaceUniform when empty.
	Space AddressSpace
}

// TextureSlot declares a material texture and its sampler.
type TextureSlot struct {
	Name string
	// Type is the WGSL texture type, texture_2d<f32> when empty.
	Type string
}

// Compiled is one published compilation result. A Compiled is never modified after it is
// published.
type Compiled struct {
	Source       string
	Dependencies []string
	Reflection   Reflection
	// Parameters is the uniforms group the source was compiled with: the configured group,
	// or a group parsed from the uniforms struct of the source. Nil when there is none.
	Parameters *parameter.Group
	Pipeline   gpu.RenderPipeline
	Shadow     gpu.RenderPipeline
	Err        error

	cached bool
}

// Delegate is notified after every compilation, successful or not. Live shaders notify
// from a worker goroutine.
type Delegate interface {
	ShaderCompiled(s Shader, c *Compiled)
}

// shader is the implementation of the Shader interface.
type shader struct {
	name     string
	path     string
	inline   string
	template string
	resolver Resolver
	params   *parameter.Group
	state    gpu.PipelineState
	shadow   gpu.PipelineState
	textures []TextureSlot
	snippet  string
	vertex   string
	layout   gpu.VertexLayout
	live     bool

	mu        sync.Mutex
	ctx       *gpu.Context
	delegate  Delegate
	externals map[int]External

	compiled  atomic.Pointer[Compiled]
	compiling atomic.Bool
	pending   atomic.Bool

	watcher      *Watcher
	ownedWatcher bool
	watches      map[string]func()
}

// Shader assembles, compiles and publishes the render pipelines of one named shader.
type Shader interface {
	// Name retrieves the explicit shader name.
	Name() string

	// VertexEntry retrieves the vertex entry point name, <camelName>Vertex.
	VertexEntry() string

	// FragmentEntry retrieves the fragment entry point name, <camelName>Fragment.
	FragmentEntry() string

	// ShadowVertexEntry retrieves the optional shadow entry point name, <camelName>ShadowVertex.
	ShadowVertexEntry() string

	// UniformsName retrieves the name of the uniforms struct, <Name>Uniforms.
	UniformsName() string

	// Assemble resolves includes and splices every generated declaration into the source.
	//
	// Returns:
	//   - Source: the assembled text and the files it was read from
	//   - error: error if an include is missing or an annotation is malformed
	Assemble() (Source, error)

	// Setup binds the shader to a context and compiles it. Compile failures are logged and
	// leave the pipeline nil; the error is returned for callers that want it.
	//
	// Parameters:
	//   - ctx: the context supplying the device, formats and pipeline cache
	//
	// Returns:
	//   - error: the compile error, if any
	Setup(ctx *gpu.Context) error

	// Recompile rebuilds the pipelines against the current context. Live shaders recompile
	// on the context's worker pool, others on the calling goroutine.
	Recompile()

	// Compiled retrieves the latest published result, or nil before the first Setup.
	Compiled() *Compiled

	// Pipeline retrieves the published render pipeline, or nil.
	Pipeline() gpu.RenderPipeline

	// ShadowPipeline retrieves the published depth-only pipeline, or nil.
	ShadowPipeline() gpu.RenderPipeline

	// Parameters retrieves the uniforms group of the latest compilation, or nil.
	Parameters() *parameter.Group

	// Textures retrieves the declared texture slots.
	Textures() []TextureSlot

	// State retrieves the fixed-function state the pipelines are compiled against.
	State() gpu.PipelineState

	// SetState changes the fixed-function state and recompiles.
	SetState(state gpu.PipelineState)

	// SetExternal declares an external binding at slot of ExternalGroup and recompiles.
	//
	// Parameters:
	//   - slot: the binding index
	//   - e: the declaration
	SetExternal(slot int, e External)

	// RemoveExternal removes the external binding at slot and recompiles.
	RemoveExternal(slot int)

	// SetDelegate sets the receiver of compile notifications.
	SetDelegate(d Delegate)

	// Live reports whether the shader recompiles when its files change.
	Live() bool

	// Release stops watching files and releases pipelines the shader owns.
	Release()
}

var _ Shader = &shader{}

// NewShader creates a shader. Without a source option the shader compiles the template
// alone, which is only useful when the template declares the entry points.
//
// Parameters:
//   - name: the shader name, e.g. "BasicColor"
//   - opts: a variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the new shader, not yet compiled
func NewShader(name string, opts ...ShaderBuilderOption) Shader {
	return newShader(name, opts...)
}

// NewLiveShader creates a shader that recompiles whenever its source file or any file it
// includes changes on disk. Recompiled pipelines are never shared through the context's
// pipeline cache, and replaced pipelines are released.
//
// Parameters:
//   - name: the shader name
//   - path: the source file
//   - opts: a variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the new shader, not yet compiled
func NewLiveShader(name, path string, opts ...ShaderBuilderOption) Shader {
	s := newShader(name, append(opts, WithSourcePath(path))...)
	s.live = true
	return s
}

func newShader(name string, opts ...ShaderBuilderOption) *shader {
	if strings.TrimSpace(name) == "" {
		panic("shader: a shader must have a name")
	}
	s := &shader{
		name:      name,
		template:  DefaultTemplate,
		state:     gpu.NewPipelineState(),
		shadow:    gpu.NewPipelineState(gpu.WithDepthBias(2, 2), gpu.WithCullMode(gpu.CullBack)),
		vertex:    geometry.VertexInputSource,
		layout:    geometry.VertexLayout(),
		externals: make(map[int]External),
		watches:   make(map[string]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = NewFileResolver()
	}
	return s
}

func (s *shader) Name() string              { return s.name }
func (s *shader) VertexEntry() string       { return EntryName(s.name, "Vertex") }
func (s *shader) FragmentEntry() string     { return EntryName(s.name, "Fragment") }
func (s *shader) ShadowVertexEntry() string { return EntryName(s.name, "ShadowVertex") }
func (s *shader) UniformsName() string      { return UniformsName(s.name) }
func (s *shader) Live() bool                { return s.live }

func (s *shader) Compiled() *Compiled {
	return s.compiled.Load()
}

func (s *shader) Pipeline() gpu.RenderPipeline {
	if c := s.compiled.Load(); c != nil {
		return c.Pipeline
	}
	return nil
}

func (s *shader) ShadowPipeline() gpu.RenderPipeline {
	if c := s.compiled.Load(); c != nil {
		return c.Shadow
	}
	return nil
}

func (s *shader) Parameters() *parameter.Group {
	if c := s.compiled.Load(); c != nil {
		return c.Parameters
	}
	return s.params
}

func (s *shader) Textures() []TextureSlot {
	out := make([]TextureSlot, len(s.textures))
	copy(out, s.textures)
	return out
}

func (s *shader) State() gpu.PipelineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *shader) SetState(state gpu.PipelineState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()
	if changed {
		s.Recompile()
	}
}

func (s *shader) SetExternal(slot int, e External) {
	if e.Space == "" {
		e.Space = AddressSpaceUniform
	}
	s.mu.Lock()
	changed := s.externals[slot] != e
	s.externals[slot] = e
	s.mu.Unlock()
	if changed {
		s.Recompile()
	}
}

func (s *shader) RemoveExternal(slot int) {
	s.mu.Lock()
	_, ok := s.externals[slot]
	delete(s.externals, slot)
	s.mu.Unlock()
	if ok {
		s.Recompile()
	}
}

func (s *shader) SetDelegate(d Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

func (s *shader) Setup(ctx *gpu.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	if s.live && s.watcher == nil {
		w, err := NewWatcher(0)
		if err != nil {
			log.Warn("live reload disabled", "shader", s.name, "err", err)
		} else {
			s.watcher, s.ownedWatcher = w, true
		}
	}
	s.mu.Unlock()
	return s.compile()
}

func (s *shader) Recompile() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	if !s.live {
		_ = s.compile()
		return
	}
	if !s.compiling.CompareAndSwap(false, true) {
		s.pending.Store(true)
		return
	}
	ctx.Submit("recompile "+s.name, func() error {
		for {
			s.pending.Store(false)
			_ = s.compile()
			s.compiling.Store(false)
			if !s.pending.Load() || !s.compiling.CompareAndSwap(false, true) {
				return nil
			}
		}
	})
}

func (s *shader) Assemble() (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, _, err := s.assemble()
	return src, err
}

// assemble builds the source; s.mu must be held.
func (s *shader) assemble() (Source, *parameter.Group, error) {
	var body Source
	var err error
	switch {
	case s.path != "":
		body, err = s.resolver.Parse(s.path)
	default:
		body, err = s.resolver.Expand(s.name, s.inline)
	}
	if err != nil {
		return Source{}, nil, err
	}

	text := body.Text
	deps := body.Dependencies
	if s.template != "" {
		tmpl, err := s.resolver.Parse(s.template)
		if err != nil {
			return Source{}, nil, fmt.Errorf("shader: template: %w", err)
		}
		text = tmpl.Text + "\n" + text
		deps = append(deps, tmpl.Dependencies...)
	}

	b := NewBuilder()
	b.Inject(InjectConstants, constantsSource)
	b.Declare(InjectVertexAttributes, "VertexInput", s.vertex)
	b.Declare(InjectVertexUniforms, "VertexUniforms", VertexUniformsSource)
	b.Inject(InjectVertex, s.snippet)

	params := s.params
	if params != nil {
		b.Struct(params.Label(), params.StructSource())
	} else {
		params, err = parameter.ParseStruct(text, s.UniformsName())
		switch {
		case errors.Is(err, parameter.ErrStructNotFound):
			params = nil
		case err != nil:
			return Source{}, nil, err
		}
	}

	declared := Reflect(text)
	bound := func(group, binding int) bool {
		for _, d := range declared.Group(group) {
			if d.Binding == binding {
				return true
			}
		}
		return false
	}
	if params != nil && params.Size() > 0 && !bound(MaterialGroup, 0) {
		if err := b.Bind(MaterialGroup, 0, AddressSpaceUniform, "uniforms", params.Label()); err != nil {
			return Source{}, nil, err
		}
	}
	for i, t := range s.textures {
		typ := t.Type
		if typ == "" {
			typ = "texture_2d<f32>"
		}
		if bound(MaterialGroup, TextureBinding(i)) {
			continue
		}
		if err := b.Bind(MaterialGroup, TextureBinding(i), AddressSpaceHandle, t.Name, typ); err != nil {
			return Source{}, nil, err
		}
		if err := b.Bind(MaterialGroup, SamplerBinding(i), AddressSpaceHandle, t.Name+"Sampler", "sampler"); err != nil {
			return Source{}, nil, err
		}
	}
	for _, slot := range slices.Sorted(maps.Keys(s.externals)) {
		e := s.externals[slot]
		b.Struct(e.Type, e.Source)
		if err := b.Bind(ExternalGroup, slot, e.Space, e.Name, e.Type); err != nil {
			return Source{}, nil, err
		}
	}

	out, err := b.Build(text)
	if err != nil {
		return Source{}, nil, fmt.Errorf("shader: %s: %w", s.name, err)
	}
	return Source{Path: body.Path, Text: out, Dependencies: deps}, params, nil
}

// compile assembles and builds the pipelines, publishes the result and notifies the
// delegate outside the lock.
func (s *shader) compile() error {
	s.mu.Lock()
	next := &Compiled{}
	src, params, err := s.assemble()
	if err == nil {
		next.Source = src.Text
		next.Dependencies = src.Dependencies
		next.Parameters = params
		next.Reflection = Reflect(src.Text)
		err = s.build(next)
	}
	if err != nil {
		next.Err = err
		log.Error("shader compile failed", "shader", s.name, "path", s.path, "err", err)
	}
	s.watch(next.Dependencies)
	s.publish(next)
	d := s.delegate
	s.mu.Unlock()

	if d != nil {
		d.ShaderCompiled(s, next)
	}
	return err
}

// build compiles next.Source; s.mu must be held.
func (s *shader) build(next *Compiled) error {
	ctx := s.ctx
	if ctx == nil || ctx.Device == nil {
		return fmt.Errorf("shader: %s has no context", s.name)
	}
	h := fnv.New64a()
	h.Write([]byte(next.Source))
	hash := h.Sum64()
	variant := ctx.Variant() + "|" + s.state.Key()
	mainKey := gpu.CacheKey{Name: s.name, LayoutHash: hash, Variant: variant + "|main"}
	shadowKey := gpu.CacheKey{Name: s.name, LayoutHash: hash, Variant: variant + "|shadow|" + s.shadow.Key()}

	if !s.live {
		if p, ok := ctx.Pipelines.Render(mainKey); ok {
			next.Pipeline = p
			next.Shadow, _ = ctx.Pipelines.Render(shadowKey)
			next.cached = true
			return nil
		}
	}

	lib, err := ctx.Device.NewLibrary(s.name, next.Source)
	if err != nil {
		return fmt.Errorf("shader: compile %s: %w", s.name, err)
	}
	defer lib.Release()
	for _, entry := range []string{s.VertexEntry(), s.FragmentEntry()} {
		if !lib.HasFunction(entry) {
			return fmt.Errorf("%w: %s in %s", ErrMissingEntryPoint, entry, s.name)
		}
	}

	desc := gpu.RenderPipelineDescriptor{
		Label:         s.name,
		Library:       lib,
		VertexEntry:   s.VertexEntry(),
		FragmentEntry: s.FragmentEntry(),
		VertexLayouts: []gpu.VertexLayout{s.layout},
		ColorFormat:   ctx.ColorFormat,
		DepthFormat:   ctx.DepthFormat,
		SampleCount:   ctx.SampleCount,
	}
	s.state.Apply(&desc)
	p, err := ctx.Device.NewRenderPipeline(desc)
	if err != nil {
		return fmt.Errorf("shader: pipeline %s: %w", s.name, err)
	}
	next.Pipeline = p

	if lib.HasFunction(s.ShadowVertexEntry()) && ctx.DepthFormat != gpu.FormatUndefined {
		shadow := gpu.RenderPipelineDescriptor{
			Label:         s.name + " shadow",
			Library:       lib,
			VertexEntry:   s.ShadowVertexEntry(),
			VertexLayouts: []gpu.VertexLayout{s.layout},
			DepthFormat:   ctx.DepthFormat,
			SampleCount:   1,
		}
		s.shadow.Apply(&shadow)
		shadow.Blend = nil
		if sp, err := ctx.Device.NewRenderPipeline(shadow); err != nil {
			log.Warn("shadow pipeline failed", "shader", s.name, "err", err)
		} else {
			next.Shadow = sp
		}
	}

	if !s.live {
		ctx.Pipelines.PutRender(mainKey, next.Pipeline)
		if next.Shadow != nil {
			ctx.Pipelines.PutRender(shadowKey, next.Shadow)
		}
		next.cached = true
	}
	return nil
}

// publish swaps in next and retires the pipelines of the replaced result unless the
// pipeline cache owns them. A draw of the current frame may have loaded them already, so
// the context releases them once the frames in flight are done.
func (s *shader) publish(next *Compiled) {
	old := s.compiled.Swap(next)
	if old == nil || old.cached {
		return
	}
	if old.Pipeline != nil {
		s.ctx.Retire(old.Pipeline)
	}
	if old.Shadow != nil {
		s.ctx.Retire(old.Shadow)
	}
}

// watch makes the watched set equal deps; s.mu must be held. A failed compile has no
// dependencies and keeps the previous set so that fixing the file triggers a recompile.
func (s *shader) watch(deps []string) {
	if !s.live || s.watcher == nil {
		return
	}
	if len(deps) == 0 {
		if len(s.watches) == 0 && s.path != "" && isFile(s.path) {
			deps = []string{s.path}
		} else {
			return
		}
	}
	want := make(map[string]bool, len(deps))
	for _, p := range deps {
		want[p] = true
	}
	for p, cancel := range s.watches {
		if !want[p] {
			cancel()
			delete(s.watches, p)
		}
	}
	for _, p := range deps {
		if _, ok := s.watches[p]; ok {
			continue
		}
		cancel, err := s.watcher.Watch(p, s.changed)
		if err != nil {
			log.Warn("cannot watch shader file", "shader", s.name, "path", p, "err", err)
			continue
		}
		s.watches[p] = cancel
	}
}

func (s *shader) changed(path string) {
	log.Info("shader source changed", "shader", s.name, "path", path)
	s.Recompile()
}

func (s *shader) Release() {
	s.mu.Lock()
	for p, cancel := range s.watches {
		cancel()
		delete(s.watches, p)
	}
	if s.ownedWatcher {
		_ = s.watcher.Close()
		s.watcher, s.ownedWatcher = nil, false
	}
	s.publish(nil)
	s.mu.Unlock()
}

// pascalCase joins the words of name, split at underscores, dashes and spaces, with each
// word capitalized: "basic_color" becomes "BasicColor".
func pascalCase(name string) string {
	var sb strings.Builder
	for _, word := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	}) {
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		sb.WriteString(string(r))
	}
	return sb.String()
}

// camelCase lowers the leading capitals of the pascal-cased name, keeping the last one of
// a run that starts a new word: "BasicColor" becomes "basicColor", "UVColor" "uvColor".
func camelCase(name string) string {
	r := []rune(pascalCase(name))
	for i := range r {
		if !unicode.IsUpper(r[i]) {
			break
		}
		if i > 0 && i+1 < len(r) && unicode.IsLower(r[i+1]) {
			break
		}
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
