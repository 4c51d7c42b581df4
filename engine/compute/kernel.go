package compute

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/parameter"
	"github.com/Carmen-Shannon/prism/engine/shader"
)

// Program is one published compilation of a compute kernel. A Program is never modified
// after it is published.
type Program struct {
	Source       string
	Dependencies []string
	Reflection   shader.Reflection
	// Parameters is the uniforms group the kernel was compiled with, nil when it has none.
	Parameters *parameter.Group
	// Reset and Update are nil when the kernel does not declare the entry point.
	Reset  gpu.ComputePipeline
	Update gpu.ComputePipeline
	Err    error

	cached bool
}

// resource is the binding declaration of one ping-pong resource.
type resource struct {
	name string
	// input is the WGSL type of the input binding of feedback systems.
	input      string
	inputSpace shader.AddressSpace
	// output is the WGSL type of the output binding, or of the only binding without feedback.
	output      string
	outputSpace shader.AddressSpace
	// structName and structSource declare the element type when it is supplied rather
	// than declared by the kernel.
	structName   string
	structSource string
}

// kernel assembles, compiles and publishes the reset and update pipelines of a compute
// system. Live kernels recompile on the context's worker pool when their files change.
type kernel struct {
	name     string
	path     string
	inline   string
	resolver shader.Resolver
	params   *parameter.Group
	live     bool

	mu        sync.Mutex
	ctx       *gpu.Context
	feedback  bool
	resources []resource

	compiled  atomic.Pointer[Program]
	compiling atomic.Bool
	pending   atomic.Bool

	watcher      *shader.Watcher
	ownedWatcher bool
	watches      map[string]func()
}

func (k *kernel) resetEntry() string  { return shader.EntryName(k.name, "Reset") }
func (k *kernel) updateEntry() string { return shader.EntryName(k.name, "Update") }

// parse reads the uniforms struct of the kernel source before the first compile so values
// can be set on a system that has no context yet.
func (k *kernel) parse() *parameter.Group {
	if k.params != nil {
		return k.params
	}
	body, err := k.body()
	if err != nil {
		log.Error("cannot read kernel", "kernel", k.name, "path", k.path, "err", err)
		return parameter.NewGroup(shader.UniformsName(k.name))
	}
	g, err := parameter.ParseStruct(body.Text, shader.UniformsName(k.name))
	if err != nil {
		if !errors.Is(err, parameter.ErrStructNotFound) {
			log.Error("cannot parse kernel uniforms", "kernel", k.name, "err", err)
		}
		return parameter.NewGroup(shader.UniformsName(k.name))
	}
	return g
}

func (k *kernel) body() (shader.Source, error) {
	if k.path != "" {
		return k.resolver.Parse(k.path)
	}
	return k.resolver.Expand(k.name, k.inline)
}

// declare replaces the resource declarations and recompiles if they changed.
func (k *kernel) declare(feedback bool, resources []resource) {
	k.mu.Lock()
	changed := k.feedback != feedback || !equalResources(k.resources, resources)
	k.feedback = feedback
	k.resources = resources
	k.mu.Unlock()
	if changed {
		k.recompile()
	}
}

func equalResources(a, b []resource) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (k *kernel) setup(ctx *gpu.Context) error {
	k.mu.Lock()
	k.ctx = ctx
	if k.live && k.watcher == nil {
		w, err := shader.NewWatcher(0)
		if err != nil {
			log.Warn("live reload disabled", "kernel", k.name, "err", err)
		} else {
			k.watcher, k.ownedWatcher = w, true
		}
	}
	k.mu.Unlock()
	return k.compile()
}

func (k *kernel) recompile() {
	k.mu.Lock()
	ctx := k.ctx
	k.mu.Unlock()
	if ctx == nil {
		return
	}
	if !k.live {
		_ = k.compile()
		return
	}
	if !k.compiling.CompareAndSwap(false, true) {
		k.pending.Store(true)
		return
	}
	ctx.Submit("recompile kernel "+k.name, func() error {
		for {
			k.pending.Store(false)
			_ = k.compile()
			k.compiling.Store(false)
			if !k.pending.Load() || !k.compiling.CompareAndSwap(false, true) {
				return nil
			}
		}
	})
}

// assemble builds the kernel source; k.mu must be held.
func (k *kernel) assemble() (shader.Source, *parameter.Group, error) {
	body, err := k.body()
	if err != nil {
		return shader.Source{}, nil, err
	}

	b := shader.NewBuilder()
	for i, r := range k.resources {
		b.Struct(r.structName, r.structSource)
		if k.feedback {
			if err := b.Bind(ResourceGroup, 2*i, r.inputSpace, r.name+"In", r.input); err != nil {
				return shader.Source{}, nil, err
			}
			if err := b.Bind(ResourceGroup, 2*i+1, r.outputSpace, r.name+"Out", r.output); err != nil {
				return shader.Source{}, nil, err
			}
			continue
		}
		if err := b.Bind(ResourceGroup, i, r.outputSpace, r.name, r.output); err != nil {
			return shader.Source{}, nil, err
		}
	}

	params := k.params
	if params != nil {
		b.Struct(params.Label(), params.StructSource())
	} else {
		params, err = parameter.ParseStruct(body.Text, shader.UniformsName(k.name))
		switch {
		case errors.Is(err, parameter.ErrStructNotFound):
			params = nil
		case err != nil:
			return shader.Source{}, nil, err
		}
	}
	if params != nil && params.Size() > 0 {
		if err := b.Bind(UniformsGroup, 0, shader.AddressSpaceUniform, "uniforms", params.Label()); err != nil {
			return shader.Source{}, nil, err
		}
	}

	out, err := b.Build(body.Text)
	if err != nil {
		return shader.Source{}, nil, fmt.Errorf("compute: %s: %w", k.name, err)
	}
	return shader.Source{Path: body.Path, Text: out, Dependencies: body.Dependencies}, params, nil
}

func (k *kernel) compile() error {
	k.mu.Lock()
	next := &Program{}
	src, params, err := k.assemble()
	if err == nil {
		next.Source = src.Text
		next.Dependencies = src.Dependencies
		next.Parameters = params
		next.Reflection = shader.Reflect(src.Text)
		err = k.build(next)
	}
	if err != nil {
		next.Err = err
		log.Error("kernel compile failed", "kernel", k.name, "path", k.path, "err", err)
	}
	k.watch(next.Dependencies)
	k.publish(next)
	k.mu.Unlock()
	return err
}

// build compiles next.Source; k.mu must be held.
func (k *kernel) build(next *Program) error {
	ctx := k.ctx
	if ctx == nil || ctx.Device == nil {
		return fmt.Errorf("compute: %s has no context", k.name)
	}
	h := fnv.New64a()
	h.Write([]byte(next.Source))
	resetKey := gpu.CacheKey{Name: k.name, LayoutHash: h.Sum64(), Variant: "reset"}
	updateKey := gpu.CacheKey{Name: k.name, LayoutHash: h.Sum64(), Variant: "update"}

	if !k.live {
		reset, hasReset := ctx.Pipelines.Compute(resetKey)
		update, hasUpdate := ctx.Pipelines.Compute(updateKey)
		if hasReset || hasUpdate {
			next.Reset, next.Update, next.cached = reset, update, true
			return nil
		}
	}

	lib, err := ctx.Device.NewLibrary(k.name, next.Source)
	if err != nil {
		return fmt.Errorf("compute: compile %s: %w", k.name, err)
	}
	defer lib.Release()
	if !lib.HasFunction(k.resetEntry()) && !lib.HasFunction(k.updateEntry()) {
		return fmt.Errorf("%w: %s or %s in %s", shader.ErrMissingEntryPoint, k.resetEntry(), k.updateEntry(), k.name)
	}

	pipeline := func(entry string) (gpu.ComputePipeline, error) {
		if !lib.HasFunction(entry) {
			return nil, nil
		}
		p, err := ctx.Device.NewComputePipeline(gpu.ComputePipelineDescriptor{Label: entry, Library: lib, Entry: entry})
		if err != nil {
			return nil, fmt.Errorf("compute: pipeline %s: %w", entry, err)
		}
		return p, nil
	}
	if next.Reset, err = pipeline(k.resetEntry()); err != nil {
		return err
	}
	if next.Update, err = pipeline(k.updateEntry()); err != nil {
		if next.Reset != nil {
			next.Reset.Release()
			next.Reset = nil
		}
		return err
	}

	if !k.live {
		if next.Reset != nil {
			ctx.Pipelines.PutCompute(resetKey, next.Reset)
		}
		if next.Update != nil {
			ctx.Pipelines.PutCompute(updateKey, next.Update)
		}
		next.cached = true
	}
	return nil
}

// publish swaps in next and retires the pipelines of the replaced program unless the
// pipeline cache owns them.
func (k *kernel) publish(next *Program) {
	old := k.compiled.Swap(next)
	if old == nil || old.cached {
		return
	}
	if old.Reset != nil {
		k.ctx.Retire(old.Reset)
	}
	if old.Update != nil {
		k.ctx.Retire(old.Update)
	}
}

// watch makes the watched set equal deps; k.mu must be held.
func (k *kernel) watch(deps []string) {
	if !k.live || k.watcher == nil {
		return
	}
	if len(deps) == 0 {
		if _, err := os.Stat(k.path); len(k.watches) > 0 || err != nil {
			return
		}
		deps = []string{k.path}
	}
	want := make(map[string]bool, len(deps))
	for _, p := range deps {
		want[p] = true
	}
	for p, cancel := range k.watches {
		if !want[p] {
			cancel()
			delete(k.watches, p)
		}
	}
	for _, p := range deps {
		if _, ok := k.watches[p]; ok {
			continue
		}
		cancel, err := k.watcher.Watch(p, k.changed)
		if err != nil {
			log.Warn("cannot watch kernel file", "kernel", k.name, "path", p, "err", err)
			continue
		}
		k.watches[p] = cancel
	}
}

func (k *kernel) changed(path string) {
	log.Info("kernel source changed", "kernel", k.name, "path", path)
	k.recompile()
}

func (k *kernel) release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for p, cancel := range k.watches {
		cancel()
		delete(k.watches, p)
	}
	if k.ownedWatcher {
		_ = k.watcher.Close()
		k.watcher, k.ownedWatcher = nil, false
	}
	k.publish(nil)
	k.ctx = nil
}
