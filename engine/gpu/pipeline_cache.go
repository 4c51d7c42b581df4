package gpu

import (
	"sync"
)

// CacheKey identifies a compiled pipeline. Name is the shader name, LayoutHash covers the
// parameter layout and assembled source, and Variant covers everything else the pipeline
// was built against (formats, sample count, fixed-function state, shadow or main pass).
type CacheKey struct {
	Name       string
	LayoutHash uint64
	Variant    string
}

// PipelineCache shares compiled pipelines between shader instances that would compile
// identical source against identical state. It is owned by a Context, never global.
type PipelineCache struct {
	mu      sync.Mutex
	render  map[CacheKey]RenderPipeline
	compute map[CacheKey]ComputePipeline
}

// NewPipelineCache returns an empty cache.
func NewPipelineCache() *PipelineCache {
	return &PipelineCache{
		render:  make(map[CacheKey]RenderPipeline),
		compute: make(map[CacheKey]ComputePipeline),
	}
}

// Render returns the cached render pipeline for key.
//
// Parameters:
//   - key: the cache key
//
// Returns:
//   - RenderPipeline: the cached pipeline, or nil
//   - bool: whether an entry exists
func (c *PipelineCache) Render(key CacheKey) (RenderPipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.render[key]
	return p, ok
}

// PutRender stores p under key, releasing any different pipeline previously stored there.
func (c *PipelineCache) PutRender(key CacheKey, p RenderPipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.render[key]; ok && old != p {
		old.Release()
	}
	c.render[key] = p
}

// Compute returns the cached compute pipeline for key.
func (c *PipelineCache) Compute(key CacheKey) (ComputePipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.compute[key]
	return p, ok
}

// PutCompute stores p under key, releasing any different pipeline previously stored there.
func (c *PipelineCache) PutCompute(key CacheKey, p ComputePipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.compute[key]; ok && old != p {
		old.Release()
	}
	c.compute[key] = p
}

// Invalidate drops and releases every pipeline compiled for the named shader. Holders of
// those pipelines must rebuild before drawing again.
//
// Parameters:
//   - name: the shader name
//
// Returns:
//   - int: the number of pipelines released
func (c *PipelineCache) Invalidate(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, p := range c.render {
		if k.Name == name {
			p.Release()
			delete(c.render, k)
			n++
		}
	}
	for k, p := range c.compute {
		if k.Name == name {
			p.Release()
			delete(c.compute, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached pipelines.
func (c *PipelineCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.render) + len(c.compute)
}

// Release releases every cached pipeline and empties the cache.
func (c *PipelineCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.render {
		p.Release()
		delete(c.render, k)
	}
	for k, p := range c.compute {
		p.Release()
		delete(c.compute, k)
	}
}
