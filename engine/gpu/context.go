package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("gpu")

// DefaultMaxFramesInFlight is the depth of every per-frame uniform ring.
const DefaultMaxFramesInFlight = 3

// Context binds scene objects to a device and the render target configuration pipelines
// are compiled against. Assigning a new Context to an object tree rebuilds the pipelines
// of every material in it.
type Context struct {
	Device            Device
	ColorFormat       TextureFormat
	DepthFormat       TextureFormat
	SampleCount       int
	MaxFramesInFlight int
	Pipelines         *PipelineCache

	workers     int
	synchronous bool
	poolOnce    sync.Once
	pool        worker.DynamicWorkerPool
	taskID      atomic.Int64

	retireMu sync.Mutex
	retired  []retiredResource
	frame    uint64
	released bool
}

// Releaser is any GPU resource handle.
type Releaser interface {
	Release()
}

type retiredResource struct {
	resource Releaser
	frame    uint64
}

// NewContext creates a Context for device configured with the provided options.
//
// Parameters:
//   - device: the device every resource is allocated from
//   - opts: a variadic list of ContextBuilderOption functions
//
// Returns:
//   - *Context: the new context
func NewContext(device Device, opts ...ContextBuilderOption) *Context {
	c := &Context{
		Device:            device,
		ColorFormat:       FormatBGRA8Unorm,
		DepthFormat:       FormatDepth32Float,
		SampleCount:       1,
		MaxFramesInFlight: DefaultMaxFramesInFlight,
		Pipelines:         NewPipelineCache(),
		workers:           2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Variant identifies the render target configuration for pipeline cache keys.
func (c *Context) Variant() string {
	return fmt.Sprintf("c%d/d%d/s%d", c.ColorFormat, c.DepthFormat, c.SampleCount)
}

// Submit runs fn on the context's worker pool. Errors are logged with the task label.
// Contexts built with WithSynchronousTasks run fn inline.
//
// Parameters:
//   - label: a description of the task for logs
//   - fn: the work to run
func (c *Context) Submit(label string, fn func() error) {
	if c.synchronous {
		if err := fn(); err != nil {
			log.Error("task failed", "task", label, "err", err)
		}
		return
	}
	c.poolOnce.Do(func() {
		c.pool = worker.NewDynamicWorkerPool(c.workers, 64, 5*time.Second)
	})
	id := int(c.taskID.Add(1))
	c.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			if err := fn(); err != nil {
				log.Error("task failed", "task", label, "err", err)
			}
			return nil, nil
		},
	})
}

// Retire schedules r for release once MaxFramesInFlight frames have begun since the
// current one, when no command buffer recorded before the call can still reference it.
// It is safe to call from any goroutine. A nil or released context releases r at once.
//
// Parameters:
//   - r: the resource no longer handed out to new draws
func (c *Context) Retire(r Releaser) {
	if c == nil {
		r.Release()
		return
	}
	c.retireMu.Lock()
	if c.released {
		c.retireMu.Unlock()
		r.Release()
		return
	}
	c.retired = append(c.retired, retiredResource{resource: r, frame: c.frame})
	c.retireMu.Unlock()
}

// BeginFrame marks the start of frame on the frame loop and releases the retired
// resources that no frame in flight can use anymore.
//
// Parameters:
//   - frame: the renderer's frame counter
func (c *Context) BeginFrame(frame uint64) {
	c.retireMu.Lock()
	c.frame = frame
	var due []Releaser
	kept := c.retired[:0]
	for _, r := range c.retired {
		if frame >= r.frame+uint64(c.MaxFramesInFlight) {
			due = append(due, r.resource)
		} else {
			kept = append(kept, r)
		}
	}
	clear(c.retired[len(kept):])
	c.retired = kept
	c.retireMu.Unlock()

	for _, r := range due {
		r.Release()
	}
}

// Retired returns the number of resources waiting for release.
func (c *Context) Retired() int {
	c.retireMu.Lock()
	defer c.retireMu.Unlock()
	return len(c.retired)
}

// Release releases the cached pipelines and every retired resource. The device is owned
// by the caller.
func (c *Context) Release() {
	c.retireMu.Lock()
	due := c.retired
	c.retired, c.released = nil, true
	c.retireMu.Unlock()
	for _, r := range due {
		r.resource.Release()
	}
	c.Pipelines.Release()
}
