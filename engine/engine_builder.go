package engine

import (
	"time"

	"github.com/Carmen-Shannon/prism/engine/profiler"
	"github.com/Carmen-Shannon/prism/engine/renderer"
	"github.com/Carmen-Shannon/prism/engine/scene"
	"github.com/Carmen-Shannon/prism/engine/window"
)

// EngineBuilderOption is a functional option for configuring an engine via NewEngine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables frame statistics logging.
//
// Parameters:
//   - enabled: whether the profiler ticks each frame
//
// Returns:
//   - EngineBuilderOption: a function that applies the option to an engine
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the default profiler.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the number of fixed update ticks per second.
//
// Parameters:
//   - hz: ticks per second; non-positive values select 60
//
// Returns:
//   - EngineBuilderOption: a function that applies the option to an engine
func WithTickRate(hz float64) EngineBuilderOption {
	return func(e *engine) {
		e.tickRate = tickInterval(hz)
	}
}

// WithMaxTicksPerFrame bounds the ticks run by one Step when the loop falls behind.
func WithMaxTicksPerFrame(n int) EngineBuilderOption {
	return func(e *engine) {
		e.maxTicksPerFrame = max(n, 1)
	}
}

// WithWindow sets the window whose events drive the loop.
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer frames are drawn with.
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithScene registers a scene under key.
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithRenderFrameLimit caps the render rate; non-positive values remove the cap.
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameLimit(fps)
	}
}

// WithClock replaces time.Now and time.Sleep, for driving Run deterministically.
func WithClock(now func() time.Time, sleep func(time.Duration)) EngineBuilderOption {
	return func(e *engine) {
		e.now, e.sleep = now, sleep
	}
}
