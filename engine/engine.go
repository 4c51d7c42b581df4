// Package engine runs the viewer's frame loop: window events, fixed-rate ticks, camera
// input, rendering of the active scene and profiling, all on the calling thread.
package engine

import (
	"errors"
	"slices"
	"time"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/engine/profiler"
	"github.com/Carmen-Shannon/prism/engine/renderer"
	"github.com/Carmen-Shannon/prism/engine/scene"
	"github.com/Carmen-Shannon/prism/engine/window"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("engine")

// ErrNoWindow is returned by Run when the engine has no window to drive it.
var ErrNoWindow = errors.New("engine: no window")

// dragScale converts pixels of mouse movement into orbit steps.
const dragScale = 0.25

// engine is the implementation of the Engine interface.
type engine struct {
	window   window.Window
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRate         time.Duration
	accumulator      time.Duration
	maxTicksPerFrame int
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)
	keyCallback    func(key common.Key, pressed bool)

	scenes map[int]scene.Scene

	controller *camera.OrbitController
	controlled object.Node

	now   func() time.Time
	sleep func(time.Duration)
	quit  bool
	ticks uint64
}

// Engine defines the interface for the viewer's frame loop.
//
// The loop is single-threaded: window events, ticks and rendering all run on the
// goroutine that calls Run, which must be the one that created the window.
type Engine interface {
	// Window retrieves the window driving the loop.
	//
	// Returns:
	//   - window.Window: the window, nil for a headless engine
	Window() window.Window

	// Renderer retrieves the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer, nil when frames are not drawn
	Renderer() renderer.Renderer

	// EnableProfiler starts logging frame statistics.
	EnableProfiler()

	// DisableProfiler stops logging frame statistics.
	DisableProfiler()

	// SetTickRate sets the number of fixed update ticks per second.
	//
	// Parameters:
	//   - hz: ticks per second; non-positive values select 60
	SetTickRate(hz float64)

	// SetTickCallback sets the function called once per fixed tick.
	//
	// Parameters:
	//   - callback: receives the tick length in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback sets the function called once per rendered frame, after drawing.
	//
	// Parameters:
	//   - callback: receives the time since the previous frame in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetKeyCallback sets the function receiving key events the engine does not consume.
	//
	// Parameters:
	//   - callback: receives the key and whether it is down
	SetKeyCallback(callback func(key common.Key, pressed bool))

	// SetRenderFrameLimit caps the render rate.
	//
	// Parameters:
	//   - fps: frames per second; non-positive values remove the cap
	SetRenderFrameLimit(fps float64)

	// SetController drives node with an orbit controller fed by mouse drags and scrolls.
	// The left button orbits, the right and middle buttons pan, the wheel zooms.
	//
	// Parameters:
	//   - oc: the controller, nil to stop driving
	//   - node: the node to move, normally the active scene's camera
	SetController(oc *camera.OrbitController, node object.Node)

	// AddScene registers a scene under key. The active scene with the lowest key is drawn.
	//
	// Parameters:
	//   - key: the scene key
	//   - s: the scene
	AddScene(key int, s scene.Scene)

	// RemoveScene unregisters the scene under key.
	//
	// Parameters:
	//   - key: the scene key
	RemoveScene(key int)

	// Scene retrieves the scene under key.
	//
	// Parameters:
	//   - key: the scene key
	//
	// Returns:
	//   - scene.Scene: the scene, nil if absent
	Scene(key int) scene.Scene

	// Scenes retrieves a copy of the registered scenes.
	//
	// Returns:
	//   - map[int]scene.Scene: the scenes by key
	Scenes() map[int]scene.Scene

	// Step advances the loop by one frame: due ticks, then a render of the active scene.
	//
	// Parameters:
	//   - dt: the time since the previous frame
	//
	// Returns:
	//   - int: the draw calls recorded
	Step(dt time.Duration) int

	// Run polls the window and steps until the window closes or Quit is called.
	//
	// Returns:
	//   - error: ErrNoWindow without a window
	Run() error

	// Quit stops Run after the current frame.
	Quit()

	// Release releases the scenes, the renderer and closes the window.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine and connects the window's callbacks.
//
// Parameters:
//   - options: a variadic list of EngineBuilderOption functions
//
// Returns:
//   - Engine: the new Engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		scenes:           make(map[int]scene.Scene),
		tickRate:         time.Second / 60,
		maxTicksPerFrame: 5,
		now:              time.Now,
		sleep:            time.Sleep,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}
	if e.window != nil {
		e.connect(e.window)
	}
	return e
}

func (e *engine) connect(w window.Window) {
	w.OnResize(e.resize)
	w.OnKey(func(key common.Key, pressed bool) {
		if e.keyCallback != nil {
			e.keyCallback(key, pressed)
		}
	})
	w.OnScroll(func(delta float32) {
		if e.controller != nil {
			e.controller.Zoom(delta)
		}
	})
	w.OnDrag(func(button common.MouseButton, dx, dy float32) {
		if e.controller == nil {
			return
		}
		switch button {
		case common.MouseLeft:
			e.controller.Orbit(-dx*dragScale, dy*dragScale)
		case common.MouseRight, common.MouseMiddle:
			_, height := w.Size()
			perPixel := 2 * e.controller.Radius() / float32(max(height, 1))
			e.controller.Pan(-dx*perPixel, dy*perPixel)
		}
	})
}

func (e *engine) resize(width, height int) {
	if e.renderer != nil {
		if err := e.renderer.Resize(width, height); err != nil {
			log.Error("resize failed", "width", width, "height", height, "err", err)
		}
	}
	if width <= 0 || height <= 0 {
		return
	}
	for _, s := range e.scenes {
		if c := s.Camera(); c != nil {
			c.SetAspect(float32(width) / float32(height))
		}
	}
}

func (e *engine) Window() window.Window           { return e.window }
func (e *engine) Renderer() renderer.Renderer     { return e.renderer }
func (e *engine) EnableProfiler()                 { e.profilingEnabled = true }
func (e *engine) DisableProfiler()                { e.profilingEnabled = false }
func (e *engine) Quit()                           { e.quit = true }
func (e *engine) AddScene(key int, s scene.Scene) { e.scenes[key] = s }
func (e *engine) RemoveScene(key int)             { delete(e.scenes, key) }
func (e *engine) Scene(key int) scene.Scene       { return e.scenes[key] }

func (e *engine) SetTickRate(hz float64)                                     { e.tickRate = tickInterval(hz) }
func (e *engine) SetTickCallback(callback func(deltaTime float32))           { e.tickCallback = callback }
func (e *engine) SetRenderCallback(callback func(deltaTime float32))         { e.renderCallback = callback }
func (e *engine) SetKeyCallback(callback func(key common.Key, pressed bool)) { e.keyCallback = callback }
func (e *engine) SetRenderFrameLimit(fps float64)                            { e.renderFrameLimit = frameLimit(fps) }

func (e *engine) SetController(oc *camera.OrbitController, node object.Node) {
	e.controller, e.controlled = oc, node
	if oc != nil && node != nil {
		oc.Apply(node)
	}
}

func (e *engine) Scenes() map[int]scene.Scene {
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}

func (e *engine) Step(dt time.Duration) int {
	e.accumulator += dt
	ticks := 0
	for e.accumulator >= e.tickRate && ticks < e.maxTicksPerFrame {
		if e.tickCallback != nil {
			e.tickCallback(float32(e.tickRate.Seconds()))
		}
		e.accumulator -= e.tickRate
		e.ticks++
		ticks++
	}
	if e.accumulator >= e.tickRate {
		// too far behind to catch up: drop the backlog instead of spiralling
		log.Debug("dropping ticks", "behind", e.accumulator)
		e.accumulator %= e.tickRate
	}

	if e.controller != nil && e.controlled != nil {
		e.controller.Apply(e.controlled)
	}

	draws := 0
	if s := e.activeScene(); s != nil && e.renderer != nil {
		n, err := e.renderer.Render(s)
		switch {
		case errors.Is(err, renderer.ErrNoTarget):
		case err != nil:
			log.Warn("frame skipped", "scene", s.Name(), "err", err)
		default:
			draws = n
		}
	}

	if e.renderCallback != nil {
		e.renderCallback(float32(dt.Seconds()))
	}
	if e.profilingEnabled {
		e.profiler.Tick(draws)
	}
	return draws
}

func (e *engine) activeScene() scene.Scene {
	keys := make([]int, 0, len(e.scenes))
	for k, s := range e.scenes {
		if s.Active() {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return e.scenes[slices.Min(keys)]
}

func (e *engine) Run() error {
	if e.window == nil {
		return ErrNoWindow
	}
	e.quit = false
	last := e.now()
	for !e.quit && e.window.Poll() {
		frameStart := e.now()
		e.Step(frameStart.Sub(last))
		last = frameStart

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - e.now().Sub(frameStart); remaining > 0 {
				e.sleep(remaining)
			}
		}
	}
	log.Info("frame loop stopped", "ticks", e.ticks)
	return nil
}

func (e *engine) Release() {
	for _, s := range e.scenes {
		s.Release()
	}
	if e.renderer != nil {
		e.renderer.Release()
	}
	if e.window != nil && e.window.Running() {
		if err := e.window.Close(); err != nil {
			log.Warn("closing window", "err", err)
		}
	}
}

func tickInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = 60
	}
	return time.Duration(float64(time.Second) / hz)
}

func frameLimit(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
