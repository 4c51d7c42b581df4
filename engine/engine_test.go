package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/profiler"
	"github.com/Carmen-Shannon/prism/engine/renderer"
	"github.com/Carmen-Shannon/prism/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow runs a fixed number of polls and exposes the callbacks it was given.
type fakeWindow struct {
	polls    int
	closed   bool
	height   int
	onResize func(int, int)
	onScroll func(float32)
	onKey    func(common.Key, bool)
	onDrag   func(common.MouseButton, float32, float32)
}

func (w *fakeWindow) OnResize(fn func(width, height int))                       { w.onResize = fn }
func (w *fakeWindow) OnScroll(fn func(delta float32))                           { w.onScroll = fn }
func (w *fakeWindow) OnKey(fn func(key common.Key, pressed bool))               { w.onKey = fn }
func (w *fakeWindow) OnDrag(fn func(button common.MouseButton, dx, dy float32)) { w.onDrag = fn }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor                { return nil }
func (w *fakeWindow) Size() (int, int)                                          { return w.height, w.height }
func (w *fakeWindow) SetTitle(string)                                           {}
func (w *fakeWindow) Running() bool                                             { return !w.closed && w.polls > 0 }

func (w *fakeWindow) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWindow) Poll() bool {
	if w.polls == 0 {
		return false
	}
	w.polls--
	return true
}

// fakeRenderer records the scenes it was asked to render.
type fakeRenderer struct {
	renderer.Renderer
	rendered []string
	resized  [2]int
	err      error
	released bool
}

func (r *fakeRenderer) Render(s scene.Scene) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.rendered = append(r.rendered, s.Name())
	return 2, nil
}

func (r *fakeRenderer) Resize(width, height int) error {
	r.resized = [2]int{width, height}
	return nil
}

func (r *fakeRenderer) Release() { r.released = true }

func newScene(name string) scene.Scene {
	return scene.NewScene(name, camera.NewPerspectiveCamera())
}

func TestStepRunsFixedTicks(t *testing.T) {
	var ticks []float32
	e := NewEngine(WithTickRate(10), WithMaxTicksPerFrame(3))
	e.SetTickCallback(func(dt float32) { ticks = append(ticks, dt) })

	e.Step(50 * time.Millisecond)
	assert.Empty(t, ticks)
	e.Step(60 * time.Millisecond)
	require.Len(t, ticks, 1, "110ms at 10Hz is one tick with 10ms left over")
	assert.InDelta(t, 0.1, ticks[0], 1e-6)

	e.Step(90 * time.Millisecond)
	assert.Len(t, ticks, 2)

	e.Step(2 * time.Second)
	assert.Len(t, ticks, 5, "capped per frame")
	e.Step(0)
	assert.Len(t, ticks, 5, "the backlog is dropped")
}

func TestStepRendersLowestActiveScene(t *testing.T) {
	r := &fakeRenderer{}
	back := newScene("back")
	front := newScene("front")
	e := NewEngine(WithRenderer(r), WithScene(2, back), WithScene(1, front))

	assert.Equal(t, 2, e.Step(time.Millisecond))
	front.SetActive(false)
	e.Step(time.Millisecond)
	back.SetActive(false)
	assert.Equal(t, 0, e.Step(time.Millisecond))
	assert.Equal(t, []string{"front", "back"}, r.rendered)

	e.RemoveScene(2)
	assert.Nil(t, e.Scene(2))
	assert.Len(t, e.Scenes(), 1)
}

func TestRenderErrorsSkipTheFrame(t *testing.T) {
	r := &fakeRenderer{err: errors.New("lost surface")}
	var frames int
	e := NewEngine(WithRenderer(r), WithScene(0, newScene("s")))
	e.SetRenderCallback(func(float32) { frames++ })

	assert.Equal(t, 0, e.Step(time.Millisecond))
	r.err = renderer.ErrNoTarget
	assert.Equal(t, 0, e.Step(time.Millisecond))
	assert.Equal(t, 2, frames, "the render callback still runs")
}

func TestProfilerCountsDraws(t *testing.T) {
	clock := time.Unix(0, 0)
	p := profiler.NewProfiler(
		profiler.WithClock(func() time.Time { return clock }),
		profiler.WithInterval(time.Second),
		profiler.WithoutMemoryStats(),
	)
	e := NewEngine(WithRenderer(&fakeRenderer{}), WithScene(0, newScene("s")), WithProfiler(p), WithProfiling(true))

	clock = clock.Add(time.Second)
	e.Step(time.Second)
	assert.Equal(t, 2, p.Last().DrawCalls)

	e.DisableProfiler()
	clock = clock.Add(time.Second)
	e.Step(time.Second)
	assert.Equal(t, 1, p.Last().Frames, "disabled profiler does not tick")
}

func TestWindowInputDrivesController(t *testing.T) {
	w := &fakeWindow{height: 100}
	r := &fakeRenderer{}
	s := newScene("s")
	e := NewEngine(WithWindow(w), WithRenderer(r), WithScene(0, s))

	oc := camera.NewOrbitController(camera.WithRadius(10), camera.WithElevation(0))
	e.SetController(oc, s.Camera())
	assert.True(t, mgl32.Vec3{0, 0, 10}.ApproxEqual(s.Camera().Base().Position()))

	w.onScroll(2)
	assert.Less(t, oc.Radius(), float32(10))

	azimuth := oc.Azimuth()
	w.onDrag(common.MouseLeft, 10, 0)
	assert.NotEqual(t, azimuth, oc.Azimuth())

	target := oc.Target()
	w.onDrag(common.MouseRight, 10, 0)
	assert.NotEqual(t, target, oc.Target())

	e.Step(time.Millisecond)
	assert.True(t, oc.Position().ApproxEqual(s.Camera().Base().Position()), "applied every frame")

	var keys []common.Key
	e.SetKeyCallback(func(k common.Key, pressed bool) { keys = append(keys, k) })
	w.onKey(common.KeyN, true)
	assert.Equal(t, []common.Key{common.KeyN}, keys)

	w.onResize(200, 100)
	assert.Equal(t, [2]int{200, 100}, r.resized)
	assert.Equal(t, float32(2), s.Camera().(*camera.PerspectiveCamera).Aspect())
}

func TestRunUntilWindowCloses(t *testing.T) {
	w := &fakeWindow{polls: 3}
	r := &fakeRenderer{}
	now := time.Unix(0, 0)
	var slept []time.Duration
	e := NewEngine(
		WithWindow(w),
		WithRenderer(r),
		WithScene(0, newScene("s")),
		WithRenderFrameLimit(100),
		WithClock(func() time.Time { return now }, func(d time.Duration) { slept = append(slept, d) }),
	)

	require.NoError(t, e.Run())
	assert.Len(t, r.rendered, 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, slept)

	w.polls = 5
	e.SetRenderCallback(func(float32) { e.Quit() })
	require.NoError(t, e.Run())
	assert.Len(t, r.rendered, 4, "quit stops after the current frame")

	e.Release()
	assert.True(t, r.released)
	assert.True(t, w.closed)
}

func TestRunWithoutWindow(t *testing.T) {
	assert.ErrorIs(t, NewEngine().Run(), ErrNoWindow)
}
