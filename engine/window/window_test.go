package window

import (
	"testing"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

type fakePlatform struct {
	title     string
	closing   bool
	polls     int
	destroyed bool
}

func (f *fakePlatform) surfaceDescriptor() *wgpu.SurfaceDescriptor { return &wgpu.SurfaceDescriptor{} }
func (f *fakePlatform) setTitle(title string)                      { f.title = title }
func (f *fakePlatform) shouldClose() bool                          { return f.closing }
func (f *fakePlatform) requestClose()                              { f.closing = true }
func (f *fakePlatform) pollEvents()                                { f.polls++ }
func (f *fakePlatform) destroy()                                   { f.destroyed = true }

func newFake(options ...WindowBuilderOption) (*engineWindow, *fakePlatform) {
	w := newEngineWindow(options...)
	p := &fakePlatform{}
	w.platform = p
	return w, p
}

func TestDragTracker(t *testing.T) {
	var d dragTracker
	assert.Nil(t, d.move(10, 10), "first position has no delta")
	assert.Empty(t, d.move(12, 15), "no button held")

	d.button(common.MouseLeft, true, 12, 15)
	assert.Equal(t, []dragEvent{{button: common.MouseLeft, dx: 3, dy: -5}}, d.move(15, 10))

	d.button(common.MouseRight, true, 15, 10)
	d.button(common.MouseRight, true, 15, 10)
	assert.Len(t, d.move(16, 10), 2, "a repeated press is not held twice")

	d.button(common.MouseLeft, false, 16, 10)
	assert.Equal(t, []dragEvent{{button: common.MouseRight, dx: 0, dy: 4}}, d.move(16, 14))
	assert.Nil(t, d.move(16, 14))
}

func TestInputDispatch(t *testing.T) {
	w, p := newFake(WithSize(800, 600))

	var keys []common.Key
	var drags int
	var scroll float32
	var resized [2]int
	w.OnKey(func(k common.Key, pressed bool) {
		if pressed {
			keys = append(keys, k)
		}
	})
	w.OnDrag(func(common.MouseButton, float32, float32) { drags++ })
	w.OnScroll(func(d float32) { scroll += d })
	w.OnResize(func(width, height int) { resized = [2]int{width, height} })

	w.handleKey(common.KeyN, true)
	w.handleKey(common.KeyN, false)
	w.handleButton(common.MouseMiddle, true, 0, 0)
	w.handleCursor(4, 4)
	w.handleScroll(1.5)
	w.handleScroll(0)
	w.handleResize(800, 600)
	assert.Equal(t, [2]int{}, resized, "unchanged size is not reported")
	w.handleResize(1024, 768)

	assert.Equal(t, []common.Key{common.KeyN}, keys)
	assert.Equal(t, 1, drags)
	assert.Equal(t, float32(1.5), scroll)
	assert.Equal(t, [2]int{1024, 768}, resized)
	width, height := w.Size()
	assert.Equal(t, 1024, width)
	assert.Equal(t, 768, height)

	assert.True(t, w.Poll())
	w.handleKey(common.KeyEsc, true)
	assert.False(t, w.Running())
	assert.False(t, w.Poll())
	assert.Equal(t, 1, p.polls)
	assert.Equal(t, []common.Key{common.KeyN}, keys, "escape is not forwarded")
}

func TestTitleAndClose(t *testing.T) {
	w, p := newFake(WithTitle("one"))
	assert.Equal(t, "one", w.title)
	w.SetTitle("two")
	assert.Equal(t, "two", p.title)
	assert.NotNil(t, w.SurfaceDescriptor())

	assert.NoError(t, w.Close())
	assert.True(t, p.destroyed)
	assert.Nil(t, w.SurfaceDescriptor())
	assert.ErrorIs(t, w.Close(), errNotOpen)
}

func TestSizeOptions(t *testing.T) {
	w := newEngineWindow(WithSize(0, 480), WithMinSize(-1, 100), WithMaxSize(1920, 1080))
	assert.Equal(t, 1280, w.width)
	assert.Equal(t, 480, w.height)
	assert.Equal(t, 0, w.minWidth)
	assert.Equal(t, 100, w.minHeight)
	assert.Equal(t, 1920, w.maxWidth)
	assert.False(t, w.Running(), "never opened")
}
