// Package window opens the viewer's native window and turns its input into callbacks.
// Windowing sits outside the rendering core; the renderer only sees the surface
// descriptor.
package window

import (
	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/internal/logx"
	"github.com/cogentcore/webgpu/wgpu"
)

var log = logx.Logger("window")

// Window defines the interface for a native window with WebGPU surface support and
// input callbacks. Callbacks run on the thread that calls Poll.
type Window interface {
	// OnResize sets the callback invoked when the framebuffer size changes.
	//
	// Parameters:
	//   - fn: receives the new framebuffer size in pixels
	OnResize(fn func(width, height int))

	// OnScroll sets the callback invoked on vertical scroll.
	//
	// Parameters:
	//   - fn: receives the scroll delta, positive away from the user
	OnScroll(fn func(delta float32))

	// OnKey sets the callback invoked on key presses, repeats and releases. Escape is
	// handled by the window and closes it.
	//
	// Parameters:
	//   - fn: receives the key and whether it is down
	OnKey(fn func(key common.Key, pressed bool))

	// OnDrag sets the callback invoked when the cursor moves while a mouse button is held.
	// It is called once per held button.
	//
	// Parameters:
	//   - fn: receives the button and the cursor movement in pixels
	OnDrag(fn func(button common.MouseButton, dx, dy float32))

	// SurfaceDescriptor creates the platform descriptor a WebGPU surface is made from.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Size retrieves the framebuffer size in pixels, which differs from the window size on
	// high-DPI displays.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	Size() (int, int)

	// SetTitle changes the title bar text.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// Running reports whether the window is still open.
	//
	// Returns:
	//   - bool: false after Close, Escape or the close button
	Running() bool

	// Poll processes pending events without blocking, invoking callbacks.
	//
	// Returns:
	//   - bool: whether the window is still running
	Poll() bool

	// Close destroys the window.
	//
	// Returns:
	//   - error: error if the window was never opened or is already closed
	Close() error
}

// platformWindow is the native half of a window.
type platformWindow interface {
	surfaceDescriptor() *wgpu.SurfaceDescriptor
	setTitle(title string)
	shouldClose() bool
	requestClose()
	pollEvents()
	destroy()
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title               string
	width, height       int
	minWidth, minHeight int
	maxWidth, maxHeight int

	platform platformWindow
	closed   bool
	drag     dragTracker

	onResize func(width, height int)
	onScroll func(delta float32)
	onKey    func(key common.Key, pressed bool)
	onDrag   func(button common.MouseButton, dx, dy float32)
}

var _ Window = &engineWindow{}

// NewWindow opens a native window.
//
// Parameters:
//   - options: a variadic list of WindowBuilderOption functions
//
// Returns:
//   - Window: the new window
//   - error: error if the platform cannot create a window
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	p, err := newPlatformWindow(w)
	if err != nil {
		return nil, err
	}
	w.platform = p
	log.Info("window opened", "title", w.title, "width", w.width, "height", w.height)
	return w, nil
}

func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:     "prism",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 200,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

func (w *engineWindow) OnResize(fn func(width, height int))                       { w.onResize = fn }
func (w *engineWindow) OnScroll(fn func(delta float32))                           { w.onScroll = fn }
func (w *engineWindow) OnKey(fn func(key common.Key, pressed bool))               { w.onKey = fn }
func (w *engineWindow) OnDrag(fn func(button common.MouseButton, dx, dy float32)) { w.onDrag = fn }
func (w *engineWindow) Size() (int, int)                                          { return w.width, w.height }

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.platform == nil || w.closed {
		return nil
	}
	return w.platform.surfaceDescriptor()
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	if w.platform != nil && !w.closed {
		w.platform.setTitle(title)
	}
}

func (w *engineWindow) Running() bool {
	return w.platform != nil && !w.closed && !w.platform.shouldClose()
}

func (w *engineWindow) Poll() bool {
	if !w.Running() {
		return false
	}
	w.platform.pollEvents()
	return w.Running()
}

func (w *engineWindow) Close() error {
	if w.platform == nil || w.closed {
		return errNotOpen
	}
	w.closed = true
	w.platform.destroy()
	return nil
}

func (w *engineWindow) handleResize(width, height int) {
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *engineWindow) handleScroll(delta float32) {
	if w.onScroll != nil && delta != 0 {
		w.onScroll(delta)
	}
}

func (w *engineWindow) handleKey(key common.Key, pressed bool) {
	if key == common.KeyEsc {
		if pressed && w.platform != nil {
			w.platform.requestClose()
		}
		return
	}
	if w.onKey != nil {
		w.onKey(key, pressed)
	}
}

func (w *engineWindow) handleButton(button common.MouseButton, pressed bool, x, y float64) {
	w.drag.button(button, pressed, x, y)
}

func (w *engineWindow) handleCursor(x, y float64) {
	for _, d := range w.drag.move(x, y) {
		if w.onDrag != nil {
			w.onDrag(d.button, d.dx, d.dy)
		}
	}
}
