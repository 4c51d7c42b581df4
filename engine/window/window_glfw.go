package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	window *glfw.Window
}

var _ platformWindow = &glfwWindow{}

// newPlatformWindow creates the GLFW window and routes its callbacks into w.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *engineWindow) (*glfwWindow, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("window: initialize GLFW: %w", err)
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window: create GLFW window: %w", err)
	}
	win.SetSizeLimits(limit(w.minWidth), limit(w.minHeight), limit(w.maxWidth), limit(w.maxHeight))

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		switch action {
		case glfw.Press, glfw.Repeat:
			w.handleKey(common.Key(key), true)
		case glfw.Release:
			w.handleKey(common.Key(key), false)
		}
	})
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		w.handleScroll(float32(yoff))
	})
	win.SetMouseButtonCallback(func(gw *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		x, y := gw.GetCursorPos()
		w.handleButton(common.MouseButton(button), action == glfw.Press, x, y)
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		w.handleCursor(x, y)
	})

	// the framebuffer size is what the surface is configured with; on high-DPI displays it
	// differs from the window size
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.handleResize(width, height)
	})
	w.width, w.height = win.GetFramebufferSize()

	return &glfwWindow{window: win}, nil
}

func limit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

// surfaceDescriptor uses the wgpuglfw bridge, which has per-platform implementations
// (Windows, X11, Wayland, macOS).
func (g *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(g.window)
}

func (g *glfwWindow) setTitle(title string) { g.window.SetTitle(title) }
func (g *glfwWindow) shouldClose() bool     { return g.window.ShouldClose() }
func (g *glfwWindow) requestClose()         { g.window.SetShouldClose(true) }
func (g *glfwWindow) pollEvents()           { glfw.PollEvents() }

func (g *glfwWindow) destroy() {
	g.window.Destroy()
	glfw.Terminate()
}
