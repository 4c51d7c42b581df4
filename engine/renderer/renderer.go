// Package renderer drives the frame loop: it runs a scene's per-frame updates, encodes the
// shadow and main passes and presents the result.
package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/scene"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("renderer")

// ErrNoTarget is returned by Render when the renderer has nothing to draw into.
var ErrNoTarget = errors.New("renderer: no render target")

// Renderer defines the interface for the per-frame drawing of scenes.
//
// Every frame number the renderer hands out is one logical frame: meshes, materials and
// lights advance their uniform rings exactly once for it, whatever the number of passes.
type Renderer interface {
	// Context retrieves the GPU context the renderer draws with.
	//
	// Returns:
	//   - *gpu.Context: the context
	Context() *gpu.Context

	// Frame retrieves the frame counter. It is advanced once per Draw.
	//
	// Returns:
	//   - uint64: the last frame number handed out
	Frame() uint64

	// ClearColor retrieves the color the main pass clears to.
	//
	// Returns:
	//   - [4]float64: the clear color as RGBA
	ClearColor() [4]float64

	// SetClearColor sets the color the main pass clears to.
	//
	// Parameters:
	//   - c: the clear color as RGBA
	SetClearColor(c [4]float64)

	// Size retrieves the size of the render targets.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Size() (int, int)

	// Resize reconfigures the surface and reallocates the depth and multisample targets.
	// A zero size releases the targets; Render then draws nothing.
	//
	// Parameters:
	//   - width: the width in pixels
	//   - height: the height in pixels
	//
	// Returns:
	//   - error: the surface or allocation error
	Resize(width, height int) error

	// Draw records one frame of s as seen from cam into cmd: the scene's update hooks and
	// compute systems, the shadow pass and a render pass described by pass with the
	// visible meshes in traversal order. The scene is set up on first use.
	//
	// Parameters:
	//   - cmd: the command buffer to record into
	//   - pass: the main render pass
	//   - s: the scene
	//   - cam: the camera, nil for the scene's camera
	//
	// Returns:
	//   - int: the number of draw calls recorded, shadow pass included
	Draw(cmd gpu.CommandBuffer, pass gpu.RenderPassDescriptor, s scene.Scene, cam camera.Camera) int

	// DrawShadows records the shadow pass of s into cmd, using the current frame number
	// for the casters' uniforms. Casters write the light's view into their shadow rings,
	// so the main pass of the same frame does not overwrite them.
	//
	// Parameters:
	//   - cmd: the command buffer to record into
	//   - s: the scene
	//
	// Returns:
	//   - int: the number of draw calls recorded
	DrawShadows(cmd gpu.CommandBuffer, s scene.Scene) int

	// Render draws a frame of s into the surface and presents it.
	//
	// Parameters:
	//   - s: the scene
	//
	// Returns:
	//   - int: the number of draw calls recorded
	//   - error: ErrNoTarget without a surface or size, or the surface's acquire error
	Render(s scene.Scene) (int, error)

	// RenderTo draws a frame of s into target and commits it.
	//
	// Parameters:
	//   - target: a color texture of the renderer's size and the context's color format
	//   - s: the scene
	//
	// Returns:
	//   - int: the number of draw calls recorded
	RenderTo(target gpu.Texture, s scene.Scene) int

	// Release releases the render targets.
	Release()
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	ctx         *gpu.Context
	surface     Surface
	presentMode PresentMode
	clearColor  [4]float64
	frame       uint64

	width, height int
	depth         gpu.Texture
	color         gpu.Texture
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer.
//
// Parameters:
//   - ctx: the GPU context; its color format is replaced by the surface's
//   - surface: the surface to present to, or nil to render offscreen with RenderTo
//   - options: a variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the new Renderer
//   - error: an error if the initial targets cannot be allocated
func NewRenderer(ctx *gpu.Context, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	if ctx == nil || ctx.Device == nil {
		panic("renderer: NewRenderer requires a context with a device")
	}
	r := &renderer{
		ctx:        ctx,
		surface:    surface,
		clearColor: [4]float64{0, 0, 0, 1},
	}
	for _, opt := range options {
		opt(r)
	}
	if surface != nil {
		ctx.ColorFormat = surface.Format()
	}
	if r.width > 0 && r.height > 0 {
		w, h := r.width, r.height
		r.width, r.height = 0, 0
		if err := r.Resize(w, h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *renderer) Context() *gpu.Context      { return r.ctx }
func (r *renderer) Frame() uint64              { return r.frame }
func (r *renderer) ClearColor() [4]float64     { return r.clearColor }
func (r *renderer) SetClearColor(c [4]float64) { r.clearColor = c }
func (r *renderer) Size() (int, int)           { return r.width, r.height }

func (r *renderer) Resize(width, height int) error {
	if width == r.width && height == r.height && (r.depth != nil || width == 0 || height == 0) {
		return nil
	}
	r.releaseTargets()
	r.width, r.height = max(width, 0), max(height, 0)
	if r.width == 0 || r.height == 0 {
		return nil
	}
	if r.surface != nil {
		if err := r.surface.Configure(r.width, r.height, r.presentMode); err != nil {
			return fmt.Errorf("renderer: configure surface: %w", err)
		}
	}

	depth, err := r.ctx.Device.NewTexture(gpu.TextureDescriptor{
		Label:       "depth",
		Type:        gpu.Texture2D,
		Format:      r.ctx.DepthFormat,
		Width:       r.width,
		Height:      r.height,
		SampleCount: r.ctx.SampleCount,
		Usage:       gpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("renderer: allocate depth target: %w", err)
	}
	r.depth = depth

	if r.ctx.SampleCount > 1 {
		color, err := r.ctx.Device.NewTexture(gpu.TextureDescriptor{
			Label:       "msaa color",
			Type:        gpu.Texture2D,
			Format:      r.ctx.ColorFormat,
			Width:       r.width,
			Height:      r.height,
			SampleCount: r.ctx.SampleCount,
			Usage:       gpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			r.releaseTargets()
			return fmt.Errorf("renderer: allocate multisample target: %w", err)
		}
		r.color = color
	}
	log.Debug("render targets resized", "width", r.width, "height", r.height, "samples", r.ctx.SampleCount)
	return nil
}

func (r *renderer) Draw(cmd gpu.CommandBuffer, pass gpu.RenderPassDescriptor, s scene.Scene, cam camera.Camera) int {
	if s == nil || !s.Active() {
		return 0
	}
	if cam == nil {
		cam = s.Camera()
	}
	if s.Context() != r.ctx {
		s.Setup(r.ctx)
	}

	r.frame++
	r.ctx.BeginFrame(r.frame)
	s.Update(cmd, r.frame)
	draws := r.DrawShadows(cmd, s)

	enc := cmd.BeginRenderPass(pass)
	if cam != nil {
		for _, m := range s.Meshes(cam) {
			m.Update(cam, r.frame)
			draws += m.Draw(enc, 0, false)
		}
	}
	enc.End()
	return draws
}

func (r *renderer) DrawShadows(cmd gpu.CommandBuffer, s scene.Scene) int {
	sh := s.Shadow()
	if sh == nil || sh.DepthTexture() == nil {
		return 0
	}
	casters := s.ShadowCasters()
	if len(casters) == 0 {
		return 0
	}
	cam := sh.Camera()
	enc := cmd.BeginRenderPass(sh.Pass())
	draws := 0
	for _, m := range casters {
		m.UpdateShadow(cam, r.frame)
		draws += m.Draw(enc, 0, true)
	}
	enc.End()
	return draws
}

func (r *renderer) Render(s scene.Scene) (int, error) {
	if r.surface == nil || r.depth == nil {
		return 0, ErrNoTarget
	}
	target, err := r.surface.Acquire()
	if err != nil {
		return 0, fmt.Errorf("renderer: acquire surface image: %w", err)
	}
	draws := r.RenderTo(target, s)
	r.surface.Present()
	return draws, nil
}

func (r *renderer) RenderTo(target gpu.Texture, s scene.Scene) int {
	if target == nil || r.depth == nil {
		return 0
	}
	if cam := s.Camera(); cam != nil {
		cam.SetAspect(float32(r.width) / float32(r.height))
	}
	cmd := r.ctx.Device.NewCommandBuffer(fmt.Sprintf("frame %d", r.frame+1))
	draws := r.Draw(cmd, r.pass(target), s, nil)
	cmd.Commit()
	return draws
}

func (r *renderer) pass(target gpu.Texture) gpu.RenderPassDescriptor {
	p := gpu.RenderPassDescriptor{
		Label:      "main",
		Color:      target,
		ClearColor: r.clearColor,
		Depth:      r.depth,
		ClearDepth: 1,
	}
	if r.color != nil {
		p.Color, p.Resolve = r.color, target
	}
	return p
}

func (r *renderer) releaseTargets() {
	if r.depth != nil {
		r.depth.Release()
		r.depth = nil
	}
	if r.color != nil {
		r.color.Release()
		r.color = nil
	}
}

func (r *renderer) Release() {
	r.releaseTargets()
	r.width, r.height = 0, 0
}
