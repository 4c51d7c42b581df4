package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/gputest"
	"github.com/Carmen-Shannon/prism/engine/light"
	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/Carmen-Shannon/prism/engine/mesh"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/engine/scene"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, opts ...gpu.ContextBuilderOption) (*gputest.Device, *gpu.Context) {
	t.Helper()
	d := gputest.NewDevice()
	ctx := gpu.NewContext(d, append(opts, gpu.WithSynchronousTasks())...)
	t.Cleanup(ctx.Release)
	return d, ctx
}

// fakeSurface hands out one texture per Acquire.
type fakeSurface struct {
	device     *gputest.Device
	width      int
	height     int
	mode       PresentMode
	acquired   []gpu.Texture
	presented  int
	acquireErr error
}

func (s *fakeSurface) Format() gpu.TextureFormat { return gpu.FormatBGRA8UnormSrgb }

func (s *fakeSurface) Configure(width, height int, mode PresentMode) error {
	s.width, s.height, s.mode = width, height, mode
	return nil
}

func (s *fakeSurface) Acquire() (gpu.Texture, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	tex, err := s.device.NewTexture(gpu.TextureDescriptor{
		Label: "swapchain", Type: gpu.Texture2D, Format: s.Format(), Width: s.width, Height: s.height,
	})
	if err != nil {
		return nil, err
	}
	s.acquired = append(s.acquired, tex)
	return tex, nil
}

func (s *fakeSurface) Present() { s.presented++ }

func newScene(nodes ...object.Node) scene.Scene {
	cam := camera.NewPerspectiveCamera(camera.WithPosition(mgl32.Vec3{0, 0, 5}))
	return scene.NewScene("world", cam, scene.WithNodes(nodes...))
}

func box(label string, position mgl32.Vec3) *mesh.Mesh {
	return mesh.NewMesh(geometry.NewBox(1, 1, 1), material.NewNormalColor(),
		mesh.WithLabel(label), mesh.WithTransform(object.WithPosition(position)))
}

func vertexOffset(t *testing.T, p *gputest.RenderPass) int {
	t.Helper()
	for _, c := range p.Ops("SetBuffer") {
		if c.Group == shader.VertexGroup {
			return c.Offset
		}
	}
	t.Fatal("vertex uniforms not bound")
	return 0
}

func TestRenderPresentsSurfaceImage(t *testing.T) {
	d, ctx := newContext(t)
	surface := &fakeSurface{device: d}
	r, err := NewRenderer(ctx, surface, WithSize(64, 32), WithPresentMode(PresentModeUncapped),
		WithClearColor([4]float64{0.1, 0.2, 0.3, 1}))
	require.NoError(t, err)
	defer r.Release()

	assert.Equal(t, gpu.FormatBGRA8UnormSrgb, ctx.ColorFormat)
	assert.Equal(t, 64, surface.width)
	assert.Equal(t, PresentModeUncapped, surface.mode)

	s := newScene(box("a", mgl32.Vec3{}), box("b", mgl32.Vec3{1, 0, 0}))
	draws, err := r.Render(s)
	require.NoError(t, err)
	assert.Equal(t, 2, draws)
	assert.Equal(t, 1, surface.presented)
	assert.Equal(t, uint64(1), r.Frame())
	assert.Same(t, ctx, s.Context(), "the scene is set up on first use")
	assert.InDelta(t, 2, s.Camera().(*camera.PerspectiveCamera).Aspect(), 1e-6)

	cb := d.CommandBuffers[len(d.CommandBuffers)-1]
	assert.True(t, cb.Committed)
	require.Len(t, cb.RenderPasses, 1)
	main := cb.RenderPasses[0]
	assert.Same(t, surface.acquired[0], main.Desc.Color)
	assert.Nil(t, main.Desc.Resolve)
	require.NotNil(t, main.Desc.Depth)
	assert.Equal(t, gpu.FormatDepth32Float, main.Desc.Depth.Descriptor().Format)
	assert.Equal(t, [4]float64{0.1, 0.2, 0.3, 1}, main.Desc.ClearColor)
	assert.True(t, main.Ended)
	assert.Len(t, main.Ops("DrawIndexed"), 2)
}

func TestRenderWithoutTarget(t *testing.T) {
	d, ctx := newContext(t)
	headless, err := NewRenderer(ctx, nil)
	require.NoError(t, err)
	_, err = headless.Render(newScene())
	assert.ErrorIs(t, err, ErrNoTarget)

	surface := &fakeSurface{device: d, acquireErr: errors.New("minimized")}
	r, err := NewRenderer(ctx, surface, WithSize(8, 8))
	require.NoError(t, err)
	_, err = r.Render(newScene())
	assert.ErrorContains(t, err, "minimized")
	assert.Zero(t, surface.presented)

	require.NoError(t, r.Resize(0, 0))
	_, err = r.Render(newScene())
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestMultisampleTargets(t *testing.T) {
	d, ctx := newContext(t, gpu.WithSampleCount(int(MSAA4x)))
	r, err := NewRenderer(ctx, nil, WithSize(16, 16))
	require.NoError(t, err)
	target, err := d.NewTexture(gpu.TextureDescriptor{Type: gpu.Texture2D, Format: ctx.ColorFormat, Width: 16, Height: 16})
	require.NoError(t, err)

	r.RenderTo(target, newScene(box("a", mgl32.Vec3{})))
	main := d.CommandBuffers[0].RenderPasses[0]
	assert.Same(t, target, main.Desc.Resolve)
	require.NotNil(t, main.Desc.Color)
	assert.Equal(t, 4, main.Desc.Color.Descriptor().SampleCount)
	assert.Equal(t, 4, main.Desc.Depth.Descriptor().SampleCount)

	old := main.Desc.Color.(*gputest.Texture)
	require.NoError(t, r.Resize(32, 16))
	assert.True(t, old.Released)
	w, h := r.Size()
	assert.Equal(t, []int{32, 16}, []int{w, h})

	r.Release()
	for _, tex := range d.Textures {
		if tex != target {
			assert.True(t, tex.Released, tex.Label())
		}
	}
}

func TestInactiveSceneIsSkipped(t *testing.T) {
	d, ctx := newContext(t)
	r, err := NewRenderer(ctx, nil)
	require.NoError(t, err)
	s := newScene(box("a", mgl32.Vec3{}))
	s.SetActive(false)

	cmd := d.NewCommandBuffer("frame")
	assert.Zero(t, r.Draw(cmd, gpu.RenderPassDescriptor{}, s, nil))
	assert.Zero(t, r.Frame())
	assert.Empty(t, cmd.(*gputest.CommandBuffer).RenderPasses)
}

func TestUniformRingAdvancesPerFrame(t *testing.T) {
	d, ctx := newContext(t)
	r, err := NewRenderer(ctx, nil)
	require.NoError(t, err)
	s := newScene(box("a", mgl32.Vec3{}))

	seen := map[int]bool{}
	for range ctx.MaxFramesInFlight {
		cmd := d.NewCommandBuffer("frame").(*gputest.CommandBuffer)
		require.Equal(t, 1, r.Draw(cmd, gpu.RenderPassDescriptor{}, s, nil))
		seen[vertexOffset(t, cmd.RenderPasses[0])] = true
	}
	assert.Len(t, seen, ctx.MaxFramesInFlight)
}

func TestShadowPassPrecedesMainPass(t *testing.T) {
	d, ctx := newContext(t)
	r, err := NewRenderer(ctx, nil)
	require.NoError(t, err)

	sun := light.NewDirectional(light.WithDirection(mgl32.Vec3{0, -1, -1}))
	caster := mesh.NewMesh(geometry.NewBox(1, 1, 1), material.NewBasicColor(mgl32.Vec4{1, 0, 0, 1}),
		mesh.WithLabel("caster"))
	receiver := mesh.NewMesh(geometry.NewQuad(10, 10), material.NewNormalColor(),
		mesh.WithLabel("ground"), mesh.WithShadows(false, true))
	s := newScene(sun, caster, receiver)
	s.SetShadow(light.NewShadow(sun, light.WithShadowMapResolution(128)))

	cmd := d.NewCommandBuffer("frame").(*gputest.CommandBuffer)
	draws := r.Draw(cmd, gpu.RenderPassDescriptor{Label: "main"}, s, nil)
	assert.Equal(t, uint64(1), r.Frame(), "the shadow pass shares the frame number")

	require.Len(t, cmd.RenderPasses, 2)
	shadow, main := cmd.RenderPasses[0], cmd.RenderPasses[1]
	assert.Equal(t, "shadow", shadow.Desc.Label)
	assert.Same(t, s.Shadow().DepthTexture(), shadow.Desc.Depth)
	assert.Nil(t, shadow.Desc.Color)
	assert.Len(t, shadow.Ops("DrawIndexed", "Draw"), 1)
	assert.Len(t, main.Ops("DrawIndexed", "Draw"), 2)
	assert.Equal(t, 3, draws)

	assert.NotEqual(t, vertexOffset(t, shadow), vertexOffset(t, main),
		"the caster is drawn from the light and from the camera with separate uniforms")
}

func TestShadowAndMainRingsAdvanceOncePerFrame(t *testing.T) {
	d, ctx := newContext(t)
	r, err := NewRenderer(ctx, nil)
	require.NoError(t, err)

	sun := light.NewDirectional(light.WithDirection(mgl32.Vec3{0, -1, -1}))
	caster := mesh.NewMesh(geometry.NewBox(1, 1, 1), material.NewBasicColor(mgl32.Vec4{1, 1, 1, 1}),
		mesh.WithLabel("caster"))
	s := newScene(sun, caster)
	s.SetShadow(light.NewShadow(sun, light.WithShadowMapResolution(64)))

	materialOffset := func(p *gputest.RenderPass) int {
		for _, c := range p.Ops("SetBuffer") {
			if c.Group == shader.MaterialGroup {
				return c.Offset
			}
		}
		return -1
	}

	type offsets struct{ shadow, main, material int }
	var frames []offsets
	for range 2 * ctx.MaxFramesInFlight {
		cmd := d.NewCommandBuffer("frame").(*gputest.CommandBuffer)
		r.Draw(cmd, gpu.RenderPassDescriptor{}, s, nil)
		require.Len(t, cmd.RenderPasses, 2)
		shadow, main := cmd.RenderPasses[0], cmd.RenderPasses[1]
		assert.Equal(t, materialOffset(shadow), materialOffset(main), "one material region per frame")
		frames = append(frames, offsets{vertexOffset(t, shadow), vertexOffset(t, main), materialOffset(main)})
	}
	assert.Equal(t, uint64(len(frames)), r.Frame())

	k := ctx.MaxFramesInFlight
	for i, f := range frames {
		for j := max(0, i-k+1); j < i; j++ {
			assert.NotEqual(t, frames[j].shadow, f.shadow, "shadow region of frame %d reused at %d", j, i)
			assert.NotEqual(t, frames[j].main, f.main, "main region of frame %d reused at %d", j, i)
			assert.NotEqual(t, frames[j].material, f.material, "material region of frame %d reused at %d", j, i)
		}
		if i >= k {
			assert.Equal(t, frames[i-k], f, "each ring wraps after %d frames", k)
		}
	}
}

func TestComputeRunsBeforeDraws(t *testing.T) {
	d, ctx := newContext(t)
	r, err := NewRenderer(ctx, nil)
	require.NoError(t, err)

	var order []string
	s := newScene(box("a", mgl32.Vec3{}))
	s.AddCompute(&stepper{calls: &order})
	s.Root().OnUpdate(func(object.Node) { order = append(order, "tick") })

	cmd := d.NewCommandBuffer("frame").(*gputest.CommandBuffer)
	r.Draw(cmd, gpu.RenderPassDescriptor{}, s, nil)
	assert.Equal(t, []string{"setup", "tick", "compute"}, order)
	require.Len(t, cmd.ComputePasses, 1)
	require.Len(t, cmd.RenderPasses, 1)
}

// stepper is a compute system that begins one empty compute pass per update.
type stepper struct {
	calls *[]string
}

func (s *stepper) Setup(*gpu.Context) error {
	*s.calls = append(*s.calls, "setup")
	return nil
}

func (s *stepper) Update(cmd gpu.CommandBuffer) bool {
	*s.calls = append(*s.calls, "compute")
	cmd.BeginComputePass("step").End()
	return true
}

func (s *stepper) Release() {}
