package light

import (
	"testing"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/gputest"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T) (*gputest.Device, *gpu.Context) {
	t.Helper()
	d := gputest.NewDevice()
	ctx := gpu.NewContext(d, gpu.WithSynchronousTasks())
	t.Cleanup(ctx.Release)
	return d, ctx
}

func TestLightUniformsLayout(t *testing.T) {
	var u LightUniforms
	assert.Equal(t, 16+MaxLights*64, u.Stride())
	var s ShadowData
	assert.Equal(t, 80, s.Stride())
}

func TestLightFollowsTransform(t *testing.T) {
	parent := object.NewObject(object.WithPosition(mgl32.Vec3{1, 2, 3}))
	bulb := NewPoint(WithPosition(mgl32.Vec3{0, 1, 0}), WithRange(4))
	parent.Add(bulb)

	g := bulb.GPU()
	assert.True(t, mgl32.Vec3{1, 3, 3}.ApproxEqualThreshold(g.Position, 1e-5))
	assert.Equal(t, uint32(LightTypePoint), g.Kind)
	assert.Equal(t, float32(4), g.Range)
	assert.Equal(t, uint32(1), g.Enabled)

	sun := NewDirectional(WithDirection(mgl32.Vec3{0, -2, 0}))
	assert.True(t, mgl32.Vec3{0, -1, 0}.ApproxEqualThreshold(sun.Direction(), 1e-5))
}

func TestConeAngles(t *testing.T) {
	spot := NewSpot(WithConeAngles(30, 20))
	inner, outer := spot.ConeAngles()
	assert.InDelta(t, 30, inner, 1e-3)
	assert.InDelta(t, 30, outer, 1e-3, "outer is never narrower than inner")
}

func TestSystemPacksEnabledLights(t *testing.T) {
	root := object.NewObject()
	root.Add(NewDirectional(WithColor(mgl32.Vec3{1, 0, 0})))
	root.Add(NewPoint(WithEnabled(false)))
	group := object.NewObject()
	group.Add(NewSpot(WithIntensity(2)))
	root.Add(group)

	s := NewSystem(WithAmbient(mgl32.Vec3{0.1, 0.1, 0.1}))
	assert.Equal(t, 3, s.Gather(root))
	s.Update(1)

	u := s.Uniforms()
	assert.Equal(t, uint32(2), u.Count)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, u.Lights[0].Color)
	assert.Equal(t, uint32(LightTypeSpot), u.Lights[1].Kind)
	assert.Equal(t, float32(2), u.Lights[1].Intensity)
	assert.Equal(t, GPULight{}, u.Lights[2])
	assert.Equal(t, mgl32.Vec3{0.1, 0.1, 0.1}, u.Ambient)
}

func TestSystemCapsLightCount(t *testing.T) {
	s := NewSystem()
	for range MaxLights + 4 {
		s.Add(NewPoint())
	}
	s.Update(1)
	assert.Equal(t, uint32(MaxLights), s.Uniforms().Count)
}

func TestSystemAddRemove(t *testing.T) {
	l := NewPoint()
	s := NewSystem(WithLights(l, l))
	assert.Len(t, s.Lights(), 1)
	assert.True(t, s.Remove(l))
	assert.False(t, s.Remove(l))
}

func TestSystemUpdatesOncePerFrame(t *testing.T) {
	_, ctx := newContext(t)
	s := NewSystem(WithLights(NewDirectional()))
	require.NoError(t, s.Setup(ctx))
	t.Cleanup(s.Release)

	offset := func() int {
		pass := &gputest.RenderPass{}
		s.Bind(pass, shader.ExternalGroup, 0)
		binds := pass.Ops("SetBuffer")
		require.Len(t, binds, 1)
		u := s.Uniforms()
		assert.Equal(t, u.Stride(), binds[0].Size)
		return binds[0].Offset
	}

	seen := map[int]bool{}
	for frame := uint64(1); frame <= 3; frame++ {
		s.Update(frame)
		first := offset()
		s.Update(frame)
		assert.Equal(t, first, offset())
		seen[first] = true
	}
	assert.Len(t, seen, ctx.MaxFramesInFlight)
}

func TestLambertBindsLights(t *testing.T) {
	_, ctx := newContext(t)
	s := NewSystem(WithLights(NewDirectional()))
	require.NoError(t, s.Setup(ctx))
	t.Cleanup(s.Release)

	m := NewLambert(s, mgl32.Vec4{0.8, 0.8, 0.8, 1})
	require.NoError(t, m.Setup(ctx))
	t.Cleanup(m.Release)

	src := m.Shader().Compiled().Source
	assert.Contains(t, src, "@group(2) @binding(0) var<uniform> lights: Lights;")
	assert.Contains(t, src, "struct Light {")

	s.Update(1)
	m.Update(1)
	pass := &gputest.RenderPass{}
	require.True(t, m.Bind(pass, false))
	var external int
	for _, c := range pass.Ops("SetBuffer") {
		if c.Group == shader.ExternalGroup {
			external++
			assert.Equal(t, s.Buffer().GPU(), c.Buffer)
		}
	}
	assert.Equal(t, 1, external)
}

func TestShadowFitsLight(t *testing.T) {
	_, ctx := newContext(t)
	sun := NewDirectional(WithDirection(mgl32.Vec3{0, -1, 0}))
	sh := NewShadow(sun, WithShadowMapResolution(1024), WithShadowExtent(10, 0.1, 50))
	assert.True(t, sun.CastsShadows())
	require.NoError(t, sh.Setup(ctx))
	t.Cleanup(sh.Release)

	desc := sh.DepthTexture().Descriptor()
	assert.Equal(t, gpu.FormatDepth32Float, desc.Format)
	assert.Equal(t, 1024, desc.Width)
	assert.Equal(t, sh.DepthTexture(), sh.Pass().Depth)

	focus := mgl32.Vec3{2, 0, -1}
	sh.Update(focus, 1)
	clip := sh.Data().LightViewProjection.Mul4x1(focus.Vec4(1))
	assert.InDelta(t, 0, clip.X(), 1e-4)
	assert.InDelta(t, 0, clip.Y(), 1e-4)
	assert.Greater(t, clip.Z(), float32(0))
	assert.Less(t, clip.Z(), float32(1))
	assert.InDelta(t, 20.0/1024, sh.Data().TexelSize, 1e-6)
	assert.InDelta(t, 3*20.0/1024, sh.Data().NormalBias, 1e-6)

	pass := &gputest.RenderPass{}
	sh.Bind(pass, shader.ExternalGroup, 1)
	require.Len(t, pass.Ops("SetBuffer"), 1)
	assert.Equal(t, 80, pass.Ops("SetBuffer")[0].Size)
}

func TestShadowRequiresDirectionalLight(t *testing.T) {
	assert.Panics(t, func() { NewShadow(NewPoint()) })
}
