package scene

import (
	"testing"

	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/gputest"
	"github.com/Carmen-Shannon/prism/engine/light"
	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/Carmen-Shannon/prism/engine/mesh"
	"github.com/Carmen-Shannon/prism/engine/object"
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

func newCamera() *camera.PerspectiveCamera {
	return camera.NewPerspectiveCamera(camera.WithPosition(mgl32.Vec3{0, 0, 5}))
}

func box(label string, position mgl32.Vec3, opts ...mesh.MeshBuilderOption) *mesh.Mesh {
	opts = append(opts, mesh.WithLabel(label), mesh.WithTransform(object.WithPosition(position)))
	return mesh.NewMesh(geometry.NewBox(1, 1, 1), material.NewNormalColor(), opts...)
}

func labels(meshes []*mesh.Mesh) []string {
	out := make([]string, len(meshes))
	for i, m := range meshes {
		out[i] = m.Label()
	}
	return out
}

// recorder is a ComputeSystem that logs its calls.
type recorder struct {
	name  string
	calls *[]string
}

func (r *recorder) Setup(*gpu.Context) error {
	*r.calls = append(*r.calls, r.name+" setup")
	return nil
}

func (r *recorder) Update(gpu.CommandBuffer) bool {
	*r.calls = append(*r.calls, r.name+" update")
	return true
}

func (r *recorder) Release() {
	*r.calls = append(*r.calls, r.name+" release")
}

func TestMeshesCullsAndHides(t *testing.T) {
	cam := newCamera()
	hidden := object.NewObject(object.WithVisible(false))
	hidden.Add(box("under hidden", mgl32.Vec3{}))

	s := NewScene("world", cam, WithNodes(
		box("front", mgl32.Vec3{}),
		box("behind", mgl32.Vec3{0, 0, 50}),
		box("instanced behind", mgl32.Vec3{0, 0, 50}, mesh.WithInstanceCount(8)),
		hidden,
	))
	front := s.Root().Find("front").(*mesh.Mesh)
	front.Add(box("child", mgl32.Vec3{1, 0, 0}))

	assert.Equal(t, []string{"front", "child", "instanced behind"}, labels(s.Meshes(cam)))

	s.SetCullingDisabled(true)
	assert.Equal(t, []string{"front", "child", "behind", "instanced behind"}, labels(s.Meshes(cam)))
	assert.Len(t, s.Meshes(nil), 4)
}

func TestShadowCasters(t *testing.T) {
	s := NewScene("world", newCamera(), WithNodes(
		box("caster", mgl32.Vec3{}),
		box("no shadow", mgl32.Vec3{}, mesh.WithShadows(false, true)),
		box("behind", mgl32.Vec3{0, 0, 50}),
	))
	assert.Equal(t, []string{"caster", "behind"}, labels(s.ShadowCasters()))
}

func TestUpdateTicksVisibleNodesAndGathersLights(t *testing.T) {
	_, ctx := newContext(t)
	cam := newCamera()
	var ticked []string
	tick := func(n object.Node) { ticked = append(ticked, n.Base().Label()) }

	shown := object.NewObject(object.WithLabel("shown"))
	shown.OnUpdate(tick)
	hidden := object.NewObject(object.WithLabel("hidden"), object.WithVisible(false))
	hidden.OnUpdate(tick)
	sun := light.NewDirectional(light.WithDirection(mgl32.Vec3{0, -1, -1}))
	shown.Add(light.NewPoint())

	s := NewScene("world", cam, WithNodes(shown, hidden, sun), WithShadow(light.NewShadow(sun)))
	s.Setup(ctx)
	assert.Same(t, ctx, s.Context())
	require.NotNil(t, s.Shadow().DepthTexture())

	s.Update(ctx.Device.NewCommandBuffer("frame"), 1)
	assert.Equal(t, []string{"shown"}, ticked)
	assert.Len(t, s.Lights().Lights(), 2)
	assert.Equal(t, uint32(2), s.Lights().Uniforms().Count)
	assert.NotZero(t, s.Shadow().Data().Resolution)
}

func TestComputeSystemsRunInOrder(t *testing.T) {
	_, ctx := newContext(t)
	var calls []string
	first := &recorder{name: "first", calls: &calls}
	second := &recorder{name: "second", calls: &calls}

	s := NewScene("world", newCamera(), WithCompute(first))
	s.Setup(ctx)
	s.AddCompute(second)
	s.AddCompute(second)
	s.AddCompute(nil)
	assert.Len(t, s.Computes(), 2)

	s.Update(ctx.Device.NewCommandBuffer("frame"), 1)
	s.Release()
	assert.Equal(t, []string{
		"first setup", "second setup",
		"first update", "second update",
		"first release", "second release",
	}, calls)
	assert.Nil(t, s.Context())
}

func TestNodesAddedAfterSetupReceiveContext(t *testing.T) {
	_, ctx := newContext(t)
	s := NewScene("world", newCamera())
	s.Setup(ctx)

	m := box("late", mgl32.Vec3{})
	s.Add(m)
	assert.Same(t, ctx, m.Context())
	assert.True(t, s.Remove(m))
	assert.False(t, s.Remove(m))
}

func TestSetShadowReleasesPrevious(t *testing.T) {
	_, ctx := newContext(t)
	sun := light.NewDirectional()
	s := NewScene("world", newCamera(), WithShadow(light.NewShadow(sun)))
	s.Setup(ctx)
	old := s.Shadow().DepthTexture().(*gputest.Texture)

	next := light.NewShadow(sun, light.WithShadowMapResolution(256))
	s.SetShadow(next)
	assert.True(t, old.Released)
	require.NotNil(t, next.DepthTexture())
	assert.Equal(t, 256, next.DepthTexture().Descriptor().Width)

	s.SetShadow(nil)
	assert.Nil(t, s.Shadow())
	assert.Nil(t, next.DepthTexture())
}
