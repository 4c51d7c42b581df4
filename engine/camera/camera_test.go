package camera

import (
	"testing"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func near(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-4), "want %v, got %v", want, got)
}

func TestPerspectiveViewIsInverseWorld(t *testing.T) {
	c := NewPerspectiveCamera(WithPosition(mgl32.Vec3{0, 2, 5}), WithLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
	assert.True(t, c.ViewMatrix().Mul4(c.WorldMatrix()).ApproxEqualThreshold(mgl32.Ident4(), 1e-5))

	reference := mgl32.LookAtV(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	assert.True(t, reference.ApproxEqualThreshold(c.ViewMatrix(), 1e-4))

	v := c.ViewMatrix()
	c.SetPosition(mgl32.Vec3{1, 2, 5})
	assert.NotEqual(t, v, c.ViewMatrix(), "moving the camera refreshes the view")
}

func TestPerspectiveProjectsTargetToCenter(t *testing.T) {
	c := NewPerspectiveCamera(
		WithAspect(16.0/9.0),
		WithClip(0.5, 50),
		WithPosition(mgl32.Vec3{3, 3, 3}),
		WithLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
	)
	clip := c.ViewProjectionMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	ndc := clip.Vec3().Mul(1 / clip.W())
	assert.InDelta(t, 0, ndc.X(), 1e-5)
	assert.InDelta(t, 0, ndc.Y(), 1e-5)
	assert.Greater(t, ndc.Z(), float32(0))
	assert.Less(t, ndc.Z(), float32(1))

	assert.True(t, c.Frustum().ContainsBox(common.Box{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}))
	assert.False(t, c.Frustum().ContainsBox(common.Box{Min: mgl32.Vec3{10, 10, 10}, Max: mgl32.Vec3{11, 11, 11}}))
}

func TestCameraRay(t *testing.T) {
	c := NewPerspectiveCamera(WithPosition(mgl32.Vec3{0, 0, 5}))
	r := c.Ray(mgl32.Vec2{0, 0})
	near(t, mgl32.Vec3{0, 0, -1}, r.Direction)

	o := NewOrthographicCamera(WithHeight(4), WithPosition(mgl32.Vec3{0, 0, 5}))
	r = o.Ray(mgl32.Vec2{1, 1})
	near(t, mgl32.Vec3{0, 0, -1}, r.Direction)
	assert.InDelta(t, 2, r.Origin.X(), 1e-4)
	assert.InDelta(t, 2, r.Origin.Y(), 1e-4)
}

func TestOrthographicSetters(t *testing.T) {
	o := NewOrthographicCamera(WithLabel("top"), WithAspect(2))
	o.SetHeight(10)
	o.SetClip(1, 20)
	p := o.ProjectionMatrix()
	assert.InDelta(t, 1.0/10, p.At(0, 0), 1e-6)
	assert.InDelta(t, 2.0/10, p.At(1, 1), 1e-6)
	assert.Equal(t, "top", o.Label())
}

func TestOrbitController(t *testing.T) {
	oc := NewOrbitController(WithRadius(10), WithElevation(0), WithRadiusBounds(2, 20))
	near(t, mgl32.Vec3{0, 0, 10}, oc.Position())

	oc.Zoom(100)
	assert.Equal(t, float32(2), oc.Radius())

	oc.Orbit(0, 1000)
	assert.Less(t, oc.Elevation(), float32(1.6))

	c := NewPerspectiveCamera()
	oc = NewOrbitController(WithTarget(mgl32.Vec3{1, 0, 0}), WithRadius(4))
	oc.Apply(c)
	r := c.Ray(mgl32.Vec2{0, 0})
	toTarget := oc.Target().Sub(c.WorldPosition()).Normalize()
	near(t, toTarget, r.Direction)

	before := oc.Target()
	oc.Pan(1, 0)
	require.NotEqual(t, before, oc.Target())
	assert.InDelta(t, 1, oc.Target().Sub(before).Len(), 1e-5)
}
