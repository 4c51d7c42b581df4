package raycast

import (
	"testing"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panel is a unit square in the XY plane facing +Z.
type panel struct {
	*object.Object
	bvh *BVH
}

func newPanel(label string, z float32) *panel {
	bvh := BuildBVH(
		[]mgl32.Vec3{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
	p := &panel{
		Object: object.NewObject(object.WithLabel(label), object.WithPosition(mgl32.Vec3{0, 0, z})),
		bvh:    bvh,
	}
	p.SetOwner(p)
	return p
}

func (p *panel) Raycast(r Ray) []Hit {
	return HitsOnBVH(p, p.WorldMatrix(), p.bvh, r, true, func(TriangleHit) (mgl32.Vec3, mgl32.Vec2) {
		return mgl32.Vec3{0, 0, 1}, mgl32.Vec2{0.5, 0.5}
	})
}

func TestRaycasterSortsAcrossTree(t *testing.T) {
	root := object.NewObject(object.WithLabel("root"))
	far := newPanel("far", -5)
	near := newPanel("near", 2)
	root.Add(far)
	root.Add(near)

	rc := NewRaycaster(NewRay(mgl32.Vec3{0.2, 0.3, 10}, mgl32.Vec3{0, 0, -1}))
	hits := rc.Intersect(root, true)
	require.Len(t, hits, 2)
	assert.Same(t, near, hits[0].Object.(*panel))
	assert.Same(t, far, hits[1].Object.(*panel))
	assert.InDelta(t, 8, hits[0].Distance, 1e-4)
	assert.InDelta(t, 15, hits[1].Distance, 1e-4)
	assert.True(t, mgl32.Vec3{0.2, 0.3, 2}.ApproxEqualThreshold(hits[0].Point, 1e-4))
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, hits[0].Normal)

	assert.Empty(t, rc.Intersect(root, false), "root itself has no geometry")

	near.SetVisible(false)
	hits = rc.Intersect(root, true)
	require.Len(t, hits, 1)
	assert.Same(t, far, hits[0].Object.(*panel))

	rc.Far = 10
	assert.Empty(t, rc.Intersect(root, true))
}

func TestRaycasterScaledNode(t *testing.T) {
	p := newPanel("scaled", 0)
	p.SetScale(mgl32.Vec3{4, 4, 4})
	rc := NewRaycaster(NewRay(mgl32.Vec3{3, 3, 6}, mgl32.Vec3{0, 0, -1}))
	hits := rc.Intersect(p, false)
	require.Len(t, hits, 1)
	assert.InDelta(t, 6, hits[0].Distance, 1e-4)
}

func TestFromCamera(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := common.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	rc := FromCamera(proj.Mul4(view).Inv(), mgl32.Vec2{0, 0})
	assert.True(t, mgl32.Vec3{0, 0, -1}.ApproxEqualThreshold(rc.Ray.Direction, 1e-4))
	assert.InDelta(t, 4.9, rc.Ray.Origin.Z(), 1e-3)

	hits := rc.Intersect(newPanel("p", 0), false)
	require.Len(t, hits, 1)
	assert.InDelta(t, 4.9, hits[0].Distance, 1e-3)
}
