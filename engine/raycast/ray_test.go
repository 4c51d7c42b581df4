package raycast

import (
	"testing"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitBox() common.Box {
	return common.Box{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
}

func TestIntersectBox(t *testing.T) {
	r := NewRay(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1})
	d, ok := r.IntersectBox(unitBox())
	require.True(t, ok)
	assert.InDelta(t, 4, d, 1e-6)

	inside := NewRay(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
	d, ok = inside.IntersectBox(unitBox())
	require.True(t, ok)
	assert.Equal(t, float32(0), d)

	away := NewRay(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 1})
	_, ok = away.IntersectBox(unitBox())
	assert.False(t, ok)

	parallel := NewRay(mgl32.Vec3{0, 3, 5}, mgl32.Vec3{0, 0, -1})
	_, ok = parallel.IntersectBox(unitBox())
	assert.False(t, ok)

	_, ok = r.IntersectBox(common.EmptyBox())
	assert.False(t, ok)
}

func TestIntersectTriangle(t *testing.T) {
	a, b, c := mgl32.Vec3{-1, -1, 0}, mgl32.Vec3{1, -1, 0}, mgl32.Vec3{0, 1, 0}
	front := NewRay(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{0, 0, -1})

	d, u, v, ok := front.IntersectTriangle(a, b, c, true)
	require.True(t, ok)
	assert.InDelta(t, 2, d, 1e-6)
	assert.InDelta(t, 0.25, u, 1e-6)
	assert.InDelta(t, 0.5, v, 1e-6)

	back := NewRay(mgl32.Vec3{0, 0, -2}, mgl32.Vec3{0, 0, 1})
	_, _, _, ok = back.IntersectTriangle(a, b, c, true)
	assert.False(t, ok, "back faces are culled")
	_, _, _, ok = back.IntersectTriangle(a, b, c, false)
	assert.True(t, ok)

	miss := NewRay(mgl32.Vec3{5, 5, 2}, mgl32.Vec3{0, 0, -1})
	_, _, _, ok = miss.IntersectTriangle(a, b, c, false)
	assert.False(t, ok)
}

func TestRayTransformKeepsParameters(t *testing.T) {
	m := mgl32.Scale3D(2, 2, 2)
	r := NewRay(mgl32.Vec3{0, 0, 4}, mgl32.Vec3{0, 0, -1})
	local := r.Transform(m.Inv())
	assert.InDelta(t, 2, local.Origin.Z(), 1e-6)
	assert.InDelta(t, -0.5, local.Direction.Z(), 1e-6)

	d, ok := local.IntersectBox(unitBox())
	require.True(t, ok)
	assert.InDelta(t, 2, d, 1e-5, "world distance to the scaled box face")
}

// grid builds a flat n x n grid of quads in the XY plane at z.
func grid(n int, z float32) ([]mgl32.Vec3, []uint32) {
	var pos []mgl32.Vec3
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			pos = append(pos, mgl32.Vec3{float32(x), float32(y), z})
		}
	}
	var idx []uint32
	w := uint32(n + 1)
	for y := uint32(0); y < uint32(n); y++ {
		for x := uint32(0); x < uint32(n); x++ {
			i := y*w + x
			idx = append(idx, i, i+1, i+w+1, i, i+w+1, i+w)
		}
	}
	return pos, idx
}

func TestBVHMatchesBruteForce(t *testing.T) {
	pos, idx := grid(8, 0)
	upper, upperIdx := grid(8, 1)
	for i := range upperIdx {
		upperIdx[i] += uint32(len(pos))
	}
	pos = append(pos, upper...)
	idx = append(idx, upperIdx...)

	bvh := BuildBVH(pos, idx)
	require.Equal(t, 256, bvh.Len())
	assert.Equal(t, mgl32.Vec3{8, 8, 1}, bvh.Bounds().Max)

	r := NewRay(mgl32.Vec3{3.3, 5.6, 4}, mgl32.Vec3{0, 0, -1})
	hits := bvh.Intersect(r, false)
	require.Len(t, hits, 2)
	assert.InDelta(t, 3, hits[0].Distance, 1e-5)
	assert.InDelta(t, 4, hits[1].Distance, 1e-5)

	var brute int
	for i := 0; i < len(idx)/3; i++ {
		if _, _, _, ok := r.IntersectTriangle(pos[idx[3*i]], pos[idx[3*i+1]], pos[idx[3*i+2]], false); ok {
			brute++
			assert.Contains(t, []int{hits[0].Triangle, hits[1].Triangle}, i)
		}
	}
	assert.Equal(t, brute, len(hits))

	closest, ok := bvh.Closest(r, false)
	require.True(t, ok)
	assert.Equal(t, hits[0], closest)
}

func TestBVHEmptyAndNonIndexed(t *testing.T) {
	empty := BuildBVH(nil, nil)
	assert.Zero(t, empty.Len())
	assert.True(t, empty.Bounds().Empty())
	assert.Nil(t, empty.Intersect(NewRay(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}), false))

	soup := BuildBVH([]mgl32.Vec3{{-1, -1, 0}, {1, -1, 0}, {0, 1, 0}}, nil)
	hit, ok := soup.Closest(NewRay(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, -1}), true)
	require.True(t, ok)
	assert.Equal(t, 0, hit.Triangle)
}
