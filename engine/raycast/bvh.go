package raycast

import (
	"slices"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/go-gl/mathgl/mgl32"
)

// maxLeafTriangles bounds the size of BVH leaves.
const maxLeafTriangles = 4

// Triangle is one indexed triangle of a mesh.
type Triangle struct {
	// Index is the triangle number: the first index of the triangle divided by three.
	Index   int
	A, B, C mgl32.Vec3
	bounds  common.Box
	center  mgl32.Vec3
}

// TriangleHit is a ray hit on one triangle.
type TriangleHit struct {
	Triangle int
	Distance float32
	U, V     float32
}

// bvhNode is a leaf when count > 0, covering tris[first : first+count]. Interior nodes
// store their right child at index right; the left child always follows the node.
type bvhNode struct {
	bounds common.Box
	first  int
	count  int
	right  int
}

// BVH is a bounding volume hierarchy over the triangles of one mesh, split at the median
// centroid of the widest axis.
type BVH struct {
	nodes []bvhNode
	tris  []Triangle
}

// BuildBVH builds a hierarchy over the triangle list. A nil indices slice treats the
// positions as a non-indexed triangle list.
//
// Parameters:
//   - positions: vertex positions
//   - indices: triangle list indices, three per triangle
//
// Returns:
//   - *BVH: the hierarchy; empty when there are no complete triangles
func BuildBVH(positions []mgl32.Vec3, indices []uint32) *BVH {
	n := len(indices) / 3
	if indices == nil {
		n = len(positions) / 3
	}
	b := &BVH{tris: make([]Triangle, 0, n)}
	for i := 0; i < n; i++ {
		i0, i1, i2 := 3*i, 3*i+1, 3*i+2
		if indices != nil {
			i0, i1, i2 = int(indices[3*i]), int(indices[3*i+1]), int(indices[3*i+2])
		}
		if i0 >= len(positions) || i1 >= len(positions) || i2 >= len(positions) {
			continue
		}
		t := Triangle{Index: i, A: positions[i0], B: positions[i1], C: positions[i2]}
		t.bounds = common.EmptyBox().ExpandPoint(t.A).ExpandPoint(t.B).ExpandPoint(t.C)
		t.center = t.bounds.Center()
		b.tris = append(b.tris, t)
	}
	if len(b.tris) > 0 {
		b.build(0, len(b.tris))
	}
	return b
}

func (b *BVH) build(first, count int) int {
	bounds := common.EmptyBox()
	centers := common.EmptyBox()
	for _, t := range b.tris[first : first+count] {
		bounds = bounds.Union(t.bounds)
		centers = centers.ExpandPoint(t.center)
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, bvhNode{bounds: bounds, first: first, count: count})
	if count <= maxLeafTriangles {
		return idx
	}

	ext := centers.Extent()
	axis := 0
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	if ext[axis] == 0 {
		return idx
	}
	part := b.tris[first : first+count]
	slices.SortFunc(part, func(x, y Triangle) int {
		switch {
		case x.center[axis] < y.center[axis]:
			return -1
		case x.center[axis] > y.center[axis]:
			return 1
		default:
			return 0
		}
	})
	half := count / 2
	b.nodes[idx].count = 0
	b.build(first, half)
	right := b.build(first+half, count-half)
	b.nodes[idx].right = right
	return idx
}

// Len returns the number of triangles in the hierarchy.
func (b *BVH) Len() int { return len(b.tris) }

// Bounds returns the bounds of every triangle.
func (b *BVH) Bounds() common.Box {
	if len(b.nodes) == 0 {
		return common.EmptyBox()
	}
	return b.nodes[0].bounds
}

// Intersect returns every triangle hit along r, nearest first.
//
// Parameters:
//   - r: the ray, in the space of the positions the hierarchy was built from
//   - cullBack: skip back-facing triangles
//
// Returns:
//   - []TriangleHit: the hits sorted by distance
func (b *BVH) Intersect(r Ray, cullBack bool) []TriangleHit {
	var hits []TriangleHit
	if len(b.nodes) == 0 {
		return nil
	}
	stack := []int{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := b.nodes[idx]
		if _, ok := r.IntersectBox(node.bounds); !ok {
			continue
		}
		if node.count > 0 {
			for _, t := range b.tris[node.first : node.first+node.count] {
				if d, u, v, ok := r.IntersectTriangle(t.A, t.B, t.C, cullBack); ok {
					hits = append(hits, TriangleHit{Triangle: t.Index, Distance: d, U: u, V: v})
				}
			}
			continue
		}
		stack = append(stack, idx+1, node.right)
	}
	slices.SortFunc(hits, func(x, y TriangleHit) int {
		switch {
		case x.Distance < y.Distance:
			return -1
		case x.Distance > y.Distance:
			return 1
		default:
			return x.Triangle - y.Triangle
		}
	})
	return hits
}

// Closest returns the nearest triangle hit along r.
func (b *BVH) Closest(r Ray, cullBack bool) (TriangleHit, bool) {
	hits := b.Intersect(r, cullBack)
	if len(hits) == 0 {
		return TriangleHit{}, false
	}
	return hits[0], true
}
