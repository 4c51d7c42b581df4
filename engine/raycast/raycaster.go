package raycast

import (
	"slices"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/go-gl/mathgl/mgl32"
)

// Hit is one intersection of a ray with a node of the scene.
type Hit struct {
	Object   object.Node
	Submesh  int // -1 when the hit triangle belongs to no submesh
	Distance float32
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Triangle int
}

// Target is implemented by nodes that can be hit by rays.
type Target interface {
	// Raycast intersects the node's own geometry, without descending into children.
	//
	// Parameters:
	//   - r: the world-space ray
	//
	// Returns:
	//   - []Hit: the hits, in any order, with world-space points and distances
	Raycast(r Ray) []Hit
}

// Raycaster intersects a world-space ray with object trees, keeping hits within
// [Near, Far].
type Raycaster struct {
	Ray  Ray
	Near float32
	Far  float32
	// IncludeHidden also tests nodes that are not visible.
	IncludeHidden bool
}

// NewRaycaster creates a raycaster with an unbounded range.
func NewRaycaster(r Ray) *Raycaster {
	return &Raycaster{Ray: r, Near: 0, Far: float32(1e30)}
}

// FromCamera creates a raycaster through a point of the screen.
//
// Parameters:
//   - inverseViewProjection: the inverse of the camera's view-projection matrix
//   - ndc: the point in normalized device coordinates, both axes in [-1, 1]
//
// Returns:
//   - *Raycaster: a raycaster from the near plane through the point
func FromCamera(inverseViewProjection mgl32.Mat4, ndc mgl32.Vec2) *Raycaster {
	near := mgl32.TransformCoordinate(mgl32.Vec3{ndc.X(), ndc.Y(), 0}, inverseViewProjection)
	far := mgl32.TransformCoordinate(mgl32.Vec3{ndc.X(), ndc.Y(), 1}, inverseViewProjection)
	return NewRaycaster(NewRay(near, far.Sub(near)))
}

// Intersect collects the hits of every Target in the tree under root, nearest first.
//
// Parameters:
//   - root: the node to start from
//   - recursive: descend into children of root
//
// Returns:
//   - []Hit: the hits sorted by distance
func (rc *Raycaster) Intersect(root object.Node, recursive bool) []Hit {
	var hits []Hit
	visit := func(n object.Node) bool {
		if !rc.IncludeHidden && !n.Base().Visible() {
			return false
		}
		if t, ok := n.(Target); ok {
			for _, h := range t.Raycast(rc.Ray) {
				if h.Distance >= rc.Near && h.Distance <= rc.Far {
					hits = append(hits, h)
				}
			}
		}
		return recursive
	}
	root.Base().Traverse(visit)
	SortHits(hits)
	return hits
}

// IntersectAll runs Intersect over several roots and merges the results.
func (rc *Raycaster) IntersectAll(roots []object.Node, recursive bool) []Hit {
	var hits []Hit
	for _, r := range roots {
		hits = append(hits, rc.Intersect(r, recursive)...)
	}
	SortHits(hits)
	return hits
}

// SortHits orders hits by distance.
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
}

// HitsOnBVH converts the local-space hits of a hierarchy into world-space hits.
//
// Parameters:
//   - node: the node owning the hierarchy
//   - world: the node's world matrix
//   - bvh: the hierarchy, in the node's local space
//   - r: the world-space ray
//   - cullBack: skip back-facing triangles
//   - attrs: optional lookup of interpolated normal and uv for a triangle hit
//
// Returns:
//   - []Hit: the hits with world-space points, distances and normals
func HitsOnBVH(node object.Node, world mgl32.Mat4, bvh *BVH, r Ray, cullBack bool, attrs func(TriangleHit) (mgl32.Vec3, mgl32.Vec2)) []Hit {
	if bvh == nil || bvh.Len() == 0 {
		return nil
	}
	local := r.Transform(world.Inv())
	if _, ok := local.IntersectBox(bvh.Bounds()); !ok {
		return nil
	}
	normalMatrix := common.NormalMatrix(world)
	var hits []Hit
	for _, th := range bvh.Intersect(local, cullBack) {
		p := mgl32.TransformCoordinate(local.At(th.Distance), world)
		h := Hit{
			Object:   node,
			Submesh:  -1,
			Distance: p.Sub(r.Origin).Len(),
			Point:    p,
			Triangle: th.Triangle,
		}
		if attrs != nil {
			n, uv := attrs(th)
			h.Normal = mgl32.TransformNormal(n, normalMatrix).Normalize()
			h.UV = uv
		}
		hits = append(hits, h)
	}
	return hits
}
