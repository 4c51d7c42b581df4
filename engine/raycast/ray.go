// Package raycast intersects rays with bounding boxes, triangles, triangle hierarchies
// and object trees.
package raycast

import (
	"github.com/Carmen-Shannon/prism/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-7

// Ray is a half-line from Origin along Direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// NewRay returns a ray with a normalized direction.
func NewRay(origin, direction mgl32.Vec3) Ray {
	return Ray{Origin: origin, Direction: direction.Normalize()}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Transform returns the ray in the space m maps into. The direction is not normalized so
// that ray parameters stay comparable across spaces.
//
// Parameters:
//   - m: an affine transform
//
// Returns:
//   - Ray: the transformed ray
func (r Ray) Transform(m mgl32.Mat4) Ray {
	return Ray{
		Origin:    mgl32.TransformCoordinate(r.Origin, m),
		Direction: mgl32.TransformNormal(r.Direction, m),
	}
}

// IntersectBox runs the slab test against b.
//
// Returns:
//   - float32: the entry parameter, clamped to zero when the origin is inside the box
//   - bool: whether the ray hits the box at a non-negative parameter
func (r Ray) IntersectBox(b common.Box) (float32, bool) {
	if b.Empty() {
		return 0, false
	}
	tmin, tmax := math32.Inf(-1), math32.Inf(1)
	for i := 0; i < 3; i++ {
		if math32.Abs(r.Direction[i]) < epsilon {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / r.Direction[i]
		t1 := (b.Min[i] - r.Origin[i]) * inv
		t2 := (b.Max[i] - r.Origin[i]) * inv
		tmin = math32.Max(tmin, math32.Min(t1, t2))
		tmax = math32.Min(tmax, math32.Max(t1, t2))
	}
	if tmax < 0 || tmin > tmax {
		return 0, false
	}
	return math32.Max(tmin, 0), true
}

// IntersectTriangle runs the Möller–Trumbore test against triangle (a, b, c).
//
// Parameters:
//   - a, b, c: the triangle corners
//   - cullBack: reject hits on the back (clockwise as seen from the ray) face
//
// Returns:
//   - t: the ray parameter of the hit
//   - u, v: barycentric weights of b and c
//   - ok: whether the ray hits the triangle at t > 0
func (r Ray) IntersectTriangle(a, b, c mgl32.Vec3, cullBack bool) (t, u, v float32, ok bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)
	h := r.Direction.Cross(edge2)
	det := edge1.Dot(h)
	if cullBack && det < epsilon {
		return 0, 0, 0, false
	}
	if math32.Abs(det) < epsilon {
		return 0, 0, 0, false
	}
	f := 1 / det
	s := r.Origin.Sub(a)
	u = f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(edge1)
	v = f * r.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = f * edge2.Dot(q)
	if t <= epsilon {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
