package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: dot(Normal, p) + Distance = 0.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// Frustum plane indices.
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustum extracts frustum planes from a view-projection matrix using the
// Gribb/Hartmann method. The near plane uses row2 alone because WebGPU clip depth
// starts at zero.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the combined projection * view matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)
	rows := [6]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r2,
		r3.Sub(r2),
	}

	var f Frustum
	for i, r := range rows {
		n := r.Vec3()
		l := n.Len()
		if l > 0 {
			f.Planes[i] = Plane{Normal: n.Mul(1 / l), Distance: r.W() / l}
		} else {
			f.Planes[i] = Plane{Normal: n, Distance: r.W()}
		}
	}
	return f
}

// ContainsBox reports whether the axis-aligned box intersects or lies inside the frustum.
// An empty box is never contained.
func (f Frustum) ContainsBox(b Box) bool {
	if b.Empty() {
		return false
	}
	for _, p := range f.Planes {
		// positive vertex: the corner furthest along the plane normal
		v := b.Min
		if p.Normal[0] >= 0 {
			v[0] = b.Max[0]
		}
		if p.Normal[1] >= 0 {
			v[1] = b.Max[1]
		}
		if p.Normal[2] >= 0 {
			v[2] = b.Max[2]
		}
		if p.Normal.Dot(v)+p.Distance < 0 {
			return false
		}
	}
	return true
}
