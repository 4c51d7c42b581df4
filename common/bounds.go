package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Box is an axis-aligned bounding box. The zero value is not empty; use EmptyBox for an
// accumulator that any point will expand.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyBox returns an inverted box that contains nothing.
func EmptyBox() Box {
	inf := math32.Inf(1)
	return Box{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Empty reports whether the box contains no points.
func (b Box) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// ExpandPoint returns the smallest box containing b and p.
func (b Box) ExpandPoint(p mgl32.Vec3) Box {
	for i := 0; i < 3; i++ {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(o Box) Box {
	if o.Empty() {
		return b
	}
	return b.ExpandPoint(o.Min).ExpandPoint(o.Max)
}

// Center returns the midpoint of the box.
func (b Box) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extent returns the box size along each axis.
func (b Box) Extent() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Transform returns the axis-aligned box enclosing the eight corners of b after applying m.
//
// Parameters:
//   - m: the affine transform to apply
//
// Returns:
//   - Box: the transformed bounds, or b unchanged when b is empty
func (b Box) Transform(m mgl32.Mat4) Box {
	if b.Empty() {
		return b
	}
	out := EmptyBox()
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		out = out.ExpandPoint(mgl32.TransformCoordinate(c, m))
	}
	return out
}
