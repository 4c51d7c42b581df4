package geometry

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// NewQuad creates a single quad in the XY plane facing +Z, centered on the origin.
//
// Parameters:
//   - width: extent along X
//   - height: extent along Y
//
// Returns:
//   - Geometry: four vertices, two counter-clockwise triangles
func NewQuad(width, height float32, options ...GeometryBuilderOption) Geometry {
	var vertices []Vertex
	var indices []uint32
	appendFace(&vertices, &indices, mgl32.Vec3{}, mgl32.Vec3{width / 2, 0, 0}, mgl32.Vec3{0, height / 2, 0})
	return NewGeometry(vertices, indices, append([]GeometryBuilderOption{WithLabel("quad")}, options...)...)
}

// NewPlane creates a subdivided plane in the XY plane facing +Z, centered on the origin.
//
// Parameters:
//   - width: extent along X
//   - height: extent along Y
//   - segmentsX: subdivisions along X, at least 1
//   - segmentsY: subdivisions along Y, at least 1
//
// Returns:
//   - Geometry: (segmentsX+1)*(segmentsY+1) vertices
func NewPlane(width, height float32, segmentsX, segmentsY int, options ...GeometryBuilderOption) Geometry {
	segmentsX = max(segmentsX, 1)
	segmentsY = max(segmentsY, 1)
	cols := segmentsX + 1
	vertices := make([]Vertex, 0, cols*(segmentsY+1))
	for iy := 0; iy <= segmentsY; iy++ {
		y := float32(iy)*height/float32(segmentsY) - height/2
		for ix := 0; ix <= segmentsX; ix++ {
			x := float32(ix)*width/float32(segmentsX) - width/2
			vertices = append(vertices, Vertex{
				Position: [3]float32{x, -y, 0},
				Normal:   [3]float32{0, 0, 1},
				UV:       [2]float32{float32(ix) / float32(segmentsX), float32(iy) / float32(segmentsY)},
			})
		}
	}
	indices := make([]uint32, 0, segmentsX*segmentsY*6)
	for iy := 0; iy < segmentsY; iy++ {
		for ix := 0; ix < segmentsX; ix++ {
			a := uint32(ix + cols*iy)
			b := uint32(ix + cols*(iy+1))
			c := uint32(ix + 1 + cols*(iy+1))
			d := uint32(ix + 1 + cols*iy)
			indices = append(indices, a, b, d, b, c, d)
		}
	}
	return NewGeometry(vertices, indices, append([]GeometryBuilderOption{WithLabel("plane")}, options...)...)
}

// NewBox creates an axis-aligned box centered on the origin with one quad per face so
// that every face carries its own normals and texture coordinates.
//
// Parameters:
//   - width: extent along X
//   - height: extent along Y
//   - depth: extent along Z
//
// Returns:
//   - Geometry: 24 vertices, 36 indices
func NewBox(width, height, depth float32, options ...GeometryBuilderOption) Geometry {
	w, h, d := width/2, height/2, depth/2
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	faces := [6][3]mgl32.Vec3{
		{{0, 0, d}, {w, 0, 0}, {0, h, 0}},   // +Z
		{{0, 0, -d}, {-w, 0, 0}, {0, h, 0}}, // -Z
		{{w, 0, 0}, {0, 0, -d}, {0, h, 0}},  // +X
		{{-w, 0, 0}, {0, 0, d}, {0, h, 0}},  // -X
		{{0, h, 0}, {w, 0, 0}, {0, 0, -d}},  // +Y
		{{0, -h, 0}, {w, 0, 0}, {0, 0, d}},  // -Y
	}
	for _, f := range faces {
		appendFace(&vertices, &indices, f[0], f[1], f[2])
	}
	return NewGeometry(vertices, indices, append([]GeometryBuilderOption{WithLabel("box")}, options...)...)
}

// NewSphere creates a UV sphere centered on the origin. Degenerate triangles at the poles
// are omitted.
//
// Parameters:
//   - radius: the sphere radius
//   - segments: longitudinal subdivisions, at least 3
//   - rings: latitudinal subdivisions, at least 2
//
// Returns:
//   - Geometry: (segments+1)*(rings+1) vertices
func NewSphere(radius float32, segments, rings int, options ...GeometryBuilderOption) Geometry {
	segments = max(segments, 3)
	rings = max(rings, 2)
	cols := segments + 1
	vertices := make([]Vertex, 0, cols*(rings+1))
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		sinPhi, cosPhi := math32.Sincos(v * math32.Pi)
		for s := 0; s <= segments; s++ {
			u := float32(s) / float32(segments)
			sinTheta, cosTheta := math32.Sincos(u * 2 * math32.Pi)
			n := mgl32.Vec3{-cosTheta * sinPhi, cosPhi, sinTheta * sinPhi}
			vertices = append(vertices, Vertex{
				Position: n.Mul(radius),
				Normal:   n,
				UV:       [2]float32{u, v},
			})
		}
	}
	var indices []uint32
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a := uint32(r*cols + s + 1)
			b := uint32(r*cols + s)
			c := uint32((r+1)*cols + s)
			d := uint32((r+1)*cols + s + 1)
			if r != 0 {
				indices = append(indices, a, b, d)
			}
			if r != rings-1 {
				indices = append(indices, b, c, d)
			}
		}
	}
	return NewGeometry(vertices, indices, append([]GeometryBuilderOption{WithLabel("sphere")}, options...)...)
}

// appendFace appends the quad center ± u ± v. The face normal is u × v and the two
// triangles wind counter-clockwise around it.
func appendFace(vertices *[]Vertex, indices *[]uint32, center, u, v mgl32.Vec3) {
	n := u.Cross(v).Normalize()
	base := uint32(len(*vertices))
	corners := [4]struct {
		su, sv float32
		uv     [2]float32
	}{
		{-1, -1, [2]float32{0, 1}},
		{1, -1, [2]float32{1, 1}},
		{1, 1, [2]float32{1, 0}},
		{-1, 1, [2]float32{0, 0}},
	}
	for _, c := range corners {
		p := center.Add(u.Mul(c.su)).Add(v.Mul(c.sv))
		*vertices = append(*vertices, Vertex{Position: p, Normal: n, UV: c.uv})
	}
	*indices = append(*indices, base, base+1, base+2, base, base+2, base+3)
}
