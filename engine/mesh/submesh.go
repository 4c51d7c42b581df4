package mesh

import "github.com/Carmen-Shannon/prism/engine/material"

// Submesh is a range of the owning mesh's index buffer drawn with its own material. It
// holds no vertex data.
type Submesh struct {
	Label    string
	Start    int
	Count    int
	Material material.Material
	Visible  bool

	mesh *Mesh
}

// NewSubmesh creates a visible submesh over indices [start, start+count).
//
// Parameters:
//   - label: a label for lookups and raycast results
//   - start: the first index
//   - count: the number of indices, a multiple of three for triangle lists
//   - mat: the material the range is drawn with
//
// Returns:
//   - *Submesh: the new submesh
func NewSubmesh(label string, start, count int, mat material.Material) *Submesh {
	return &Submesh{Label: label, Start: start, Count: count, Material: mat, Visible: true}
}

// Mesh retrieves the mesh the submesh was added to, or nil.
func (s *Submesh) Mesh() *Mesh { return s.mesh }

// Contains reports whether index position i lies in the range.
func (s *Submesh) Contains(i int) bool {
	return i >= s.Start && i < s.Start+s.Count
}

func (s *Submesh) inRange(indexCount int) bool {
	return s.Start >= 0 && s.Count > 0 && s.Start+s.Count <= indexCount
}
