package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/Carmen-Shannon/prism/engine/mesh"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/go-gl/mathgl/mgl32"
)

// Model is an imported node hierarchy with CPU-side geometry. It holds no GPU
// resources; Instantiate turns it into meshes of the transform graph.
type Model struct {
	Name  string
	Nodes []Node
	// Roots indexes the nodes without a parent, in scene order.
	Roots []int
}

// Node is one node of an imported hierarchy.
type Node struct {
	Label       string
	Position    mgl32.Vec3
	Orientation mgl32.Quat
	Scale       mgl32.Vec3
	Children    []int
	Primitives  []Primitive
}

// Primitive is one drawable piece of a node with its base material values.
type Primitive struct {
	Label     string
	Geometry  geometry.Geometry
	BaseColor mgl32.Vec4
	// BaseColorTexture is the decoded base color image, nil when the material has none
	// or it could not be read.
	BaseColorTexture *common.Image
	DoubleSided      bool
}

// MaterialFunc creates the material a primitive is drawn with.
type MaterialFunc func(p Primitive) material.Material

// BasicColorMaterial draws every primitive with its base color.
func BasicColorMaterial(p Primitive) material.Material {
	return material.NewBasicColor(p.BaseColor)
}

// Bounds returns the bounds of the model's geometry with node transforms applied.
//
// Returns:
//   - common.Box: the union of every primitive's transformed bounds; empty for a model
//     without geometry
func (m *Model) Bounds() common.Box {
	b := common.EmptyBox()
	var walk func(i int, parent mgl32.Mat4)
	walk = func(i int, parent mgl32.Mat4) {
		n := m.Nodes[i]
		world := parent.Mul4(n.matrix())
		for _, p := range n.Primitives {
			b = b.Union(p.Geometry.Bounds().Transform(world))
		}
		for _, c := range n.Children {
			walk(c, world)
		}
	}
	for _, r := range m.Roots {
		walk(r, mgl32.Ident4())
	}
	return b
}

// PrimitiveCount returns the number of primitives reachable from the roots.
func (m *Model) PrimitiveCount() int {
	count := 0
	var walk func(i int)
	walk = func(i int) {
		count += len(m.Nodes[i].Primitives)
		for _, c := range m.Nodes[i].Children {
			walk(c)
		}
	}
	for _, r := range m.Roots {
		walk(r)
	}
	return count
}

// Instantiate builds the model's hierarchy as transform graph nodes under a new root
// object. A node with one primitive becomes a mesh; a node with several becomes an
// object with one mesh child per primitive.
//
// Parameters:
//   - newMaterial: creates the material of each primitive, BasicColorMaterial when nil
//
// Returns:
//   - *object.Object: the root, labelled with the model name
func (m *Model) Instantiate(newMaterial MaterialFunc) *object.Object {
	if newMaterial == nil {
		newMaterial = BasicColorMaterial
	}
	root := object.NewObject(object.WithLabel(m.Name))
	for _, r := range m.Roots {
		root.Add(m.instantiate(r, newMaterial))
	}
	return root
}

func (m *Model) instantiate(i int, newMaterial MaterialFunc) object.Node {
	n := m.Nodes[i]
	transform := []object.ObjectBuilderOption{
		object.WithLabel(n.Label),
		object.WithPosition(n.Position),
		object.WithOrientation(n.Orientation),
		object.WithScale(n.Scale),
	}

	var node object.Node
	switch len(n.Primitives) {
	case 1:
		node = primitiveMesh(n.Primitives[0], newMaterial, transform...)
	default:
		o := object.NewObject(transform...)
		for _, p := range n.Primitives {
			o.Add(primitiveMesh(p, newMaterial))
		}
		node = o
	}
	for _, c := range n.Children {
		node.Base().Add(m.instantiate(c, newMaterial))
	}
	return node
}

func primitiveMesh(p Primitive, newMaterial MaterialFunc, transform ...object.ObjectBuilderOption) *mesh.Mesh {
	cull := gpu.CullBack
	if p.DoubleSided {
		cull = gpu.CullNone
	}
	options := []mesh.MeshBuilderOption{mesh.WithLabel(p.Label), mesh.WithCullMode(cull)}
	if len(transform) > 0 {
		options = append(options, mesh.WithTransform(transform...))
	}
	return mesh.NewMesh(p.Geometry, newMaterial(p), options...)
}

func (n Node) matrix() mgl32.Mat4 {
	return mgl32.Translate3D(n.Position[0], n.Position[1], n.Position[2]).
		Mul4(n.Orientation.Mat4()).
		Mul4(mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2]))
}

func (m *Model) String() string {
	return fmt.Sprintf("%s (%d nodes, %d primitives)", m.Name, len(m.Nodes), m.PrimitiveCount())
}
