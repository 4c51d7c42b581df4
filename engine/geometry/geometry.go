// Package geometry holds vertex and index data and the GPU buffers derived from it.
package geometry

import (
	"fmt"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/raycast"
	"github.com/Carmen-Shannon/prism/internal/logx"
	"github.com/go-gl/mathgl/mgl32"
)

var log = logx.Logger("geometry")

// Delegate is notified after the vertex or index data of a geometry changes.
type Delegate interface {
	GeometryUpdated(g Geometry)
}

// geometry is the implementation of the Geometry interface.
type geometry struct {
	label    string
	vertices []Vertex
	indices  []uint32
	topology gpu.Topology
	winding  gpu.Winding
	delegate Delegate

	bounds      common.Box
	boundsDirty bool

	device       gpu.Device
	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer
	buffersDirty bool

	bvh *raycast.BVH
}

// Geometry owns the vertex and index arrays of a mesh. GPU buffers and the raycast
// hierarchy are derived lazily and rebuilt on the first use after a change.
type Geometry interface {
	// Label retrieves the debug label used for the device buffers.
	Label() string

	// Vertices retrieves the vertex array. Callers must not modify it; use SetVertices.
	//
	// Returns:
	//   - []Vertex: the vertices
	Vertices() []Vertex

	// Indices retrieves the index array, nil for non-indexed geometry.
	//
	// Returns:
	//   - []uint32: the indices
	Indices() []uint32

	// VertexCount retrieves the number of vertices.
	VertexCount() int

	// IndexCount retrieves the number of indices.
	IndexCount() int

	// Indexed reports whether the geometry draws through an index buffer.
	Indexed() bool

	// SetVertices replaces the vertex array and notifies the delegate.
	//
	// Parameters:
	//   - vertices: the new vertices
	SetVertices(vertices []Vertex)

	// SetIndices replaces the index array and notifies the delegate. A nil slice makes the
	// geometry non-indexed.
	//
	// Parameters:
	//   - indices: the new indices
	SetIndices(indices []uint32)

	// SetData replaces both arrays with a single notification.
	//
	// Parameters:
	//   - vertices: the new vertices
	//   - indices: the new indices, nil for non-indexed geometry
	SetData(vertices []Vertex, indices []uint32)

	// Append adds the vertices and primitives of other after those of this geometry.
	//
	// Parameters:
	//   - other: the geometry to merge in, left unchanged
	Append(other Geometry)

	// Topology retrieves the primitive topology.
	Topology() gpu.Topology

	// SetTopology sets the primitive topology.
	SetTopology(t gpu.Topology)

	// Winding retrieves the front face winding of the primitives.
	Winding() gpu.Winding

	// SetWinding sets the front face winding of the primitives.
	SetWinding(w gpu.Winding)

	// Bounds retrieves the local-space bounding box of the vertices.
	//
	// Returns:
	//   - common.Box: the bounds, empty when there are no vertices
	Bounds() common.Box

	// Positions retrieves the vertex positions as vectors.
	Positions() []mgl32.Vec3

	// SetDelegate sets the object notified of data changes.
	//
	// Parameters:
	//   - d: the delegate, or nil
	SetDelegate(d Delegate)

	// Buffers retrieves the device buffers, creating them on first use and rebuilding
	// them after a data change or a device switch.
	//
	// Parameters:
	//   - device: the device to allocate from
	//
	// Returns:
	//   - gpu.Buffer: the vertex buffer, nil when there are no vertices
	//   - gpu.Buffer: the index buffer, nil for non-indexed geometry
	//   - error: error if allocation fails
	Buffers(device gpu.Device) (gpu.Buffer, gpu.Buffer, error)

	// BVH retrieves the raycast hierarchy over the triangles, built on first use after a
	// change. Only triangle lists produce triangles.
	//
	// Returns:
	//   - *raycast.BVH: the hierarchy
	BVH() *raycast.BVH

	// Release destroys the device buffers. The arrays are kept and buffers are rebuilt by
	// the next call to Buffers.
	Release()
}

var _ Geometry = &geometry{}

// NewGeometry creates a geometry from vertex and index arrays.
//
// Parameters:
//   - vertices: the vertices
//   - indices: the indices, nil for non-indexed geometry
//   - options: functional options to configure the geometry
//
// Returns:
//   - Geometry: the new geometry
func NewGeometry(vertices []Vertex, indices []uint32, options ...GeometryBuilderOption) Geometry {
	g := &geometry{
		label:        "geometry",
		vertices:     vertices,
		indices:      indices,
		topology:     gpu.TopologyTriangleList,
		winding:      gpu.WindingCounterClockwise,
		boundsDirty:  true,
		buffersDirty: true,
	}
	for _, option := range options {
		option(g)
	}
	return g
}

func (g *geometry) Label() string          { return g.label }
func (g *geometry) Vertices() []Vertex     { return g.vertices }
func (g *geometry) Indices() []uint32      { return g.indices }
func (g *geometry) VertexCount() int       { return len(g.vertices) }
func (g *geometry) IndexCount() int        { return len(g.indices) }
func (g *geometry) Indexed() bool          { return g.indices != nil }
func (g *geometry) Topology() gpu.Topology { return g.topology }
func (g *geometry) Winding() gpu.Winding   { return g.winding }

func (g *geometry) SetVertices(vertices []Vertex) {
	g.vertices = vertices
	g.changed()
}

func (g *geometry) SetIndices(indices []uint32) {
	g.indices = indices
	g.changed()
}

func (g *geometry) SetData(vertices []Vertex, indices []uint32) {
	g.vertices = vertices
	g.indices = indices
	g.changed()
}

func (g *geometry) Append(other Geometry) {
	base := uint32(len(g.vertices))
	if g.indices == nil && other.Indexed() {
		g.indices = sequence(0, len(g.vertices))
	}
	g.vertices = append(g.vertices, other.Vertices()...)
	if g.indices != nil {
		src := other.Indices()
		if src == nil {
			src = sequence(0, other.VertexCount())
		}
		for _, i := range src {
			g.indices = append(g.indices, base+i)
		}
	}
	g.changed()
}

func (g *geometry) SetTopology(t gpu.Topology) {
	if g.topology == t {
		return
	}
	g.topology = t
	g.bvh = nil
	g.notify()
}

func (g *geometry) SetWinding(w gpu.Winding) {
	if g.winding == w {
		return
	}
	g.winding = w
	g.notify()
}

func (g *geometry) Bounds() common.Box {
	if g.boundsDirty {
		b := common.EmptyBox()
		for _, v := range g.vertices {
			b = b.ExpandPoint(v.Position)
		}
		g.bounds = b
		g.boundsDirty = false
	}
	return g.bounds
}

func (g *geometry) Positions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(g.vertices))
	for i, v := range g.vertices {
		out[i] = v.Position
	}
	return out
}

func (g *geometry) SetDelegate(d Delegate) {
	g.delegate = d
}

func (g *geometry) Buffers(device gpu.Device) (gpu.Buffer, gpu.Buffer, error) {
	if device == nil {
		return nil, nil, fmt.Errorf("geometry: %s: no device", g.label)
	}
	if !g.buffersDirty && g.device == device {
		return g.vertexBuffer, g.indexBuffer, nil
	}
	g.Release()
	if len(g.vertices) > 0 {
		vb, err := device.NewBuffer(gpu.BufferDescriptor{
			Label: g.label + "_vertices",
			Size:  len(g.vertices) * VertexStride,
			Usage: gpu.BufferUsageVertex | gpu.BufferUsageStorage | gpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("geometry: %s vertex buffer: %w", g.label, err)
		}
		vb.Write(0, common.SliceToBytes(g.vertices))
		g.vertexBuffer = vb
	}
	if len(g.indices) > 0 {
		ib, err := device.NewBuffer(gpu.BufferDescriptor{
			Label: g.label + "_indices",
			Size:  common.RoundUp(4, len(g.indices)*4),
			Usage: gpu.BufferUsageIndex | gpu.BufferUsageStorage | gpu.BufferUsageCopyDst,
		})
		if err != nil {
			g.Release()
			return nil, nil, fmt.Errorf("geometry: %s index buffer: %w", g.label, err)
		}
		ib.Write(0, common.SliceToBytes(g.indices))
		g.indexBuffer = ib
	}
	g.device = device
	g.buffersDirty = false
	log.Debug("buffers built", "geometry", g.label, "vertices", len(g.vertices), "indices", len(g.indices))
	return g.vertexBuffer, g.indexBuffer, nil
}

func (g *geometry) BVH() *raycast.BVH {
	if g.bvh == nil {
		if g.topology != gpu.TopologyTriangleList {
			g.bvh = raycast.BuildBVH(nil, nil)
		} else {
			g.bvh = raycast.BuildBVH(g.Positions(), g.indices)
		}
	}
	return g.bvh
}

func (g *geometry) Release() {
	if g.vertexBuffer != nil {
		g.vertexBuffer.Release()
		g.vertexBuffer = nil
	}
	if g.indexBuffer != nil {
		g.indexBuffer.Release()
		g.indexBuffer = nil
	}
	g.device = nil
	g.buffersDirty = true
}

// changed invalidates every derived value and notifies the delegate.
func (g *geometry) changed() {
	g.boundsDirty = true
	g.buffersDirty = true
	g.bvh = nil
	g.notify()
}

func (g *geometry) notify() {
	if g.delegate != nil {
		g.delegate.GeometryUpdated(g)
	}
}

func sequence(first, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(first + i)
	}
	return out
}
