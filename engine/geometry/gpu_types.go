package geometry

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// VertexInputSource is the canonical WGSL definition of the VertexInput struct.
// Matches the Vertex layout exactly (32 bytes, tightly packed vertex attributes).
//
//go:embed assets/vertex.wgsl
var VertexInputSource string

// Vertex is the interleaved vertex format of every geometry.
// Matches the WGSL VertexInput struct (see VertexInputSource).
// Size: 32 bytes.
type Vertex struct {
	Position [3]float32 // offset  0: @location(0) vec3f
	Normal   [3]float32 // offset 12: @location(1) vec3f
	UV       [2]float32 // offset 24: @location(2) vec2f
}

// VertexStride is the size of one Vertex in bytes.
const VertexStride = int(unsafe.Sizeof(Vertex{}))

// NewVertex builds a vertex from mgl32 vectors.
func NewVertex(position, normal mgl32.Vec3, uv mgl32.Vec2) Vertex {
	return Vertex{Position: position, Normal: normal, UV: uv}
}

// VertexLayout returns the vertex buffer layout pipelines use to read Vertex buffers.
//
// Returns:
//   - gpu.VertexLayout: the layout of buffer slot 0
func VertexLayout() gpu.VertexLayout {
	return gpu.VertexLayout{
		Stride: VertexStride,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFloat32x3, Offset: 0, Location: 0},
			{Format: gpu.VertexFloat32x3, Offset: 12, Location: 1},
			{Format: gpu.VertexFloat32x2, Offset: 24, Location: 2},
		},
	}
}
