package mesh

import (
	"unsafe"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// VertexUniformsSource is the WGSL definition of the VertexUniforms struct bound at
// group 0, binding 0 of every mesh draw.
var VertexUniformsSource = shader.VertexUniformsSource

// VertexUniforms is the per-mesh block of transforms the shared vertex function reads.
// Matches the WGSL VertexUniforms struct exactly (see VertexUniformsSource).
// Size: 608 bytes (nine column-major matrices, two vec3 padded to 16 bytes).
type VertexUniforms struct {
	Model                    mgl32.Mat4 // offset   0
	View                     mgl32.Mat4 // offset  64
	ModelView                mgl32.Mat4 // offset 128
	Projection               mgl32.Mat4 // offset 192
	ViewProjection           mgl32.Mat4 // offset 256
	ModelViewProjection      mgl32.Mat4 // offset 320
	InverseModelView         mgl32.Mat4 // offset 384
	InverseView              mgl32.Mat4 // offset 448
	NormalMatrix             mgl32.Mat4 // offset 512: inverse transpose of Model
	WorldCameraPosition      mgl32.Vec3 // offset 576
	_                        float32
	WorldCameraViewDirection mgl32.Vec3 // offset 592
	_                        float32
}

// Stride returns the size of the struct in bytes.
func (u *VertexUniforms) Stride() int {
	return int(unsafe.Sizeof(*u))
}

// Pack writes the struct into dst, which holds at least Stride bytes.
func (u *VertexUniforms) Pack(dst []byte) {
	copy(dst, common.StructToBytes(u))
}

// Compute fills the block for a model transform seen through cam.
//
// Parameters:
//   - model: the mesh's world matrix
//   - cam: the camera the frame is rendered from
func (u *VertexUniforms) Compute(model mgl32.Mat4, cam camera.Camera) {
	view := cam.ViewMatrix()
	projection := cam.ProjectionMatrix()
	world := cam.Base().WorldMatrix()

	u.Model = model
	u.View = view
	u.ModelView = view.Mul4(model)
	u.Projection = projection
	u.ViewProjection = projection.Mul4(view)
	u.ModelViewProjection = u.ViewProjection.Mul4(model)
	u.InverseModelView = u.ModelView.Inv()
	u.InverseView = view.Inv()
	u.NormalMatrix = common.NormalMatrix(model)
	u.WorldCameraPosition = world.Col(3).Vec3()
	u.WorldCameraViewDirection = world.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3().Normalize()
}
