// Package camera provides perspective and orthographic cameras that live in the
// transform graph.
package camera

import (
	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/engine/raycast"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera defines what meshes and renderers read from a camera.
// The view matrix is the inverse of the camera's world matrix; the camera looks down
// its local -Z axis.
type Camera interface {
	object.Node

	// ViewMatrix returns the world-to-view transform.
	//
	// Returns:
	//   - mgl32.Mat4: the inverse of the camera's world matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the view-to-clip transform with clip depth in [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns ProjectionMatrix() * ViewMatrix().
	//
	// Returns:
	//   - mgl32.Mat4: the combined matrix
	ViewProjectionMatrix() mgl32.Mat4

	// Frustum returns the world-space view volume used for culling.
	//
	// Returns:
	//   - common.Frustum: the six planes of the view volume
	Frustum() common.Frustum

	// Ray returns the world-space picking ray through a point of the screen.
	//
	// Parameters:
	//   - ndc: the point in normalized device coordinates, both axes in [-1, 1]
	//
	// Returns:
	//   - raycast.Ray: a ray from the near plane through the point
	Ray(ndc mgl32.Vec2) raycast.Ray

	// SetAspect sets the viewport aspect ratio (width / height).
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32
}

// lens holds the projection settings shared by both camera kinds.
type lens struct {
	aspect float32
	near   float32
	far    float32
	// fov is the vertical field of view in radians, used by perspective cameras.
	fov float32
	// height is the vertical extent of the view volume, used by orthographic cameras.
	height float32
}

// view caches the view matrix against the world version it was derived from.
type view struct {
	obj     *object.Object
	matrix  mgl32.Mat4
	version uint64
	valid   bool
}

func (v *view) get() mgl32.Mat4 {
	version := v.obj.WorldVersion()
	if !v.valid || v.version != version {
		v.matrix = v.obj.WorldMatrix().Inv()
		v.version = version
		v.valid = true
	}
	return v.matrix
}

// PerspectiveCamera projects with a vertical field of view.
type PerspectiveCamera struct {
	*object.Object
	lens lens
	view view
}

var _ Camera = &PerspectiveCamera{}

// NewPerspectiveCamera creates a perspective camera at the origin looking down -Z with a
// 45 degree field of view, aspect 1 and clip planes at 0.1 and 100.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - *PerspectiveCamera: the new camera
func NewPerspectiveCamera(options ...CameraBuilderOption) *PerspectiveCamera {
	c := &PerspectiveCamera{
		Object: object.NewObject(object.WithLabel("camera")),
		lens:   defaultLens(),
	}
	c.view.obj = c.Object
	c.SetOwner(c)
	for _, option := range options {
		option(c.Object, &c.lens)
	}
	return c
}

func (c *PerspectiveCamera) Fov() float32             { return c.lens.fov }
func (c *PerspectiveCamera) SetFov(fov float32)       { c.lens.fov = fov }
func (c *PerspectiveCamera) Aspect() float32          { return c.lens.aspect }
func (c *PerspectiveCamera) SetAspect(aspect float32) { c.lens.aspect = aspect }
func (c *PerspectiveCamera) Near() float32            { return c.lens.near }
func (c *PerspectiveCamera) Far() float32             { return c.lens.far }
func (c *PerspectiveCamera) SetClip(near, far float32) {
	c.lens.near, c.lens.far = near, far
}

func (c *PerspectiveCamera) ViewMatrix() mgl32.Mat4 { return c.view.get() }

func (c *PerspectiveCamera) ProjectionMatrix() mgl32.Mat4 {
	return common.Perspective(c.lens.fov, c.lens.aspect, c.lens.near, c.lens.far)
}

func (c *PerspectiveCamera) ViewProjectionMatrix() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

func (c *PerspectiveCamera) Frustum() common.Frustum {
	return common.ExtractFrustum(c.ViewProjectionMatrix())
}

func (c *PerspectiveCamera) Ray(ndc mgl32.Vec2) raycast.Ray {
	return raycast.FromCamera(c.ViewProjectionMatrix().Inv(), ndc).Ray
}

// OrthographicCamera projects along parallel lines; the view volume is Height tall and
// Height*Aspect wide, centered on the camera axis.
type OrthographicCamera struct {
	*object.Object
	lens lens
	view view
}

var _ Camera = &OrthographicCamera{}

// NewOrthographicCamera creates an orthographic camera with a view volume 2 units tall.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - *OrthographicCamera: the new camera
func NewOrthographicCamera(options ...CameraBuilderOption) *OrthographicCamera {
	c := &OrthographicCamera{
		Object: object.NewObject(object.WithLabel("camera")),
		lens:   defaultLens(),
	}
	c.view.obj = c.Object
	c.SetOwner(c)
	for _, option := range options {
		option(c.Object, &c.lens)
	}
	return c
}

func (c *OrthographicCamera) Height() float32          { return c.lens.height }
func (c *OrthographicCamera) SetHeight(h float32)      { c.lens.height = h }
func (c *OrthographicCamera) Aspect() float32          { return c.lens.aspect }
func (c *OrthographicCamera) SetAspect(aspect float32) { c.lens.aspect = aspect }
func (c *OrthographicCamera) Near() float32            { return c.lens.near }
func (c *OrthographicCamera) Far() float32             { return c.lens.far }
func (c *OrthographicCamera) SetClip(near, far float32) {
	c.lens.near, c.lens.far = near, far
}

func (c *OrthographicCamera) ViewMatrix() mgl32.Mat4 { return c.view.get() }

func (c *OrthographicCamera) ProjectionMatrix() mgl32.Mat4 {
	h := c.lens.height / 2
	w := h * c.lens.aspect
	return common.Orthographic(-w, w, -h, h, c.lens.near, c.lens.far)
}

func (c *OrthographicCamera) ViewProjectionMatrix() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

func (c *OrthographicCamera) Frustum() common.Frustum {
	return common.ExtractFrustum(c.ViewProjectionMatrix())
}

func (c *OrthographicCamera) Ray(ndc mgl32.Vec2) raycast.Ray {
	return raycast.FromCamera(c.ViewProjectionMatrix().Inv(), ndc).Ray
}

func defaultLens() lens {
	return lens{
		aspect: 1,
		near:   0.1,
		far:    100,
		fov:    mgl32.DegToRad(45),
		height: 2,
	}
}
