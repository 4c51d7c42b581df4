package camera

import (
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraBuilderOption configures the transform and projection of a camera during
// construction.
type CameraBuilderOption func(o *object.Object, l *lens)

// WithLabel sets the camera's label.
func WithLabel(label string) CameraBuilderOption {
	return func(o *object.Object, _ *lens) {
		o.SetLabel(label)
	}
}

// WithFov sets the vertical field of view of a perspective camera.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(_ *object.Object, l *lens) {
		l.fov = fov
	}
}

// WithAspect sets the aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(_ *object.Object, l *lens) {
		l.aspect = aspect
	}
}

// WithClip sets the near and far clipping plane distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the clipping planes
func WithClip(near, far float32) CameraBuilderOption {
	return func(_ *object.Object, l *lens) {
		l.near, l.far = near, far
	}
}

// WithHeight sets the view volume height of an orthographic camera.
func WithHeight(height float32) CameraBuilderOption {
	return func(_ *object.Object, l *lens) {
		l.height = height
	}
}

// WithPosition places the camera relative to its parent.
func WithPosition(p mgl32.Vec3) CameraBuilderOption {
	return func(o *object.Object, _ *lens) {
		o.SetPosition(p)
	}
}

// WithLookAt orients the camera towards a world-space target. Apply it after WithPosition.
//
// Parameters:
//   - target: the point to look at
//   - up: the world up direction
//
// Returns:
//   - CameraBuilderOption: a function that orients the camera
func WithLookAt(target, up mgl32.Vec3) CameraBuilderOption {
	return func(o *object.Object, _ *lens) {
		o.LookAt(target, up)
	}
}
