package camera

import (
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// OrbitController places a node on a sphere around a target point using spherical
// coordinates (radius, azimuth, elevation) and keeps it looking at the target. Planar
// pans move the target and the node together.
type OrbitController struct {
	target mgl32.Vec3

	radius    float32
	azimuth   float32 // around +Y, 0 = +Z
	elevation float32 // above the XZ plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
	panSpeed   float32
}

// NewOrbitController creates a controller 5 units from the origin, 30 degrees above the
// horizon.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - *OrbitController: the new controller
func NewOrbitController(options ...OrbitControllerOption) *OrbitController {
	oc := &OrbitController{
		radius:       5,
		elevation:    math32.Pi / 6,
		minRadius:    0.1,
		maxRadius:    1000,
		minElevation: -math32.Pi/2 + 0.05,
		maxElevation: math32.Pi/2 - 0.05,
		orbitSpeed:   0.03,
		zoomSpeed:    0.5,
		panSpeed:     1,
	}
	for _, option := range options {
		option(oc)
	}
	oc.clamp()
	return oc
}

func (oc *OrbitController) Target() mgl32.Vec3     { return oc.target }
func (oc *OrbitController) Radius() float32        { return oc.radius }
func (oc *OrbitController) Azimuth() float32       { return oc.azimuth }
func (oc *OrbitController) Elevation() float32     { return oc.elevation }
func (oc *OrbitController) SetTarget(t mgl32.Vec3) { oc.target = t }

// SetRadius sets the distance to the target, clamped to the radius bounds.
func (oc *OrbitController) SetRadius(r float32) {
	oc.radius = r
	oc.clamp()
}

// Frame targets the center of a bounding sphere and moves back until the sphere fits a
// vertical field of view, with a small margin.
//
// Parameters:
//   - center: the sphere center
//   - radius: the sphere radius
//   - fov: the vertical field of view in radians
func (oc *OrbitController) Frame(center mgl32.Vec3, radius, fov float32) {
	oc.target = center
	oc.SetRadius(1.1 * radius / math32.Sin(fov/2))
}

// Position returns the point on the orbit sphere the node is placed at.
func (oc *OrbitController) Position() mgl32.Vec3 {
	sinE, cosE := math32.Sincos(oc.elevation)
	sinA, cosA := math32.Sincos(oc.azimuth)
	return oc.target.Add(mgl32.Vec3{cosE * sinA, sinE, cosE * cosA}.Mul(oc.radius))
}

// Orbit turns around the target by whole speed steps; positive dAzimuth moves right,
// positive dElevation moves up. Elevation is clamped to its bounds.
func (oc *OrbitController) Orbit(dAzimuth, dElevation float32) {
	oc.azimuth += dAzimuth * oc.orbitSpeed
	oc.elevation += dElevation * oc.orbitSpeed
	oc.clamp()
}

// Zoom moves towards the target for positive delta, clamped to the radius bounds.
func (oc *OrbitController) Zoom(delta float32) {
	oc.radius -= delta * oc.zoomSpeed
	oc.clamp()
}

// Pan translates the target along the camera's right and up axes.
func (oc *OrbitController) Pan(right, up float32) {
	forward := oc.target.Sub(oc.Position()).Normalize()
	r := forward.Cross(mgl32.Vec3{0, 1, 0})
	if r.Len() < 1e-6 {
		r = mgl32.Vec3{1, 0, 0}
	}
	r = r.Normalize()
	u := r.Cross(forward)
	oc.target = oc.target.Add(r.Mul(right * oc.panSpeed)).Add(u.Mul(up * oc.panSpeed))
}

// Apply moves n to the orbit position and turns it towards the target.
//
// Parameters:
//   - n: the node to drive, normally a camera
func (oc *OrbitController) Apply(n object.Node) {
	o := n.Base()
	o.SetPosition(oc.Position())
	o.LookAt(oc.target, mgl32.Vec3{0, 1, 0})
}

func (oc *OrbitController) clamp() {
	oc.radius = min(max(oc.radius, oc.minRadius), oc.maxRadius)
	oc.elevation = min(max(oc.elevation, oc.minElevation), oc.maxElevation)
}
