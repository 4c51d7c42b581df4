package camera

import "github.com/go-gl/mathgl/mgl32"

// OrbitControllerOption is a functional option for configuring an OrbitController.
type OrbitControllerOption func(*OrbitController)

// WithRadius sets the initial orbit radius (distance from target).
//
// Parameters:
//   - radius: distance from the orbit target
//
// Returns:
//   - OrbitControllerOption: functional option to set the radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle around the Y axis.
//
// Parameters:
//   - azimuth: horizontal angle in radians (0 = +Z axis)
//
// Returns:
//   - OrbitControllerOption: functional option to set the azimuth
func WithAzimuth(azimuth float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle from the horizontal plane.
func WithElevation(elevation float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.elevation = elevation
	}
}

// WithTarget sets the look-at/pivot point.
func WithTarget(target mgl32.Vec3) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.target = target
	}
}

// WithRadiusBounds sets the zoom limits.
//
// Parameters:
//   - lo: minimum distance from the target
//   - hi: maximum distance from the target
//
// Returns:
//   - OrbitControllerOption: functional option to set the radius bounds
func WithRadiusBounds(lo, hi float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.minRadius, oc.maxRadius = lo, hi
	}
}

// WithElevationBounds sets the tilt limits in radians.
func WithElevationBounds(lo, hi float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.minElevation, oc.maxElevation = lo, hi
	}
}

// WithOrbitSpeed sets the angle of one orbit step in radians.
func WithOrbitSpeed(speed float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.orbitSpeed = speed
	}
}

// WithZoomSpeed sets the distance of one zoom step.
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the distance of one pan step.
func WithPanSpeed(speed float32) OrbitControllerOption {
	return func(oc *OrbitController) {
		oc.panSpeed = speed
	}
}
