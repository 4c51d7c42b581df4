// Package light places light sources in the transform graph and packs them into the
// uniform block lit materials bind as an external.
package light

import (
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/internal/logx"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var log = logx.Logger("light")

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon. Affects all fragments
	// uniformly with no distance attenuation.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Attenuates with distance up to a configurable range.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// Attenuates with both distance and angle from the cone axis, controlled by inner and
	// outer cone angles.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// Light is a node of the transform graph emitting light. Its position is the node's
// world position and its direction is the node's world -Z axis, so lights follow the
// objects they are parented to.
type Light struct {
	*object.Object

	kind         LightType
	color        mgl32.Vec3
	intensity    float32
	lightRange   float32
	innerCone    float32 // cos(angle)
	outerCone    float32 // cos(angle)
	enabled      bool
	castsShadows bool
}

var _ object.Node = &Light{}

// NewLight creates a light of the given kind pointing down -Z from the origin.
//
// Parameters:
//   - kind: the light type
//   - options: functional options to configure the light
//
// Returns:
//   - *Light: the new light
func NewLight(kind LightType, options ...LightBuilderOption) *Light {
	l := &Light{
		Object:     object.NewObject(object.WithLabel(kind.String() + " light")),
		kind:       kind,
		color:      mgl32.Vec3{1, 1, 1},
		intensity:  1,
		lightRange: 10,
		innerCone:  math32.Cos(mgl32.DegToRad(25)),
		outerCone:  math32.Cos(mgl32.DegToRad(35)),
		enabled:    true,
	}
	l.SetOwner(l)
	for _, option := range options {
		option(l)
	}
	return l
}

// NewDirectional creates a directional light.
func NewDirectional(options ...LightBuilderOption) *Light {
	return NewLight(LightTypeDirectional, options...)
}

// NewPoint creates a point light.
func NewPoint(options ...LightBuilderOption) *Light {
	return NewLight(LightTypePoint, options...)
}

// NewSpot creates a spot light.
func NewSpot(options ...LightBuilderOption) *Light {
	return NewLight(LightTypeSpot, options...)
}

func (l *Light) Type() LightType           { return l.kind }
func (l *Light) Color() mgl32.Vec3         { return l.color }
func (l *Light) SetColor(c mgl32.Vec3)     { l.color = c }
func (l *Light) Intensity() float32        { return l.intensity }
func (l *Light) SetIntensity(i float32)    { l.intensity = max(i, 0) }
func (l *Light) Range() float32            { return l.lightRange }
func (l *Light) SetRange(r float32)        { l.lightRange = max(r, 0) }
func (l *Light) Enabled() bool             { return l.enabled }
func (l *Light) SetEnabled(enabled bool)   { l.enabled = enabled }
func (l *Light) CastsShadows() bool        { return l.castsShadows }
func (l *Light) SetCastsShadows(cast bool) { l.castsShadows = cast }

// ConeAngles returns the spot cone half-angles in degrees.
func (l *Light) ConeAngles() (inner, outer float32) {
	return mgl32.RadToDeg(math32.Acos(l.innerCone)), mgl32.RadToDeg(math32.Acos(l.outerCone))
}

// SetConeAngles sets the spot cone half-angles in degrees. The outer angle is clamped so
// that it is never narrower than the inner one.
func (l *Light) SetConeAngles(inner, outer float32) {
	outer = max(outer, inner)
	l.innerCone = math32.Cos(mgl32.DegToRad(inner))
	l.outerCone = math32.Cos(mgl32.DegToRad(outer))
}

// Direction returns the normalized world-space direction the light points in.
func (l *Light) Direction() mgl32.Vec3 {
	d := l.WorldMatrix().Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
	if d.Len() < 1e-6 {
		return mgl32.Vec3{0, 0, -1}
	}
	return d.Normalize()
}

// SetDirection orients the light so that it points along the world-space direction d.
func (l *Light) SetDirection(d mgl32.Vec3) {
	if d.Len() < 1e-6 {
		return
	}
	l.LookAt(l.WorldPosition().Add(d), mgl32.Vec3{0, 1, 0})
}

// GPU packs the light's current world state.
//
// Returns:
//   - GPULight: the 64-byte block the Lights array holds
func (l *Light) GPU() GPULight {
	g := GPULight{
		Position:  l.WorldPosition(),
		Kind:      uint32(l.kind),
		Color:     l.color,
		Intensity: l.intensity,
		Direction: l.Direction(),
		Range:     l.lightRange,
		InnerCone: l.innerCone,
		OuterCone: l.outerCone,
	}
	if l.castsShadows {
		g.CastsShadows = 1
	}
	if l.enabled {
		g.Enabled = 1
	}
	return g
}
