package light

import (
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light during construction.
type LightBuilderOption func(*Light)

// WithLabel sets the light's node label.
func WithLabel(label string) LightBuilderOption {
	return func(l *Light) {
		l.SetLabel(label)
	}
}

// WithPosition is an option builder that sets the position of the light relative to its
// parent. Meaningless for directional lights.
//
// Parameters:
//   - p: the position
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a Light
func WithPosition(p mgl32.Vec3) LightBuilderOption {
	return func(l *Light) {
		l.SetPosition(p)
	}
}

// WithDirection is an option builder that orients the light along a world-space direction.
// Options apply in order, so WithDirection should follow WithPosition.
//
// Parameters:
//   - d: the direction, normalized before use
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a Light
func WithDirection(d mgl32.Vec3) LightBuilderOption {
	return func(l *Light) {
		l.SetDirection(d)
	}
}

// WithTransform applies object options to the light's node.
func WithTransform(options ...object.ObjectBuilderOption) LightBuilderOption {
	return func(l *Light) {
		for _, option := range options {
			option(l.Object)
		}
	}
}

// WithColor is an option builder that sets the linear RGB color of the light.
func WithColor(c mgl32.Vec3) LightBuilderOption {
	return func(l *Light) {
		l.color = c
	}
}

// WithIntensity is an option builder that sets the brightness multiplier of the light.
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *Light) {
		l.SetIntensity(intensity)
	}
}

// WithRange is an option builder that sets the attenuation distance of point and spot lights.
func WithRange(r float32) LightBuilderOption {
	return func(l *Light) {
		l.SetRange(r)
	}
}

// WithConeAngles is an option builder that sets the spot cone half-angles.
//
// Parameters:
//   - inner: the full-intensity half-angle in degrees
//   - outer: the half-angle in degrees where the light falls to zero
//
// Returns:
//   - LightBuilderOption: a function that applies the cone option to a Light
func WithConeAngles(inner, outer float32) LightBuilderOption {
	return func(l *Light) {
		l.SetConeAngles(inner, outer)
	}
}

// WithEnabled is an option builder that sets whether the light contributes.
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *Light) {
		l.enabled = enabled
	}
}

// WithCastsShadows is an option builder that flags the light as a shadow caster.
func WithCastsShadows(cast bool) LightBuilderOption {
	return func(l *Light) {
		l.castsShadows = cast
	}
}
