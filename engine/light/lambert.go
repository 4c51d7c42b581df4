package light

import (
	_ "embed"

	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/lambert.wgsl
var lambertSource string

// LightsSlot is the external slot lit built-ins bind the light system to.
const LightsSlot = 0

// NewLambert creates a diffuse material lit by every light of sys.
//
// Parameters:
//   - sys: the light system bound at LightsSlot
//   - color: the RGBA albedo, stored in the "color" uniform
//   - opts: a variadic list of material.MaterialBuilderOption functions
//
// Returns:
//   - material.Material: the new material
func NewLambert(sys *System, color mgl32.Vec4, opts ...material.MaterialBuilderOption) material.Material {
	m := material.New("Lambert", append([]material.MaterialBuilderOption{material.WithSource(lambertSource)}, opts...)...)
	if err := m.Set("color", color); err != nil {
		log.Error("cannot set color", "material", m.Name(), "err", err)
	}
	m.SetBinding(LightsSlot, sys)
	return m
}
