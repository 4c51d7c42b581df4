package scene

import (
	"github.com/Carmen-Shannon/prism/engine/light"
	"github.com/Carmen-Shannon/prism/engine/object"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithNodes adds initial nodes to the root of the scene.
//
// Parameters:
//   - nodes: the nodes to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithNodes(nodes ...object.Node) SceneBuilderOption {
	return func(s *scene) {
		for _, n := range nodes {
			s.root.Add(n)
		}
	}
}

// WithCullingDisabled draws every visible mesh without testing it against the camera frustum.
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCullingDisabled() SceneBuilderOption {
	return func(s *scene) {
		s.cullingDisabled = true
	}
}

// WithLights replaces the scene's light system.
func WithLights(sys *light.System) SceneBuilderOption {
	return func(s *scene) {
		if sys != nil {
			s.lights = sys
		}
	}
}

// WithShadow enables a shadow map.
//
// Parameters:
//   - shadow: the shadow map, set up with the scene
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithShadow(shadow *light.Shadow) SceneBuilderOption {
	return func(s *scene) {
		s.shadow = shadow
	}
}

// WithCompute registers compute systems run before the draws of every frame.
func WithCompute(systems ...ComputeSystem) SceneBuilderOption {
	return func(s *scene) {
		for _, c := range systems {
			if c != nil {
				s.computes = append(s.computes, c)
			}
		}
	}
}
