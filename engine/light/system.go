package light

import (
	"fmt"

	"github.com/Carmen-Shannon/prism/engine/buffer"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// LightsName is the variable name lit materials see the light block under.
const LightsName = "lights"

// System collects the lights of a scene and writes them into a uniform ring once per
// frame. Materials read the block through the System's material.Binding.
type System struct {
	lights    []*Light
	uniforms  LightUniforms
	ctx       *gpu.Context
	buffer    buffer.UniformBuffer
	frame     uint64
	updated   bool
	truncated bool
}

var _ material.Binding = &System{}

// NewSystem creates an empty light system with a dim white ambient term.
//
// Parameters:
//   - options: functional options to configure the system
//
// Returns:
//   - *System: the new system
func NewSystem(options ...SystemBuilderOption) *System {
	s := &System{}
	s.uniforms.Ambient = mgl32.Vec3{0.03, 0.03, 0.03}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *System) Lights() []*Light             { return s.lights }
func (s *System) Ambient() mgl32.Vec3          { return s.uniforms.Ambient }
func (s *System) SetAmbient(a mgl32.Vec3)      { s.uniforms.Ambient = a }
func (s *System) Uniforms() LightUniforms      { return s.uniforms }
func (s *System) Buffer() buffer.UniformBuffer { return s.buffer }

// Add registers a light. Adding the same light twice is a no-op.
func (s *System) Add(l *Light) {
	for _, existing := range s.lights {
		if existing == l {
			return
		}
	}
	s.lights = append(s.lights, l)
}

// Remove unregisters a light and reports whether it was registered.
func (s *System) Remove(l *Light) bool {
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return true
		}
	}
	return false
}

// Gather replaces the registered lights with every Light found under root, in traversal
// order.
//
// Parameters:
//   - root: the subtree to search
//
// Returns:
//   - int: the number of lights found
func (s *System) Gather(root object.Node) int {
	s.lights = s.lights[:0]
	root.Base().Traverse(func(n object.Node) bool {
		if l, ok := n.(*Light); ok {
			s.lights = append(s.lights, l)
		}
		return true
	})
	return len(s.lights)
}

// Setup allocates the uniform ring on ctx's device. Calling it again with the same
// context is a no-op.
//
// Parameters:
//   - ctx: the GPU context
//
// Returns:
//   - error: the allocation error
func (s *System) Setup(ctx *gpu.Context) error {
	if s.ctx == ctx && s.buffer != nil {
		return nil
	}
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
	s.pack()
	b, err := buffer.NewUniformBuffer(ctx.Device, &s.uniforms,
		buffer.WithUniformLabel("lights"),
		buffer.WithRegions(ctx.MaxFramesInFlight),
	)
	if err != nil {
		return fmt.Errorf("light: allocate uniforms: %w", err)
	}
	s.ctx, s.buffer = ctx, b
	return nil
}

// Update packs the enabled lights and advances the uniform ring. Only the first call
// for a frame number has an effect.
//
// Parameters:
//   - frame: the renderer's frame counter
func (s *System) Update(frame uint64) {
	if s.updated && s.frame == frame {
		return
	}
	s.frame, s.updated = frame, true
	s.pack()
	if s.buffer != nil {
		s.buffer.Update()
	}
}

func (s *System) pack() {
	count := 0
	for _, l := range s.lights {
		if !l.Enabled() || !l.Visible() {
			continue
		}
		if count == MaxLights {
			if !s.truncated {
				log.Warn("too many lights, extra lights ignored", "max", MaxLights, "lights", len(s.lights))
				s.truncated = true
			}
			break
		}
		s.uniforms.Lights[count] = l.GPU()
		count++
	}
	clear(s.uniforms.Lights[count:])
	s.uniforms.Count = uint32(count)
}

func (s *System) Declaration() shader.External {
	return shader.External{Name: LightsName, Type: "Lights", Source: LightsSource, Space: shader.AddressSpaceUniform}
}

func (s *System) Bind(enc gpu.RenderEncoder, group, binding int) {
	if s.buffer == nil {
		return
	}
	s.buffer.Bind(enc, group, binding)
}

func (s *System) Release() {
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
	s.ctx = nil
}

// SystemBuilderOption is a function that configures a System during construction.
type SystemBuilderOption func(*System)

// WithAmbient sets the ambient color added to every lit fragment.
func WithAmbient(a mgl32.Vec3) SystemBuilderOption {
	return func(s *System) {
		s.uniforms.Ambient = a
	}
}

// WithLights registers lights in order.
func WithLights(lights ...*Light) SystemBuilderOption {
	return func(s *System) {
		for _, l := range lights {
			s.Add(l)
		}
	}
}
