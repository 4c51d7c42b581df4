package light

import (
	"fmt"

	"github.com/Carmen-Shannon/prism/engine/buffer"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowMapResolution is the default width and height in texels of the shadow
// depth texture.
const ShadowMapResolution = 2048

// DefaultShadowHalfExtent is the default orthographic half-extent (in world units)
// used for the directional light shadow frustum. Controls how much of the scene
// around the focus point is captured in the shadow map.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultShadowNear is the default near plane for the directional light's
// orthographic shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane for the directional light's
// orthographic shadow projection.
const DefaultShadowFar float32 = 200.0

// DefaultShadowBias is the constant depth bias applied to shadow comparisons
// to reduce shadow acne artifacts.
const DefaultShadowBias float32 = 0.001

// DefaultShadowNormalBiasScale is the multiplier applied to the shadow map
// texel world-size to compute the normal-offset bias. Higher values push
// the shadow sample point further along the surface normal at the cost of slight
// shadow detachment from contact points.
const DefaultShadowNormalBiasScale float32 = 3.0

// ShadowName is the variable name materials see a shadow block under.
const ShadowName = "shadow"

// Shadow renders a directional light's depth from an orthographic camera fitted around a
// focus point. The renderer draws shadow-casting meshes into DepthTexture through
// Camera; materials sample the map with the matrices of the ShadowData binding.
type Shadow struct {
	light      *Light
	resolution int
	halfExtent float32
	near       float32
	far        float32
	bias       float32
	normalBias float32

	camera  *camera.OrthographicCamera
	data    ShadowData
	ctx     *gpu.Context
	depth   gpu.Texture
	buffer  buffer.UniformBuffer
	frame   uint64
	updated bool
}

var _ material.Binding = &Shadow{}

// NewShadow creates a shadow caster for a directional light.
//
// Parameters:
//   - l: the light, which must be directional
//   - options: functional options to configure the shadow
//
// Returns:
//   - *Shadow: the new shadow caster
func NewShadow(l *Light, options ...ShadowBuilderOption) *Shadow {
	if l == nil || l.Type() != LightTypeDirectional {
		panic("light: shadows require a directional light")
	}
	s := &Shadow{
		light:      l,
		resolution: ShadowMapResolution,
		halfExtent: DefaultShadowHalfExtent,
		near:       DefaultShadowNear,
		far:        DefaultShadowFar,
		bias:       DefaultShadowBias,
		normalBias: DefaultShadowNormalBiasScale,
	}
	for _, option := range options {
		option(s)
	}
	s.camera = camera.NewOrthographicCamera(
		camera.WithLabel("shadow"),
		camera.WithHeight(2*s.halfExtent),
		camera.WithAspect(1),
		camera.WithClip(s.near, s.far),
	)
	l.SetCastsShadows(true)
	return s
}

func (s *Shadow) Light() *Light                { return s.light }
func (s *Shadow) Camera() camera.Camera        { return s.camera }
func (s *Shadow) Data() ShadowData             { return s.data }
func (s *Shadow) DepthTexture() gpu.Texture    { return s.depth }
func (s *Shadow) Resolution() int              { return s.resolution }
func (s *Shadow) Buffer() buffer.UniformBuffer { return s.buffer }

// Setup allocates the depth texture and the uniform ring on ctx's device.
//
// Parameters:
//   - ctx: the GPU context
//
// Returns:
//   - error: the allocation error
func (s *Shadow) Setup(ctx *gpu.Context) error {
	if s.ctx == ctx && s.depth != nil {
		return nil
	}
	s.Release()
	depth, err := ctx.Device.NewTexture(gpu.TextureDescriptor{
		Label:       "shadow map",
		Type:        gpu.Texture2D,
		Format:      gpu.FormatDepth32Float,
		Width:       s.resolution,
		Height:      s.resolution,
		MipLevels:   1,
		SampleCount: 1,
		Usage:       gpu.TextureUsageRenderAttachment | gpu.TextureUsageBinding,
	})
	if err != nil {
		return fmt.Errorf("light: allocate shadow map: %w", err)
	}
	b, err := buffer.NewUniformBuffer(ctx.Device, &s.data,
		buffer.WithUniformLabel("shadow"),
		buffer.WithRegions(ctx.MaxFramesInFlight),
	)
	if err != nil {
		depth.Release()
		return fmt.Errorf("light: allocate shadow uniforms: %w", err)
	}
	s.ctx, s.depth, s.buffer = ctx, depth, b
	return nil
}

// Update fits the shadow camera around focus, looking along the light direction, and
// writes the shadow block. Only the first call for a frame number has an effect.
//
// Parameters:
//   - focus: the world-space point the shadow map is centered on
//   - frame: the renderer's frame counter
func (s *Shadow) Update(focus mgl32.Vec3, frame uint64) {
	if s.updated && s.frame == frame {
		return
	}
	s.frame, s.updated = frame, true

	dir := s.light.Direction()
	s.camera.SetPosition(focus.Sub(dir.Mul(s.far / 2)))
	s.camera.LookAt(focus, mgl32.Vec3{0, 1, 0})

	texel := 2 * s.halfExtent / float32(s.resolution)
	s.data = ShadowData{
		LightViewProjection: s.camera.ViewProjectionMatrix(),
		TexelSize:           texel,
		Bias:                s.bias,
		NormalBias:          texel * s.normalBias,
		Resolution:          float32(s.resolution),
	}
	if s.buffer != nil {
		s.buffer.Update()
	}
}

// Pass returns the render pass descriptor that clears and writes the shadow map.
func (s *Shadow) Pass() gpu.RenderPassDescriptor {
	return gpu.RenderPassDescriptor{Label: "shadow", Depth: s.depth, ClearDepth: 1}
}

func (s *Shadow) Declaration() shader.External {
	return shader.External{Name: ShadowName, Type: "ShadowData", Source: ShadowSource, Space: shader.AddressSpaceUniform}
}

func (s *Shadow) Bind(enc gpu.RenderEncoder, group, binding int) {
	if s.buffer == nil {
		return
	}
	s.buffer.Bind(enc, group, binding)
}

func (s *Shadow) Release() {
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
	if s.depth != nil {
		s.depth.Release()
		s.depth = nil
	}
	s.ctx = nil
}

// ShadowBuilderOption is a function that configures a Shadow during construction.
type ShadowBuilderOption func(*Shadow)

// WithShadowMapResolution sets the width and height of the depth texture.
func WithShadowMapResolution(resolution int) ShadowBuilderOption {
	return func(s *Shadow) {
		s.resolution = max(resolution, 1)
	}
}

// WithShadowExtent sets the orthographic half-extent and clip planes of the shadow camera.
//
// Parameters:
//   - halfExtent: half the width of the captured square in world units
//   - near: the near plane distance
//   - far: the far plane distance
//
// Returns:
//   - ShadowBuilderOption: a function that applies the extent option to a Shadow
func WithShadowExtent(halfExtent, near, far float32) ShadowBuilderOption {
	return func(s *Shadow) {
		s.halfExtent, s.near, s.far = halfExtent, near, far
	}
}

// WithShadowBias sets the constant depth bias and the normal-offset scale.
func WithShadowBias(bias, normalBiasScale float32) ShadowBuilderOption {
	return func(s *Shadow) {
		s.bias, s.normalBias = bias, normalBiasScale
	}
}
