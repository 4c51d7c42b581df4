// Package ibl converts an environment image into the textures image based lighting samples:
// an environment cubemap, a diffuse irradiance cubemap, a prefiltered specular cubemap with
// one roughness per mip level and a BRDF lookup table.
//
// Precompute is a one-time setup step. Every pass is committed and waited on before the
// next one is encoded, so it must not run inside the frame loop.
package ibl

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/prism/engine/compute"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("ibl")

// ErrUnsupported is returned when the device, the environment or the requested sizes
// cannot be precomputed.
var ErrUnsupported = errors.New("ibl: unsupported")

// Textures are the results of Precompute.
type Textures struct {
	// Cubemap is the environment as a cube.
	Cubemap gpu.Texture
	// Irradiance is the cosine-weighted diffuse convolution of Cubemap.
	Irradiance gpu.Texture
	// Specular holds the GGX convolution of Cubemap, roughness increasing with the mip level.
	Specular gpu.Texture
	// BRDF maps (n.v, roughness) to the scale and bias applied to F0.
	BRDF gpu.Texture

	ownsCubemap bool
}

// Release destroys the textures Precompute created. A cube environment passed to
// Precompute is returned as Cubemap and stays owned by the caller.
func (t *Textures) Release() {
	if t.ownsCubemap && t.Cubemap != nil {
		t.Cubemap.Release()
	}
	for _, tex := range []gpu.Texture{t.Irradiance, t.Specular, t.BRDF} {
		if tex != nil {
			tex.Release()
		}
	}
	*t = Textures{}
}

// Precompute runs the IBL passes synchronously on ctx.
//
// Parameters:
//   - ctx: the GPU context to run on
//   - environment: an equirectangular 2D texture or a cube texture, sampled with a linear filter
//   - opts: a variadic list of IBLBuilderOption functions
//
// Returns:
//   - Textures: the precomputed textures, owned by the caller
//   - error: ErrUnsupported for an invalid input, or the kernel setup error
func Precompute(ctx *gpu.Context, environment gpu.Texture, opts ...IBLBuilderOption) (Textures, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := validate(ctx, environment, o); err != nil {
		return Textures{}, err
	}

	sampler, err := ctx.Device.NewSampler(gpu.SamplerDescriptor{
		Label:     "ibl",
		MagFilter: gpu.FilterLinear,
		MinFilter: gpu.FilterLinear,
		MipFilter: gpu.FilterLinear,
		AddressU:  gpu.AddressRepeat,
		AddressV:  gpu.AddressClampToEdge,
		AddressW:  gpu.AddressClampToEdge,
	})
	if err != nil {
		return Textures{}, fmt.Errorf("ibl: sampler: %w", err)
	}
	defer sampler.Release()

	p := &precompute{
		ctx:      ctx,
		sampler:  sampler,
		resolver: shader.NewFileResolver(shader.WithFS(library())),
	}
	var out Textures
	fail := func(err error) (Textures, error) {
		out.Release()
		return Textures{}, err
	}

	if environment.Descriptor().Type == gpu.TextureCube {
		out.Cubemap = environment
	} else {
		out.ownsCubemap = true
		out.Cubemap, err = p.run(step{
			name:   "Cubemap",
			source: cubemapSource,
			desc:   cube("cubemap", o.cubemapSize, 1, o.format),
			input:  environment,
		})
		if err != nil {
			return fail(err)
		}
	}

	out.Irradiance, err = p.run(step{
		name:   "Irradiance",
		source: irradianceSource,
		desc:   cube("irradiance", o.irradianceSize, 1, o.format),
		input:  out.Cubemap,
		configure: func(s *compute.TextureComputeSystem, _ int) error {
			return s.Set("sampleDelta", o.sampleDelta)
		},
	})
	if err != nil {
		return fail(err)
	}

	out.Specular, err = p.run(step{
		name:   "Specular",
		source: specularSource,
		desc:   cube("specular", o.specularSize, o.specularLevels, o.format),
		input:  out.Cubemap,
		configure: func(s *compute.TextureComputeSystem, level int) error {
			roughness := float32(0)
			if o.specularLevels > 1 {
				roughness = float32(level) / float32(o.specularLevels-1)
			}
			if err := s.Set("roughness", roughness); err != nil {
				return err
			}
			return s.Set("samples", int32(o.samples))
		},
	})
	if err != nil {
		return fail(err)
	}

	out.BRDF, err = p.run(step{
		name:   "Brdf",
		source: brdfSource,
		desc: gpu.TextureDescriptor{
			Label:  "brdf",
			Type:   gpu.Texture2D,
			Format: gpu.FormatRG32Float,
			Width:  o.brdfSize,
			Height: o.brdfSize,
		},
		configure: func(s *compute.TextureComputeSystem, _ int) error {
			return s.Set("samples", int32(o.samples))
		},
	})
	if err != nil {
		return fail(err)
	}

	log.Info("environment precomputed",
		"cubemap", out.Cubemap.Descriptor().Width,
		"irradiance", o.irradianceSize,
		"specular", o.specularSize,
		"levels", o.specularLevels,
	)
	return out, nil
}

func validate(ctx *gpu.Context, environment gpu.Texture, o *options) error {
	if ctx == nil || ctx.Device == nil {
		return fmt.Errorf("%w: no device", ErrUnsupported)
	}
	if environment == nil {
		return fmt.Errorf("%w: no environment texture", ErrUnsupported)
	}
	switch t := environment.Descriptor().Type; t {
	case gpu.Texture2D, gpu.TextureCube:
	default:
		return fmt.Errorf("%w: environment must be an equirectangular 2D texture or a cube, got %v", ErrUnsupported, t)
	}
	if o.format.WGSLStorageFormat() == "" {
		return fmt.Errorf("%w: format %v has no storage texel format", ErrUnsupported, o.format)
	}
	if o.cubemapSize <= 0 || o.irradianceSize <= 0 || o.specularSize <= 0 || o.brdfSize <= 0 {
		return fmt.Errorf("%w: texture sizes must be positive", ErrUnsupported)
	}
	if o.specularLevels < 1 || o.specularSize>>(o.specularLevels-1) < 1 {
		return fmt.Errorf("%w: %d specular levels do not fit a %d texel face", ErrUnsupported, o.specularLevels, o.specularSize)
	}
	return nil
}

func cube(label string, size, levels int, format gpu.TextureFormat) gpu.TextureDescriptor {
	return gpu.TextureDescriptor{
		Label:     label,
		Type:      gpu.TextureCube,
		Format:    format,
		Width:     size,
		Height:    size,
		Depth:     6,
		MipLevels: levels,
	}
}

// step is one kernel run over every mip level of a single output texture.
type step struct {
	name   string
	source string
	desc   gpu.TextureDescriptor
	// input is bound with its sampler in InputGroup, when set.
	input gpu.Texture
	// configure sets the uniforms before the dispatch over level.
	configure func(s *compute.TextureComputeSystem, level int) error
}

type precompute struct {
	ctx      *gpu.Context
	sampler  gpu.Sampler
	resolver shader.Resolver
}

// run dispatches s over every mip level, waiting for each one, and detaches the output.
func (p *precompute) run(s step) (gpu.Texture, error) {
	sys := compute.NewTextureComputeSystem(s.name, []gpu.TextureDescriptor{s.desc},
		compute.WithSource(s.source),
		compute.WithResolver(p.resolver),
		compute.WithPreCompute(func(enc gpu.ComputeEncoder, _ int) {
			if s.input != nil {
				enc.SetTexture(InputGroup, 0, s.input, gpu.AllMipLevels)
				enc.SetSampler(InputGroup, 1, p.sampler)
			}
		}),
	)
	defer sys.Release()
	if err := sys.Setup(p.ctx); err != nil {
		return nil, fmt.Errorf("ibl: %s: %w", s.name, err)
	}

	for level := range max(s.desc.MipLevels, 1) {
		if s.configure != nil {
			if err := s.configure(sys, level); err != nil {
				return nil, fmt.Errorf("ibl: %s: %w", s.name, err)
			}
		}
		cmd := p.ctx.Device.NewCommandBuffer(fmt.Sprintf("ibl %s %d", s.name, level))
		if !sys.DispatchLevel(cmd, level) {
			return nil, fmt.Errorf("ibl: %s: level %d was not dispatched", s.name, level)
		}
		cmd.Commit()
		cmd.WaitUntilCompleted()
	}
	return sys.Detach()[0], nil
}
