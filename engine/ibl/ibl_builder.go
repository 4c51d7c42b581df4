package ibl

import "github.com/Carmen-Shannon/prism/engine/gpu"

// options holds the sizes and quality settings of a precompute run.
type options struct {
	cubemapSize    int
	irradianceSize int
	specularSize   int
	specularLevels int
	brdfSize       int
	samples        int
	sampleDelta    float32
	format         gpu.TextureFormat
}

func defaultOptions() *options {
	return &options{
		cubemapSize:    512,
		irradianceSize: 32,
		specularSize:   128,
		specularLevels: 5,
		brdfSize:       512,
		samples:        1024,
		sampleDelta:    0.025,
		format:         gpu.FormatRGBA16Float,
	}
}

// IBLBuilderOption is a function that configures a precompute run.
type IBLBuilderOption func(*options)

// WithCubemapSize sets the face size of the environment cubemap.
func WithCubemapSize(size int) IBLBuilderOption {
	return func(o *options) {
		o.cubemapSize = size
	}
}

// WithIrradianceSize sets the face size of the diffuse irradiance cubemap.
func WithIrradianceSize(size int) IBLBuilderOption {
	return func(o *options) {
		o.irradianceSize = size
	}
}

// WithSpecular sets the prefiltered specular cubemap's base face size and its number of
// mip levels. Level i is convolved with roughness i / (levels - 1).
//
// Parameters:
//   - size: the face size of mip level 0
//   - levels: the number of roughness levels, at least 1
//
// Returns:
//   - IBLBuilderOption: a function that applies the specular option
func WithSpecular(size, levels int) IBLBuilderOption {
	return func(o *options) {
		o.specularSize, o.specularLevels = size, levels
	}
}

// WithBRDFSize sets the size of the square BRDF lookup table.
func WithBRDFSize(size int) IBLBuilderOption {
	return func(o *options) {
		o.brdfSize = size
	}
}

// WithSamples sets the importance samples taken per texel by the specular and BRDF steps.
func WithSamples(n int) IBLBuilderOption {
	return func(o *options) {
		o.samples = n
	}
}

// WithSampleDelta sets the angular step, in radians, of the irradiance integration.
func WithSampleDelta(delta float32) IBLBuilderOption {
	return func(o *options) {
		o.sampleDelta = delta
	}
}

// WithFormat sets the format of the cubemaps. It must have a storage texel format.
func WithFormat(f gpu.TextureFormat) IBLBuilderOption {
	return func(o *options) {
		o.format = f
	}
}
