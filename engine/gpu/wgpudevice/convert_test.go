package wgpudevice

import (
	"testing"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const litSource = `
struct Camera { viewProj: mat4x4<f32> }
@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var<uniform> tint: vec4<f32>;
@group(1) @binding(1) var albedo: texture_2d<f32>;
@group(1) @binding(2) var albedoSampler: sampler;
@group(2) @binding(0) var shadowMap: texture_depth_2d;
@group(2) @binding(1) var shadowSampler: sampler_comparison;

fn project(p: vec3<f32>) -> vec4<f32> {
	return camera.viewProj * vec4<f32>(p, 1.0);
}

// albedo is not read here
@vertex
fn vsMain(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> {
	return project(p);
}

@vertex
fn vsShadow(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> {
	return project(p);
}

fn shade(uv: vec2<f32>) -> vec4<f32> {
	let lit = textureSampleCompare(shadowMap, shadowSampler, uv, 0.5);
	return textureSample(albedo, albedoSampler, uv) * tint * lit;
}

@fragment
fn fsMain(@builtin(position) p: vec4<f32>) -> @location(0) vec4<f32> {
	return shade(p.xy);
}
`

func TestUsesFollowsCalls(t *testing.T) {
	lib := &library{reflection: shader.Reflect(litSource), references: functionReferences(litSource)}

	vertex := lib.uses("vsMain")
	assert.True(t, vertex["camera"], "reached through project")
	assert.False(t, vertex["albedo"], "comments are ignored")

	fragment := lib.uses("fsMain")
	for _, name := range []string{"tint", "albedo", "albedoSampler", "shadowMap", "shadowSampler"} {
		assert.True(t, fragment[name], name)
	}
	assert.False(t, fragment["camera"])

	assert.Nil(t, lib.uses("missing"))
}

func TestLayoutEntries(t *testing.T) {
	r := shader.Reflect(litSource + `
@group(3) @binding(0) var<storage, read_write> particles: array<vec4<f32>>;
@group(3) @binding(1) var<storage, read> weights: array<f32>;
@group(3) @binding(2) var out: texture_storage_2d_array<rgba16float, write>;
@group(3) @binding(3) var sky: texture_cube<f32>;
@group(3) @binding(4) var ids: texture_2d<u32>;
`)
	entries := make(map[string]wgpu.BindGroupLayoutEntry)
	for _, d := range r.Declarations {
		entries[d.Name] = layoutEntry(d, wgpu.ShaderStageFragment)
	}

	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries["camera"].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries["particles"].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, entries["weights"].Buffer.Type)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries["albedoSampler"].Sampler.Type)
	assert.Equal(t, wgpu.SamplerBindingTypeComparison, entries["shadowSampler"].Sampler.Type)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, entries["shadowMap"].Texture.SampleType)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries["albedo"].Texture.SampleType)
	assert.Equal(t, wgpu.TextureSampleTypeUint, entries["ids"].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimensionCube, entries["sky"].Texture.ViewDimension)

	out := entries["out"].StorageTexture
	assert.Equal(t, wgpu.TextureViewDimension2DArray, out.ViewDimension)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, out.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, out.Access)
	assert.Equal(t, uint32(2), entries["out"].Binding)
}

func TestTextureUsage(t *testing.T) {
	sampled := textureUsage(gpu.TextureDescriptor{Format: gpu.FormatRGBA8Unorm})
	assert.Equal(t, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst, sampled)

	depth := textureUsage(gpu.TextureDescriptor{Format: gpu.FormatDepth32Float, Usage: gpu.TextureUsageRenderAttachment})
	assert.Equal(t, wgpu.TextureUsageRenderAttachment, depth)

	msaa := textureUsage(gpu.TextureDescriptor{Format: gpu.FormatBGRA8Unorm, SampleCount: 4, Usage: gpu.TextureUsageRenderAttachment})
	assert.Equal(t, wgpu.TextureUsageRenderAttachment, msaa)
}

func TestFormatsRoundTrip(t *testing.T) {
	for f, w := range textureFormats {
		require.Equal(t, f, formatOf(w))
	}
	assert.Equal(t, gpu.FormatUndefined, formatOf(wgpu.TextureFormatR8Unorm))
	_, ok := textureFormat(gpu.FormatUndefined)
	assert.False(t, ok)
}

func TestVertexLayouts(t *testing.T) {
	out := vertexLayouts([]gpu.VertexLayout{{
		Stride: 32,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFloat32x3, Offset: 0, Location: 0},
			{Format: gpu.VertexFloat32x2, Offset: 24, Location: 2},
		},
		PerInstance: true,
	}})
	require.Len(t, out, 1)
	assert.Equal(t, uint64(32), out[0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, out[0].StepMode)
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2}, out[0].Attributes[1])
}
