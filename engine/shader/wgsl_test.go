package shader

import (
	"testing"

	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const particleKernels = `
struct Particle {
    position: vec3f,
    life: f32,
    velocity: vec4f,
};

struct SimUniforms {
    dt: f32,
    /* gravity: vec3f, */
    count: u32,
};

@group(0) @binding(0) var<storage, read> input: array<Particle>;
@group(0) @binding(1) var<storage, read_write> output: array<Particle>;
@group(1) @binding(0) var<uniform> uniforms: SimUniforms;
@group(0) @binding(2) var field: texture_storage_2d<rgba16float, write>;
@group(0) @binding(3) var noise: texture_2d<f32>;
@group(0) @binding(4) var noiseSampler: sampler;

@compute @workgroup_size(64)
fn particlesUpdate(@builtin(global_invocation_id) id: vec3u) {}

// @compute fn commentedOut() {}

@compute @workgroup_size(8, 4)
fn particlesReset(@builtin(global_invocation_id) id: vec3u) {}

fn helper() {}
`

func TestReflectEntryPoints(t *testing.T) {
	r := Reflect(particleKernels)
	assert.Equal(t, []string{"particlesUpdate", "particlesReset"}, r.Functions())

	e, ok := r.EntryPoint("particlesUpdate")
	require.True(t, ok)
	assert.Equal(t, StageCompute, e.Stage)
	assert.Equal(t, [3]int{64, 1, 1}, e.WorkgroupSize)

	e, _ = r.EntryPoint("particlesReset")
	assert.Equal(t, [3]int{8, 4, 1}, e.WorkgroupSize)

	_, ok = r.EntryPoint("helper")
	assert.False(t, ok)
}

func TestReflectDeclarations(t *testing.T) {
	r := Reflect(particleKernels)
	group0 := r.Group(0)
	require.Len(t, group0, 5)

	assert.Equal(t, "input", group0[0].Name)
	assert.Equal(t, ResourceReadOnlyStorage, group0[0].Kind)
	assert.Equal(t, 32, group0[0].MinSize)
	assert.Equal(t, ResourceStorage, group0[1].Kind)
	assert.Equal(t, ResourceStorageTexture, group0[2].Kind)
	assert.Equal(t, gpu.FormatRGBA16Float, group0[2].Format)
	assert.Equal(t, ResourceTexture, group0[3].Kind)
	assert.Equal(t, ResourceSampler, group0[4].Kind)

	u := r.Group(1)
	require.Len(t, u, 1)
	assert.Equal(t, ResourceUniform, u[0].Kind)
	assert.Equal(t, 8, u[0].MinSize)
}

func TestTypeSize(t *testing.T) {
	r := Reflect(VertexUniformsSource + particleKernels)
	size, align, ok := r.TypeSize("VertexUniforms")
	require.True(t, ok)
	assert.Equal(t, 9*64+2*16, size)
	assert.Equal(t, 16, align)

	size, _, ok = r.TypeSize("array<Particle, 4>")
	require.True(t, ok)
	assert.Equal(t, 128, size)

	_, _, ok = r.TypeSize("Unknown")
	assert.False(t, ok)
}

func TestVertexLayoutMatchesGeometry(t *testing.T) {
	layout, ok := VertexLayout(geometry.VertexInputSource)
	require.True(t, ok)
	assert.Equal(t, geometry.VertexLayout(), layout)

	_, ok = VertexLayout("struct VertexOutput { @builtin(position) p: vec4f, @location(0) uv: vec2f, };")
	assert.False(t, ok)
}
