package compute

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/prism/engine/buffer"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/gputest"
	"github.com/Carmen-Shannon/prism/engine/parameter"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const particlesSource = `
struct Particle {
    position: vec4f,
    life: f32,
};

struct ParticlesUniforms {
    dt: f32, // default=0.016
};

@compute @workgroup_size(64)
fn particlesReset(@builtin(global_invocation_id) id: vec3u) {
    particlesOut[id.x].life = 1.0;
}

@compute @workgroup_size(64)
fn particlesUpdate(@builtin(global_invocation_id) id: vec3u) {
    var p = particlesIn[id.x];
    p.life -= uniforms.dt;
    particlesOut[id.x] = p;
}
`

const blurSource = `
@compute @workgroup_size(8, 8)
fn blurUpdate(@builtin(global_invocation_id) id: vec3u) {
    textureStore(colorOut, id.xy, textureLoad(colorIn, id.xy, 0));
}
`

var particleSpec = BufferSpec{Name: "particles", Type: "Particle"}

func newContext(t *testing.T) (*gputest.Device, *gpu.Context) {
	t.Helper()
	d := gputest.NewDevice()
	ctx := gpu.NewContext(d, gpu.WithSynchronousTasks())
	t.Cleanup(ctx.Release)
	return d, ctx
}

func newParticles(t *testing.T, ctx *gpu.Context, count int, opts ...ComputeBuilderOption) *BufferComputeSystem {
	t.Helper()
	opts = append([]ComputeBuilderOption{WithSource(particlesSource), WithBuffers(particleSpec)}, opts...)
	s := NewBufferComputeSystem("Particles", count, opts...)
	require.NoError(t, s.Setup(ctx))
	t.Cleanup(s.Release)
	return s
}

// copyOf returns the copy index encoded in a buffer label such as "Particles particles 1".
func copyOf(t *testing.T, b gpu.Buffer) string {
	t.Helper()
	require.NotNil(t, b)
	label := b.(*gputest.Buffer).Label()
	return label[strings.LastIndex(label, " ")+1:]
}

func bindings(cmds []gputest.Command, group int) map[int]gputest.Command {
	out := make(map[int]gputest.Command)
	for _, c := range cmds {
		if (c.Op == "SetBuffer" || c.Op == "SetTexture") && c.Group == group {
			out[c.Binding] = c
		}
	}
	return out
}

func TestBufferCountMustBePositive(t *testing.T) {
	_, ctx := newContext(t)
	for _, s := range []*BufferComputeSystem{
		NewBufferComputeSystem("Particles", 0, WithSource(particlesSource)),
		NewLiveBufferComputeSystem("Particles", "particles.wgsl", -1),
	} {
		assert.ErrorIs(t, s.Setup(ctx), buffer.ErrInvalidCount)
		assert.Nil(t, s.Program(), "nothing is compiled")
		require.NoError(t, s.SetCount(4))
		assert.ErrorIs(t, s.Setup(ctx), buffer.ErrInvalidCount, "a bad count at construction is not recoverable")
	}

	s := NewBufferComputeSystem("Particles", 4, WithSource(particlesSource))
	assert.ErrorIs(t, s.SetCount(0), buffer.ErrInvalidCount)
	assert.Equal(t, 4, s.Count())
	assert.Panics(t, func() { NewBufferComputeSystem("", 4) })
}

func TestKernelDeclaresFeedbackBindings(t *testing.T) {
	_, ctx := newContext(t)
	s := newParticles(t, ctx, 8, WithFeedback(true))
	prog := s.Program()
	require.NotNil(t, prog)
	require.NoError(t, prog.Err)
	assert.NotNil(t, prog.Reset)
	assert.NotNil(t, prog.Update)

	decls := prog.Reflection.Declarations
	require.Len(t, decls, 3)
	assert.Equal(t, shader.Declaration{Group: 0, Binding: 0, Name: "particlesIn", Type: "array<Particle>"}, withoutDetails(decls[0]))
	assert.Equal(t, shader.Declaration{Group: 0, Binding: 1, Name: "particlesOut", Type: "array<Particle>"}, withoutDetails(decls[1]))
	assert.Equal(t, shader.Declaration{Group: 1, Binding: 0, Name: "uniforms", Type: "ParticlesUniforms"}, withoutDetails(decls[2]))
	assert.Equal(t, shader.ResourceReadOnlyStorage, decls[0].Kind)
	assert.Equal(t, shader.ResourceStorage, decls[1].Kind)
}

func withoutDetails(d shader.Declaration) shader.Declaration {
	return shader.Declaration{Group: d.Group, Binding: d.Binding, Name: d.Name, Type: d.Type}
}

func TestFeedbackPingPong(t *testing.T) {
	d, ctx := newContext(t)
	s := newParticles(t, ctx, 100, WithFeedback(true))

	for range 4 {
		require.True(t, s.Update(d.NewCommandBuffer("frame")))
	}
	passes := d.ComputePasses()
	require.Len(t, passes, 4)

	first := passes[0].Dispatches()
	require.Len(t, first, 3, "two reset dispatches then one update")
	var reset []string
	for _, cmds := range first[:2] {
		reset = append(reset, copyOf(t, bindings(cmds, ResourceGroup)[1].Buffer))
	}
	assert.ElementsMatch(t, []string{"0", "1"}, reset, "reset writes every copy once")

	var pairs [][2]string
	for _, p := range passes {
		dispatches := p.Dispatches()
		b := bindings(dispatches[len(dispatches)-1], ResourceGroup)
		pairs = append(pairs, [2]string{copyOf(t, b[0].Buffer), copyOf(t, b[1].Buffer)})
	}
	assert.Equal(t, [][2]string{{"0", "1"}, {"1", "0"}, {"0", "1"}, {"1", "0"}}, pairs)
	for _, p := range passes[1:] {
		assert.Len(t, p.Dispatches(), 1)
	}

	assert.Equal(t, "0", copyOf(t, s.Buffer("particles")), "Buffer returns the last output")
	assert.Equal(t, 4, s.Iteration())
	assert.False(t, s.ResetPending())
	assert.Equal(t, 32, s.Stride("particles"))
	assert.Equal(t, 100*32, s.Buffer("particles").Size())
}

func TestNonFeedbackBindsOneCopy(t *testing.T) {
	d, ctx := newContext(t)
	src := strings.NewReplacer("particlesIn", "particles", "particlesOut", "particles").Replace(particlesSource)
	s := NewBufferComputeSystem("Particles", 10, WithSource(src), WithBuffers(particleSpec))
	require.NoError(t, s.Setup(ctx))
	defer s.Release()

	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	dispatches := d.ComputePasses()[0].Dispatches()
	require.Len(t, dispatches, 2)
	for _, cmds := range dispatches {
		b := bindings(cmds, ResourceGroup)
		require.Len(t, b, 1)
		assert.Equal(t, "0", copyOf(t, b[0].Buffer))
	}
	assert.Len(t, d.Buffers, 2, "one storage buffer and the uniform ring")
}

func TestDispatchSizing(t *testing.T) {
	for _, nonUniform := range []bool{false, true} {
		d, ctx := newContext(t)
		d.NonUniform = nonUniform
		s := newParticles(t, ctx, 100)
		require.True(t, s.Update(d.NewCommandBuffer("frame")))

		pass := d.ComputePasses()[0]
		if nonUniform {
			threads := pass.Ops("DispatchThreads")
			require.Len(t, threads, 2)
			assert.Equal(t, [3]int{100, 1, 1}, threads[1].Counts)
			assert.Equal(t, [3]int{64, 1, 1}, threads[1].Threads)
			assert.Empty(t, pass.Ops("DispatchThreadgroups"))
			continue
		}
		groups := pass.Ops("DispatchThreadgroups")
		require.Len(t, groups, 2)
		assert.Equal(t, [3]int{2, 1, 1}, groups[1].Counts, "100 elements round up to two groups of 64")
		assert.Empty(t, pass.Ops("DispatchThreads"))
	}
}

func TestUniformsBoundAndWritten(t *testing.T) {
	d, ctx := newContext(t)
	s := newParticles(t, ctx, 16, WithFeedback(true))
	assert.Equal(t, "ParticlesUniforms", s.Uniforms().Label())
	p, ok := s.Uniforms().Get("dt")
	require.True(t, ok)
	assert.InDelta(t, 0.016, p.Float(), 1e-6)

	require.NoError(t, s.Set("dt", float32(0.5)))
	require.True(t, s.Update(d.NewCommandBuffer("frame")))

	for _, cmds := range d.ComputePasses()[0].Dispatches() {
		u, ok := bindings(cmds, UniformsGroup)[0]
		require.True(t, ok, "uniforms bound at group 1 binding 0")
		data := u.Buffer.(*gputest.Buffer).Data
		assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(data[u.Offset:])))
	}
	assert.Error(t, s.Set("gravity", float32(1)))
}

func TestSuppliedUniforms(t *testing.T) {
	d, ctx := newContext(t)
	src := strings.Replace(particlesSource, "struct ParticlesUniforms {\n    dt: f32, // default=0.016\n};\n", "", 1)
	g := parameter.NewGroup("ParticlesUniforms", parameter.NewFloat("dt", 0.25))
	s := NewBufferComputeSystem("Particles", 4, WithSource(src), WithBuffers(particleSpec), WithUniforms(g), WithFeedback(true))
	require.NoError(t, s.Setup(ctx))
	defer s.Release()

	assert.Same(t, g, s.Uniforms())
	assert.Contains(t, s.Program().Source, "struct ParticlesUniforms")
	require.True(t, s.Update(d.NewCommandBuffer("frame")))
}

func TestSetCountReallocatesAndResets(t *testing.T) {
	d, ctx := newContext(t)
	s := newParticles(t, ctx, 10, WithFeedback(true))
	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	old := s.Buffer("particles").(*gputest.Buffer)

	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	require.Len(t, d.ComputePasses()[1].Dispatches(), 1, "no reset without a change")

	require.NoError(t, s.SetCount(20))
	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	assert.True(t, old.Released)
	assert.Equal(t, 20*32, s.Buffer("particles").Size())
	assert.Len(t, d.ComputePasses()[2].Dispatches(), 3, "reallocation runs the reset passes again")

	s.Reset()
	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	assert.Len(t, d.ComputePasses()[3].Dispatches(), 3)
}

func TestUploadAndSync(t *testing.T) {
	d, ctx := newContext(t)
	s := newParticles(t, ctx, 3, WithFeedback(true))

	data := make([]byte, 3*32)
	for i := range 3 {
		for j, v := range []float32{float32(i), float32(i) * 2, 0, 1, 0.5 * float32(i)} {
			binary.LittleEndian.PutUint32(data[i*32+j*4:], math.Float32bits(v))
		}
	}
	s.Upload("particles", data)
	require.True(t, s.Update(d.NewCommandBuffer("frame")))

	raw, err := s.Read("particles")
	require.NoError(t, err)
	assert.Equal(t, data, raw, "the fake device does not run kernels")

	g := parameter.NewGroup("Particle", parameter.NewFloat4("position", mgl32.Vec4{}), parameter.NewFloat("life", 0))
	require.NoError(t, s.Sync("particles", 2, g))
	pos, _ := g.Get("position")
	life, _ := g.Get("life")
	assert.Equal(t, mgl32.Vec4{2, 4, 0, 1}, pos.Float4())
	assert.Equal(t, float32(1), life.Float())

	assert.Error(t, s.Sync("particles", 3, g))
	assert.Error(t, s.Sync("missing", 0, g))
}

func TestUploadBeforeAllocation(t *testing.T) {
	d, ctx := newContext(t)
	s := newParticles(t, ctx, 2, WithFeedback(true))
	s.Upload("particles", []byte{1, 2, 3, 4})
	_, err := s.Read("particles")
	assert.Error(t, err)

	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	for _, b := range d.Buffers {
		if strings.HasPrefix(b.Label(), "Particles particles") {
			assert.Equal(t, []byte{1, 2, 3, 4}, b.Data[:4])
		}
	}
}

func TestPreComputeSeesIterations(t *testing.T) {
	d, ctx := newContext(t)
	var seen []int
	s := newParticles(t, ctx, 8, WithFeedback(true), WithPreCompute(func(enc gpu.ComputeEncoder, iteration int) {
		seen = append(seen, iteration)
		enc.SetBuffer(2, 0, nil, 0, 0)
	}))
	for range 2 {
		require.True(t, s.Update(d.NewCommandBuffer("frame")))
	}
	assert.Equal(t, []int{-1, -1, 0, 1}, seen)
	assert.Len(t, d.ComputePasses()[0].Ops("SetBuffer"), 3*4)
}

func TestMissingEntryPoints(t *testing.T) {
	d, ctx := newContext(t)
	s := NewBufferComputeSystem("Particles", 4, WithSource("fn helper() {}"), WithBuffers(particleSpec))
	err := s.Setup(ctx)
	require.ErrorIs(t, err, shader.ErrMissingEntryPoint)
	defer s.Release()

	assert.False(t, s.Update(d.NewCommandBuffer("frame")))
	assert.Empty(t, d.ComputePasses())
}

func TestUpdateOnlyKernelSkipsReset(t *testing.T) {
	d, ctx := newContext(t)
	src := strings.Replace(particlesSource, "fn particlesReset", "fn unused", 1)
	s := newParticles(t, ctx, 4, WithSource(src), WithFeedback(true))
	assert.Nil(t, s.Program().Reset)
	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	assert.Len(t, d.ComputePasses()[0].Dispatches(), 1)
}

func TestCompileFailureIsInert(t *testing.T) {
	d, ctx := newContext(t)
	d.FailSources = []string{"particlesUpdate"}
	s := NewBufferComputeSystem("Particles", 4, WithSource(particlesSource), WithBuffers(particleSpec))
	assert.Error(t, s.Setup(ctx))
	defer s.Release()
	assert.Error(t, s.Program().Err)
	assert.False(t, s.Update(d.NewCommandBuffer("frame")))
	assert.Empty(t, d.Buffers)
}

func TestUpdateBeforeSetup(t *testing.T) {
	d := gputest.NewDevice()
	s := NewBufferComputeSystem("Particles", 4, WithSource(particlesSource), WithBuffers(particleSpec))
	assert.False(t, s.Update(d.NewCommandBuffer("frame")))
	assert.Nil(t, s.Buffer("particles"))
	require.NoError(t, s.Set("dt", float32(1)), "uniforms are parsed before the first compile")
}

func TestIdenticalKernelsSharePipelines(t *testing.T) {
	d, ctx := newContext(t)
	a := newParticles(t, ctx, 4, WithFeedback(true))
	b := newParticles(t, ctx, 8, WithFeedback(true))
	assert.Same(t, a.Program().Update, b.Program().Update)
	assert.Len(t, d.ComputePipelines, 2)
	assert.Equal(t, 2, ctx.Pipelines.Len())

	a.Release()
	assert.False(t, d.ComputePipelines[1].Released, "cached pipelines are owned by the cache")
}

func TestLiveKernelRecompiles(t *testing.T) {
	d, ctx := newContext(t)
	path := filepath.Join(t.TempDir(), "particles.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(particlesSource), 0o644))
	w, err := shader.NewWatcher(time.Hour)
	require.NoError(t, err)
	defer w.Close()

	s := NewLiveBufferComputeSystem("Particles", path, 4, WithWatcher(w), WithBuffers(particleSpec), WithFeedback(true))
	require.NoError(t, s.Setup(ctx))
	defer s.Release()
	assert.True(t, s.Live())
	assert.Equal(t, 1, w.Watched())
	require.NoError(t, s.Set("dt", float32(0.25)))
	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	first := s.Program()

	edited := strings.Replace(particlesSource, "dt: f32, // default=0.016", "dt: f32, // default=0.016\n    gravity: f32, // default=9.8", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	s.kernel.recompile()

	second := s.Program()
	require.NotSame(t, first, second)
	require.NoError(t, second.Err)
	assert.False(t, d.ComputePipelines[0].Released, "frames in flight may still dispatch it")
	for frame := uint64(1); frame <= uint64(ctx.MaxFramesInFlight); frame++ {
		ctx.BeginFrame(frame)
	}
	assert.True(t, d.ComputePipelines[0].Released, "live pipelines are released when replaced")

	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	dt, _ := s.Uniforms().Get("dt")
	gravity, ok := s.Uniforms().Get("gravity")
	require.True(t, ok)
	assert.Equal(t, float32(0.25), dt.Float(), "edited values survive a recompile")
	assert.InDelta(t, 9.8, gravity.Float(), 1e-6)

	require.NoError(t, os.WriteFile(path, []byte("fn broken("), 0o644))
	d.FailSources = []string{"fn broken("}
	s.kernel.recompile()
	assert.Error(t, s.Program().Err)
	assert.False(t, s.Update(d.NewCommandBuffer("frame")))
}

func TestTextureSystem(t *testing.T) {
	d, ctx := newContext(t)
	d.NonUniform = true
	desc := gpu.TextureDescriptor{
		Label:     "color",
		Type:      gpu.Texture2D,
		Format:    gpu.FormatRGBA16Float,
		Width:     64,
		Height:    32,
		MipLevels: 3,
	}
	s := NewTextureComputeSystem("Blur", []gpu.TextureDescriptor{desc}, WithSource(blurSource), WithFeedback(true))
	require.NoError(t, s.Setup(ctx))
	defer s.Release()

	src := s.Program().Source
	assert.Contains(t, src, "var colorIn: texture_2d<f32>;")
	assert.Contains(t, src, "var colorOut: texture_storage_2d<rgba16float, write>;")
	assert.Nil(t, s.Program().Reset)

	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	require.Len(t, d.Textures, 2)
	for _, tex := range d.Textures {
		assert.NotZero(t, tex.Desc.Usage&gpu.TextureUsageStorage)
		assert.NotZero(t, tex.Desc.Usage&gpu.TextureUsageBinding)
		assert.Equal(t, 1, tex.Desc.SampleCount)
	}
	pass := d.ComputePasses()[0]
	b := bindings(pass.Commands, ResourceGroup)
	assert.Same(t, d.Textures[0], b[0].Texture)
	assert.Same(t, d.Textures[1], b[1].Texture)
	assert.Same(t, d.Textures[1], s.Texture(0))
	assert.Equal(t, [3]int{64, 32, 1}, pass.Ops("DispatchThreads")[0].Counts)

	require.True(t, s.DispatchLevel(d.NewCommandBuffer("mip"), 2))
	pass = d.ComputePasses()[1]
	assert.Equal(t, [3]int{16, 8, 1}, pass.Ops("DispatchThreads")[0].Counts)
	for _, c := range pass.Ops("SetTexture") {
		assert.Equal(t, 2, c.Level)
	}
	s.SetMipLevel(10)
	assert.Equal(t, 2, s.MipLevel())
	assert.Nil(t, s.Texture(1))
}

func TestTextureDescriptorsReallocate(t *testing.T) {
	d, ctx := newContext(t)
	desc := gpu.TextureDescriptor{Label: "my field", Type: gpu.Texture2DArray, Format: gpu.FormatR32Float, Width: 8, Height: 8, Depth: 6}
	src := `
@compute @workgroup_size(8, 8, 1)
fn fieldReset(@builtin(global_invocation_id) id: vec3u) {
    textureStore(texture0, id.xy, id.z, vec4f(0.0));
}
`
	s := NewTextureComputeSystem("Field", []gpu.TextureDescriptor{desc}, WithSource(src))
	require.NoError(t, s.Setup(ctx))
	defer s.Release()
	assert.Contains(t, s.Program().Source, "var texture0: texture_storage_2d_array<r32float, write>;")

	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	require.Len(t, d.Textures, 1)
	assert.Equal(t, [3]int{1, 1, 6}, d.ComputePasses()[0].Ops("DispatchThreadgroups")[0].Counts)
	assert.False(t, s.Update(d.NewCommandBuffer("frame")), "reset-only kernels only run when reset is pending")

	desc.Width, desc.Height = 16, 16
	s.SetTextureDescriptors([]gpu.TextureDescriptor{desc})
	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	require.Len(t, d.Textures, 2)
	assert.True(t, d.Textures[0].Released)
	assert.Equal(t, 16, s.Texture(0).Descriptor().Width)

	assert.Panics(t, func() {
		s.SetTextureDescriptors([]gpu.TextureDescriptor{{Format: gpu.FormatDepth32Float, Width: 1, Height: 1}})
	})
}

func TestVolumeDepthFollowsMipLevel(t *testing.T) {
	d, ctx := newContext(t)
	d.NonUniform = true
	desc := gpu.TextureDescriptor{
		Label:     "density",
		Type:      gpu.Texture3D,
		Format:    gpu.FormatR32Float,
		Width:     32,
		Height:    32,
		Depth:     16,
		MipLevels: 6,
	}
	src := `
@compute @workgroup_size(4, 4, 4)
fn volumeUpdate(@builtin(global_invocation_id) id: vec3u) {
    textureStore(densityOut, id, textureLoad(densityIn, id, 0));
}
`
	s := NewTextureComputeSystem("Volume", []gpu.TextureDescriptor{desc}, WithSource(src), WithFeedback(true))
	require.NoError(t, s.Setup(ctx))
	defer s.Release()
	assert.Contains(t, s.Program().Source, "var densityOut: texture_storage_3d<r32float, write>;")

	for mip, want := range map[int][3]int{0: {32, 32, 16}, 1: {16, 16, 8}, 3: {4, 4, 2}, 5: {1, 1, 1}} {
		require.True(t, s.DispatchLevel(d.NewCommandBuffer("mip"), mip))
		passes := d.ComputePasses()
		assert.Equal(t, want, passes[len(passes)-1].Ops("DispatchThreads")[0].Counts, "mip %d", mip)
	}
}

func TestDetachHandsOverTextures(t *testing.T) {
	d, ctx := newContext(t)
	desc := gpu.TextureDescriptor{Label: "color", Format: gpu.FormatRGBA8Unorm, Width: 4, Height: 4}
	s := NewTextureComputeSystem("Blur", []gpu.TextureDescriptor{desc}, WithSource(blurSource), WithFeedback(true))
	require.NoError(t, s.Setup(ctx))
	assert.Nil(t, s.Detach())

	require.True(t, s.Update(d.NewCommandBuffer("frame")))
	out := s.Detach()
	require.Len(t, out, 1)
	assert.Same(t, d.Textures[1], out[0])
	assert.True(t, d.Textures[0].Released, "the input copy is released")

	s.Release()
	assert.False(t, out[0].(*gputest.Texture).Released, "detached textures outlive the system")
}
