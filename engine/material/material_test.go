package material

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/gputest"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T) (*gputest.Device, *gpu.Context) {
	t.Helper()
	d := gputest.NewDevice()
	ctx := gpu.NewContext(d, gpu.WithSynchronousTasks())
	t.Cleanup(ctx.Release)
	return d, ctx
}

type fakeBinding struct {
	decl  shader.External
	binds [][2]int
}

func (f *fakeBinding) Declaration() shader.External { return f.decl }

func (f *fakeBinding) Bind(_ gpu.RenderEncoder, group, binding int) {
	f.binds = append(f.binds, [2]int{group, binding})
}

type countingDelegate struct{ updates int }

func (c *countingDelegate) MaterialUpdated(Material) { c.updates++ }

func TestBasicColorBindsUniforms(t *testing.T) {
	_, ctx := newContext(t)
	red := mgl32.Vec4{1, 0, 0, 1}
	m := NewBasicColor(red)
	p, ok := m.Uniforms().Get("color")
	require.True(t, ok)
	assert.Equal(t, red, p.Float4())
	assert.Equal(t, "BasicColorUniforms", m.Uniforms().Label())

	require.NoError(t, m.Setup(ctx))
	require.True(t, m.Drawable())
	assert.NotNil(t, m.ShadowPipeline())

	m.Update(1)
	pass := &gputest.RenderPass{}
	require.True(t, m.Bind(pass, false))

	pipes := pass.Ops("SetPipeline")
	require.Len(t, pipes, 1)
	assert.Equal(t, m.Pipeline(), pipes[0].Pipeline)
	bufs := pass.Ops("SetBuffer")
	require.Len(t, bufs, 1)
	assert.Equal(t, shader.MaterialGroup, bufs[0].Group)
	assert.Equal(t, 0, bufs[0].Binding)
	assert.Equal(t, 16, bufs[0].Size)

	shadow := &gputest.RenderPass{}
	require.True(t, m.Bind(shadow, true))
	assert.Equal(t, m.ShadowPipeline(), shadow.Ops("SetPipeline")[0].Pipeline)
}

func TestUpdateAdvancesOncePerFrame(t *testing.T) {
	_, ctx := newContext(t)
	m := NewNormalColor()
	require.NoError(t, m.Setup(ctx))

	offset := func() int {
		pass := &gputest.RenderPass{}
		require.True(t, m.Bind(pass, false))
		return pass.Ops("SetBuffer")[0].Offset
	}

	m.Update(7)
	first := offset()
	m.Update(7)
	assert.Equal(t, first, offset(), "a second update in the same frame is ignored")
	m.Update(8)
	assert.NotEqual(t, first, offset())
}

func TestBrokenSourceDrawsNothing(t *testing.T) {
	_, ctx := newContext(t)
	m := NewFromSource("Broken", "struct BrokenUniforms { a: f32, };\n")
	assert.Equal(t, 1, m.Uniforms().Len())

	err := m.Setup(ctx)
	require.ErrorIs(t, err, shader.ErrMissingEntryPoint)
	assert.False(t, m.Drawable())
	assert.Nil(t, m.Pipeline())

	m.Update(1)
	pass := &gputest.RenderPass{}
	assert.False(t, m.Bind(pass, false))
	assert.Empty(t, pass.Commands)
}

func TestBasicTextureBindsTextureAndSampler(t *testing.T) {
	d, ctx := newContext(t)
	tex, err := d.NewTexture(gpu.TextureDescriptor{Label: "checker", Format: gpu.FormatRGBA8Unorm, Width: 4, Height: 4})
	require.NoError(t, err)

	m := NewBasicTexture(tex)
	require.NoError(t, m.Setup(ctx))
	assert.Contains(t, m.Shader().Compiled().Source, "var albedoSampler: sampler;")
	require.Len(t, d.Samplers, 1)

	m.Update(1)
	pass := &gputest.RenderPass{}
	require.True(t, m.Bind(pass, false))
	texs := pass.Ops("SetTexture")
	require.Len(t, texs, 1)
	assert.Equal(t, shader.TextureBinding(0), texs[0].Binding)
	assert.Equal(t, tex, texs[0].Texture)
	samplers := pass.Ops("SetSampler")
	require.Len(t, samplers, 1)
	assert.Equal(t, shader.SamplerBinding(0), samplers[0].Binding)

	shadow := &gputest.RenderPass{}
	require.True(t, m.Bind(shadow, true))
	assert.Empty(t, shadow.Ops("SetTexture"))

	m.Release()
	assert.True(t, d.Samplers[0].Released)
	assert.Panics(t, func() { m.SetTexture(1, tex, nil) })
}

func TestBindingRedeclaresShader(t *testing.T) {
	_, ctx := newContext(t)
	rec := &countingDelegate{}
	m := NewUVColor(WithDelegate(rec))
	require.NoError(t, m.Setup(ctx))
	require.Equal(t, 1, rec.updates)

	b := &fakeBinding{decl: shader.External{
		Name:   "lights",
		Type:   "Lights",
		Source: "struct Lights {\n    count: u32,\n};\n",
	}}
	m.SetBinding(0, b)
	assert.Equal(t, 2, rec.updates)
	src := m.Shader().Compiled().Source
	assert.Contains(t, src, "@group(2) @binding(0) var<uniform> lights: Lights;")
	assert.Equal(t, 1, strings.Count(src, "struct Lights"))

	m.Update(1)
	require.True(t, m.Bind(&gputest.RenderPass{}, false))
	assert.Equal(t, [][2]int{{shader.ExternalGroup, 0}}, b.binds)

	m.RemoveBinding(0)
	assert.NotContains(t, m.Shader().Compiled().Source, "var<uniform> lights")
	m.Update(2)
	require.True(t, m.Bind(&gputest.RenderPass{}, false))
	assert.Len(t, b.binds, 1)
}

func TestSetBlendingRecompiles(t *testing.T) {
	_, ctx := newContext(t)
	m := NewBasicColor(mgl32.Vec4{1, 1, 1, 0.5}, WithBlending(gpu.BlendingAdditive))
	require.NoError(t, m.Setup(ctx))
	assert.Equal(t, gpu.BlendingAdditive, m.Blending())
	before := m.Pipeline()

	m.SetBlending(gpu.BlendingAlpha)
	assert.Equal(t, gpu.BlendingAlpha, m.Blending())
	require.NotNil(t, m.Pipeline())
	assert.NotEqual(t, before, m.Pipeline())
	assert.Equal(t, gpu.BlendingAlpha.BlendState(), m.Pipeline().Descriptor().Blend)
}

func TestLiveMaterialKeepsValuesAcrossReload(t *testing.T) {
	d, ctx := newContext(t)
	path := filepath.Join(t.TempDir(), "glow.wgsl")
	write := func(fields string) {
		require.NoError(t, os.WriteFile(path, []byte("struct GlowUniforms {\n"+fields+"};\n"+
			"@vertex fn glowVertex(input: VertexInput) -> VertexOutput { return prismVertex(input); }\n"+
			"@fragment fn glowFragment(in: VertexOutput) -> @location(0) vec4f { return uniforms.color; }\n"), 0o644))
	}
	write("    color: vec4f, // default=1,0,0,1\n    strength: f32, // default=0.5\n")

	w, err := shader.NewWatcher(time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	m := NewLive("Glow", path, WithShaderOptions(shader.WithWatcher(w)))
	t.Cleanup(m.Release)
	require.NoError(t, m.Setup(ctx))
	require.True(t, m.Drawable())
	require.NoError(t, m.Set("strength", float32(0.9)))
	strength, _ := m.Uniforms().Get("strength")
	buffers := len(d.Buffers)

	write("    color: vec4f, // default=1,0,0,1\n    strength: f32, // default=0.5\n    extra: f32, // default=2\n")
	m.Shader().Recompile()
	m.Update(1)

	same, ok := m.Uniforms().Get("strength")
	require.True(t, ok)
	assert.Same(t, strength, same)
	assert.InDelta(t, 0.9, same.Float(), 1e-6)
	extra, ok := m.Uniforms().Get("extra")
	require.True(t, ok)
	assert.InDelta(t, 2, extra.Float(), 1e-6)
	assert.Greater(t, len(d.Buffers), buffers, "layout change reallocates the uniform buffer")
	assert.True(t, d.Buffers[buffers-1].Released)

	pass := &gputest.RenderPass{}
	require.True(t, m.Bind(pass, false))
	assert.Equal(t, 32, pass.Ops("SetBuffer")[0].Size)
}

func TestSaveLoadUniforms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "color.yaml")
	src := NewBasicColor(mgl32.Vec4{0.25, 0.5, 0.75, 1})
	require.NoError(t, src.Save(path))

	dst := NewBasicColor(mgl32.Vec4{})
	skipped, err := dst.Load(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	p, _ := dst.Uniforms().Get("color")
	assert.Equal(t, mgl32.Vec4{0.25, 0.5, 0.75, 1}, p.Float4())
}

func TestSharedShader(t *testing.T) {
	_, ctx := newContext(t)
	base := NewBasicColor(mgl32.Vec4{1, 0, 0, 1})
	require.NoError(t, base.Setup(ctx))

	other := New("BasicColor", WithShader(base.Shader()))
	require.NoError(t, other.Set("color", mgl32.Vec4{0, 1, 0, 1}))
	require.NoError(t, other.Setup(ctx))
	assert.Equal(t, base.Pipeline(), other.Pipeline())

	p, _ := base.Uniforms().Get("color")
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, p.Float4(), "materials sharing a shader keep their own values")

	other.Release()
	assert.NotNil(t, base.Pipeline())
}
