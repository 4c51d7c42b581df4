package parameter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func everyType() *Group {
	return NewGroup("EveryUniforms",
		NewBool("enabled", true),
		NewInt("count", -7),
		NewInt2("cells", [2]int32{3, -4}),
		NewInt3("grid", [3]int32{1, 2, 3}),
		NewInt4("mask", [4]int32{9, 8, 7, 6}),
		NewFloat("intensity", 0.25).WithRange(0, 1),
		NewFloat2("offset", mgl32.Vec2{0.5, -1.5}),
		NewFloat3("direction", mgl32.Vec3{1, 2, 3}),
		NewFloat4("color", mgl32.Vec4{0.1, 0.2, 0.3, 0.4}),
		NewFloat2x2("rotation", mgl32.Mat2{1, 2, 3, 4}),
		NewFloat3x3("basis", mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}),
		NewFloat4x4("transform", mgl32.Translate3D(1, 2, 3)),
		NewString("note", "not uploaded"),
	)
}

func TestFloat3FloatStride(t *testing.T) {
	g := NewGroup("B", NewFloat3("a", mgl32.Vec3{}), NewFloat("b", 0))
	assert.Equal(t, []int{0, 16}, g.Offsets())
	assert.Equal(t, 20, g.Size())
	assert.Equal(t, 16, g.Alignment())
	assert.Equal(t, 32, g.Stride())
}

func TestLayoutRules(t *testing.T) {
	cases := []struct {
		name   string
		params []*Parameter
		stride int
	}{
		{"scalars", []*Parameter{NewFloat("a", 0), NewInt("b", 0), NewBool("c", false)}, 12},
		{"float2 after float", []*Parameter{NewFloat("a", 0), NewFloat2("b", mgl32.Vec2{})}, 16},
		{"float after float2", []*Parameter{NewFloat2("a", mgl32.Vec2{}), NewFloat("b", 0)}, 16},
		{"float4 after float", []*Parameter{NewFloat("a", 0), NewFloat4("b", mgl32.Vec4{})}, 32},
		{"float3 float3", []*Parameter{NewFloat3("a", mgl32.Vec3{}), NewFloat3("b", mgl32.Vec3{})}, 32},
		{"mat2 then float", []*Parameter{NewFloat2x2("a", mgl32.Mat2{}), NewFloat("b", 0)}, 24},
		{"mat3", []*Parameter{NewFloat("a", 0), NewFloat3x3("b", mgl32.Mat3{})}, 64},
		{"mat4", []*Parameter{NewFloat4x4("a", mgl32.Mat4{})}, 64},
		{"strings only", []*Parameter{NewString("s", "x")}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGroup("T", tc.params...)
			assert.Equal(t, tc.stride, g.Stride())
			assert.Equal(t, g.Stride(), g.Stride(), "deterministic")
			assert.Equal(t, g.Stride(), g.Clone().Stride())
		})
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := everyType()
	image := src.Bytes()
	require.Len(t, image, src.Stride())

	dst := NewGroup("EveryUniforms")
	for _, p := range src.Params() {
		require.NoError(t, dst.Append(New(p.Label(), p.Type())))
	}
	require.NoError(t, dst.Unpack(image))

	for _, p := range src.Params() {
		got, ok := dst.Get(p.Label())
		require.True(t, ok)
		if p.Type() == String {
			assert.Empty(t, got.Text(), "strings are not packed")
			continue
		}
		assert.Equal(t, p.Value(), got.Value(), p.Label())
	}
	assert.Equal(t, image, dst.Bytes())
}

func TestPackFloat3PaddingAndMatrixColumns(t *testing.T) {
	g := NewGroup("P", NewFloat3("v", mgl32.Vec3{1, 2, 3}), NewFloat3x3("m", mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}))
	img := g.Bytes()
	require.Len(t, img, 64)
	assert.Equal(t, []byte{0, 0, 0, 0}, img[12:16], "vec3 tail is zero padding")
	// second column starts at 16 + 16
	p, _ := g.Get("m")
	dup := New("m", Float3x3)
	dup.Unpack(img[16:])
	assert.Equal(t, p.Float3x3(), dup.Float3x3())
}

func TestUnpackShortBuffer(t *testing.T) {
	g := NewGroup("S", NewFloat4("c", mgl32.Vec4{}))
	assert.Error(t, g.Unpack(make([]byte, 8)))
}

func TestAppendRejectsDuplicates(t *testing.T) {
	g := NewGroup("D", NewFloat("a", 1))
	err := g.Append(NewInt("a", 2))
	assert.ErrorIs(t, err, ErrDuplicateLabel)
	assert.Equal(t, 1, g.Len())
	assert.Panics(t, func() { NewGroup("D", NewFloat("a", 1), NewFloat("a", 2)) })
}

func TestAppendRejectsCollidingFieldNames(t *testing.T) {
	g := NewGroup("D", NewFloat("a-b", 1))
	err := g.Append(NewFloat("a_b", 2))
	assert.ErrorIs(t, err, ErrDuplicateLabel)
	assert.ErrorContains(t, err, "a_b")
	assert.Equal(t, 1, g.Len())

	// strings are never packed, so their field names cannot collide
	require.NoError(t, g.Append(NewString("a b", "x")))
	assert.Equal(t, "struct D {\n    a_b: f32,\n}\n", g.StructSource())
}

func TestSetReportsErrors(t *testing.T) {
	g := NewGroup("S", NewFloat("f", 0), NewFloat3("v", mgl32.Vec3{}), NewBool("b", false))
	require.NoError(t, g.Set("f", float32(2)))
	require.NoError(t, g.Set("f", 3.5))
	require.NoError(t, g.Set("v", mgl32.Vec3{1, 2, 3}))
	require.NoError(t, g.Set("b", true))

	assert.ErrorIs(t, g.Set("missing", 1.0), ErrNotFound)
	assert.ErrorIs(t, g.Set("f", "text"), ErrTypeMismatch)
	assert.ErrorIs(t, g.Set("v", mgl32.Vec4{}), ErrTypeMismatch)

	f, _ := g.Get("f")
	assert.Equal(t, float32(3.5), f.Float(), "failed sets leave the value unchanged")
}

func TestRemoveAndClear(t *testing.T) {
	g := NewGroup("R", NewFloat("a", 0), NewFloat("b", 0), NewFloat("c", 0))
	assert.True(t, g.Remove("b"))
	assert.False(t, g.Remove("b"))
	labels := []string{}
	for _, p := range g.Params() {
		labels = append(labels, p.Label())
	}
	assert.Equal(t, []string{"a", "c"}, labels)
	g.Clear()
	assert.Zero(t, g.Len())
	assert.Zero(t, g.Stride())
}

func TestSetFromKeepsIdentity(t *testing.T) {
	live := NewGroup("L", NewFloat("speed", 1), NewFloat3("color", mgl32.Vec3{1, 1, 1}), NewInt("gone", 0))
	speed, _ := live.Get("speed")

	parsed := NewGroup("L",
		NewFloat3("color", mgl32.Vec3{0, 1, 0}),
		NewFloat("speed", 4).WithRange(0, 10),
		NewInt("fresh", 5),
	)
	live.SetFrom(parsed)

	got, _ := live.Get("speed")
	assert.Same(t, speed, got)
	assert.Equal(t, float32(4), got.Float())
	_, _, ok := got.Range()
	assert.True(t, ok)

	_, ok = live.Get("gone")
	assert.False(t, ok)
	fresh, ok := live.Get("fresh")
	require.True(t, ok)
	other, _ := parsed.Get("fresh")
	assert.NotSame(t, other, fresh)
	assert.Equal(t, parsed.LayoutHash(), live.LayoutHash())
}

func TestSetFromReplacesChangedType(t *testing.T) {
	live := NewGroup("L", NewFloat("x", 1))
	old, _ := live.Get("x")
	live.SetFrom(NewGroup("L", NewFloat2("x", mgl32.Vec2{1, 2})))
	got, _ := live.Get("x")
	assert.NotSame(t, old, got)
	assert.Equal(t, Float2, got.Type())
}

func TestMergeKeepsValues(t *testing.T) {
	live := NewGroup("L", NewFloat("speed", 7), NewInt("gone", 1))
	speed, _ := live.Get("speed")

	live.Merge(NewGroup("L", NewInt("fresh", 5), NewFloat("speed", 4)))

	got, _ := live.Get("speed")
	assert.Same(t, speed, got)
	assert.Equal(t, float32(7), got.Float())
	fresh, ok := live.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, int32(5), fresh.Int())
	_, ok = live.Get("gone")
	assert.False(t, ok)
	assert.Equal(t, "fresh", live.Params()[0].Label())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"params.json", "params.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			src := everyType()
			require.NoError(t, src.Save(path))

			dst := everyType()
			for _, p := range dst.Params() {
				require.NoError(t, p.Set(New("zero", p.Type()).Value()))
			}
			skipped, err := dst.Load(path)
			require.NoError(t, err)
			assert.Zero(t, skipped)
			for _, p := range src.Params() {
				got, _ := dst.Get(p.Label())
				assert.Equal(t, p.Value(), got.Value(), p.Label())
			}
		})
	}
}

func TestLoadIgnoresUnknownLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc := `{"label":"X","parameters":[
		{"label":"unknown","type":"float","value":9},
		{"label":"speed","type":"float","value":3},
		{"label":"color","type":"float","value":1},
		{"label":"tint","type":"float3","value":[1,2]}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	g := NewGroup("X",
		NewFloat("speed", 1),
		NewFloat4("color", mgl32.Vec4{1, 1, 1, 1}),
		NewFloat3("tint", mgl32.Vec3{5, 5, 5}),
		NewInt("untouched", 42),
	)
	var skipped int
	var err error
	require.NotPanics(t, func() { skipped, err = g.Load(path) })
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)

	speed, _ := g.Get("speed")
	assert.Equal(t, float32(3), speed.Float())
	color, _ := g.Get("color")
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, color.Float4())
	tint, _ := g.Get("tint")
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, tint.Float3())
	untouched, _ := g.Get("untouched")
	assert.Equal(t, int32(42), untouched.Int())
}

func TestLoadRejectsNonIntegralInts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ints.json")
	doc := `{"label":"I","parameters":[
		{"label":"fraction","type":"int","value":2.7},
		{"label":"huge","type":"int","value":1e12},
		{"label":"exact","type":"int","value":3},
		{"label":"cell","type":"int3","value":[1,2.5,3]}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	g := NewGroup("I",
		NewInt("fraction", 7),
		NewInt("huge", 8),
		NewInt("exact", 9),
		NewInt3("cell", [3]int32{4, 5, 6}),
	)
	skipped, err := g.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)

	fraction, _ := g.Get("fraction")
	assert.Equal(t, int32(7), fraction.Int())
	huge, _ := g.Get("huge")
	assert.Equal(t, int32(8), huge.Int())
	exact, _ := g.Get("exact")
	assert.Equal(t, int32(3), exact.Int())
	cell, _ := g.Get("cell")
	assert.Equal(t, [3]int32{4, 5, 6}, cell.Int3(), "no component is written")
}

func TestLoadMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewGroup("X").Load(path)
	assert.Error(t, err)
	_, err = NewGroup("X").Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStructSource(t *testing.T) {
	g := NewGroup("GlowUniforms",
		NewFloat4("color", mgl32.Vec4{}),
		NewFloat3("axis", mgl32.Vec3{}),
		NewBool("pulse", false),
		NewString("name", ""),
		NewFloat("base weight", 0),
	)
	want := "struct GlowUniforms {\n" +
		"    color: vec4<f32>,\n" +
		"    @size(16) axis: vec3<f32>,\n" +
		"    pulse: u32,\n" +
		"    base_weight: f32,\n" +
		"}\n"
	assert.Equal(t, want, g.StructSource())
	assert.Empty(t, NewGroup("Empty", NewString("s", "")).StructSource())
}

func TestParseStructDefaultsAndHints(t *testing.T) {
	src := `
struct Other { x: f32 }

struct GlowUniforms {
    color: vec4<f32>,       // default=1,0.5,0,1
    // comment lines are skipped
    intensity: f32,         // default=2 min=0 max=10
    @size(16) axis: vec3f,  // default=0, 1, 0
    pulse: u32,             // bool default=1
    steps: i32,
    view: mat4x4<f32>,
}
`
	g, err := ParseStruct(src, "GlowUniforms")
	require.NoError(t, err)
	require.Equal(t, 6, g.Len())

	color, _ := g.Get("color")
	assert.Equal(t, mgl32.Vec4{1, 0.5, 0, 1}, color.Float4())
	intensity, _ := g.Get("intensity")
	assert.Equal(t, float32(2), intensity.Float())
	mn, mx, ok := intensity.Range()
	assert.True(t, ok)
	assert.Equal(t, float32(0), mn)
	assert.Equal(t, float32(10), mx)
	axis, _ := g.Get("axis")
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, axis.Float3())
	pulse, _ := g.Get("pulse")
	assert.Equal(t, Bool, pulse.Type())
	assert.True(t, pulse.Bool())
	view, _ := g.Get("view")
	assert.Equal(t, Float4x4, view.Type())

	// the generated declaration parses back to the same layout
	again, err := ParseStruct(g.StructSource(), "GlowUniforms")
	require.NoError(t, err)
	assert.Equal(t, g.Stride(), again.Stride())
}

func TestParseStructErrors(t *testing.T) {
	_, err := ParseStruct("struct A { }", "Missing")
	assert.Error(t, err)
	_, err = ParseStruct("struct A {\n  t: texture_2d<f32>,\n}", "A")
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	for i := Bool; i <= String; i++ {
		got, err := ParseType(i.String())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	_, err := ParseType("quaternion")
	assert.Error(t, err)
}
