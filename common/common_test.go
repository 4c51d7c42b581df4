package common

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestRoundUp(t *testing.T) {
	assert.Equal(t, 0, RoundUp(256, 0))
	assert.Equal(t, 256, RoundUp(256, 1))
	assert.Equal(t, 256, RoundUp(256, 256))
	assert.Equal(t, 512, RoundUp(256, 257))
	assert.Equal(t, 20, RoundUp(0, 20))
	assert.Equal(t, 32, RoundUp(16, 20))
}

func TestPutFloat32sRoundTrip(t *testing.T) {
	buf := make([]byte, 12)
	PutFloat32s(buf, 1.5, -2, 3.25)
	assert.Equal(t, []float32{1.5, -2, 3.25}, Float32s(buf, 3))
}

func TestSliceBytesRoundTrip(t *testing.T) {
	in := []uint32{1, 2, 3}
	b := SliceToBytes(in)
	require.Len(t, b, 12)
	assert.Equal(t, in, BytesToSlice[uint32](b))
	assert.Nil(t, SliceToBytes([]uint32{}))
	assert.Nil(t, BytesToSlice[uint64]([]byte{1, 2}))
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := Perspective(mgl32.DegToRad(60), 1, 0.5, 10)
	near := p.Mul4x1(mgl32.Vec4{0, 0, -0.5, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, -10, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)
}

func TestOrthographicDepthRange(t *testing.T) {
	o := Orthographic(-1, 1, -1, 1, 1, 5)
	assert.InDelta(t, 0, o.Mul4x1(mgl32.Vec4{0, 0, -1, 1}).Z(), 1e-5)
	assert.InDelta(t, 1, o.Mul4x1(mgl32.Vec4{0, 0, -5, 1}).Z(), 1e-5)
}

func TestNormalMatrixUniformScale(t *testing.T) {
	m := mgl32.Scale3D(2, 2, 2)
	n := NormalMatrix(m)
	assert.InDelta(t, 0.5, n.At(0, 0), 1e-6)
	assert.Equal(t, mgl32.Ident4(), NormalMatrix(mgl32.Mat4{}))
}

func TestBoxTransformAndUnion(t *testing.T) {
	b := Box{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	moved := b.Transform(mgl32.Translate3D(2, 0, 0))
	assert.Equal(t, mgl32.Vec3{1, -1, -1}, moved.Min)
	assert.Equal(t, mgl32.Vec3{3, 1, 1}, moved.Max)

	e := EmptyBox()
	assert.True(t, e.Empty())
	assert.Equal(t, b, e.Union(b))
	assert.Equal(t, b, b.Union(EmptyBox()))
}

func TestFrustumContainsBox(t *testing.T) {
	proj := Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustum(proj.Mul4(view))

	inside := Box{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	behind := Box{Min: mgl32.Vec3{-1, -1, 10}, Max: mgl32.Vec3{1, 1, 12}}
	assert.True(t, f.ContainsBox(inside))
	assert.False(t, f.ContainsBox(behind))
	assert.False(t, f.ContainsBox(EmptyBox()))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce[string]())
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.Set(1, 0, color.NRGBA{10, 20, 30, 255})
	var encoded bytes.Buffer
	require.NoError(t, bmp.Encode(&encoded, src))

	img, err := DecodeImageBytes(encoded.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, []byte{10, 20, 30, 255}, img.Pixels[4:8])

	path := filepath.Join(t.TempDir(), "img.bmp")
	require.NoError(t, os.WriteFile(path, encoded.Bytes(), 0o644))
	loaded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, img, loaded)

	_, err = DecodeImageBytes([]byte("not an image"))
	assert.Error(t, err)
	_, err = LoadImage(filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)
}
