package buffer

import (
	"testing"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/gputest"
	"github.com/Carmen-Shannon/prism/engine/parameter"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func particleGroup() *parameter.Group {
	return parameter.NewGroup("Particle",
		parameter.NewFloat3("position", mgl32.Vec3{1, 2, 3}),
		parameter.NewFloat("life", 0.5),
	)
}

func TestNewBufferRejectsEmptyLayout(t *testing.T) {
	d := gputest.NewDevice()
	_, err := NewBuffer(d, parameter.NewGroup("Empty"), 4)
	assert.ErrorIs(t, err, ErrEmptyLayout)
	_, err = NewUniformBuffer(d, parameter.NewGroup("Empty"))
	assert.ErrorIs(t, err, ErrEmptyLayout)
	assert.Empty(t, d.Buffers)
}

func TestBufferUpdateWritesAtStride(t *testing.T) {
	d := gputest.NewDevice()
	g := particleGroup()
	b, err := NewBuffer(d, g, 4, WithLabel("particles"))
	require.NoError(t, err)
	require.Equal(t, 32, b.Stride())

	fake := b.GPU().(*gputest.Buffer)
	assert.Equal(t, 128, fake.Size())
	assert.Equal(t, "particles", fake.Label())

	require.NoError(t, g.Set("life", float32(2)))
	require.NoError(t, b.Update(2))
	assert.Equal(t, g.Bytes(), fake.Data[64:96])
	assert.NotEqual(t, g.Bytes(), fake.Data[32:64], "other elements keep the old image")

	writes := fake.Writes
	assert.Error(t, b.Update(4))
	assert.Error(t, b.Update(-1))
	assert.Equal(t, writes, fake.Writes, "out of range updates write nothing")
}

func TestCountMustBePositive(t *testing.T) {
	d := gputest.NewDevice()
	for _, count := range []int{0, -3} {
		_, err := NewBuffer(d, particleGroup(), count)
		assert.ErrorIs(t, err, ErrInvalidCount)
		_, err = NewStructBuffer[particle](d, "particles", count, nil)
		assert.ErrorIs(t, err, ErrInvalidCount)
	}
	assert.Empty(t, d.Buffers)
}

func TestBufferRejectsChangedLayout(t *testing.T) {
	d := gputest.NewDevice()
	g := particleGroup()
	b, err := NewBuffer(d, g, 2)
	require.NoError(t, err)

	require.NoError(t, g.Append(parameter.NewFloat4("color", mgl32.Vec4{1, 1, 1, 1})))
	assert.ErrorIs(t, b.Update(0), ErrLayoutChanged)
	assert.Equal(t, 32, b.Stride())
}

func TestUniformBufferFollowsAppendedParameters(t *testing.T) {
	d := gputest.NewDevice()
	ctx := gpu.NewContext(d)
	g := particleGroup()
	u, err := NewUniformBuffer(d, g, WithRegions(3), WithAlignment(16), WithContext(ctx))
	require.NoError(t, err)
	u.Update()
	old := u.GPU().(*gputest.Buffer)
	require.Equal(t, 32, u.Size())

	require.NoError(t, g.Append(parameter.NewFloat4("color", mgl32.Vec4{0, 1, 0, 1})))
	require.Equal(t, 48, g.Stride())
	require.NotPanics(t, u.Update)

	assert.Equal(t, 48, u.Size())
	assert.Equal(t, 48, u.Stride())
	assert.Equal(t, 3*48, u.GPU().Size())
	assert.Zero(t, u.Offset(), "the new ring starts over")
	fake := u.GPU().(*gputest.Buffer)
	for i := range 3 {
		assert.Equal(t, g.Bytes(), fake.Data[i*48:(i+1)*48], "region %d", i)
	}

	assert.False(t, old.Released, "frames in flight may still read the old ring")
	assert.Equal(t, 1, ctx.Retired())
	ctx.Release()
	assert.True(t, old.Released)
}

func TestBufferSyncIsInverseOfUpdate(t *testing.T) {
	d := gputest.NewDevice()
	g := particleGroup()
	b, err := NewBuffer(d, g, 2)
	require.NoError(t, err)

	// simulate a kernel writing element 1
	computed := particleGroup()
	require.NoError(t, computed.Set("position", mgl32.Vec3{7, 8, 9}))
	require.NoError(t, computed.Set("life", float32(0.125)))
	copy(b.GPU().(*gputest.Buffer).Data[b.Stride():], computed.Bytes())

	require.NoError(t, b.Sync(1))
	pos, _ := g.Get("position")
	life, _ := g.Get("life")
	assert.Equal(t, mgl32.Vec3{7, 8, 9}, pos.Float3())
	assert.Equal(t, float32(0.125), life.Float())

	assert.Error(t, b.Sync(5))
}

type packOnly struct{}

func (packOnly) Stride() int     { return 4 }
func (packOnly) Pack(dst []byte) { common.PutFloat32s(dst, 1) }

func TestBufferSyncNeedsUnpacker(t *testing.T) {
	b, err := NewBuffer(gputest.NewDevice(), packOnly{}, 1)
	require.NoError(t, err)
	assert.Error(t, b.Sync(0))
}

func TestUniformBufferRingOffsets(t *testing.T) {
	d := gputest.NewDevice()
	g := particleGroup()
	u, err := NewUniformBuffer(d, g, WithRegions(3))
	require.NoError(t, err)
	assert.Equal(t, 256, u.Stride())
	assert.Equal(t, 32, u.Size())
	assert.Equal(t, 768, u.GPU().Size())

	var offsets []int
	for i := 0; i < 7; i++ {
		u.Update()
		offsets = append(offsets, u.Offset())
	}
	assert.Equal(t, []int{0, 256, 512, 0, 256, 512, 0}, offsets)

	distinct := map[int]bool{}
	for _, o := range offsets[:3] {
		distinct[o] = true
	}
	assert.Len(t, distinct, 3, "one full cycle never aliases")
}

func TestUniformBufferUpdateWritesCurrentRegionOnly(t *testing.T) {
	d := gputest.NewDevice()
	g := particleGroup()
	u, err := NewUniformBuffer(d, g)
	require.NoError(t, err)
	fake := u.GPU().(*gputest.Buffer)
	before := g.Bytes()

	require.NoError(t, g.Set("life", float32(9)))
	u.Update()
	assert.Equal(t, g.Bytes(), fake.Data[0:32])
	assert.Equal(t, before, fake.Data[256:288], "in-flight regions are untouched")
}

func TestUniformBufferBind(t *testing.T) {
	d := gputest.NewDevice()
	u, err := NewUniformBuffer(d, particleGroup(), WithAlignment(64))
	require.NoError(t, err)
	u.Update()
	u.Update()

	pass := d.NewCommandBuffer("t").BeginRenderPass(gpu.RenderPassDescriptor{})
	u.Bind(pass, 1, 0)
	cmd := pass.(*gputest.RenderPass).Ops("SetBuffer")[0]
	assert.Equal(t, 64, cmd.Offset)
	assert.Equal(t, 32, cmd.Size)
	assert.Equal(t, 1, cmd.Group)
}

type particle struct {
	Position [3]float32
	Life     float32
}

func TestStructBuffer(t *testing.T) {
	d := gputest.NewDevice()
	s, err := NewStructBuffer(d, "particles", 3, []particle{{Life: 1}, {Life: 2}})
	require.NoError(t, err)
	assert.Equal(t, 16, s.Stride())
	assert.Equal(t, 48, s.GPU().Size())

	s.Update(2, []particle{{Position: [3]float32{1, 1, 1}, Life: 3}, {Life: 99}})
	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, []particle{{Life: 1}, {Life: 2}, {Position: [3]float32{1, 1, 1}, Life: 3}}, got)
}
