package light

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the fixed length of the light array in LightUniforms.
const MaxLights = 16

// LightsSource is the WGSL definition of the Light and Lights structs materials read
// through the light system's binding.
//
//go:embed assets/lights.wgsl
var LightsSource string

// ShadowSource is the WGSL definition of the ShadowData struct.
//
//go:embed assets/shadow.wgsl
var ShadowSource string

// GPULight is the GPU-aligned representation of a single light.
// Matches the WGSL Light struct exactly (see assets/lights.wgsl).
// Size: 64 bytes.
type GPULight struct {
	Position     mgl32.Vec3 // offset  0
	Kind         uint32     // offset 12
	Color        mgl32.Vec3 // offset 16
	Intensity    float32    // offset 28
	Direction    mgl32.Vec3 // offset 32
	Range        float32    // offset 44
	InnerCone    float32    // offset 48: cosine of the inner cone angle
	OuterCone    float32    // offset 52: cosine of the outer cone angle
	CastsShadows uint32     // offset 56
	Enabled      uint32     // offset 60
}

// LightUniforms is the block bound to materials as the Lights struct.
// Size: 16 + MaxLights * 64 bytes.
type LightUniforms struct {
	Ambient mgl32.Vec3
	Count   uint32
	Lights  [MaxLights]GPULight
}

// Stride returns the size of the struct in bytes.
func (u *LightUniforms) Stride() int {
	return int(unsafe.Sizeof(*u))
}

// Pack writes the struct into dst, which holds at least Stride bytes.
func (u *LightUniforms) Pack(dst []byte) {
	copy(dst, common.StructToBytes(u))
}

// ShadowData is the per-light shadow block. Matches the WGSL ShadowData struct.
// Size: 80 bytes.
type ShadowData struct {
	LightViewProjection mgl32.Mat4 // offset  0
	TexelSize           float32    // offset 64: world-space size of one shadow map texel
	Bias                float32    // offset 68
	NormalBias          float32    // offset 72
	Resolution          float32    // offset 76
}

func (s *ShadowData) Stride() int {
	return int(unsafe.Sizeof(*s))
}

func (s *ShadowData) Pack(dst []byte) {
	copy(dst, common.StructToBytes(s))
}
