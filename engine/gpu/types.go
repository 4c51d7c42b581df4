package gpu

// BufferUsage is a bit set describing how a buffer will be bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageIndirect
)

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  int
	Usage BufferUsage
}

// TextureFormat enumerates the pixel formats the toolkit allocates.
type TextureFormat int

const (
	FormatUndefined TextureFormat = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8Unorm
	FormatBGRA8UnormSrgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatRG16Float
	FormatRG32Float
	FormatR32Float
	FormatDepth32Float
	FormatDepth24PlusStencil8
)

// BytesPerPixel returns the texel size of the format, or 0 for depth and undefined formats.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8UnormSrgb, FormatBGRA8Unorm, FormatBGRA8UnormSrgb, FormatR32Float:
		return 4
	case FormatRGBA16Float, FormatRG32Float:
		return 8
	case FormatRG16Float:
		return 4
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// IsDepth reports whether the format is a depth or depth-stencil format.
func (f TextureFormat) IsDepth() bool {
	return f == FormatDepth32Float || f == FormatDepth24PlusStencil8
}

// WGSLStorageFormat returns the texel format name used in WGSL storage texture declarations.
func (f TextureFormat) WGSLStorageFormat() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatRG32Float:
		return "rg32float"
	case FormatR32Float:
		return "r32float"
	default:
		return ""
	}
}

// TextureType selects the dimensionality of a texture.
type TextureType int

const (
	Texture2D TextureType = iota
	Texture2DArray
	TextureCube
	Texture3D
)

// TextureUsage is a bit set describing how a texture will be bound.
type TextureUsage uint32

const (
	TextureUsageBinding TextureUsage = 1 << iota
	TextureUsageStorage
	TextureUsageRenderAttachment
	TextureUsageCopySrc
	TextureUsageCopyDst
)

// AllMipLevels binds the whole mip chain of a sampled texture in a compute pass.
const AllMipLevels = -1

// TextureDescriptor describes a texture allocation. Descriptors are comparable so that
// compute systems can detect shape changes with ==.
type TextureDescriptor struct {
	Label  string
	Type   TextureType
	Format TextureFormat
	Width  int
	Height int
	// Depth is the array layer count for 2D arrays, 6 for cubes and the depth for 3D textures.
	Depth       int
	MipLevels   int
	SampleCount int
	Usage       TextureUsage
}

// Layers returns the number of array layers (or depth slices) the texture holds.
func (d TextureDescriptor) Layers() int {
	switch {
	case d.Type == TextureCube:
		return 6
	case d.Depth < 1:
		return 1
	default:
		return d.Depth
	}
}

// MipSize returns the width and height of the given mip level, never smaller than one.
func (d TextureDescriptor) MipSize(level int) (int, int) {
	w, h := d.Width>>level, d.Height>>level
	return max(w, 1), max(h, 1)
}

// FilterMode selects texel filtering.
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// AddressMode selects how coordinates outside [0, 1] are resolved.
type AddressMode int

const (
	AddressRepeat AddressMode = iota
	AddressClampToEdge
	AddressMirrorRepeat
)

// CompareFunction is used by depth tests and comparison samplers.
type CompareFunction int

const (
	CompareUndefined CompareFunction = iota
	CompareNever
	CompareLess
	CompareLessEqual
	CompareEqual
	CompareGreater
	CompareGreaterEqual
	CompareNotEqual
	CompareAlways
)

// SamplerDescriptor describes a sampler.
type SamplerDescriptor struct {
	Label         string
	MagFilter     FilterMode
	MinFilter     FilterMode
	MipFilter     FilterMode
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	Compare       CompareFunction
	MaxAnisotropy uint16
}

// LinearSampler is a trilinear, repeating sampler description.
var LinearSampler = SamplerDescriptor{
	Label:     "linear",
	MagFilter: FilterLinear,
	MinFilter: FilterLinear,
	MipFilter: FilterLinear,
}

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// Winding selects which vertex order is front facing.
type Winding int

const (
	WindingCounterClockwise Winding = iota
	WindingClockwise
)

// FillMode selects solid or wireframe rasterization.
type FillMode int

const (
	FillSolid FillMode = iota
	FillLines
)

// Topology selects how vertices are assembled into primitives.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyLineStrip
	TopologyPointList
)

// IndexFormat selects the width of index buffer elements.
type IndexFormat int

const (
	IndexUint32 IndexFormat = iota
	IndexUint16
)

// VertexFormat is the type of a single vertex attribute.
type VertexFormat int

const (
	VertexFloat32 VertexFormat = iota
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
	VertexUint32
)

// VertexAttribute places one attribute inside a vertex buffer stride.
type VertexAttribute struct {
	Format   VertexFormat
	Offset   int
	Location int
}

// VertexLayout describes one vertex buffer slot.
type VertexLayout struct {
	Stride     int
	Attributes []VertexAttribute
	// PerInstance steps the buffer once per instance instead of once per vertex.
	PerInstance bool
}

// BlendFactor is a blend equation factor.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
)

// BlendOperation combines the weighted source and destination.
type BlendOperation int

const (
	BlendOpAdd BlendOperation = iota
	BlendOpSubtract
	BlendOpMax
)

// BlendComponent is one blend equation for color or alpha.
type BlendComponent struct {
	Src       BlendFactor
	Dst       BlendFactor
	Operation BlendOperation
}

// BlendState holds the color and alpha blend equations of a color target.
type BlendState struct {
	Color BlendComponent
	Alpha BlendComponent
}

// Blending selects one of the supported blend configurations for a material.
type Blending int

const (
	BlendingDisabled Blending = iota
	BlendingAlpha
	BlendingAdditive
)

// String returns the lower-case name of the blending mode.
func (b Blending) String() string {
	switch b {
	case BlendingAlpha:
		return "alpha"
	case BlendingAdditive:
		return "additive"
	default:
		return "disabled"
	}
}

// BlendState returns the blend configuration for the mode, or nil when blending is disabled.
//
// Returns:
//   - *BlendState: alpha blending uses src-alpha / one-minus-src-alpha, additive uses src-alpha / one
func (b Blending) BlendState() *BlendState {
	switch b {
	case BlendingAlpha:
		return &BlendState{
			Color: BlendComponent{Src: BlendSrcAlpha, Dst: BlendOneMinusSrcAlpha, Operation: BlendOpAdd},
			Alpha: BlendComponent{Src: BlendOne, Dst: BlendOneMinusSrcAlpha, Operation: BlendOpAdd},
		}
	case BlendingAdditive:
		return &BlendState{
			Color: BlendComponent{Src: BlendSrcAlpha, Dst: BlendOne, Operation: BlendOpAdd},
			Alpha: BlendComponent{Src: BlendOne, Dst: BlendOne, Operation: BlendOpAdd},
		}
	default:
		return nil
	}
}

// DepthState is the depth/stencil configuration of a render pipeline.
type DepthState struct {
	Compare        CompareFunction
	Write          bool
	Bias           int32
	BiasSlopeScale float32
}

// DefaultDepthState tests with less-equal and writes depth.
var DefaultDepthState = DepthState{Compare: CompareLessEqual, Write: true}
