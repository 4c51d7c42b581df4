package wgpudevice

import (
	"strings"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var textureFormats = map[gpu.TextureFormat]wgpu.TextureFormat{
	gpu.FormatRGBA8Unorm:          wgpu.TextureFormatRGBA8Unorm,
	gpu.FormatRGBA8UnormSrgb:      wgpu.TextureFormatRGBA8UnormSrgb,
	gpu.FormatBGRA8Unorm:          wgpu.TextureFormatBGRA8Unorm,
	gpu.FormatBGRA8UnormSrgb:      wgpu.TextureFormatBGRA8UnormSrgb,
	gpu.FormatRGBA16Float:         wgpu.TextureFormatRGBA16Float,
	gpu.FormatRGBA32Float:         wgpu.TextureFormatRGBA32Float,
	gpu.FormatRG16Float:           wgpu.TextureFormatRG16Float,
	gpu.FormatRG32Float:           wgpu.TextureFormatRG32Float,
	gpu.FormatR32Float:            wgpu.TextureFormatR32Float,
	gpu.FormatDepth32Float:        wgpu.TextureFormatDepth32Float,
	gpu.FormatDepth24PlusStencil8: wgpu.TextureFormatDepth24PlusStencil8,
}

func textureFormat(f gpu.TextureFormat) (wgpu.TextureFormat, bool) {
	w, ok := textureFormats[f]
	return w, ok
}

// formatOf maps a surface format back onto the toolkit's formats.
func formatOf(w wgpu.TextureFormat) gpu.TextureFormat {
	for f, v := range textureFormats {
		if v == w {
			return f
		}
	}
	return gpu.FormatUndefined
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	pairs := []struct {
		from gpu.BufferUsage
		to   wgpu.BufferUsage
	}{
		{gpu.BufferUsageVertex, wgpu.BufferUsageVertex},
		{gpu.BufferUsageIndex, wgpu.BufferUsageIndex},
		{gpu.BufferUsageUniform, wgpu.BufferUsageUniform},
		{gpu.BufferUsageStorage, wgpu.BufferUsageStorage},
		{gpu.BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
		{gpu.BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
		{gpu.BufferUsageIndirect, wgpu.BufferUsageIndirect},
	}
	for _, p := range pairs {
		if u&p.from != 0 {
			out |= p.to
		}
	}
	return out
}

// textureUsage maps the requested usage, defaulting to a sampled texture. Single-sampled
// color textures can always be written from the CPU.
func textureUsage(desc gpu.TextureDescriptor) wgpu.TextureUsage {
	u := desc.Usage
	if u == 0 {
		u = gpu.TextureUsageBinding
	}
	var out wgpu.TextureUsage
	if u&gpu.TextureUsageBinding != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.TextureUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&gpu.TextureUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&gpu.TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&gpu.TextureUsageCopyDst != 0 || (desc.SampleCount <= 1 && !desc.Format.IsDepth()) {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

func filterMode(f gpu.FilterMode) wgpu.FilterMode {
	if f == gpu.FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func mipmapFilterMode(f gpu.FilterMode) wgpu.MipmapFilterMode {
	if f == gpu.FilterLinear {
		return wgpu.MipmapFilterModeLinear
	}
	return wgpu.MipmapFilterModeNearest
}

func addressMode(a gpu.AddressMode) wgpu.AddressMode {
	switch a {
	case gpu.AddressClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gpu.AddressMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

func compareFunction(c gpu.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gpu.CompareNever:
		return wgpu.CompareFunctionNever
	case gpu.CompareLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareEqual:
		return wgpu.CompareFunctionEqual
	case gpu.CompareGreater:
		return wgpu.CompareFunctionGreater
	case gpu.CompareGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	case gpu.CompareNotEqual:
		return wgpu.CompareFunctionNotEqual
	case gpu.CompareAlways:
		return wgpu.CompareFunctionAlways
	default:
		return wgpu.CompareFunctionUndefined
	}
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullFront:
		return wgpu.CullModeFront
	case gpu.CullBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func frontFace(w gpu.Winding) wgpu.FrontFace {
	if w == gpu.WindingClockwise {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func topology(t gpu.Topology) wgpu.PrimitiveTopology {
	switch t {
	case gpu.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case gpu.TopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gpu.TopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case gpu.TopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func indexFormat(f gpu.IndexFormat) wgpu.IndexFormat {
	if f == gpu.IndexUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case gpu.VertexFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case gpu.VertexUint32:
		return wgpu.VertexFormatUint32
	default:
		return wgpu.VertexFormatFloat32
	}
}

func vertexLayouts(layouts []gpu.VertexLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, len(layouts))
	for i, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         uint64(a.Offset),
				ShaderLocation: uint32(a.Location),
			}
		}
		step := wgpu.VertexStepModeVertex
		if l.PerInstance {
			step = wgpu.VertexStepModeInstance
		}
		out[i] = wgpu.VertexBufferLayout{
			ArrayStride: uint64(l.Stride),
			StepMode:    step,
			Attributes:  attrs,
		}
	}
	return out
}

func blendFactor(f gpu.BlendFactor) wgpu.BlendFactor {
	switch f {
	case gpu.BlendOne:
		return wgpu.BlendFactorOne
	case gpu.BlendSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case gpu.BlendOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case gpu.BlendDstAlpha:
		return wgpu.BlendFactorDstAlpha
	case gpu.BlendOneMinusDstAlpha:
		return wgpu.BlendFactorOneMinusDstAlpha
	default:
		return wgpu.BlendFactorZero
	}
}

func blendOperation(o gpu.BlendOperation) wgpu.BlendOperation {
	switch o {
	case gpu.BlendOpSubtract:
		return wgpu.BlendOperationSubtract
	case gpu.BlendOpMax:
		return wgpu.BlendOperationMax
	default:
		return wgpu.BlendOperationAdd
	}
}

func blendState(b *gpu.BlendState) *wgpu.BlendState {
	if b == nil {
		return nil
	}
	component := func(c gpu.BlendComponent) wgpu.BlendComponent {
		return wgpu.BlendComponent{
			SrcFactor: blendFactor(c.Src),
			DstFactor: blendFactor(c.Dst),
			Operation: blendOperation(c.Operation),
		}
	}
	return &wgpu.BlendState{Color: component(b.Color), Alpha: component(b.Alpha)}
}

var sampledTextureDimensions = map[string]wgpu.TextureViewDimension{
	"texture_1d":                    wgpu.TextureViewDimension1D,
	"texture_2d":                    wgpu.TextureViewDimension2D,
	"texture_2d_array":              wgpu.TextureViewDimension2DArray,
	"texture_3d":                    wgpu.TextureViewDimension3D,
	"texture_cube":                  wgpu.TextureViewDimensionCube,
	"texture_cube_array":            wgpu.TextureViewDimensionCubeArray,
	"texture_multisampled_2d":       wgpu.TextureViewDimension2D,
	"texture_depth_2d":              wgpu.TextureViewDimension2D,
	"texture_depth_2d_array":        wgpu.TextureViewDimension2DArray,
	"texture_depth_cube":            wgpu.TextureViewDimensionCube,
	"texture_depth_cube_array":      wgpu.TextureViewDimensionCubeArray,
	"texture_depth_multisampled_2d": wgpu.TextureViewDimension2D,
	"texture_storage_1d":            wgpu.TextureViewDimension1D,
	"texture_storage_2d":            wgpu.TextureViewDimension2D,
	"texture_storage_2d_array":      wgpu.TextureViewDimension2DArray,
	"texture_storage_3d":            wgpu.TextureViewDimension3D,
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// splitType splits "texture_storage_2d<rgba16float, write>" into the base name and its
// parameters.
func splitType(t string) (string, []string) {
	base, params, ok := strings.Cut(t, "<")
	if !ok {
		return strings.TrimSpace(t), nil
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimSpace(params), ">"), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.TrimSpace(base), parts
}

// viewDimension returns the view dimension a texture declaration expects.
func viewDimension(d shader.Declaration) wgpu.TextureViewDimension {
	base, _ := splitType(d.Type)
	if dim, ok := sampledTextureDimensions[base]; ok {
		return dim
	}
	return wgpu.TextureViewDimension2D
}

// layoutEntry builds the bind group layout entry for one reflected declaration.
func layoutEntry(d shader.Declaration, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(d.Binding),
		Visibility: visibility,
	}
	base, params := splitType(d.Type)
	switch d.Kind {
	case shader.ResourceUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case shader.ResourceStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	case shader.ResourceReadOnlyStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case shader.ResourceSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		if base == "sampler_comparison" {
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
	case shader.ResourceStorageTexture:
		entry.StorageTexture.ViewDimension = viewDimension(d)
		entry.StorageTexture.Format, _ = textureFormat(d.Format)
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		if len(params) > 1 {
			if a, ok := storageAccess[params[1]]; ok {
				entry.StorageTexture.Access = a
			}
		}
	case shader.ResourceTexture:
		entry.Texture.ViewDimension = viewDimension(d)
		entry.Texture.Multisampled = strings.Contains(base, "multisampled")
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		switch {
		case strings.HasPrefix(base, "texture_depth_"):
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		case len(params) > 0:
			if st, ok := sampleTypes[params[0]]; ok {
				entry.Texture.SampleType = st
			}
		}
	}
	return entry
}
