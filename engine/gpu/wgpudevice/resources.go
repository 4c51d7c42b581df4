package wgpudevice

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type buffer struct {
	device *Device
	raw    *wgpu.Buffer
	desc   gpu.BufferDescriptor
}

var _ gpu.Buffer = &buffer{}

func (b *buffer) Label() string { return b.desc.Label }
func (b *buffer) Size() int     { return b.desc.Size }

func (b *buffer) Write(offset int, data []byte) {
	if b.raw == nil || len(data) == 0 {
		return
	}
	if offset < 0 || offset+len(data) > b.desc.Size {
		log.Error("buffer write out of range", "buffer", b.desc.Label, "offset", offset, "len", len(data), "size", b.desc.Size)
		return
	}
	if offset%4 == 0 && len(data)%4 == 0 {
		if err := b.device.queue.WriteBuffer(b.raw, uint64(offset), data); err != nil {
			log.Error("buffer write failed", "buffer", b.desc.Label, "err", err)
		}
		return
	}

	// queue writes need four byte alignment: merge data into the surrounding words
	start := offset &^ 3
	end := roundUp4(offset + len(data))
	window, err := b.read(start, end-start)
	if err != nil {
		log.Error("buffer write failed", "buffer", b.desc.Label, "err", err)
		return
	}
	copy(window[offset-start:], data)
	if err := b.device.queue.WriteBuffer(b.raw, uint64(start), window); err != nil {
		log.Error("buffer write failed", "buffer", b.desc.Label, "err", err)
	}
}

func (b *buffer) Read(offset, size int) ([]byte, error) {
	if offset < 0 || size < 0 || offset+size > b.desc.Size {
		return nil, fmt.Errorf("wgpudevice: read %q: range [%d, %d) outside %d bytes", b.desc.Label, offset, offset+size, b.desc.Size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	start := offset &^ 3
	window, err := b.read(start, roundUp4(offset+size)-start)
	if err != nil {
		return nil, err
	}
	return window[offset-start : offset-start+size], nil
}

// read copies an aligned range into a mappable staging buffer and waits for the map.
func (b *buffer) read(offset, size int) ([]byte, error) {
	d := b.device
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.desc.Label + " readback",
		Size:  uint64(size),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: read %q: %w", b.desc.Label, err)
	}
	defer staging.Release()

	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: b.desc.Label + " readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: read %q: %w", b.desc.Label, err)
	}
	defer enc.Release()
	enc.CopyBufferToBuffer(b.raw, uint64(offset), staging, 0, uint64(size))
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: read %q: %w", b.desc.Label, err)
	}
	d.queue.Submit(cmd)
	cmd.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, uint64(size), func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, fmt.Errorf("wgpudevice: read %q: %w", b.desc.Label, err)
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("wgpudevice: read %q: map status %s", b.desc.Label, status.String())
	}
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (b *buffer) Release() {
	if b.raw == nil {
		return
	}
	b.device.evict(b)
	b.raw.Release()
	b.raw = nil
}

type viewKey struct {
	dimension wgpu.TextureViewDimension
	level     int
}

type texture struct {
	device *Device
	raw    *wgpu.Texture
	desc   gpu.TextureDescriptor
	// owned is false for swap chain images, which the surface hands out per frame.
	owned bool

	mu    sync.Mutex
	views map[viewKey]*wgpu.TextureView
}

var _ gpu.Texture = &texture{}

func newTexture(d *Device, raw *wgpu.Texture, desc gpu.TextureDescriptor, owned bool) *texture {
	return &texture{device: d, raw: raw, desc: desc, owned: owned, views: make(map[viewKey]*wgpu.TextureView)}
}

func (t *texture) Label() string                     { return t.desc.Label }
func (t *texture) Descriptor() gpu.TextureDescriptor { return t.desc }

func (t *texture) Write(layer, level int, data []byte) {
	if t.raw == nil {
		return
	}
	bpp := t.desc.Format.BytesPerPixel()
	w, h := t.desc.MipSize(level)
	if bpp == 0 || layer < 0 || layer >= t.desc.Layers() || level < 0 || level >= max(t.desc.MipLevels, 1) {
		log.Error("texture write rejected", "texture", t.desc.Label, "layer", layer, "level", level)
		return
	}
	if len(data) < bpp*w*h {
		log.Error("texture write too short", "texture", t.desc.Label, "len", len(data), "want", bpp*w*h)
		return
	}
	t.device.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.raw,
			MipLevel: uint32(level),
			Origin:   wgpu.Origin3D{Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		data[:bpp*w*h],
		&wgpu.TextureDataLayout{
			BytesPerRow:  uint32(bpp * w),
			RowsPerImage: uint32(h),
		},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

// defaultDimension is the view dimension of a sampled binding when the shader does not
// say otherwise.
func (t *texture) defaultDimension() wgpu.TextureViewDimension {
	switch t.desc.Type {
	case gpu.Texture2DArray:
		return wgpu.TextureViewDimension2DArray
	case gpu.TextureCube:
		return wgpu.TextureViewDimensionCube
	case gpu.Texture3D:
		return wgpu.TextureViewDimension3D
	default:
		return wgpu.TextureViewDimension2D
	}
}

// view returns a cached view of one mip level, or of every level for gpu.AllMipLevels.
// A zero dimension selects the attachment view of level 0.
func (t *texture) view(dimension wgpu.TextureViewDimension, level int) (*wgpu.TextureView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := viewKey{dimension: dimension, level: level}
	if v, ok := t.views[key]; ok {
		return v, nil
	}
	if t.raw == nil {
		return nil, fmt.Errorf("wgpudevice: texture %q was released", t.desc.Label)
	}

	var desc *wgpu.TextureViewDescriptor
	if dimension != wgpu.TextureViewDimensionUndefined {
		format, _ := textureFormat(t.desc.Format)
		levels := max(t.desc.MipLevels, 1)
		base, count := 0, levels
		if level != gpu.AllMipLevels {
			base, count = min(max(level, 0), levels-1), 1
		}
		layers := 1
		switch dimension {
		case wgpu.TextureViewDimension2DArray, wgpu.TextureViewDimensionCube, wgpu.TextureViewDimensionCubeArray:
			layers = t.desc.Layers()
		}
		desc = &wgpu.TextureViewDescriptor{
			Label:           t.desc.Label,
			Format:          format,
			Dimension:       dimension,
			BaseMipLevel:    uint32(base),
			MipLevelCount:   uint32(count),
			BaseArrayLayer:  0,
			ArrayLayerCount: uint32(layers),
			Aspect:          wgpu.TextureAspectAll,
		}
	}
	v, err := t.raw.CreateView(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: view of %q: %w", t.desc.Label, err)
	}
	t.views[key] = v
	return v, nil
}

func (t *texture) Release() {
	if t.raw == nil {
		return
	}
	t.device.evict(t)
	t.mu.Lock()
	for k, v := range t.views {
		v.Release()
		delete(t.views, k)
	}
	t.mu.Unlock()
	if t.owned {
		t.raw.Destroy()
	}
	t.raw.Release()
	t.raw = nil
}

type sampler struct {
	device     *Device
	raw        *wgpu.Sampler
	comparison bool
}

var _ gpu.Sampler = &sampler{}

func (s *sampler) Release() {
	if s.raw == nil {
		return
	}
	s.device.evict(s)
	s.raw.Release()
	s.raw = nil
}
