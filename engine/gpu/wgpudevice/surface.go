package wgpudevice

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNotConfigured is returned by Acquire before the surface has a size.
var ErrNotConfigured = errors.New("wgpudevice: surface is not configured")

// Surface is the swap chain of a window, implementing renderer.Surface.
type Surface struct {
	device        *Device
	raw           *wgpu.Surface
	format        wgpu.TextureFormat
	alpha         wgpu.CompositeAlphaMode
	presentModes  []wgpu.PresentMode
	width, height int
	current       *texture
}

var _ renderer.Surface = &Surface{}

func newSurface(d *Device, raw *wgpu.Surface) *Surface {
	caps := raw.GetCapabilities(d.adapter)
	s := &Surface{device: d, raw: raw, presentModes: caps.PresentModes}
	if len(caps.Formats) > 0 {
		s.format = caps.Formats[0]
	}
	// prefer the first format the toolkit can name, so shaders and pipelines agree on it
	for _, f := range caps.Formats {
		if formatOf(f) != gpu.FormatUndefined {
			s.format = f
			break
		}
	}
	if len(caps.AlphaModes) > 0 {
		s.alpha = caps.AlphaModes[0]
	}
	return s
}

func (s *Surface) Format() gpu.TextureFormat { return formatOf(s.format) }

func (s *Surface) Configure(width, height int, mode renderer.PresentMode) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("wgpudevice: cannot configure a %dx%d surface", width, height)
	}
	present := wgpu.PresentModeFifo
	if mode == renderer.PresentModeUncapped {
		if slices.Contains(s.presentModes, wgpu.PresentModeImmediate) {
			present = wgpu.PresentModeImmediate
		} else {
			warnOnce("present immediate", "uncapped presentation is not supported, using vsync")
		}
	}
	s.releaseCurrent()
	s.raw.Configure(s.device.adapter, s.device.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: present,
		AlphaMode:   s.alpha,
	})
	s.width, s.height = width, height
	log.Debug("surface configured", "width", width, "height", height, "vsync", present == wgpu.PresentModeFifo)
	return nil
}

func (s *Surface) Acquire() (gpu.Texture, error) {
	if s.width == 0 || s.height == 0 {
		return nil, ErrNotConfigured
	}
	s.releaseCurrent()
	raw, err := s.raw.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: acquire surface texture: %w", err)
	}
	s.current = newTexture(s.device, raw, gpu.TextureDescriptor{
		Label:       "surface",
		Type:        gpu.Texture2D,
		Format:      s.Format(),
		Width:       s.width,
		Height:      s.height,
		MipLevels:   1,
		SampleCount: 1,
		Usage:       gpu.TextureUsageRenderAttachment,
	}, false)
	return s.current, nil
}

func (s *Surface) Present() {
	if s.current == nil {
		return
	}
	s.raw.Present()
	s.releaseCurrent()
}

func (s *Surface) releaseCurrent() {
	if s.current != nil {
		s.current.Release()
		s.current = nil
	}
}

func (s *Surface) release() {
	s.releaseCurrent()
	if s.raw != nil {
		s.raw.Release()
		s.raw = nil
	}
}
