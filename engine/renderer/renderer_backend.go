package renderer

import "github.com/Carmen-Shannon/prism/engine/gpu"

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values are adapter-dependent and may not be available.
//
// The sample count is a property of the gpu.Context, since every pipeline is compiled
// for it: pass gpu.WithSampleCount(int(count)) when creating the context.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// Surface is a presentable swap chain, such as a window surface.
type Surface interface {
	// Format retrieves the texture format of the images the surface hands out.
	//
	// Returns:
	//   - gpu.TextureFormat: the surface format
	Format() gpu.TextureFormat

	// Configure resizes the swap chain.
	//
	// Parameters:
	//   - width: the width in pixels
	//   - height: the height in pixels
	//   - mode: how frames are presented
	//
	// Returns:
	//   - error: the configuration error
	Configure(width, height int, mode PresentMode) error

	// Acquire retrieves the image the next frame is rendered into.
	//
	// Returns:
	//   - gpu.Texture: the swap chain image, valid until Present
	//   - error: an error when no image is available, for example while minimized
	Acquire() (gpu.Texture, error)

	// Present displays the image returned by the last Acquire.
	Present()
}
