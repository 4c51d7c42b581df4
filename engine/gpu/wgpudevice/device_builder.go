package wgpudevice

import "github.com/cogentcore/webgpu/wgpu"

type deviceOptions struct {
	label                string
	surface              *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool
	lowPower             bool
}

// DeviceBuilderOption configures New and NewWithSurface.
type DeviceBuilderOption func(*deviceOptions)

// WithLabel sets the debug label of the device.
func WithLabel(label string) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.label = label
	}
}

// WithForceFallbackAdapter requests the software adapter, for machines without a GPU.
func WithForceFallbackAdapter() DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.forceFallbackAdapter = true
	}
}

// WithLowPower prefers an integrated adapter over a discrete one.
func WithLowPower() DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.lowPower = true
	}
}
