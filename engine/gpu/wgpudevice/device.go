// Package wgpudevice implements the gpu device boundary on WebGPU.
//
// Resources map one to one onto wgpu objects. Bind groups are not part of the boundary:
// encoders collect (group, binding) resources and resolve them into cached bind groups
// against the explicit layouts derived from each library's WGSL declarations.
package wgpudevice

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/internal/logx"
	"github.com/cogentcore/webgpu/wgpu"
)

var log = logx.Logger("wgpu")

// executionWidth is reported as the SIMD width; WebGPU does not expose the subgroup size
// without an optional feature.
const executionWidth = 32

// Device is a gpu.Device backed by a wgpu device and its queue.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   wgpu.Limits
	surface  *Surface

	mu     sync.Mutex
	groups map[string]*wgpu.BindGroup
	// users maps a resource to the cached bind groups referencing it, so releasing the
	// resource evicts them.
	users map[any][]string
	empty *wgpu.BindGroupLayout
}

var _ gpu.Device = &Device{}

// New creates a headless device on the preferred adapter.
//
// Parameters:
//   - options: a variadic list of DeviceBuilderOption functions
//
// Returns:
//   - *Device: the new device
//   - error: an error if no adapter or device is available
func New(options ...DeviceBuilderOption) (*Device, error) {
	o := &deviceOptions{}
	for _, opt := range options {
		opt(o)
	}
	return newDevice(o)
}

// NewWithSurface creates a device able to present to the surface described by desc, such
// as the one returned by window.Window.SurfaceDescriptor.
//
// Parameters:
//   - desc: the platform surface descriptor
//   - options: a variadic list of DeviceBuilderOption functions
//
// Returns:
//   - *Device: the new device; Surface returns its presentable surface
//   - error: an error if no compatible adapter or device is available
func NewWithSurface(desc *wgpu.SurfaceDescriptor, options ...DeviceBuilderOption) (*Device, error) {
	o := &deviceOptions{surface: desc}
	for _, opt := range options {
		opt(o)
	}
	return newDevice(o)
}

func newDevice(o *deviceOptions) (*Device, error) {
	runtime.LockOSThread()
	d := &Device{
		instance: wgpu.CreateInstance(nil),
		groups:   make(map[string]*wgpu.BindGroup),
		users:    make(map[any][]string),
	}

	var surface *wgpu.Surface
	if o.surface != nil {
		surface = d.instance.CreateSurface(o.surface)
	}
	power := wgpu.PowerPreferenceHighPerformance
	if o.lowPower {
		power = wgpu.PowerPreferenceLowPower
	}
	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: o.forceFallbackAdapter,
		PowerPreference:      power,
		CompatibleSurface:    surface,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("wgpudevice: request adapter: %w", err)
	}
	d.adapter = adapter

	var features []wgpu.FeatureName
	if adapter.HasFeature(wgpu.FeatureNameFloat32Filterable) {
		features = append(features, wgpu.FeatureNameFloat32Filterable)
	}
	supported := adapter.GetLimits().Limits
	limits := wgpu.DefaultLimits()
	limits.MaxComputeInvocationsPerWorkgroup = supported.MaxComputeInvocationsPerWorkgroup
	limits.MaxComputeWorkgroupSizeX = supported.MaxComputeWorkgroupSizeX
	limits.MaxComputeWorkgroupSizeY = supported.MaxComputeWorkgroupSizeY
	limits.MaxComputeWorkgroupSizeZ = supported.MaxComputeWorkgroupSizeZ
	limits.MaxStorageBufferBindingSize = supported.MaxStorageBufferBindingSize
	limits.MaxBufferSize = supported.MaxBufferSize

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            o.label,
		RequiredFeatures: features,
		RequiredLimits:   &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		adapter.Release()
		d.instance.Release()
		return nil, fmt.Errorf("wgpudevice: request device: %w", err)
	}
	d.device = device
	d.queue = device.GetQueue()
	d.limits = limits

	if surface != nil {
		d.surface = newSurface(d, surface)
	}
	log.Info("device created", "label", o.label, "fallback", o.forceFallbackAdapter, "surface", surface != nil)
	return d, nil
}

// Surface returns the presentable surface, or nil for a headless device.
func (d *Device) Surface() *Surface { return d.surface }

// Raw returns the underlying wgpu device.
func (d *Device) Raw() *wgpu.Device { return d.device }

func (d *Device) SupportsNonUniformThreadgroups() bool { return false }

func (d *Device) MaxThreadsPerThreadgroup() int {
	return int(d.limits.MaxComputeInvocationsPerWorkgroup)
}

func (d *Device) NewBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	size := roundUp4(max(desc.Size, 4))
	raw, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(size),
		// every buffer can be written from the CPU and read back
		Usage: bufferUsage(desc.Usage) | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: create buffer %q: %w", desc.Label, err)
	}
	return &buffer{device: d, raw: raw, desc: desc}, nil
}

func (d *Device) NewTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	format, ok := textureFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("wgpudevice: texture %q: unsupported format %v", desc.Label, desc.Format)
	}
	dimension := wgpu.TextureDimension2D
	if desc.Type == gpu.Texture3D {
		dimension = wgpu.TextureDimension3D
	}
	raw, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     textureUsage(desc),
		Dimension: dimension,
		Size: wgpu.Extent3D{
			Width:              uint32(max(desc.Width, 1)),
			Height:             uint32(max(desc.Height, 1)),
			DepthOrArrayLayers: uint32(desc.Layers()),
		},
		Format:        format,
		MipLevelCount: uint32(max(desc.MipLevels, 1)),
		SampleCount:   uint32(max(desc.SampleCount, 1)),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: create texture %q: %w", desc.Label, err)
	}
	return newTexture(d, raw, desc, true), nil
}

func (d *Device) NewSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	raw, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  addressMode(desc.AddressU),
		AddressModeV:  addressMode(desc.AddressV),
		AddressModeW:  addressMode(desc.AddressW),
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  mipmapFilterMode(desc.MipFilter),
		LodMinClamp:   0,
		LodMaxClamp:   32,
		Compare:       compareFunction(desc.Compare),
		MaxAnisotropy: max(desc.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudevice: create sampler %q: %w", desc.Label, err)
	}
	return &sampler{device: d, raw: raw, comparison: desc.Compare != gpu.CompareUndefined}, nil
}

func (d *Device) NewCommandBuffer(label string) gpu.CommandBuffer {
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		log.Error("cannot create command encoder", "label", label, "err", err)
	}
	return &commandBuffer{device: d, label: label, encoder: enc}
}

// Release destroys the device, its surface and every cached bind group.
func (d *Device) Release() {
	d.mu.Lock()
	for _, g := range d.groups {
		g.Release()
	}
	d.groups, d.users = map[string]*wgpu.BindGroup{}, map[any][]string{}
	if d.empty != nil {
		d.empty.Release()
		d.empty = nil
	}
	d.mu.Unlock()

	if d.surface != nil {
		d.surface.release()
		d.surface = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// emptyLayout returns the layout bound to group indices a pipeline declares nothing in.
func (d *Device) emptyLayout() (*wgpu.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.empty != nil {
		return d.empty, nil
	}
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "empty"})
	if err != nil {
		return nil, err
	}
	d.empty = l
	return l, nil
}

// bindGroup returns the cached bind group for key, creating it from desc on a miss.
// resources are the buffers, textures and samplers whose release evicts the group.
func (d *Device) bindGroup(key string, desc *wgpu.BindGroupDescriptor, resources []any) (*wgpu.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g, ok := d.groups[key]; ok {
		return g, nil
	}
	g, err := d.device.CreateBindGroup(desc)
	if err != nil {
		return nil, err
	}
	d.groups[key] = g
	for _, r := range resources {
		d.users[r] = append(d.users[r], key)
	}
	return g, nil
}

// evict releases the cached bind groups that reference r.
func (d *Device) evict(r any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, key := range d.users[r] {
		if g, ok := d.groups[key]; ok {
			g.Release()
			delete(d.groups, key)
		}
	}
	delete(d.users, r)
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}
