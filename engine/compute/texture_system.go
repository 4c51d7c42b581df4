package compute

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
)

// identRegex matches labels usable as WGSL variable names.
var identRegex = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// requiredUsage is added to every texture a TextureComputeSystem allocates.
const requiredUsage = gpu.TextureUsageStorage | gpu.TextureUsageBinding | gpu.TextureUsageCopySrc | gpu.TextureUsageCopyDst

// TextureComputeSystem runs a kernel over every texel of one or more storage textures. A
// texture is bound under its descriptor label when that is a valid identifier, otherwise
// as texture<i>.
type TextureComputeSystem struct {
	*system

	descs []gpu.TextureDescriptor
	level int
	// allocated holds the descriptors the current copies were created from.
	allocated []gpu.TextureDescriptor
	copies    [][]gpu.Texture
}

var _ resources = &TextureComputeSystem{}

// NewTextureComputeSystem creates a texture compute system. Every descriptor must use a
// format with a WGSL storage texel format.
//
// Parameters:
//   - name: the kernel name, selecting the <name>Reset and <name>Update entry points
//   - descs: the output textures in binding order
//   - opts: a variadic list of ComputeBuilderOption functions
//
// Returns:
//   - *TextureComputeSystem: the new system, not yet compiled
func NewTextureComputeSystem(name string, descs []gpu.TextureDescriptor, opts ...ComputeBuilderOption) *TextureComputeSystem {
	return newTextureComputeSystem(name, descs, false, opts)
}

// NewLiveTextureComputeSystem creates a texture compute system whose kernel recompiles
// when the file at path, or any file it includes, changes on disk.
//
// Parameters:
//   - name: the kernel name
//   - path: the kernel source file
//   - descs: the output textures in binding order
//   - opts: a variadic list of ComputeBuilderOption functions
//
// Returns:
//   - *TextureComputeSystem: the new system, not yet compiled
func NewLiveTextureComputeSystem(name, path string, descs []gpu.TextureDescriptor, opts ...ComputeBuilderOption) *TextureComputeSystem {
	return newTextureComputeSystem(name, descs, true, append(opts, WithSourcePath(path)))
}

func newTextureComputeSystem(name string, descs []gpu.TextureDescriptor, live bool, opts []ComputeBuilderOption) *TextureComputeSystem {
	o := &options{live: live}
	for _, opt := range opts {
		opt(o)
	}
	t := &TextureComputeSystem{system: newSystem(name, o)}
	t.SetTextureDescriptors(descs)
	return t
}

// SetTextureDescriptors replaces the output textures. When they differ from the current
// ones the kernel is redeclared and the textures are reallocated and reset on the next
// Update.
//
// Parameters:
//   - descs: the output textures in binding order
func (t *TextureComputeSystem) SetTextureDescriptors(descs []gpu.TextureDescriptor) {
	normalized := make([]gpu.TextureDescriptor, len(descs))
	for i, d := range descs {
		if d.Format.WGSLStorageFormat() == "" {
			panic(fmt.Sprintf("compute: %s: texture %d has no storage format", t.name, i))
		}
		d.Usage |= requiredUsage
		d.MipLevels = max(d.MipLevels, 1)
		d.SampleCount = 1
		normalized[i] = d
	}
	if slices.Equal(normalized, t.descs) {
		return
	}
	t.descs = normalized
	t.level = min(t.level, t.maxLevel())

	decls := make([]resource, len(normalized))
	for i, d := range normalized {
		decls[i] = resource{
			name:        textureName(i, d),
			input:       sampledType(d.Type),
			inputSpace:  shader.AddressSpaceHandle,
			output:      storageType(d),
			outputSpace: shader.AddressSpaceHandle,
		}
	}
	t.kernel.declare(t.feedback, decls)
}

func textureName(i int, d gpu.TextureDescriptor) string {
	if identRegex.MatchString(d.Label) {
		return d.Label
	}
	return fmt.Sprintf("texture%d", i)
}

func sampledType(typ gpu.TextureType) string {
	switch typ {
	case gpu.Texture2DArray, gpu.TextureCube:
		return "texture_2d_array<f32>"
	case gpu.Texture3D:
		return "texture_3d<f32>"
	default:
		return "texture_2d<f32>"
	}
}

func storageType(d gpu.TextureDescriptor) string {
	format := d.Format.WGSLStorageFormat()
	switch d.Type {
	case gpu.Texture2DArray, gpu.TextureCube:
		return "texture_storage_2d_array<" + format + ", write>"
	case gpu.Texture3D:
		return "texture_storage_3d<" + format + ", write>"
	default:
		return "texture_storage_2d<" + format + ", write>"
	}
}

func (t *TextureComputeSystem) Descriptors() []gpu.TextureDescriptor { return slices.Clone(t.descs) }
func (t *TextureComputeSystem) MipLevel() int                        { return t.level }

func (t *TextureComputeSystem) maxLevel() int {
	levels := 1
	for _, d := range t.descs {
		levels = max(levels, d.MipLevels)
	}
	return levels - 1
}

// SetMipLevel selects the mip level bound and dispatched over by the following updates.
// The level is clamped to the levels the textures have.
func (t *TextureComputeSystem) SetMipLevel(level int) {
	t.level = min(max(level, 0), t.maxLevel())
}

// Setup compiles the kernel against ctx. Compile failures are logged and leave the system
// inert; the error is returned for callers that want it.
func (t *TextureComputeSystem) Setup(ctx *gpu.Context) error {
	return t.setup(ctx)
}

// Update encodes the pending reset passes and one update pass over the current mip level
// into a compute pass of cmd.
//
// Parameters:
//   - cmd: the command buffer to record into
//
// Returns:
//   - bool: false if nothing was encoded, such as before a successful compile
func (t *TextureComputeSystem) Update(cmd gpu.CommandBuffer) bool {
	return t.update(cmd, t)
}

// DispatchLevel selects a mip level and runs Update over it.
func (t *TextureComputeSystem) DispatchLevel(cmd gpu.CommandBuffer, level int) bool {
	t.SetMipLevel(level)
	return t.Update(cmd)
}

// Texture retrieves the copy of texture i written by the last update, or nil before the
// textures are allocated.
func (t *TextureComputeSystem) Texture(i int) gpu.Texture {
	if i < 0 || len(t.copies) == 0 || i >= len(t.copies[t.ping]) {
		return nil
	}
	return t.copies[t.ping][i]
}

// Detach hands the textures written by the last update to the caller, who becomes
// responsible for releasing them. The next Update allocates and resets new textures.
//
// Returns:
//   - []gpu.Texture: the output textures in binding order, nil before allocation
func (t *TextureComputeSystem) Detach() []gpu.Texture {
	if len(t.copies) == 0 {
		return nil
	}
	out := t.copies[t.ping]
	for c, texs := range t.copies {
		if c == t.ping {
			continue
		}
		for _, tex := range texs {
			tex.Release()
		}
	}
	t.copies = nil
	t.allocated = nil
	return out
}

func (t *TextureComputeSystem) ensure(ctx *gpu.Context, _ *Program, copies int) (bool, error) {
	if len(t.copies) == copies && slices.Equal(t.allocated, t.descs) {
		return false, nil
	}
	t.release()
	for c := range copies {
		texs := make([]gpu.Texture, len(t.descs))
		for i, d := range t.descs {
			if d.Label == "" {
				d.Label = textureName(i, d)
			}
			d.Label = fmt.Sprintf("%s %s %d", t.name, d.Label, c)
			tex, err := ctx.Device.NewTexture(d)
			if err != nil {
				for _, prev := range texs[:i] {
					prev.Release()
				}
				t.release()
				return false, err
			}
			texs[i] = tex
		}
		t.copies = append(t.copies, texs)
	}
	t.allocated = slices.Clone(t.descs)
	return true, nil
}

func (t *TextureComputeSystem) bind(enc gpu.ComputeEncoder, in, out int, feedback bool) {
	for i := range t.descs {
		if feedback {
			enc.SetTexture(ResourceGroup, 2*i, t.copies[in][i], t.level)
			enc.SetTexture(ResourceGroup, 2*i+1, t.copies[out][i], t.level)
			continue
		}
		enc.SetTexture(ResourceGroup, i, t.copies[out][i], t.level)
	}
}

// grid covers the current mip level of the first texture, one invocation per texel and
// layer. The depth of a 3D texture shrinks with the mip level, array layers do not.
func (t *TextureComputeSystem) grid() [3]int {
	if len(t.descs) == 0 {
		return [3]int{1, 1, 1}
	}
	d := t.descs[0]
	w, h := d.MipSize(t.level)
	if d.Type == gpu.Texture3D {
		return [3]int{w, h, max(1, d.Layers()>>t.level)}
	}
	return [3]int{w, h, d.Layers()}
}

func (t *TextureComputeSystem) release() {
	for _, c := range t.copies {
		for _, tex := range c {
			tex.Release()
		}
	}
	t.copies = nil
	t.allocated = nil
}

// Release destroys the textures, the uniform ring and the kernel pipelines it owns.
func (t *TextureComputeSystem) Release() {
	t.system.release(t)
}
