package compute

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/buffer"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
)

// BufferSpec declares one buffer of a BufferComputeSystem. The buffer is bound as
// array<Type> with one element per invocation.
type BufferSpec struct {
	// Name is the variable name in the kernel.
	Name string
	// Type is the WGSL element type.
	Type string
	// Source declares Type when the kernel does not. It is injected once even if several
	// buffers share the type.
	Source string
}

// BufferComputeSystem runs a kernel over count elements of one or more storage buffers.
type BufferComputeSystem struct {
	*system

	specs   []BufferSpec
	count   int
	strides []int
	// invalid is set at construction for a non-positive count and never cleared.
	invalid error
	// copies holds one slice of buffers per physical copy, in spec order.
	copies     [][]gpu.Buffer
	allocCount int
	uploads    map[string][]byte
}

var _ resources = &BufferComputeSystem{}

// NewBufferComputeSystem creates a buffer compute system. The buffers are allocated on
// the first Update, once the kernel has compiled and the element strides are known.
//
// Parameters:
//   - name: the kernel name, selecting the <name>Reset and <name>Update entry points
//   - count: the number of elements per buffer; a system created with a non-positive count
//     is unusable and every Setup returns buffer.ErrInvalidCount
//   - opts: a variadic list of ComputeBuilderOption functions
//
// Returns:
//   - *BufferComputeSystem: the new system, not yet compiled
func NewBufferComputeSystem(name string, count int, opts ...ComputeBuilderOption) *BufferComputeSystem {
	return newBufferComputeSystem(name, count, false, opts)
}

// NewLiveBufferComputeSystem creates a buffer compute system whose kernel recompiles when
// the file at path, or any file it includes, changes on disk.
//
// Parameters:
//   - name: the kernel name
//   - path: the kernel source file
//   - count: the number of elements per buffer, as for NewBufferComputeSystem
//   - opts: a variadic list of ComputeBuilderOption functions
//
// Returns:
//   - *BufferComputeSystem: the new system, not yet compiled
func NewLiveBufferComputeSystem(name, path string, count int, opts ...ComputeBuilderOption) *BufferComputeSystem {
	return newBufferComputeSystem(name, count, true, append(opts, WithSourcePath(path)))
}

func newBufferComputeSystem(name string, count int, live bool, opts []ComputeBuilderOption) *BufferComputeSystem {
	o := &options{live: live}
	for _, opt := range opts {
		opt(o)
	}
	b := &BufferComputeSystem{
		system:  newSystem(name, o),
		specs:   slices.Clone(o.buffers),
		count:   count,
		uploads: make(map[string][]byte),
	}
	b.invalid = b.checkCount(count)
	decls := make([]resource, len(b.specs))
	for i, spec := range b.specs {
		array := "array<" + spec.Type + ">"
		decls[i] = resource{
			name:         spec.Name,
			input:        array,
			inputSpace:   shader.AddressSpaceStorageRead,
			output:       array,
			outputSpace:  shader.AddressSpaceStorageReadWrite,
			structName:   spec.Type,
			structSource: spec.Source,
		}
	}
	b.kernel.declare(b.feedback, decls)
	return b
}

func (b *BufferComputeSystem) Count() int          { return b.count }
func (b *BufferComputeSystem) Specs() []BufferSpec { return slices.Clone(b.specs) }

// SetCount changes the element count. The buffers are reallocated and reset on the next
// Update.
//
// Parameters:
//   - n: the new count
//
// Returns:
//   - error: buffer.ErrInvalidCount if n is not positive; the count is left unchanged
func (b *BufferComputeSystem) SetCount(n int) error {
	if err := b.checkCount(n); err != nil {
		return err
	}
	b.count = n
	return nil
}

func (b *BufferComputeSystem) checkCount(n int) error {
	if n <= 0 {
		return fmt.Errorf("compute: %s: %w, got %d", b.name, buffer.ErrInvalidCount, n)
	}
	return nil
}

// Setup compiles the kernel against ctx. Compile failures are logged and leave the system
// inert; the error is returned for callers that want it. A system created with a
// non-positive count is never set up, even after SetCount.
func (b *BufferComputeSystem) Setup(ctx *gpu.Context) error {
	if b.invalid != nil {
		log.Error("compute system not set up", "system", b.name, "err", b.invalid)
		return b.invalid
	}
	return b.setup(ctx)
}

// Update encodes the pending reset passes and one update pass into a compute pass of cmd.
//
// Parameters:
//   - cmd: the command buffer to record into
//
// Returns:
//   - bool: false if nothing was encoded, such as before a successful compile
func (b *BufferComputeSystem) Update(cmd gpu.CommandBuffer) bool {
	return b.update(cmd, b)
}

func (b *BufferComputeSystem) index(name string) int {
	return slices.IndexFunc(b.specs, func(s BufferSpec) bool { return s.Name == name })
}

// Buffer retrieves the copy of the named buffer written by the last update, or nil before
// the buffers are allocated.
func (b *BufferComputeSystem) Buffer(name string) gpu.Buffer {
	i := b.index(name)
	if i < 0 || len(b.copies) == 0 {
		return nil
	}
	return b.copies[b.ping][i]
}

// Stride retrieves the element size of the named buffer, or 0 before allocation.
func (b *BufferComputeSystem) Stride(name string) int {
	i := b.index(name)
	if i < 0 || len(b.strides) == 0 {
		return 0
	}
	return b.strides[i]
}

// Upload writes initial contents into every copy of the named buffer. Data uploaded before
// allocation, or before a reallocation, is written once the buffers exist.
//
// Parameters:
//   - name: the buffer name
//   - data: the packed elements, at most count * stride bytes
func (b *BufferComputeSystem) Upload(name string, data []byte) {
	i := b.index(name)
	if i < 0 {
		log.Warn("upload to unknown buffer", "system", b.name, "buffer", name)
		return
	}
	b.uploads[name] = slices.Clone(data)
	for _, c := range b.copies {
		b.write(c[i], i, data)
	}
}

func (b *BufferComputeSystem) write(dst gpu.Buffer, i int, data []byte) {
	if limit := b.count * b.strides[i]; len(data) > limit {
		data = data[:limit]
	}
	dst.Write(0, data)
}

// Read copies the current output of the named buffer back to the CPU.
func (b *BufferComputeSystem) Read(name string) ([]byte, error) {
	buf := b.Buffer(name)
	if buf == nil {
		return nil, fmt.Errorf("compute: %s: buffer %q is not allocated", b.name, name)
	}
	return buf.Read(0, buf.Size())
}

// Sync reads element index of the named buffer's current output and unpacks it into dst.
//
// Parameters:
//   - name: the buffer name
//   - index: the element index, in [0, Count)
//   - dst: the receiver, such as a parameter.Group with the element's layout
//
// Returns:
//   - error: error if the buffer is missing, the read fails or dst cannot unpack
func (b *BufferComputeSystem) Sync(name string, index int, dst buffer.Unpacker) error {
	buf := b.Buffer(name)
	if buf == nil {
		return fmt.Errorf("compute: %s: buffer %q is not allocated", b.name, name)
	}
	if index < 0 || index >= b.count {
		return fmt.Errorf("compute: %s: index %d out of range [0, %d)", b.name, index, b.count)
	}
	stride := b.Stride(name)
	data, err := buf.Read(index*stride, stride)
	if err != nil {
		return fmt.Errorf("compute: %s: read %s[%d]: %w", b.name, name, index, err)
	}
	return dst.Unpack(data)
}

func (b *BufferComputeSystem) ensure(ctx *gpu.Context, prog *Program, copies int) (bool, error) {
	strides := make([]int, len(b.specs))
	for i, spec := range b.specs {
		size, align, ok := prog.Reflection.TypeSize(spec.Type)
		if !ok {
			return false, fmt.Errorf("compute: %s: unknown element type %q of buffer %s", b.name, spec.Type, spec.Name)
		}
		strides[i] = common.RoundUp(align, size)
	}
	allocated := len(b.copies) == copies && len(b.copies[0]) == len(b.specs) &&
		slices.Equal(strides, b.strides) && b.allocCount == b.count
	if allocated {
		return false, nil
	}

	b.release()
	b.strides = strides
	for c := range copies {
		bufs := make([]gpu.Buffer, len(b.specs))
		for i, spec := range b.specs {
			g, err := ctx.Device.NewBuffer(gpu.BufferDescriptor{
				Label: fmt.Sprintf("%s %s %d", b.name, spec.Name, c),
				Size:  strides[i] * b.count,
				Usage: gpu.BufferUsageStorage | gpu.BufferUsageVertex | gpu.BufferUsageCopyDst | gpu.BufferUsageCopySrc,
			})
			if err != nil {
				for _, prev := range bufs[:i] {
					prev.Release()
				}
				b.release()
				return false, err
			}
			if data, ok := b.uploads[spec.Name]; ok {
				b.write(g, i, data)
			}
			bufs[i] = g
		}
		b.copies = append(b.copies, bufs)
	}
	b.allocCount = b.count
	return true, nil
}

func (b *BufferComputeSystem) bind(enc gpu.ComputeEncoder, in, out int, feedback bool) {
	for i := range b.specs {
		if feedback {
			enc.SetBuffer(ResourceGroup, 2*i, b.copies[in][i], 0, 0)
			enc.SetBuffer(ResourceGroup, 2*i+1, b.copies[out][i], 0, 0)
			continue
		}
		enc.SetBuffer(ResourceGroup, i, b.copies[out][i], 0, 0)
	}
}

func (b *BufferComputeSystem) grid() [3]int {
	return [3]int{b.count, 1, 1}
}

func (b *BufferComputeSystem) release() {
	for _, c := range b.copies {
		for _, buf := range c {
			buf.Release()
		}
	}
	b.copies = nil
	b.strides = nil
	b.allocCount = 0
}

// Release destroys the buffers, the uniform ring and the kernel pipelines it owns.
func (b *BufferComputeSystem) Release() {
	b.system.release(b)
}
