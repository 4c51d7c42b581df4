// Package parameter implements named, typed values with a stable GPU memory layout.
//
// A Group is an ordered list of Parameters whose insertion order is the order of the
// fields in the generated shader struct. Groups pack into and unpack from the exact byte
// image a uniform or storage buffer holds, so CPU and GPU agree on the layout without any
// hand-written struct definitions.
package parameter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrNotFound is returned when a label is not present in a group.
	ErrNotFound = errors.New("parameter: label not found")
	// ErrTypeMismatch is returned when a value does not match a parameter's type.
	ErrTypeMismatch = errors.New("parameter: type mismatch")
	// ErrDuplicateLabel is returned when appending a label that is already present.
	ErrDuplicateLabel = errors.New("parameter: duplicate label")
	// ErrStructNotFound is returned when shader source does not declare the requested struct.
	ErrStructNotFound = errors.New("parameter: struct not found")
)

// Parameter is a named value of a fixed Type. Numeric parameters carry an optional range
// used by editors; the range is never enforced.
type Parameter struct {
	label  string
	typ    Type
	ints   [4]int32
	floats [16]float32
	str    string

	hasRange bool
	min, max float32
}

// New creates a zero-valued parameter of the given type.
//
// Parameters:
//   - label: the unique key within a group and the generated struct field name
//   - typ: the value type
//
// Returns:
//   - *Parameter: the new parameter
func New(label string, typ Type) *Parameter {
	return &Parameter{label: label, typ: typ}
}

// NewBool creates a Bool parameter, packed as a u32 of 0 or 1.
func NewBool(label string, v bool) *Parameter {
	p := New(label, Bool)
	p.ints[0] = boolToInt(v)
	return p
}

// NewInt creates an Int parameter.
func NewInt(label string, v int32) *Parameter {
	p := New(label, Int)
	p.ints[0] = v
	return p
}

// NewInt2 creates an Int2 parameter.
func NewInt2(label string, v [2]int32) *Parameter {
	p := New(label, Int2)
	copy(p.ints[:], v[:])
	return p
}

// NewInt3 creates an Int3 parameter.
func NewInt3(label string, v [3]int32) *Parameter {
	p := New(label, Int3)
	copy(p.ints[:], v[:])
	return p
}

// NewInt4 creates an Int4 parameter.
func NewInt4(label string, v [4]int32) *Parameter {
	p := New(label, Int4)
	p.ints = v
	return p
}

// NewFloat creates a Float parameter.
func NewFloat(label string, v float32) *Parameter {
	p := New(label, Float)
	p.floats[0] = v
	return p
}

// NewFloat2 creates a Float2 parameter.
func NewFloat2(label string, v mgl32.Vec2) *Parameter {
	p := New(label, Float2)
	copy(p.floats[:], v[:])
	return p
}

// NewFloat3 creates a Float3 parameter.
func NewFloat3(label string, v mgl32.Vec3) *Parameter {
	p := New(label, Float3)
	copy(p.floats[:], v[:])
	return p
}

// NewFloat4 creates a Float4 parameter.
func NewFloat4(label string, v mgl32.Vec4) *Parameter {
	p := New(label, Float4)
	copy(p.floats[:], v[:])
	return p
}

// NewFloat2x2 creates a Float2x2 parameter from a column-major matrix.
func NewFloat2x2(label string, v mgl32.Mat2) *Parameter {
	p := New(label, Float2x2)
	copy(p.floats[:], v[:])
	return p
}

// NewFloat3x3 creates a Float3x3 parameter from a column-major matrix.
func NewFloat3x3(label string, v mgl32.Mat3) *Parameter {
	p := New(label, Float3x3)
	copy(p.floats[:], v[:])
	return p
}

// NewFloat4x4 creates a Float4x4 parameter from a column-major matrix.
func NewFloat4x4(label string, v mgl32.Mat4) *Parameter {
	p := New(label, Float4x4)
	copy(p.floats[:], v[:])
	return p
}

// NewString creates a String parameter. Strings are persisted but never uploaded.
func NewString(label, v string) *Parameter {
	p := New(label, String)
	p.str = v
	return p
}

// WithRange sets the editor range of a numeric parameter and returns it for chaining.
func (p *Parameter) WithRange(min, max float32) *Parameter {
	p.hasRange = true
	p.min, p.max = min, max
	return p
}

func (p *Parameter) Label() string { return p.label }
func (p *Parameter) Type() Type    { return p.typ }

// Range returns the editor range and whether one was set.
func (p *Parameter) Range() (min, max float32, ok bool) {
	return p.min, p.max, p.hasRange
}

func (p *Parameter) Size() int      { return p.typ.Size() }
func (p *Parameter) Alignment() int { return p.typ.Alignment() }

func (p *Parameter) Bool() bool         { return p.ints[0] != 0 }
func (p *Parameter) Int() int32         { return p.ints[0] }
func (p *Parameter) Int2() [2]int32     { return [2]int32{p.ints[0], p.ints[1]} }
func (p *Parameter) Int3() [3]int32     { return [3]int32{p.ints[0], p.ints[1], p.ints[2]} }
func (p *Parameter) Int4() [4]int32     { return p.ints }
func (p *Parameter) Float() float32     { return p.floats[0] }
func (p *Parameter) Float2() mgl32.Vec2 { return mgl32.Vec2{p.floats[0], p.floats[1]} }
func (p *Parameter) Float3() mgl32.Vec3 { return mgl32.Vec3{p.floats[0], p.floats[1], p.floats[2]} }

func (p *Parameter) Float4() mgl32.Vec4 {
	return mgl32.Vec4{p.floats[0], p.floats[1], p.floats[2], p.floats[3]}
}

// Text returns the value of a String parameter.
func (p *Parameter) Text() string { return p.str }

func (p *Parameter) Float2x2() mgl32.Mat2 {
	var m mgl32.Mat2
	copy(m[:], p.floats[:])
	return m
}

func (p *Parameter) Float3x3() mgl32.Mat3 {
	var m mgl32.Mat3
	copy(m[:], p.floats[:])
	return m
}

func (p *Parameter) Float4x4() mgl32.Mat4 {
	return mgl32.Mat4(p.floats)
}

// Value returns the value boxed in its natural Go type: bool, int32, [N]int32, float32,
// mgl32 vectors and matrices, or string.
func (p *Parameter) Value() any {
	switch p.typ {
	case Bool:
		return p.Bool()
	case Int:
		return p.Int()
	case Int2:
		return p.Int2()
	case Int3:
		return p.Int3()
	case Int4:
		return p.Int4()
	case Float:
		return p.Float()
	case Float2:
		return p.Float2()
	case Float3:
		return p.Float3()
	case Float4:
		return p.Float4()
	case Float2x2:
		return p.Float2x2()
	case Float3x3:
		return p.Float3x3()
	case Float4x4:
		return p.Float4x4()
	default:
		return p.str
	}
}

// Set assigns v, which must be the parameter's natural Go type (see Value). Untyped Go
// numbers are accepted for scalar types: int for Int and float64 for Float.
//
// Parameters:
//   - v: the new value
//
// Returns:
//   - error: ErrTypeMismatch if v does not match the parameter type
func (p *Parameter) Set(v any) error {
	switch p.typ {
	case Bool:
		if b, ok := v.(bool); ok {
			p.ints[0] = boolToInt(b)
			return nil
		}
	case Int:
		switch n := v.(type) {
		case int32:
			p.ints[0] = n
			return nil
		case int:
			p.ints[0] = int32(n)
			return nil
		}
	case Int2:
		if a, ok := v.([2]int32); ok {
			copy(p.ints[:], a[:])
			return nil
		}
	case Int3:
		if a, ok := v.([3]int32); ok {
			copy(p.ints[:], a[:])
			return nil
		}
	case Int4:
		if a, ok := v.([4]int32); ok {
			p.ints = a
			return nil
		}
	case Float:
		switch f := v.(type) {
		case float32:
			p.floats[0] = f
			return nil
		case float64:
			p.floats[0] = float32(f)
			return nil
		}
	case Float2:
		if a, ok := v.(mgl32.Vec2); ok {
			copy(p.floats[:], a[:])
			return nil
		}
	case Float3:
		if a, ok := v.(mgl32.Vec3); ok {
			copy(p.floats[:], a[:])
			return nil
		}
	case Float4:
		if a, ok := v.(mgl32.Vec4); ok {
			copy(p.floats[:], a[:])
			return nil
		}
	case Float2x2:
		if a, ok := v.(mgl32.Mat2); ok {
			copy(p.floats[:], a[:])
			return nil
		}
	case Float3x3:
		if a, ok := v.(mgl32.Mat3); ok {
			copy(p.floats[:], a[:])
			return nil
		}
	case Float4x4:
		if a, ok := v.(mgl32.Mat4); ok {
			p.floats = a
			return nil
		}
	case String:
		if s, ok := v.(string); ok {
			p.str = s
			return nil
		}
	}
	return fmt.Errorf("%w: %q is %s, got %T", ErrTypeMismatch, p.label, p.typ, v)
}

// Clone returns an independent copy of the parameter.
func (p *Parameter) Clone() *Parameter {
	c := *p
	return &c
}

// copyValue copies the value and range of src. Both must have the same type.
func (p *Parameter) copyValue(src *Parameter) {
	p.ints, p.floats, p.str = src.ints, src.floats, src.str
	p.hasRange, p.min, p.max = src.hasRange, src.min, src.max
}

// Pack writes the packed value into dst, which must hold at least Size bytes. Padding
// bytes are zeroed.
func (p *Parameter) Pack(dst []byte) {
	size := p.Size()
	if size == 0 {
		return
	}
	clear(dst[:size])
	if p.typ.IsInt() {
		for i := 0; i < p.typ.Components(); i++ {
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(p.ints[i]))
		}
		return
	}
	cols, rows, stride := p.typ.columnLayout()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			binary.LittleEndian.PutUint32(dst[(c*stride+r)*4:], math.Float32bits(p.floats[c*rows+r]))
		}
	}
}

// Unpack reads the value from src, the inverse of Pack.
func (p *Parameter) Unpack(src []byte) {
	if p.Size() == 0 {
		return
	}
	if p.typ.IsInt() {
		for i := 0; i < p.typ.Components(); i++ {
			p.ints[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
		}
		if p.typ == Bool && p.ints[0] != 0 {
			p.ints[0] = 1
		}
		return
	}
	cols, rows, stride := p.typ.columnLayout()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			p.floats[c*rows+r] = math.Float32frombits(binary.LittleEndian.Uint32(src[(c*stride+r)*4:]))
		}
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
