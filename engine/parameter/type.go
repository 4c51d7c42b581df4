package parameter

import (
	"fmt"
	"strings"
)

// Type is the value type of a Parameter. It fixes the parameter's GPU layout and never
// changes after construction.
type Type int

const (
	Bool Type = iota
	Int
	Int2
	Int3
	Int4
	Float
	Float2
	Float3
	Float4
	Float2x2
	Float3x3
	Float4x4
	String
)

type typeInfo struct {
	name       string
	wgsl       string
	components int
	size       int
	align      int
}

// typeTable holds the WGSL host-shareable layout of every type. Three component vectors
// consume a full 16 bytes so the generated struct marks them @size(16), and matrix columns
// are padded to vec4 alignment except for mat2x2.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var typeTable = [...]typeInfo{
	Bool:     {"bool", "u32", 1, 4, 4},
	Int:      {"int", "i32", 1, 4, 4},
	Int2:     {"int2", "vec2<i32>", 2, 8, 8},
	Int3:     {"int3", "vec3<i32>", 3, 16, 16},
	Int4:     {"int4", "vec4<i32>", 4, 16, 16},
	Float:    {"float", "f32", 1, 4, 4},
	Float2:   {"float2", "vec2<f32>", 2, 8, 8},
	Float3:   {"float3", "vec3<f32>", 3, 16, 16},
	Float4:   {"float4", "vec4<f32>", 4, 16, 16},
	Float2x2: {"float2x2", "mat2x2<f32>", 4, 16, 8},
	Float3x3: {"float3x3", "mat3x3<f32>", 9, 48, 16},
	Float4x4: {"float4x4", "mat4x4<f32>", 16, 64, 16},
	String:   {"string", "", 0, 0, 1},
}

func (t Type) info() typeInfo {
	if t < 0 || int(t) >= len(typeTable) {
		return typeInfo{name: fmt.Sprintf("type(%d)", int(t)), align: 1}
	}
	return typeTable[t]
}

// String returns the lower-case name used in saved documents.
func (t Type) String() string { return t.info().name }

// WGSL returns the shader type name, or "" for types that are not uploaded.
func (t Type) WGSL() string { return t.info().wgsl }

// Components returns the number of scalar components of the value.
func (t Type) Components() int { return t.info().components }

// Size returns the number of bytes the value consumes in a packed struct.
func (t Type) Size() int { return t.info().size }

// Alignment returns the byte alignment of the value in a packed struct.
func (t Type) Alignment() int { return t.info().align }

// IsInt reports whether the value is stored as 32-bit integers. Bool is stored as an
// integer 0 or 1.
func (t Type) IsInt() bool { return t >= Bool && t <= Int4 }

// IsFloat reports whether the value is stored as 32-bit floats.
func (t Type) IsFloat() bool { return t >= Float && t <= Float4x4 }

// Packed reports whether the value is uploaded to the GPU.
func (t Type) Packed() bool { return t.Size() > 0 }

// ParseType resolves a document type name.
//
// Parameters:
//   - s: a name such as "float3", case-insensitive
//
// Returns:
//   - Type: the resolved type
//   - error: error if the name is unknown
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, info := range typeTable {
		if info.name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("parameter: unknown type %q", s)
}

// columnLayout returns the column count, rows per column and column stride in floats for
// matrix types. Non-matrix types report a single column.
func (t Type) columnLayout() (cols, rows, stride int) {
	switch t {
	case Float2x2:
		return 2, 2, 2
	case Float3x3:
		return 3, 3, 4
	case Float4x4:
		return 4, 4, 4
	default:
		return 1, t.Components(), t.Components()
	}
}
