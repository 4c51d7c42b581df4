package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// BytesToSlice reinterprets a byte slice as a slice of T. Trailing bytes that do not
// fill a whole element are ignored.
//
// Parameters:
//   - data: source bytes, typically read back from a GPU buffer
//
// Returns:
//   - []T: a view of data as elements of T, or nil if data holds less than one element
func BytesToSlice[T any](data []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || len(data) < size {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), len(data)/size)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// PutFloat32s writes vals into buf as consecutive little-endian float32 values.
//
// Parameters:
//   - buf: destination, must hold at least 4*len(vals) bytes
//   - vals: the values to write
func PutFloat32s(buf []byte, vals ...float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

// Float32s reads n consecutive little-endian float32 values from buf.
func Float32s(buf []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// RoundUp rounds v up to the next multiple of align. An align of zero or one returns v.
//
// Parameters:
//   - align: the alignment in bytes
//   - v: the value to align
//
// Returns:
//   - int: the smallest multiple of align that is >= v
func RoundUp(align, v int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// Perspective creates a right-handed perspective projection matrix that maps view depth
// into the WebGPU clip space range [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Orthographic creates a right-handed orthographic projection matrix with WebGPU
// clip space depth in [0, 1].
func Orthographic(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	var out mgl32.Mat4
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 1 / (near - far)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = near / (near - far)
	out[15] = 1
	return out
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of m, widened back to a 4x4
// so it can be uploaded with mat4x4 alignment. A singular m yields the identity.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat4 {
	n := m.Mat3()
	if n.Det() == 0 {
		return mgl32.Ident4()
	}
	return n.Inv().Transpose().Mat4()
}

// ComposeTRS builds a model matrix as translate * rotate * scale.
//
// Parameters:
//   - position: translation
//   - orientation: rotation quaternion, normalized by the caller
//   - scale: per-axis scale
//
// Returns:
//   - mgl32.Mat4: the column-major local transform
func ComposeTRS(position mgl32.Vec3, orientation mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(orientation.Mat4()).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}
