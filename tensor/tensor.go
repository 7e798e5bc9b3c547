// Package tensor is the public surface of the Trellis tensor types:
// raw tensors, shapes, data types and the Backend interface that compute
// implementations satisfy.
package tensor

import "github.com/trellis-ml/trellis/internal/tensor"

// DType constrains the Go element types a tensor can hold.
type DType = tensor.DType

// DataType identifies a tensor's element type at runtime.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Device identifies where tensor data lives.
type Device = tensor.Device

// Device constants.
const (
	CPU  Device = tensor.CPU
	CUDA Device = tensor.CUDA
)

// Shape is the list of dimension sizes of a tensor.
type Shape = tensor.Shape

// RawTensor is an untyped n-dimensional array.
type RawTensor = tensor.RawTensor

// Backend is the set of operations a compute device implements.
type Backend = tensor.Backend

// PadMode selects how Pad fills the border region.
type PadMode = tensor.PadMode

// Pad modes.
const (
	PadConstant PadMode = tensor.PadConstant
	PadReflect  PadMode = tensor.PadReflect
	PadEdge     PadMode = tensor.PadEdge
)

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice builds a tensor from a Go slice.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// Full builds a tensor filled with a single value.
func Full(shape Shape, dtype DataType, value float64, device Device) (*RawTensor, error) {
	return tensor.Full(shape, dtype, value, device)
}

// Scalar builds a one-element tensor.
func Scalar[T DType](value T, device Device) (*RawTensor, error) {
	return tensor.Scalar(value, device)
}

// BroadcastShapes computes the NumPy-style broadcast of two shapes. The
// second result reports whether broadcasting is actually needed.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
