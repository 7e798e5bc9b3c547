package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// FromSlice creates a RawTensor from a Go slice, copying the data.
// The slice length must match the shape's element count.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}

	t, err := NewRaw(shape, DataTypeOf[T](), device)
	if err != nil {
		return nil, err
	}

	switch src := any(data).(type) {
	case []float32:
		copy(t.AsFloat32(), src)
	case []float64:
		copy(t.AsFloat64(), src)
	case []int32:
		copy(t.AsInt32(), src)
	case []int64:
		copy(t.AsInt64(), src)
	case []uint8:
		copy(t.AsUint8(), src)
	case []bool:
		copy(t.AsBool(), src)
	}
	return t, nil
}

// Full creates a RawTensor filled with the given value. A nonzero value
// sets every bool element true.
func Full(shape Shape, dtype DataType, value float64, device Device) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	if value == 0 {
		return t, nil
	}

	switch dtype {
	case Float32:
		dst := t.AsFloat32()
		for i := range dst {
			dst[i] = float32(value)
		}
	case Float64:
		dst := t.AsFloat64()
		for i := range dst {
			dst[i] = value
		}
	case Float16:
		half := float16.Fromfloat32(float32(value))
		dst := t.AsFloat16()
		for i := range dst {
			dst[i] = half
		}
	case Int32:
		dst := t.AsInt32()
		for i := range dst {
			dst[i] = int32(value)
		}
	case Int64:
		dst := t.AsInt64()
		for i := range dst {
			dst[i] = int64(value)
		}
	case Uint8:
		dst := t.AsUint8()
		for i := range dst {
			dst[i] = uint8(value)
		}
	case Bool:
		dst := t.AsBool()
		for i := range dst {
			dst[i] = true
		}
	default:
		return nil, fmt.Errorf("full: unsupported dtype %s", dtype)
	}
	return t, nil
}

// Scalar creates a single-element tensor holding the given value.
func Scalar[T DType](value T, device Device) (*RawTensor, error) {
	return FromSlice([]T{value}, Shape{1}, device)
}
