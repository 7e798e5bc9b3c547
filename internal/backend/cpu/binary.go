package cpu

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Add performs element-wise addition with broadcasting.
func (c *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y },
		func(x, y int32) int32 { return x + y },
		func(x, y int64) int64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (c *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y },
		func(x, y int32) int32 { return x - y },
		func(x, y int64) int64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (c *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y },
		func(x, y int32) int32 { return x * y },
		func(x, y int64) int64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (c *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y },
		func(x, y int32) int32 { return x / y },
		func(x, y int64) int64 { return x / y })
}

// Pow raises a to the power b element-wise with broadcasting.
// Integer tensors are not supported.
func (c *Backend) Pow(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("pow", a, b,
		math32.Pow,
		math.Pow,
		nil, nil)
}

// binary dispatches an element-wise binary op over the supported dtypes.
func (c *Backend) binary(op string, a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
	i32 func(x, y int32) int32,
	i64 func(x, y int64) int64,
) *tensor.RawTensor {
	mustSameDType(op, a, b)

	bc, err := newBroadcaster(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := c.alloc(bc.outShape, a.DType())

	switch a.DType() {
	case tensor.Float32:
		if f32 == nil {
			panic(fmt.Sprintf("%s: unsupported dtype float32", op))
		}
		binaryLoop(bc, a.AsFloat32(), b.AsFloat32(), result.AsFloat32(), f32)
	case tensor.Float64:
		if f64 == nil {
			panic(fmt.Sprintf("%s: unsupported dtype float64", op))
		}
		binaryLoop(bc, a.AsFloat64(), b.AsFloat64(), result.AsFloat64(), f64)
	case tensor.Int32:
		if i32 == nil {
			panic(fmt.Sprintf("%s: unsupported dtype int32", op))
		}
		binaryLoop(bc, a.AsInt32(), b.AsInt32(), result.AsInt32(), i32)
	case tensor.Int64:
		if i64 == nil {
			panic(fmt.Sprintf("%s: unsupported dtype int64", op))
		}
		binaryLoop(bc, a.AsInt64(), b.AsInt64(), result.AsInt64(), i64)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}

// binaryLoop applies fn over broadcast operands into dst.
func binaryLoop[T float32 | float64 | int32 | int64](bc *broadcaster, a, b, dst []T, fn func(x, y T) T) {
	if len(a) == len(dst) && len(b) == len(dst) {
		// Fast path: no broadcasting.
		for i := range dst {
			dst[i] = fn(a[i], b[i])
		}
		return
	}
	for i := range dst {
		ai, bi := bc.offsets(i)
		dst[i] = fn(a[ai], b[bi])
	}
}

// AddScalar adds a scalar to every element.
func (c *Backend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return c.scalarOp("addScalar", x, scalar,
		func(v float32, s float32) float32 { return v + s },
		func(v, s float64) float64 { return v + s })
}

// MulScalar multiplies every element by a scalar.
func (c *Backend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return c.scalarOp("mulScalar", x, scalar,
		func(v, s float32) float32 { return v * s },
		func(v, s float64) float64 { return v * s })
}

func (c *Backend) scalarOp(op string, x *tensor.RawTensor, scalar float64,
	f32 func(v, s float32) float32,
	f64 func(v, s float64) float64,
) *tensor.RawTensor {
	result := c.alloc(x.Shape(), x.DType())

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		s := float32(scalar)
		for i, v := range src {
			dst[i] = f32(v, s)
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = f64(v, scalar)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}
	return result
}
