package cpu

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Abs computes element-wise absolute value.
func (c *Backend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("abs", x, math32.Abs, math.Abs)
}

// Neg computes element-wise negation.
func (c *Backend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("neg", x,
		func(v float32) float32 { return -v },
		func(v float64) float64 { return -v })
}

// Exp computes element-wise exponential.
func (c *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("exp", x, math32.Exp, math.Exp)
}

// Log computes element-wise natural logarithm.
func (c *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("log", x, math32.Log, math.Log)
}

// Sqrt computes element-wise square root.
func (c *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("sqrt", x, math32.Sqrt, math.Sqrt)
}

// Reciprocal computes element-wise 1/x.
func (c *Backend) Reciprocal(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("reciprocal", x,
		func(v float32) float32 { return 1 / v },
		func(v float64) float64 { return 1 / v })
}

// unary dispatches an element-wise unary op over the float dtypes.
func (c *Backend) unary(op string, x *tensor.RawTensor,
	f32 func(v float32) float32,
	f64 func(v float64) float64,
) *tensor.RawTensor {
	result := c.alloc(x.Shape(), x.DType())

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = f32(v)
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = f64(v)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", op, x.DType()))
	}
	return result
}
