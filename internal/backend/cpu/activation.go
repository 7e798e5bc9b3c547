package cpu

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Relu computes element-wise max(0, x).
func (c *Backend) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("relu", x,
		func(v float32) float32 { return math32.Max(v, 0) },
		func(v float64) float64 { return math.Max(v, 0) })
}

// LeakyRelu computes x when x >= 0 and alpha*x otherwise.
func (c *Backend) LeakyRelu(x *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	a64 := float64(alpha)
	return c.unary("leakyRelu", x,
		func(v float32) float32 {
			if v < 0 {
				return alpha * v
			}
			return v
		},
		func(v float64) float64 {
			if v < 0 {
				return a64 * v
			}
			return v
		})
}

// Elu computes x when x >= 0 and alpha*(exp(x)-1) otherwise.
func (c *Backend) Elu(x *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	a64 := float64(alpha)
	return c.unary("elu", x,
		func(v float32) float32 {
			if v < 0 {
				return alpha * (math32.Exp(v) - 1)
			}
			return v
		},
		func(v float64) float64 {
			if v < 0 {
				return a64 * (math.Exp(v) - 1)
			}
			return v
		})
}

// Selu computes gamma*x when x > 0 and gamma*alpha*(exp(x)-1) otherwise.
func (c *Backend) Selu(x *tensor.RawTensor, alpha, gamma float32) *tensor.RawTensor {
	a64, g64 := float64(alpha), float64(gamma)
	return c.unary("selu", x,
		func(v float32) float32 {
			if v > 0 {
				return gamma * v
			}
			return gamma * alpha * (math32.Exp(v) - 1)
		},
		func(v float64) float64 {
			if v > 0 {
				return g64 * v
			}
			return g64 * a64 * (math.Exp(v) - 1)
		})
}

// Sigmoid computes element-wise 1/(1+exp(-x)).
func (c *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("sigmoid", x,
		func(v float32) float32 { return 1 / (1 + math32.Exp(-v)) },
		func(v float64) float64 { return 1 / (1 + math.Exp(-v)) })
}

// Tanh computes element-wise hyperbolic tangent.
func (c *Backend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("tanh", x, math32.Tanh, math.Tanh)
}

// Softmax computes softmax along the given axis, numerically stabilized by
// subtracting the per-slice maximum.
func (c *Backend) Softmax(x *tensor.RawTensor, axis int) *tensor.RawTensor {
	return c.softmax("softmax", x, axis, false)
}

// LogSoftmax computes log(softmax(x)) along the given axis.
func (c *Backend) LogSoftmax(x *tensor.RawTensor, axis int) *tensor.RawTensor {
	return c.softmax("logSoftmax", x, axis, true)
}

func (c *Backend) softmax(op string, x *tensor.RawTensor, axis int, logVariant bool) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32 supported)", op, x.DType()))
	}
	shape := x.Shape()
	ax, err := tensor.NormalizeAxis(axis, len(shape))
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := c.alloc(shape, x.DType())
	src, dst := x.AsFloat32(), result.AsFloat32()

	// Iterate over all slices along the softmax axis.
	outer := 1
	for i := 0; i < ax; i++ {
		outer *= shape[i]
	}
	n := shape[ax]
	inner := 1
	for i := ax + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*n*inner + in

			maxVal := math32.Inf(-1)
			for k := 0; k < n; k++ {
				if v := src[base+k*inner]; v > maxVal {
					maxVal = v
				}
			}

			var sum float32
			for k := 0; k < n; k++ {
				e := math32.Exp(src[base+k*inner] - maxVal)
				dst[base+k*inner] = e
				sum += e
			}

			if logVariant {
				logSum := math32.Log(sum)
				for k := 0; k < n; k++ {
					dst[base+k*inner] = src[base+k*inner] - maxVal - logSum
				}
			} else {
				for k := 0; k < n; k++ {
					dst[base+k*inner] /= sum
				}
			}
		}
	}

	return result
}
