package cpu

import (
	"fmt"
	"math"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// ReduceSum sums over the given axes.
func (c *Backend) ReduceSum(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return c.reduce("reduceSum", x, axes, keepDims, reduceSpec{
		init:  func(_ int) float64 { return 0 },
		step:  func(acc, v float64) float64 { return acc + v },
		final: func(acc float64, _ int) float64 { return acc },
	})
}

// ReduceMean averages over the given axes.
func (c *Backend) ReduceMean(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return c.reduce("reduceMean", x, axes, keepDims, reduceSpec{
		init:  func(_ int) float64 { return 0 },
		step:  func(acc, v float64) float64 { return acc + v },
		final: func(acc float64, n int) float64 { return acc / float64(n) },
	})
}

// ReduceMax takes the maximum over the given axes.
func (c *Backend) ReduceMax(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return c.reduce("reduceMax", x, axes, keepDims, reduceSpec{
		init:  func(_ int) float64 { return math.Inf(-1) },
		step:  math.Max,
		final: func(acc float64, _ int) float64 { return acc },
	})
}

// ReduceMin takes the minimum over the given axes.
func (c *Backend) ReduceMin(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return c.reduce("reduceMin", x, axes, keepDims, reduceSpec{
		init:  func(_ int) float64 { return math.Inf(1) },
		step:  math.Min,
		final: func(acc float64, _ int) float64 { return acc },
	})
}

// ReduceProd multiplies over the given axes.
func (c *Backend) ReduceProd(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return c.reduce("reduceProd", x, axes, keepDims, reduceSpec{
		init:  func(_ int) float64 { return 1 },
		step:  func(acc, v float64) float64 { return acc * v },
		final: func(acc float64, _ int) float64 { return acc },
	})
}

// ReduceLogSumExp computes log(sum(exp(x))) over the given axes.
func (c *Backend) ReduceLogSumExp(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return c.reduce("reduceLogSumExp", x, axes, keepDims, reduceSpec{
		init:  func(_ int) float64 { return 0 },
		step:  func(acc, v float64) float64 { return acc + math.Exp(v) },
		final: func(acc float64, _ int) float64 { return math.Log(acc) },
	})
}

// reduceSpec describes a reduction as init/step/final over float64
// accumulators.
type reduceSpec struct {
	init  func(n int) float64
	step  func(acc, v float64) float64
	final func(acc float64, n int) float64
}

func (c *Backend) reduce(op string, x *tensor.RawTensor, axes []int, keepDims bool, spec reduceSpec) *tensor.RawTensor {
	if x.DType() != tensor.Float32 && x.DType() != tensor.Float64 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}

	shape := x.Shape()
	rank := len(shape)

	reduced := make([]bool, rank)
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		for _, axis := range axes {
			ax, err := tensor.NormalizeAxis(axis, rank)
			if err != nil {
				panic(fmt.Sprintf("%s: %v", op, err))
			}
			reduced[ax] = true
		}
	}

	// Output shape with reduced axes kept as 1 for indexing; squeezed at the
	// end when keepDims is false.
	keptShape := make(tensor.Shape, rank)
	count := 1
	for i := range shape {
		if reduced[i] {
			keptShape[i] = 1
			count *= shape[i]
		} else {
			keptShape[i] = shape[i]
		}
	}

	result := c.alloc(keptShape, x.DType())

	srcStrides := shape.ComputeStrides()
	dstStrides := keptShape.ComputeStrides()

	acc := make([]float64, keptShape.NumElements())
	for i := range acc {
		acc[i] = spec.init(count)
	}

	accumulate := func(get func(int) float64) {
		for i := 0; i < shape.NumElements(); i++ {
			rem := i
			dst := 0
			for dim := 0; dim < rank; dim++ {
				coord := rem / srcStrides[dim]
				rem -= coord * srcStrides[dim]
				if !reduced[dim] {
					dst += coord * dstStrides[dim]
				}
			}
			acc[dst] = spec.step(acc[dst], get(i))
		}
	}

	if x.DType() == tensor.Float32 {
		src := x.AsFloat32()
		accumulate(func(i int) float64 { return float64(src[i]) })
		dst := result.AsFloat32()
		for i := range dst {
			dst[i] = float32(spec.final(acc[i], count))
		}
	} else {
		src := x.AsFloat64()
		accumulate(func(i int) float64 { return src[i] })
		dst := result.AsFloat64()
		for i := range dst {
			dst[i] = spec.final(acc[i], count)
		}
	}

	if keepDims {
		return result
	}

	// Drop the axes that were reduced.
	outShape := make(tensor.Shape, 0, rank)
	for i := range keptShape {
		if !reduced[i] {
			outShape = append(outShape, keptShape[i])
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}
	squeezed, err := result.WithShape(outShape)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	return squeezed
}
