package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Reshape returns a view of x with a new shape. The element count must match;
// dimension inference is resolved by the translation layer.
func (c *Backend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result, err := x.WithShape(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes the axes of x. A nil perm reverses them.
func (c *Backend) Transpose(x *tensor.RawTensor, perm []int) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)

	if perm == nil {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	if len(perm) != rank {
		panic(fmt.Sprintf("transpose: perm %v does not match rank %d", perm, rank))
	}

	outShape := make(tensor.Shape, rank)
	for i, p := range perm {
		p, err := tensor.NormalizeAxis(p, rank)
		if err != nil {
			panic(fmt.Sprintf("transpose: %v", err))
		}
		perm[i] = p
		outShape[i] = shape[p]
	}

	result := c.alloc(outShape, x.DType())

	elemSize := x.DType().Size()
	srcStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	src, dst := x.Data(), result.Data()

	for i := 0; i < outShape.NumElements(); i++ {
		rem := i
		srcIdx := 0
		for dim := 0; dim < rank; dim++ {
			coord := rem / outStrides[dim]
			rem -= coord * outStrides[dim]
			srcIdx += coord * srcStrides[perm[dim]]
		}
		copy(dst[i*elemSize:(i+1)*elemSize], src[srcIdx*elemSize:(srcIdx+1)*elemSize])
	}

	return result
}

// Squeeze removes size-1 dimensions. With nil axes, all of them are removed;
// otherwise only the named axes, which must have size 1.
func (c *Backend) Squeeze(x *tensor.RawTensor, axes []int) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)

	drop := make([]bool, rank)
	if len(axes) == 0 {
		for i, dim := range shape {
			drop[i] = dim == 1
		}
	} else {
		for _, axis := range axes {
			ax, err := tensor.NormalizeAxis(axis, rank)
			if err != nil {
				panic(fmt.Sprintf("squeeze: %v", err))
			}
			if shape[ax] != 1 {
				panic(fmt.Sprintf("squeeze: axis %d has size %d, not 1", ax, shape[ax]))
			}
			drop[ax] = true
		}
	}

	outShape := make(tensor.Shape, 0, rank)
	for i, dim := range shape {
		if !drop[i] {
			outShape = append(outShape, dim)
		}
	}

	return c.Reshape(x, outShape)
}

// Unsqueeze inserts size-1 dimensions at the given axes of the output shape.
func (c *Backend) Unsqueeze(x *tensor.RawTensor, axes []int) *tensor.RawTensor {
	shape := x.Shape()
	outRank := len(shape) + len(axes)

	insert := make([]bool, outRank)
	for _, axis := range axes {
		ax, err := tensor.NormalizeAxis(axis, outRank)
		if err != nil {
			panic(fmt.Sprintf("unsqueeze: %v", err))
		}
		if insert[ax] {
			panic(fmt.Sprintf("unsqueeze: duplicate axis %d", ax))
		}
		insert[ax] = true
	}

	outShape := make(tensor.Shape, 0, outRank)
	next := 0
	for i := 0; i < outRank; i++ {
		if insert[i] {
			outShape = append(outShape, 1)
		} else {
			outShape = append(outShape, shape[next])
			next++
		}
	}

	return c.Reshape(x, outShape)
}

// Flatten collapses the shape into [prod(dims[:axis]), prod(dims[axis:])].
func (c *Backend) Flatten(x *tensor.RawTensor, axis int) *tensor.RawTensor {
	shape := x.Shape()
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis > len(shape) {
		panic(fmt.Sprintf("flatten: axis %d out of range for rank %d", axis, len(shape)))
	}

	rows, cols := 1, 1
	for i, dim := range shape {
		if i < axis {
			rows *= dim
		} else {
			cols *= dim
		}
	}
	return c.Reshape(x, tensor.Shape{rows, cols})
}

// Expand broadcasts x to the given shape.
func (c *Backend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil {
		panic(fmt.Sprintf("expand: %v", err))
	}

	result := c.alloc(outShape, x.DType())

	elemSize := x.DType().Size()
	srcStrides := broadcastStrides(x.Shape(), outShape)
	outStrides := outShape.ComputeStrides()
	src, dst := x.Data(), result.Data()

	for i := 0; i < outShape.NumElements(); i++ {
		rem := i
		srcIdx := 0
		for dim := range outShape {
			coord := rem / outStrides[dim]
			rem -= coord * outStrides[dim]
			srcIdx += coord * srcStrides[dim]
		}
		copy(dst[i*elemSize:(i+1)*elemSize], src[srcIdx*elemSize:(srcIdx+1)*elemSize])
	}

	return result
}
