package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Concat concatenates tensors along the given axis.
func (c *Backend) Concat(tensors []*tensor.RawTensor, axis int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("concat: no inputs")
	}

	first := tensors[0]
	rank := len(first.Shape())
	ax, err := tensor.NormalizeAxis(axis, rank)
	if err != nil {
		panic(fmt.Sprintf("concat: %v", err))
	}

	outShape := first.Shape().Clone()
	outShape[ax] = 0
	for _, t := range tensors {
		mustSameDType("concat", first, t)
		shape := t.Shape()
		if len(shape) != rank {
			panic(fmt.Sprintf("concat: rank mismatch: %v vs %v", first.Shape(), shape))
		}
		for i := range shape {
			if i != ax && shape[i] != outShape[i] && outShape[i] != 0 {
				panic(fmt.Sprintf("concat: shape mismatch on axis %d: %v vs %v", i, first.Shape(), shape))
			}
		}
		outShape[ax] += shape[ax]
	}

	result := c.alloc(outShape, first.DType())

	// Copy row blocks: for each outer index, append every input's slab.
	elemSize := first.DType().Size()
	outer := 1
	for i := 0; i < ax; i++ {
		outer *= outShape[i]
	}
	inner := elemSize
	for i := ax + 1; i < rank; i++ {
		inner *= outShape[i]
	}

	dst := result.Data()
	dstOff := 0
	for o := 0; o < outer; o++ {
		for _, t := range tensors {
			slab := t.Shape()[ax] * inner
			src := t.Data()[o*slab : (o+1)*slab]
			copy(dst[dstOff:dstOff+slab], src)
			dstOff += slab
		}
	}

	return result
}

// Split divides x along the given axis. With explicit sizes they must sum to
// the axis length; otherwise the axis is divided into numOutputs equal parts.
func (c *Backend) Split(x *tensor.RawTensor, axis int, sizes []int, numOutputs int) []*tensor.RawTensor {
	shape := x.Shape()
	ax, err := tensor.NormalizeAxis(axis, len(shape))
	if err != nil {
		panic(fmt.Sprintf("split: %v", err))
	}

	if len(sizes) == 0 {
		if numOutputs <= 0 || shape[ax]%numOutputs != 0 {
			panic(fmt.Sprintf("split: axis size %d not divisible into %d parts", shape[ax], numOutputs))
		}
		sizes = make([]int, numOutputs)
		for i := range sizes {
			sizes[i] = shape[ax] / numOutputs
		}
	}

	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != shape[ax] {
		panic(fmt.Sprintf("split: sizes %v do not sum to axis size %d", sizes, shape[ax]))
	}

	elemSize := x.DType().Size()
	outer := 1
	for i := 0; i < ax; i++ {
		outer *= shape[i]
	}
	inner := elemSize
	for i := ax + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	results := make([]*tensor.RawTensor, len(sizes))
	src := x.Data()
	srcSlab := shape[ax] * inner
	offset := 0
	for idx, size := range sizes {
		outShape := shape.Clone()
		outShape[ax] = size
		out := c.alloc(outShape, x.DType())
		dst := out.Data()
		slab := size * inner
		for o := 0; o < outer; o++ {
			copy(dst[o*slab:(o+1)*slab], src[o*srcSlab+offset:o*srcSlab+offset+slab])
		}
		offset += slab
		results[idx] = out
	}

	return results
}

// Slice extracts a strided sub-tensor. starts/ends/steps follow the IR's
// Slice semantics: negative indices count from the end, out-of-range values
// are clamped, negative steps walk backwards, and a nil axes slice means all
// leading axes in order.
func (c *Backend) Slice(x *tensor.RawTensor, starts, ends, axes, steps []int64) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)

	begin := make([]int, rank)
	step := make([]int, rank)
	outShape := make(tensor.Shape, rank)
	for i := range shape {
		begin[i], step[i], outShape[i] = 0, 1, shape[i]
	}

	for i := range starts {
		ax := i
		if len(axes) > 0 {
			var err error
			ax, err = tensor.NormalizeAxis(int(axes[i]), rank)
			if err != nil {
				panic(fmt.Sprintf("slice: %v", err))
			}
		}

		st := int64(1)
		if len(steps) > 0 {
			st = steps[i]
		}
		if st == 0 {
			panic("slice: step must be non-zero")
		}

		lo, hi := normalizeSliceBounds(starts[i], ends[i], int64(shape[ax]), st)
		begin[ax] = int(lo)
		step[ax] = int(st)

		span := hi - lo
		if st < 0 {
			span = lo - hi
		}
		size := (span + abs64(st) - 1) / abs64(st)
		if size < 0 {
			size = 0
		}
		outShape[ax] = int(size)
	}

	for _, dim := range outShape {
		if dim == 0 {
			panic(fmt.Sprintf("slice: empty result shape %v", outShape))
		}
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
			srcIdx += (begin[dim] + coord*step[dim]) * srcStrides[dim]
		}
		copy(dst[i*elemSize:(i+1)*elemSize], src[srcIdx*elemSize:(srcIdx+1)*elemSize])
	}

	return result
}

// normalizeSliceBounds resolves negative and out-of-range start/end values
// for a dimension of the given size.
func normalizeSliceBounds(start, end, size, step int64) (lo, hi int64) {
	lo, hi = start, end
	if lo < 0 {
		lo += size
	}
	if hi < 0 {
		hi += size
	}

	if step > 0 {
		lo = clamp64(lo, 0, size)
		hi = clamp64(hi, 0, size)
	} else {
		lo = clamp64(lo, 0, size-1)
		hi = clamp64(hi, -1, size-1)
	}
	return lo, hi
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Gather selects slices of x along the given axis using an integer index
// tensor: output shape is x.shape[:axis] + indices.shape + x.shape[axis+1:].
func (c *Backend) Gather(x, indices *tensor.RawTensor, axis int) *tensor.RawTensor {
	shape := x.Shape()
	ax, err := tensor.NormalizeAxis(axis, len(shape))
	if err != nil {
		panic(fmt.Sprintf("gather: %v", err))
	}

	idx := indexValues(indices)

	outShape := make(tensor.Shape, 0, len(shape)+len(indices.Shape())-1)
	outShape = append(outShape, shape[:ax]...)
	outShape = append(outShape, indices.Shape()...)
	outShape = append(outShape, shape[ax+1:]...)
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result := c.alloc(outShape, x.DType())

	elemSize := x.DType().Size()
	outer := 1
	for i := 0; i < ax; i++ {
		outer *= shape[i]
	}
	inner := elemSize
	for i := ax + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	src, dst := x.Data(), result.Data()
	srcSlab := shape[ax] * inner
	dstOff := 0
	for o := 0; o < outer; o++ {
		for _, ival := range idx {
			if ival < 0 {
				ival += int64(shape[ax])
			}
			if ival < 0 || ival >= int64(shape[ax]) {
				panic(fmt.Sprintf("gather: index %d out of range for axis size %d", ival, shape[ax]))
			}
			start := o*srcSlab + int(ival)*inner
			copy(dst[dstOff:dstOff+inner], src[start:start+inner])
			dstOff += inner
		}
	}

	return result
}

// indexValues reads an Int32 or Int64 tensor as []int64.
func indexValues(t *tensor.RawTensor) []int64 {
	switch t.DType() {
	case tensor.Int64:
		return t.AsInt64()
	case tensor.Int32:
		src := t.AsInt32()
		out := make([]int64, len(src))
		for i, v := range src {
			out[i] = int64(v)
		}
		return out
	default:
		panic(fmt.Sprintf("index tensor must be int32 or int64, got %s", t.DType()))
	}
}

// Pad pads x with the given border widths. pads holds the begin widths for
// every axis followed by the end widths (the IR's layout). Constant mode
// fills with value; reflect mirrors without repeating the edge; edge repeats
// the border element.
func (c *Backend) Pad(x *tensor.RawTensor, pads []int, mode tensor.PadMode, value float32) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)
	if len(pads) != 2*rank {
		panic(fmt.Sprintf("pad: expected %d pad values for rank %d, got %d", 2*rank, rank, len(pads)))
	}

	outShape := make(tensor.Shape, rank)
	for i := range shape {
		outShape[i] = pads[i] + shape[i] + pads[rank+i]
	}

	var result *tensor.RawTensor
	if mode == tensor.PadConstant && value != 0 {
		full, err := tensor.Full(outShape, x.DType(), float64(value), c.device)
		if err != nil {
			panic(fmt.Sprintf("pad: %v", err))
		}
		result = full
	} else {
		result = c.alloc(outShape, x.DType())
	}

	elemSize := x.DType().Size()
	srcStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	src, dst := x.Data(), result.Data()

	for i := 0; i < outShape.NumElements(); i++ {
		rem := i
		srcIdx := 0
		inBounds := true
		for dim := 0; dim < rank; dim++ {
			coord := rem/outStrides[dim] - pads[dim]
			rem -= (coord + pads[dim]) * outStrides[dim]

			switch {
			case coord >= 0 && coord < shape[dim]:
				// interior
			case mode == tensor.PadEdge:
				coord = clampInt(coord, 0, shape[dim]-1)
			case mode == tensor.PadReflect:
				coord = reflectIndex(coord, shape[dim])
			default:
				inBounds = false
			}
			if !inBounds {
				break
			}
			srcIdx += coord * srcStrides[dim]
		}

		if inBounds {
			copy(dst[i*elemSize:(i+1)*elemSize], src[srcIdx*elemSize:(srcIdx+1)*elemSize])
		}
	}

	return result
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// reflectIndex mirrors an out-of-range coordinate back into [0, size) without
// repeating the border element.
func reflectIndex(coord, size int) int {
	if size == 1 {
		return 0
	}
	period := 2 * (size - 1)
	coord = ((coord % period) + period) % period
	if coord >= size {
		coord = period - coord
	}
	return coord
}
