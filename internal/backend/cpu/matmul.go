package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/parallel"
	"github.com/trellis-ml/trellis/internal/tensor"
)

// MatMul multiplies two matrices or stacks of matrices:
// [..., M, K] @ [..., K, N] -> [..., M, N]. Leading dimensions broadcast
// against each other, so a stacked input against a plain rank-2 weight works.
func (c *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	mustSameDType("matMul", a, b)
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) < 2 || len(bShape) < 2 {
		panic(fmt.Sprintf("matMul: inputs must have rank >= 2, got %v and %v", aShape, bShape))
	}

	m, k := aShape[len(aShape)-2], aShape[len(aShape)-1]
	k2, n := bShape[len(bShape)-2], bShape[len(bShape)-1]
	if k != k2 {
		panic(fmt.Sprintf("matMul: inner dimension mismatch: %v @ %v", aShape, bShape))
	}

	aBatch := aShape[:len(aShape)-2]
	bBatch := bShape[:len(bShape)-2]
	batchShape, _, err := tensor.BroadcastShapes(aBatch, bBatch)
	if err != nil {
		panic(fmt.Sprintf("matMul: leading dimensions %v and %v do not broadcast", aBatch, bBatch))
	}

	outShape := make(tensor.Shape, 0, len(batchShape)+2)
	outShape = append(append(outShape, batchShape...), m, n)
	result := c.alloc(outShape, a.DType())

	aIdx := broadcastBatchIndex(aBatch, batchShape)
	bIdx := broadcastBatchIndex(bBatch, batchShape)

	switch a.DType() {
	case tensor.Float32:
		matmulLoop(a.AsFloat32(), b.AsFloat32(), result.AsFloat32(), aIdx, bIdx, m, k, n)
	case tensor.Float64:
		matmulLoop(a.AsFloat64(), b.AsFloat64(), result.AsFloat64(), aIdx, bIdx, m, k, n)
	default:
		panic(fmt.Sprintf("matMul: unsupported dtype %s", a.DType()))
	}

	return result
}

// broadcastBatchIndex maps each flat index of the broadcast batch shape to
// the flat index of the source batch it reads from. Size-1 source dimensions
// contribute nothing, so a single source batch can feed many output batches.
func broadcastBatchIndex(src, out tensor.Shape) []int {
	idx := make([]int, out.NumElements())
	srcStrides := src.ComputeStrides()
	outStrides := out.ComputeStrides()
	pad := len(out) - len(src)
	for i := range idx {
		rem, s := i, 0
		for dim := range out {
			coord := rem / outStrides[dim]
			rem -= coord * outStrides[dim]
			if d := dim - pad; d >= 0 && src[d] != 1 {
				s += coord * srcStrides[d]
			}
		}
		idx[i] = s
	}
	return idx
}

// matmulLoop is an ikj-ordered matrix multiply per batch, parallelized over
// output rows. Rows write disjoint slices of dst.
func matmulLoop[T float32 | float64](a, b, dst []T, aIdx, bIdx []int, m, k, n int) {
	cfg := parallel.DefaultConfig()
	if k*n >= 4096 {
		// Rows are heavy enough to parallelize even in small matrices.
		cfg.MinChunkSize = 1
	}

	parallel.ForRows(len(aIdx), m, func(bi, i int) {
		aOff, bOff, dOff := aIdx[bi]*m*k, bIdx[bi]*k*n, bi*m*n
		for kk := 0; kk < k; kk++ {
			av := a[aOff+i*k+kk]
			if av == 0 {
				continue
			}
			row := bOff + kk*n
			out := dOff + i*n
			for j := 0; j < n; j++ {
				dst[out+j] += av * b[row+j]
			}
		}
	}, cfg)
}
