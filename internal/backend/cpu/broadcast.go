package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// broadcaster maps flat output indices to source offsets for two operands
// broadcast to a common shape. Broadcast dimensions get stride 0.
type broadcaster struct {
	outShape   tensor.Shape
	outStrides []int
	aStrides   []int
	bStrides   []int
}

func newBroadcaster(a, b tensor.Shape) (*broadcaster, error) {
	outShape, _, err := tensor.BroadcastShapes(a, b)
	if err != nil {
		return nil, err
	}

	return &broadcaster{
		outShape:   outShape,
		outStrides: outShape.ComputeStrides(),
		aStrides:   broadcastStrides(a, outShape),
		bStrides:   broadcastStrides(b, outShape),
	}, nil
}

// broadcastStrides computes the strides of src viewed as outShape, with zero
// strides on broadcast axes.
func broadcastStrides(src, outShape tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(src)
	for i := range outShape {
		j := i - offset
		if j < 0 || src[j] == 1 && outShape[i] != 1 {
			strides[i] = 0
		} else {
			strides[i] = srcStrides[j]
		}
	}
	return strides
}

// offsets returns the source offsets of both operands for flat output index i.
func (bc *broadcaster) offsets(i int) (ai, bi int) {
	for dim := range bc.outShape {
		coord := i / bc.outStrides[dim]
		i -= coord * bc.outStrides[dim]
		ai += coord * bc.aStrides[dim]
		bi += coord * bc.bStrides[dim]
	}
	return ai, bi
}

func mustSameDType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", op, a.DType(), b.DType()))
	}
}
