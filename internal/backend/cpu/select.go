package cpu

import (
	"fmt"

	"github.com/x448/float16"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Where selects elements from x where cond is true and from y otherwise.
// All three tensors are broadcast to a common shape first.
func (c *Backend) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	mustSameDType("where", x, y)
	if cond.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", cond.DType()))
	}

	// Broadcast all three to the common shape.
	common, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err == nil {
		common, _, err = tensor.BroadcastShapes(common, cond.Shape())
	}
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}

	if !cond.Shape().Equal(common) {
		cond = c.Expand(cond, common)
	}
	if !x.Shape().Equal(common) {
		x = c.Expand(x, common)
	}
	if !y.Shape().Equal(common) {
		y = c.Expand(y, common)
	}

	result := c.alloc(common, x.DType())

	elemSize := x.DType().Size()
	sel := cond.AsBool()
	xData, yData, dst := x.Data(), y.Data(), result.Data()
	for i := range sel {
		off := i * elemSize
		if sel[i] {
			copy(dst[off:off+elemSize], xData[off:off+elemSize])
		} else {
			copy(dst[off:off+elemSize], yData[off:off+elemSize])
		}
	}

	return result
}

// Cast converts x to the given data type.
func (c *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	result := c.alloc(x.Shape(), dtype)
	n := x.NumElements()
	for i := 0; i < n; i++ {
		storeElement(result, i, loadElement(x, i))
	}
	return result
}

// loadElement reads element i as float64, the widest common representation.
func loadElement(t *tensor.RawTensor, i int) float64 {
	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[i])
	case tensor.Float64:
		return t.AsFloat64()[i]
	case tensor.Float16:
		return float64(t.AsFloat16()[i].Float32())
	case tensor.Int32:
		return float64(t.AsInt32()[i])
	case tensor.Int64:
		return float64(t.AsInt64()[i])
	case tensor.Uint8:
		return float64(t.AsUint8()[i])
	case tensor.Bool:
		if t.AsBool()[i] {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", t.DType()))
	}
}

// storeElement writes a float64 value into element i of t.
func storeElement(t *tensor.RawTensor, i int, v float64) {
	switch t.DType() {
	case tensor.Float32:
		t.AsFloat32()[i] = float32(v)
	case tensor.Float64:
		t.AsFloat64()[i] = v
	case tensor.Float16:
		t.AsFloat16()[i] = float16.Fromfloat32(float32(v))
	case tensor.Int32:
		t.AsInt32()[i] = int32(v)
	case tensor.Int64:
		t.AsInt64()[i] = int64(v)
	case tensor.Uint8:
		t.AsUint8()[i] = uint8(v)
	case tensor.Bool:
		t.AsBool()[i] = v != 0
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", t.DType()))
	}
}
