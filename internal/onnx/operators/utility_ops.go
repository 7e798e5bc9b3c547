package operators

import (
	"fmt"

	"github.com/x448/float16"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// registerUtilityOps adds the remaining small operators to the registry.
func (r *Registry) registerUtilityOps() {
	r.Register("Identity", handleIdentity)
	r.Register("Dropout", handleDropout)
	r.Register("Constant", handleConstant)
	r.Register("ConstantOfShape", handleConstantOfShape)
	r.Register("Cast", handleCast)
	r.Register("Shape", handleShape)
	r.Register("Size", handleSize)
	r.Register("Where", handleWhere)
}

func handleIdentity(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("identity", inputs, 1); err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{inputs[0]}, nil
}

// Dropout is a no-op at inference time. The optional mask output is not
// produced.
func handleDropout(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("dropout", inputs, 1); err != nil {
		return nil, err
	}
	out := []*tensor.RawTensor{inputs[0]}
	if len(node.Outputs) > 1 {
		out = append(out, nil)
	}
	return out, nil
}

func handleConstant(_ *Context, node *Node, _ []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	value := node.Attr("value")
	if value == nil {
		return nil, fmt.Errorf("constant requires a value attribute")
	}
	if value.Tensor == nil {
		return nil, fmt.Errorf("constant: only tensor values are supported")
	}
	t, err := RawFromTensorValue(value.Tensor)
	if err != nil {
		return nil, fmt.Errorf("constant: %w", err)
	}
	return []*tensor.RawTensor{t}, nil
}

func handleConstantOfShape(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("constantOfShape", inputs, 1); err != nil {
		return nil, err
	}
	dims := inputs[0].AsInt64()
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}

	dtype := tensor.Float32
	fill := 0.0
	if value := node.Attr("value"); value != nil && value.Tensor != nil {
		seed, err := RawFromTensorValue(value.Tensor)
		if err != nil {
			return nil, fmt.Errorf("constantOfShape: %w", err)
		}
		dtype = seed.DType()
		fill = scalarValue(seed)
	}

	out, err := tensor.Full(shape, dtype, fill, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("constantOfShape: %w", err)
	}
	return []*tensor.RawTensor{out}, nil
}

// scalarValue reads the single element of a one-element tensor as float64.
func scalarValue(t *tensor.RawTensor) float64 {
	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[0])
	case tensor.Float64:
		return t.AsFloat64()[0]
	case tensor.Float16:
		return float64(t.AsFloat16()[0].Float32())
	case tensor.Int32:
		return float64(t.AsInt32()[0])
	case tensor.Int64:
		return float64(t.AsInt64()[0])
	case tensor.Uint8:
		return float64(t.AsUint8()[0])
	case tensor.Bool:
		if t.AsBool()[0] {
			return 1
		}
		return 0
	}
	return 0
}

func handleCast(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("cast", inputs, 1); err != nil {
		return nil, err
	}
	code := node.AttrInt("to", -1)
	if code < 0 {
		return nil, fmt.Errorf("cast requires a target type")
	}
	dtype, err := DataTypeFromProto(int32(code))
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	return []*tensor.RawTensor{ctx.Backend.Cast(inputs[0], dtype)}, nil
}

func handleShape(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("shape", inputs, 1); err != nil {
		return nil, err
	}
	shape := inputs[0].Shape()
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	out, err := tensor.FromSlice(dims, tensor.Shape{len(dims)}, tensor.CPU)
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{out}, nil
}

func handleSize(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("size", inputs, 1); err != nil {
		return nil, err
	}
	out, err := tensor.Scalar(int64(inputs[0].NumElements()), tensor.CPU)
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{out}, nil
}

func handleWhere(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("where", inputs, 3); err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{ctx.Backend.Where(inputs[0], inputs[1], inputs[2])}, nil
}

// RawFromTensorValue materializes a tensor-valued attribute. Dense payloads
// arrive either as raw little-endian bytes or in the typed repeated fields.
func RawFromTensorValue(v *TensorValue) (*tensor.RawTensor, error) {
	dtype, err := DataTypeFromProto(v.DataType)
	if err != nil {
		return nil, err
	}
	shape := make(tensor.Shape, len(v.Dims))
	for i, d := range v.Dims {
		shape[i] = int(d)
	}
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}

	out, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}

	if len(v.Raw) > 0 {
		if len(v.Raw) != out.ByteSize() {
			return nil, fmt.Errorf("tensor payload is %d bytes, want %d", len(v.Raw), out.ByteSize())
		}
		copy(out.Data(), v.Raw)
		return out, nil
	}

	n := out.NumElements()
	switch dtype {
	case tensor.Float32:
		if len(v.Floats) != n {
			return nil, fmt.Errorf("tensor has %d floats, want %d", len(v.Floats), n)
		}
		copy(out.AsFloat32(), v.Floats)
	case tensor.Int32, tensor.Uint8, tensor.Bool, tensor.Float16:
		// These all ride in the int32 field.
		if len(v.Int32s) != n {
			return nil, fmt.Errorf("tensor has %d int32s, want %d", len(v.Int32s), n)
		}
		fillFromInt32(out, v.Int32s)
	case tensor.Int64:
		if len(v.Int64s) != n {
			return nil, fmt.Errorf("tensor has %d int64s, want %d", len(v.Int64s), n)
		}
		copy(out.AsInt64(), v.Int64s)
	default:
		return nil, fmt.Errorf("no payload for %s tensor", dtype)
	}
	return out, nil
}

func fillFromInt32(out *tensor.RawTensor, src []int32) {
	switch out.DType() {
	case tensor.Int32:
		copy(out.AsInt32(), src)
	case tensor.Uint8:
		dst := out.AsUint8()
		for i, v := range src {
			dst[i] = uint8(v)
		}
	case tensor.Bool:
		dst := out.AsBool()
		for i, v := range src {
			dst[i] = v != 0
		}
	case tensor.Float16:
		dst := out.AsFloat16()
		for i, v := range src {
			dst[i] = float16.Float16(uint16(v))
		}
	}
}
