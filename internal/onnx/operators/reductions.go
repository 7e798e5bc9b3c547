package operators

import (
	"github.com/trellis-ml/trellis/internal/tensor"
)

// reduceKernels maps IR reduction operators onto the runtime's reductions.
var reduceKernels = map[string]func(tensor.Backend, *tensor.RawTensor, []int, bool) *tensor.RawTensor{
	"ReduceSum":       tensor.Backend.ReduceSum,
	"ReduceMean":      tensor.Backend.ReduceMean,
	"ReduceMax":       tensor.Backend.ReduceMax,
	"ReduceMin":       tensor.Backend.ReduceMin,
	"ReduceProd":      tensor.Backend.ReduceProd,
	"ReduceLogSumExp": tensor.Backend.ReduceLogSumExp,
}

// registerReductions adds reduction operators to the registry.
func (r *Registry) registerReductions() {
	for op, kernel := range reduceKernels {
		r.Register(op, makeReduceHandler(op, kernel))
	}
}

// makeReduceHandler builds the shared reduction translation: the attribute
// table renames axes to axis and coerces keepdims to a bool; since opset 18
// the axes may arrive as a second input instead.
func makeReduceHandler(op string, kernel func(tensor.Backend, *tensor.RawTensor, []int, bool) *tensor.RawTensor) OpHandler {
	return func(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if len(inputs) < 1 || inputs[0] == nil {
			return nil, requireInputs(op, inputs, 1)
		}

		attrs, err := TranslateAttrs(node)
		if err != nil {
			return nil, err
		}

		axes := intsToInt(attrs.Ints("axis"))
		if len(inputs) >= 2 && inputs[1] != nil {
			axes = intsToInt(inputs[1].AsInt64())
		}
		keepDims := attrs.Bool("keepDims", true)

		return []*tensor.RawTensor{kernel(ctx.Backend, inputs[0], axes, keepDims)}, nil
	}
}
