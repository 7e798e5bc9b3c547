package operators

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// binaryKernels maps IR operators straight onto the runtime's element-wise
// binary ops. Method expressions keep the table declarative.
var binaryKernels = map[string]func(tensor.Backend, *tensor.RawTensor, *tensor.RawTensor) *tensor.RawTensor{
	"Add": tensor.Backend.Add,
	"Mul": tensor.Backend.Mul,
	"Div": tensor.Backend.Div,
	"Pow": tensor.Backend.Pow,
}

// unaryKernels maps IR operators straight onto the runtime's element-wise
// unary ops.
var unaryKernels = map[string]func(tensor.Backend, *tensor.RawTensor) *tensor.RawTensor{
	"Abs":        tensor.Backend.Abs,
	"Neg":        tensor.Backend.Neg,
	"Exp":        tensor.Backend.Exp,
	"Log":        tensor.Backend.Log,
	"Sqrt":       tensor.Backend.Sqrt,
	"Reciprocal": tensor.Backend.Reciprocal,
}

// registerMathOps adds arithmetic operators to the registry.
func (r *Registry) registerMathOps() {
	for op, kernel := range binaryKernels {
		r.Register(op, makeBinaryHandler(op, kernel))
	}
	for op, kernel := range unaryKernels {
		r.Register(op, makeUnaryHandler(op, kernel))
	}
	r.Register("Sub", handleSub)
	r.Register("MatMul", handleMatMul)
	r.Register("Gemm", handleGemm)
	r.Register("Sum", handleSum)
}

func makeBinaryHandler(op string, kernel func(tensor.Backend, *tensor.RawTensor, *tensor.RawTensor) *tensor.RawTensor) OpHandler {
	return func(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := requireInputs(op, inputs, 2); err != nil {
			return nil, err
		}
		return []*tensor.RawTensor{kernel(ctx.Backend, inputs[0], inputs[1])}, nil
	}
}

func makeUnaryHandler(op string, kernel func(tensor.Backend, *tensor.RawTensor) *tensor.RawTensor) OpHandler {
	return func(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := requireInputs(op, inputs, 1); err != nil {
			return nil, err
		}
		return []*tensor.RawTensor{kernel(ctx.Backend, inputs[0])}, nil
	}
}

// handleSub subtracts with broadcasting. Early IR versions carried broadcast
// and axis attributes whose semantics the runtime cannot reproduce exactly;
// those are warned about and otherwise ignored.
func handleSub(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("sub", inputs, 2); err != nil {
		return nil, err
	}
	if a := node.Attr("broadcast"); a != nil && a.I == 0 {
		klog.Warning("Sub with broadcast disabled differs between the IR and the runtime; broadcasting anyway")
	}
	if node.Attr("axis") != nil {
		klog.Warning("Sub axis attribute is not supported by the runtime and will be ignored")
	}
	return []*tensor.RawTensor{ctx.Backend.Sub(inputs[0], inputs[1])}, nil
}

func handleMatMul(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("matMul", inputs, 2); err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{ctx.Backend.MatMul(inputs[0], inputs[1])}, nil
}

// handleGemm computes Y = alpha*A'*B' + beta*C where A'/B' are optionally
// transposed.
func handleGemm(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("gemm requires at least 2 inputs, got %d", len(inputs))
	}

	alpha := node.AttrFloat("alpha", 1.0)
	beta := node.AttrFloat("beta", 1.0)
	transA := node.AttrInt("transA", 0) != 0
	transB := node.AttrInt("transB", 0) != 0

	a, b := inputs[0], inputs[1]
	if transA {
		a = ctx.Backend.Transpose(a, nil)
	}
	if transB {
		b = ctx.Backend.Transpose(b, nil)
	}

	result := ctx.Backend.MatMul(a, b)
	if alpha != 1.0 {
		result = ctx.Backend.MulScalar(result, float64(alpha))
	}

	if len(inputs) >= 3 && inputs[2] != nil && beta != 0 {
		c := inputs[2]
		if beta != 1.0 {
			c = ctx.Backend.MulScalar(c, float64(beta))
		}
		result = ctx.Backend.Add(result, c)
	}

	return []*tensor.RawTensor{result}, nil
}

// handleSum folds any number of inputs with element-wise addition.
func handleSum(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("sum requires at least 1 input")
	}
	result := inputs[0]
	for _, t := range inputs[1:] {
		result = ctx.Backend.Add(result, t)
	}
	return []*tensor.RawTensor{result}, nil
}

// requireInputs checks the exact input arity of a node.
func requireInputs(op string, inputs []*tensor.RawTensor, n int) error {
	if len(inputs) != n {
		return fmt.Errorf("%s requires %d inputs, got %d", op, n, len(inputs))
	}
	return requireMinInputs(op, inputs, n)
}

// requireMinInputs checks that a node carries at least n inputs and that the
// leading n are bound. Operators whose later inputs are optional, or that
// grew inputs across opset versions, use this instead of requireInputs.
func requireMinInputs(op string, inputs []*tensor.RawTensor, n int) error {
	if len(inputs) < n {
		return fmt.Errorf("%s requires at least %d inputs, got %d", op, n, len(inputs))
	}
	for i, t := range inputs[:n] {
		if t == nil {
			return fmt.Errorf("%s: input %d is missing", op, i)
		}
	}
	return nil
}
