package operators

import (
	"k8s.io/klog/v2"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// registerActivations adds activation operators to the registry.
func (r *Registry) registerActivations() {
	r.Register("Relu", makeUnaryHandler("relu", tensor.Backend.Relu))
	r.Register("Sigmoid", makeUnaryHandler("sigmoid", tensor.Backend.Sigmoid))
	r.Register("Tanh", makeUnaryHandler("tanh", tensor.Backend.Tanh))
	r.Register("LeakyRelu", handleLeakyRelu)
	r.Register("PRelu", handlePRelu)
	r.Register("Elu", handleElu)
	r.Register("Selu", handleSelu)
	r.Register("Softmax", handleSoftmax)
	r.Register("LogSoftmax", handleLogSoftmax)
	r.Register("Clip", handleClip)
}

func handleLeakyRelu(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("leakyRelu", inputs, 1); err != nil {
		return nil, err
	}
	alpha := node.AttrFloat("alpha", 0.01)
	return []*tensor.RawTensor{ctx.Backend.LeakyRelu(inputs[0], alpha)}, nil
}

// handlePRelu composes PRelu from primitives the runtime does have:
// relu(x) + slope*(x-|x|)*0.5.
func handlePRelu(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("pRelu", inputs, 2); err != nil {
		return nil, err
	}
	x, slope := inputs[0], inputs[1]

	b := ctx.Backend
	pos := b.Relu(x)
	neg := b.MulScalar(b.Mul(slope, b.Sub(x, b.Abs(x))), 0.5)
	return []*tensor.RawTensor{b.Add(pos, neg)}, nil
}

func handleElu(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("elu", inputs, 1); err != nil {
		return nil, err
	}
	alpha := node.AttrFloat("alpha", 1.0)
	return []*tensor.RawTensor{ctx.Backend.Elu(inputs[0], alpha)}, nil
}

// Selu's default constants differ between the IR spec and common runtimes.
const (
	seluDefaultAlpha = 1.67326319
	seluDefaultGamma = 1.05070102
)

func handleSelu(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("selu", inputs, 1); err != nil {
		return nil, err
	}
	if node.Attr("alpha") == nil || node.Attr("gamma") == nil {
		klog.Warning("Selu default constants differ between IR versions; using the IR spec values")
	}
	alpha := node.AttrFloat("alpha", seluDefaultAlpha)
	gamma := node.AttrFloat("gamma", seluDefaultGamma)
	return []*tensor.RawTensor{ctx.Backend.Selu(inputs[0], alpha, gamma)}, nil
}

func handleSoftmax(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("softmax", inputs, 1); err != nil {
		return nil, err
	}
	attrs, err := TranslateAttrs(node)
	if err != nil {
		return nil, err
	}
	// The runtime's softmax argument is named dim; the attribute table
	// renames the IR's axis accordingly.
	dim := int(attrs.Int("dim", -1))
	return []*tensor.RawTensor{ctx.Backend.Softmax(inputs[0], dim)}, nil
}

func handleLogSoftmax(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("logSoftmax", inputs, 1); err != nil {
		return nil, err
	}
	attrs, err := TranslateAttrs(node)
	if err != nil {
		return nil, err
	}
	dim := int(attrs.Int("dim", -1))
	return []*tensor.RawTensor{ctx.Backend.LogSoftmax(inputs[0], dim)}, nil
}

// handleClip bounds x to [min, max]. Since opset 11 the bounds are inputs;
// before that they were attributes.
func handleClip(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) < 1 || inputs[0] == nil {
		return nil, requireInputs("clip", nil, 1)
	}

	var minVal, maxVal *float32
	if ctx.Opset >= 11 {
		if len(inputs) >= 2 && inputs[1] != nil {
			v := inputs[1].AsFloat32()[0]
			minVal = &v
		}
		if len(inputs) >= 3 && inputs[2] != nil {
			v := inputs[2].AsFloat32()[0]
			maxVal = &v
		}
	} else {
		if a := node.Attr("min"); a != nil {
			minVal = &a.F
		}
		if a := node.Attr("max"); a != nil {
			maxVal = &a.F
		}
	}

	// Clip is composed from relu: min(hi,x) = hi - relu(hi-x) and
	// max(lo,x) = lo + relu(x-lo).
	b := ctx.Backend
	result := inputs[0]
	if maxVal != nil {
		hi, err := tensor.Scalar(*maxVal, inputs[0].Device())
		if err != nil {
			return nil, err
		}
		result = b.Sub(hi, b.Relu(b.Sub(hi, result)))
	}
	if minVal != nil {
		lo, err := tensor.Scalar(*minVal, inputs[0].Device())
		if err != nil {
			return nil, err
		}
		result = b.Add(lo, b.Relu(b.Sub(result, lo)))
	}
	return []*tensor.RawTensor{result}, nil
}
