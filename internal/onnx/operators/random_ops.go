package operators

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// registerRandomOps adds random-generation operators to the registry. These
// lean on the attribute table: scale becomes stddev, low/high become
// minval/maxval, and dtype codes become runtime data types.
func (r *Registry) registerRandomOps() {
	r.Register("RandomNormal", handleRandomNormal)
	r.Register("RandomUniform", handleRandomUniform)
	r.Register("RandomNormalLike", handleRandomNormalLike)
	r.Register("RandomUniformLike", handleRandomUniformLike)
}

func handleRandomNormal(ctx *Context, node *Node, _ []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	attrs, err := TranslateAttrs(node)
	if err != nil {
		return nil, err
	}
	shape := attrShape(attrs)
	if shape == nil {
		return nil, fmt.Errorf("randomNormal requires a shape attribute")
	}
	return []*tensor.RawTensor{randomNormal(ctx, attrs, shape)}, nil
}

func handleRandomUniform(ctx *Context, node *Node, _ []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	attrs, err := TranslateAttrs(node)
	if err != nil {
		return nil, err
	}
	shape := attrShape(attrs)
	if shape == nil {
		return nil, fmt.Errorf("randomUniform requires a shape attribute")
	}
	return []*tensor.RawTensor{randomUniform(ctx, attrs, shape)}, nil
}

// The *Like variants draw a tensor shaped like their input.

func handleRandomNormalLike(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("randomNormalLike", inputs, 1); err != nil {
		return nil, err
	}
	attrs, err := TranslateAttrs(node)
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{randomNormal(ctx, attrs, inputs[0].Shape())}, nil
}

func handleRandomUniformLike(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("randomUniformLike", inputs, 1); err != nil {
		return nil, err
	}
	attrs, err := TranslateAttrs(node)
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{randomUniform(ctx, attrs, inputs[0].Shape())}, nil
}

func randomNormal(ctx *Context, attrs Attrs, shape tensor.Shape) *tensor.RawTensor {
	mean := attrs.Float("mean", 0)
	stddev := attrs.Float("stddev", 1)
	dtype := attrs.DataType("dtype", tensor.Float32)
	return ctx.Backend.RandomNormal(shape, dtype, mean, stddev, attrs.Seed())
}

func randomUniform(ctx *Context, attrs Attrs, shape tensor.Shape) *tensor.RawTensor {
	minval := attrs.Float("minval", 0)
	maxval := attrs.Float("maxval", 1)
	dtype := attrs.DataType("dtype", tensor.Float32)
	return ctx.Backend.RandomUniform(shape, dtype, minval, maxval, attrs.Seed())
}

// attrShape reads the shape attribute, or nil when absent.
func attrShape(attrs Attrs) tensor.Shape {
	dims := attrs.Ints("shape")
	if dims == nil {
		return nil
	}
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	return shape
}
