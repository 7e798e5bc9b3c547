package operators

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// registerShapeOps adds shape-manipulation operators to the registry.
func (r *Registry) registerShapeOps() {
	r.Register("Reshape", handleReshape)
	r.Register("Transpose", handleTranspose)
	r.Register("Squeeze", handleSqueeze)
	r.Register("Unsqueeze", handleUnsqueeze)
	r.Register("Flatten", handleFlatten)
	r.Register("Concat", handleConcat)
	r.Register("Split", handleSplit)
	r.Register("Slice", handleSlice)
	r.Register("Gather", handleGather)
	r.Register("Expand", handleExpand)
	r.Register("Pad", handlePad)
}

func handleReshape(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("reshape", inputs, 1); err != nil {
		return nil, err
	}
	x := inputs[0]

	var target []int64
	if len(inputs) >= 2 && inputs[1] != nil {
		target = inputs[1].AsInt64()
	} else {
		// Early opset versions carry the target as an attribute.
		target = node.AttrInts("shape")
	}
	if target == nil {
		return nil, fmt.Errorf("reshape requires a target shape")
	}

	shape, err := resolveReshape(x.Shape(), target)
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{ctx.Backend.Reshape(x, shape)}, nil
}

// resolveReshape expands the 0 (copy from input) and -1 (inferred) dimension
// placeholders in a reshape target.
func resolveReshape(in tensor.Shape, target []int64) (tensor.Shape, error) {
	out := make(tensor.Shape, len(target))
	inferred := -1
	known := 1
	for i, d := range target {
		switch {
		case d == 0:
			if i >= len(in) {
				return nil, fmt.Errorf("reshape: dimension %d copies from input rank %d", i, len(in))
			}
			out[i] = in[i]
			known *= out[i]
		case d == -1:
			if inferred >= 0 {
				return nil, fmt.Errorf("reshape: at most one dimension can be -1")
			}
			inferred = i
		case d < 0:
			return nil, fmt.Errorf("reshape: invalid dimension %d", d)
		default:
			out[i] = int(d)
			known *= out[i]
		}
	}
	if inferred >= 0 {
		total := in.NumElements()
		if known == 0 || total%known != 0 {
			return nil, fmt.Errorf("reshape: cannot infer dimension for %v from %v", target, in)
		}
		out[inferred] = total / known
	}
	return out, nil
}

func handleTranspose(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("transpose", inputs, 1); err != nil {
		return nil, err
	}
	perm := intsToInt(node.AttrInts("perm"))
	return []*tensor.RawTensor{ctx.Backend.Transpose(inputs[0], perm)}, nil
}

func handleSqueeze(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("squeeze", inputs, 1); err != nil {
		return nil, err
	}
	axes := axesFrom(node, inputs)
	return []*tensor.RawTensor{ctx.Backend.Squeeze(inputs[0], axes)}, nil
}

func handleUnsqueeze(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("unsqueeze", inputs, 1); err != nil {
		return nil, err
	}
	axes := axesFrom(node, inputs)
	if axes == nil {
		return nil, fmt.Errorf("unsqueeze requires axes")
	}
	return []*tensor.RawTensor{ctx.Backend.Unsqueeze(inputs[0], axes)}, nil
}

// axesFrom reads axes from the second input when present (opset 13 moved
// them there) and from the attribute otherwise.
func axesFrom(node *Node, inputs []*tensor.RawTensor) []int {
	if len(inputs) >= 2 && inputs[1] != nil {
		return intsToInt(inputs[1].AsInt64())
	}
	return intsToInt(node.AttrInts("axes"))
}

func handleFlatten(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("flatten", inputs, 1); err != nil {
		return nil, err
	}
	axis := int(node.AttrInt("axis", 1))
	return []*tensor.RawTensor{ctx.Backend.Flatten(inputs[0], axis)}, nil
}

func handleConcat(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("concat", inputs, 1); err != nil {
		return nil, err
	}
	axis := int(node.AttrInt("axis", 0))
	return []*tensor.RawTensor{ctx.Backend.Concat(inputs, axis)}, nil
}

func handleSplit(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("split", inputs, 1); err != nil {
		return nil, err
	}
	axis := int(node.AttrInt("axis", 0))

	var sizes []int
	if len(inputs) >= 2 && inputs[1] != nil {
		sizes = intsToInt(inputs[1].AsInt64())
	} else if s := node.AttrInts("split"); s != nil {
		sizes = intsToInt(s)
	}
	outputs := ctx.Backend.Split(inputs[0], axis, sizes, len(node.Outputs))
	return outputs, nil
}

func handleSlice(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("slice", inputs, 1); err != nil {
		return nil, err
	}
	x := inputs[0]

	var starts, ends, axes, steps []int64
	if len(inputs) >= 3 && inputs[1] != nil && inputs[2] != nil {
		starts = inputs[1].AsInt64()
		ends = inputs[2].AsInt64()
		if len(inputs) >= 4 && inputs[3] != nil {
			axes = inputs[3].AsInt64()
		}
		if len(inputs) >= 5 && inputs[4] != nil {
			steps = inputs[4].AsInt64()
		}
	} else {
		starts = node.AttrInts("starts")
		ends = node.AttrInts("ends")
		axes = node.AttrInts("axes")
	}
	if starts == nil || ends == nil {
		return nil, fmt.Errorf("slice requires starts and ends")
	}
	if err := checkSliceBounds(x.Shape(), starts, ends, axes, steps); err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{ctx.Backend.Slice(x, starts, ends, axes, steps)}, nil
}

// checkSliceBounds rejects selections the runtime cannot represent, an
// empty result in particular, before the kernel runs.
func checkSliceBounds(shape tensor.Shape, starts, ends, axes, steps []int64) error {
	if len(ends) != len(starts) ||
		(len(axes) > 0 && len(axes) != len(starts)) ||
		(len(steps) > 0 && len(steps) != len(starts)) {
		return fmt.Errorf("slice: starts, ends, axes and steps lengths disagree")
	}
	for i := range starts {
		ax := i
		if len(axes) > 0 {
			a, err := tensor.NormalizeAxis(int(axes[i]), len(shape))
			if err != nil {
				return fmt.Errorf("slice: %w", err)
			}
			ax = a
		}
		step := int64(1)
		if len(steps) > 0 {
			step = steps[i]
		}
		if step == 0 {
			return fmt.Errorf("slice: step must be non-zero")
		}
		if sliceSpan(starts[i], ends[i], int64(shape[ax]), step) == 0 {
			return fmt.Errorf("slice: empty result on axis %d", ax)
		}
	}
	return nil
}

// sliceSpan counts the elements one axis keeps under the runtime's bound
// normalization rules.
func sliceSpan(start, end, size, step int64) int64 {
	lo, hi := start, end
	if lo < 0 {
		lo += size
	}
	if hi < 0 {
		hi += size
	}
	if step > 0 {
		lo, hi = clampIndex(lo, 0, size), clampIndex(hi, 0, size)
		if hi <= lo {
			return 0
		}
		return (hi - lo + step - 1) / step
	}
	lo = clampIndex(lo, 0, size-1)
	hi = clampIndex(hi, -1, size-1)
	if lo <= hi {
		return 0
	}
	return (lo - hi - step - 1) / -step
}

func clampIndex(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func handleGather(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("gather", inputs, 2); err != nil {
		return nil, err
	}
	axis := int(node.AttrInt("axis", 0))
	return []*tensor.RawTensor{ctx.Backend.Gather(inputs[0], inputs[1], axis)}, nil
}

func handleExpand(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("expand", inputs, 2); err != nil {
		return nil, err
	}
	dims := inputs[1].AsInt64()
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	out, _, err := tensor.BroadcastShapes(inputs[0].Shape(), shape)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	return []*tensor.RawTensor{ctx.Backend.Expand(inputs[0], out)}, nil
}

func handlePad(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireMinInputs("pad", inputs, 1); err != nil {
		return nil, err
	}
	attrs, err := TranslateAttrs(node)
	if err != nil {
		return nil, err
	}

	var pads []int
	value := attrs.Float("value", 0)
	if len(inputs) >= 2 && inputs[1] != nil {
		pads = intsToInt(inputs[1].AsInt64())
		if len(inputs) >= 3 && inputs[2] != nil && inputs[2].Shape().NumElements() > 0 {
			value = inputs[2].AsFloat32()[0]
		}
	} else {
		// The per-op table renames the widths to the runtime's argument name.
		pads = intsToInt(attrs.Ints("paddings"))
	}
	if pads == nil {
		return nil, fmt.Errorf("pad requires pad widths")
	}

	mode, err := padModeFrom(attrs)
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{ctx.Backend.Pad(inputs[0], pads, mode, value)}, nil
}

func padModeFrom(attrs Attrs) (tensor.PadMode, error) {
	mode, _ := attrs["mode"].(string)
	switch mode {
	case "", "constant":
		return tensor.PadConstant, nil
	case "reflect":
		return tensor.PadReflect, nil
	case "edge":
		return tensor.PadEdge, nil
	default:
		return "", fmt.Errorf("pad: unsupported mode %q", mode)
	}
}
