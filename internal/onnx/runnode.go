package onnx

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/onnx/operators"
	"github.com/trellis-ml/trellis/internal/tensor"
)

// RunNode executes a single graph node outside of any model, mostly useful
// for operator conformance testing. Inputs are positional, matching the
// node's input list, and the result is keyed by the node's output names.
func RunNode(node *NodeProto, inputs []*tensor.RawTensor, backend tensor.Backend, opset int64) (map[string]*tensor.RawTensor, error) {
	if len(inputs) != len(node.Inputs) {
		return nil, fmt.Errorf("node %s: got %d inputs, want %d", node.OpType, len(inputs), len(node.Inputs))
	}

	registry := operators.NewRegistry()
	ctx := &operators.Context{Backend: backend, Opset: opset}
	outputs, err := registry.Execute(ctx, nodeToOperatorNode(node), inputs)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*tensor.RawTensor, len(node.Outputs))
	for i, name := range node.Outputs {
		if i < len(outputs) && outputs[i] != nil {
			result[name] = outputs[i]
		}
	}
	return result, nil
}
