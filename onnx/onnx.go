// Package onnx is the public surface for loading and running ONNX models.
//
// Example:
//
//	backend := cpu.New()
//	model, err := onnx.Load("model.onnx", backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	output, err := model.Forward(input)
//
// Supported operators cover element-wise math, activations, reductions,
// random generation and shape manipulation; use [ListSupportedOps] for the
// full list.
package onnx

import (
	internalonnx "github.com/trellis-ml/trellis/internal/onnx"
	"github.com/trellis-ml/trellis/tensor"
)

// LoadOptions configures model loading.
type LoadOptions = internalonnx.LoadOptions

// DefaultLoadOptions returns the default loading options: lenient mode, no
// custom operators.
func DefaultLoadOptions() LoadOptions {
	return internalonnx.DefaultLoadOptions()
}

// Model is a loaded ONNX model ready for inference.
type Model interface {
	// Forward runs inference with a single input tensor. Models with
	// multiple inputs or outputs need ForwardNamed.
	Forward(input *tensor.RawTensor) (*tensor.RawTensor, error)

	// ForwardNamed runs inference with named inputs and returns a map of
	// output name to tensor. Every name in InputNames must be bound.
	ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error)

	// InputNames returns the names of the model inputs.
	InputNames() []string

	// OutputNames returns the names of the model outputs.
	OutputNames() []string

	// OpsetVersion returns the ai.onnx opset version of the model.
	OpsetVersion() int64

	// Metadata returns the model's metadata properties plus the producer
	// fields under "producer_name", "producer_version" and "domain".
	Metadata() map[string]string
}

// Load reads an ONNX model from a file and prepares it for inference on the
// given backend.
func Load(path string, backend tensor.Backend, opts ...LoadOptions) (Model, error) {
	return internalonnx.Load(path, backend, opts...)
}

// LoadFromBytes loads an ONNX model from serialized bytes, for models that
// are embedded or fetched rather than stored on disk.
func LoadFromBytes(data []byte, backend tensor.Backend, opts ...LoadOptions) (Model, error) {
	return internalonnx.LoadFromBytes(data, backend, opts...)
}

// ModelInfo is a summary of a model file, extracted without loading weights.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo reads the summary information from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}

// ListSupportedOps returns the names of all built-in operators, sorted.
func ListSupportedOps() []string {
	return internalonnx.ListSupportedOps()
}

// SupportsDevice reports whether models can run on the given device.
func SupportsDevice(device tensor.Device) bool {
	return internalonnx.SupportsDevice(device)
}

// NodeProto is a single operator invocation in an ONNX graph.
type NodeProto = internalonnx.NodeProto

// AttributeProto is a named operator parameter on a node.
type AttributeProto = internalonnx.AttributeProto

// RunNode executes a single graph node outside of any model. Inputs are
// positional, matching the node's input list, and the result is keyed by
// the node's output names.
func RunNode(node *NodeProto, inputs []*tensor.RawTensor, backend tensor.Backend, opset int64) (map[string]*tensor.RawTensor, error) {
	return internalonnx.RunNode(node, inputs, backend, opset)
}
