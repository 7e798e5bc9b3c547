package onnx

import (
	"fmt"
	"sort"

	"k8s.io/klog/v2"

	"github.com/trellis-ml/trellis/internal/onnx/operators"
	"github.com/trellis-ml/trellis/internal/tensor"
)

// LoadOptions configures model loading.
type LoadOptions struct {
	// StrictMode fails the load when the graph names an unsupported
	// operator. The default logs a warning and fails only if the node is
	// actually reached during inference.
	StrictMode bool

	// CustomOps adds or overrides operator handlers.
	CustomOps map[string]operators.OpHandler
}

// DefaultLoadOptions returns the default loading options.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{}
}

// Load reads an ONNX model from a file and prepares it for inference on the
// given backend.
//
// Example:
//
//	model, err := onnx.Load("mnist.onnx", cpu.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	output, err := model.Forward(input)
func Load(path string, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	opt := DefaultLoadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	proto, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return LoadFromProto(proto, backend, opt)
}

// LoadFromBytes loads an ONNX model from serialized bytes.
func LoadFromBytes(data []byte, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	opt := DefaultLoadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	proto, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return LoadFromProto(proto, backend, opt)
}

// LoadFromProto loads a model from an already parsed ModelProto.
func LoadFromProto(proto *ModelProto, backend tensor.Backend, opt LoadOptions) (*Model, error) {
	registry := operators.NewRegistry()
	for opType, handler := range opt.CustomOps {
		registry.Register(opType, handler)
	}

	if err := checkOperators(proto.Graph, registry, opt.StrictMode); err != nil {
		return nil, err
	}

	model := &Model{
		proto:    proto,
		registry: registry,
		backend:  backend,
	}
	if err := model.compile(); err != nil {
		return nil, fmt.Errorf("compile model: %w", err)
	}
	return model, nil
}

// checkOperators verifies every node's operator is registered. Strict mode
// turns unsupported operators into an error; otherwise each one gets a
// warning and the load proceeds.
func checkOperators(graph *GraphProto, registry *operators.Registry, strict bool) error {
	if graph == nil {
		return fmt.Errorf("model has no graph")
	}

	var unsupported []string
	seen := make(map[string]bool)
	for i := range graph.Nodes {
		opType := graph.Nodes[i].OpType
		if seen[opType] {
			continue
		}
		seen[opType] = true
		if _, ok := registry.Get(opType); !ok {
			unsupported = append(unsupported, opType)
		}
	}
	if len(unsupported) == 0 {
		return nil
	}
	if strict {
		return fmt.Errorf("unsupported operators: %v", unsupported)
	}
	for _, opType := range unsupported {
		klog.Warningf("operator %s is not supported; nodes using it will fail at inference", opType)
	}
	return nil
}

// ModelInfo is a summary of a model, extracted without running it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	NodeCount       int
	WeightCount     int
	UnsupportedOps  []string
}

// GetModelInfo reads the summary information from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
	}
	for _, opset := range proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}

	if graph := proto.Graph; graph != nil {
		initNames := make(map[string]bool, len(graph.Initializers))
		for i := range graph.Initializers {
			initNames[graph.Initializers[i].Name] = true
		}
		for i := range graph.Inputs {
			if !initNames[graph.Inputs[i].Name] {
				info.InputNames = append(info.InputNames, graph.Inputs[i].Name)
			}
		}
		for i := range graph.Outputs {
			info.OutputNames = append(info.OutputNames, graph.Outputs[i].Name)
		}
		info.NodeCount = len(graph.Nodes)
		info.WeightCount = len(graph.Initializers)

		registry := operators.NewRegistry()
		seen := make(map[string]bool)
		for i := range graph.Nodes {
			opType := graph.Nodes[i].OpType
			if seen[opType] {
				continue
			}
			seen[opType] = true
			if _, ok := registry.Get(opType); !ok {
				info.UnsupportedOps = append(info.UnsupportedOps, opType)
			}
		}
		sort.Strings(info.UnsupportedOps)
	}
	return info, nil
}

// ListSupportedOps returns the names of all built-in operators, sorted.
func ListSupportedOps() []string {
	return operators.NewRegistry().SupportedOps()
}
