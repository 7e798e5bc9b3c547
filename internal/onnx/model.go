package onnx

import (
	"fmt"

	"github.com/x448/float16"

	"github.com/trellis-ml/trellis/internal/onnx/operators"
	"github.com/trellis-ml/trellis/internal/tensor"
)

// Model is a loaded ONNX model ready for inference. It executes the graph
// with the backend it was loaded against.
type Model struct {
	proto        *ModelProto
	registry     *operators.Registry
	backend      tensor.Backend
	tensors      map[string]*tensor.RawTensor // weights keyed by value name
	inputNames   []string
	outputNames  []string
	sortedNodes  []NodeProto
	opsetVersion int64
}

// InputNames returns the names of the model inputs. Graph inputs backed by
// an initializer are weights, not inputs, and are excluded.
func (m *Model) InputNames() []string {
	return m.inputNames
}

// OutputNames returns the names of the model outputs.
func (m *Model) OutputNames() []string {
	return m.outputNames
}

// OpsetVersion returns the ai.onnx opset version the model was exported with.
func (m *Model) OpsetVersion() int64 {
	return m.opsetVersion
}

// Metadata returns the model's metadata properties plus producer fields.
func (m *Model) Metadata() map[string]string {
	meta := make(map[string]string, len(m.proto.MetadataProps)+3)
	for _, prop := range m.proto.MetadataProps {
		meta[prop.Key] = prop.Value
	}
	meta["producer_name"] = m.proto.ProducerName
	meta["producer_version"] = m.proto.ProducerVersion
	meta["domain"] = m.proto.Domain
	return meta
}

// Forward runs inference with a single input tensor. Models with multiple
// inputs or outputs need ForwardNamed.
func (m *Model) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(m.inputNames) != 1 {
		return nil, fmt.Errorf("model has %d inputs, use ForwardNamed", len(m.inputNames))
	}
	outputs, err := m.ForwardNamed(map[string]*tensor.RawTensor{m.inputNames[0]: input})
	if err != nil {
		return nil, err
	}
	if len(m.outputNames) != 1 {
		return nil, fmt.Errorf("model has %d outputs, use ForwardNamed", len(m.outputNames))
	}
	return outputs[m.outputNames[0]], nil
}

// ForwardNamed runs inference with named inputs and returns a map of output
// name to tensor. Input tensors are never mutated.
func (m *Model) ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	tensors := make(map[string]*tensor.RawTensor, len(m.tensors)+len(inputs))
	for name, t := range m.tensors {
		tensors[name] = t
	}
	for name, t := range inputs {
		tensors[name] = t
	}
	for _, name := range m.inputNames {
		if _, ok := tensors[name]; !ok {
			return nil, fmt.Errorf("missing input: %s", name)
		}
	}

	ctx := &operators.Context{Backend: m.backend, Opset: m.opsetVersion}
	for i := range m.sortedNodes {
		node := &m.sortedNodes[i]

		nodeInputs := make([]*tensor.RawTensor, len(node.Inputs))
		for j, name := range node.Inputs {
			if name == "" {
				// Optional input left unbound.
				continue
			}
			t, ok := tensors[name]
			if !ok {
				return nil, fmt.Errorf("node %s: missing input %s", node.Name, name)
			}
			nodeInputs[j] = t
		}

		outputs, err := m.registry.Execute(ctx, nodeToOperatorNode(node), nodeInputs)
		if err != nil {
			return nil, fmt.Errorf("node %s (%s): %w", node.Name, node.OpType, err)
		}
		for j, name := range node.Outputs {
			if j < len(outputs) && outputs[j] != nil {
				tensors[name] = outputs[j]
			}
		}
	}

	result := make(map[string]*tensor.RawTensor, len(m.outputNames))
	for _, name := range m.outputNames {
		t, ok := tensors[name]
		if !ok {
			return nil, fmt.Errorf("missing output: %s", name)
		}
		result[name] = t
	}
	return result, nil
}

// compile loads the weights, resolves the I/O names and sorts the nodes into
// execution order.
func (m *Model) compile() error {
	graph := m.proto.Graph
	if graph == nil {
		return fmt.Errorf("model has no graph")
	}

	m.tensors = make(map[string]*tensor.RawTensor, len(graph.Initializers))
	initNames := make(map[string]bool, len(graph.Initializers))
	for i := range graph.Initializers {
		init := &graph.Initializers[i]
		t, err := tensorFromProto(init)
		if err != nil {
			return fmt.Errorf("initializer %s: %w", init.Name, err)
		}
		m.tensors[init.Name] = t
		initNames[init.Name] = true
	}

	for i := range graph.Inputs {
		if !initNames[graph.Inputs[i].Name] {
			m.inputNames = append(m.inputNames, graph.Inputs[i].Name)
		}
	}
	for i := range graph.Outputs {
		m.outputNames = append(m.outputNames, graph.Outputs[i].Name)
	}

	m.sortedNodes = topologicalSort(graph.Nodes)

	for _, opset := range m.proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			m.opsetVersion = opset.Version
			break
		}
	}
	return nil
}

// tensorFromProto converts a TensorProto to a RawTensor. The payload lives
// either in RawData or in one of the legacy typed fields.
func tensorFromProto(proto *TensorProto) (*tensor.RawTensor, error) {
	shape := make(tensor.Shape, len(proto.Dims))
	for i, dim := range proto.Dims {
		shape[i] = int(dim)
	}
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}

	dtype, err := operators.DataTypeFromProto(proto.DataType)
	if err != nil {
		return nil, err
	}
	t, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}

	switch {
	case len(proto.RawData) > 0:
		if len(proto.RawData) != t.ByteSize() {
			return nil, fmt.Errorf("raw data is %d bytes, want %d", len(proto.RawData), t.ByteSize())
		}
		copy(t.Data(), proto.RawData)
	case len(proto.FloatData) > 0:
		copy(t.AsFloat32(), proto.FloatData)
	case len(proto.Int64Data) > 0:
		copy(t.AsInt64(), proto.Int64Data)
	case len(proto.Int32Data) > 0:
		// int32, uint8, bool and float16 payloads all ride in int32_data.
		fillFromInt32Data(t, proto.Int32Data)
	}
	return t, nil
}

func fillFromInt32Data(t *tensor.RawTensor, src []int32) {
	switch t.DType() {
	case tensor.Int32:
		copy(t.AsInt32(), src)
	case tensor.Uint8:
		dst := t.AsUint8()
		for i, v := range src {
			dst[i] = uint8(v)
		}
	case tensor.Bool:
		dst := t.AsBool()
		for i, v := range src {
			dst[i] = v != 0
		}
	case tensor.Float16:
		dst := t.AsFloat16()
		for i, v := range src {
			dst[i] = float16.Float16(uint16(v))
		}
	}
}

// nodeToOperatorNode converts a NodeProto to the operator package's node
// type. The long-removed consumed_inputs attribute still shows up in old
// models and is dropped here.
func nodeToOperatorNode(proto *NodeProto) *operators.Node {
	attrs := make([]operators.Attribute, 0, len(proto.Attributes))
	for i := range proto.Attributes {
		attr := &proto.Attributes[i]
		if attr.Name == "consumed_inputs" {
			continue
		}
		attrs = append(attrs, operators.Attribute{
			Name:    attr.Name,
			Kind:    attr.Kind,
			F:       attr.F,
			I:       attr.I,
			S:       attr.S,
			Tensor:  tensorValueFromProto(attr.T),
			Floats:  attr.Floats,
			Ints:    attr.Ints,
			Strings: attr.Strings,
		})
	}
	return &operators.Node{
		Name:       proto.Name,
		OpType:     proto.OpType,
		Inputs:     proto.Inputs,
		Outputs:    proto.Outputs,
		Attributes: attrs,
		Domain:     proto.Domain,
	}
}

func tensorValueFromProto(proto *TensorProto) *operators.TensorValue {
	if proto == nil {
		return nil
	}
	return &operators.TensorValue{
		DataType: proto.DataType,
		Dims:     proto.Dims,
		Raw:      proto.RawData,
		Floats:   proto.FloatData,
		Int32s:   proto.Int32Data,
		Int64s:   proto.Int64Data,
	}
}

// topologicalSort orders nodes so every producer runs before its consumers.
// Exporters usually emit nodes in order already, but nothing requires it.
func topologicalSort(nodes []NodeProto) []NodeProto {
	outputToNode := make(map[string]int)
	for i := range nodes {
		for _, output := range nodes[i].Outputs {
			outputToNode[output] = i
		}
	}

	visited := make([]bool, len(nodes))
	result := make([]NodeProto, 0, len(nodes))

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, input := range nodes[i].Inputs {
			if dep, ok := outputToNode[input]; ok {
				visit(dep)
			}
		}
		result = append(result, nodes[i])
	}

	for i := range nodes {
		visit(i)
	}
	return result
}
