package onnx

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// protoBuilder constructs protobuf wire-format bytes for test fixtures.
type protoBuilder struct {
	data []byte
}

func (b *protoBuilder) writeTag(num, wire int) {
	b.writeVarint(int64(num<<3 | wire))
}

func (b *protoBuilder) writeVarint(v int64) {
	u := uint64(v)
	for u >= 0x80 {
		b.data = append(b.data, byte(u)|0x80)
		u >>= 7
	}
	b.data = append(b.data, byte(u))
}

func (b *protoBuilder) varintField(num int, v int64) {
	b.writeTag(num, wireVarint)
	b.writeVarint(v)
}

func (b *protoBuilder) bytesField(num int, data []byte) {
	b.writeTag(num, wireBytes)
	b.writeVarint(int64(len(data)))
	b.data = append(b.data, data...)
}

func (b *protoBuilder) stringField(num int, s string) {
	b.bytesField(num, []byte(s))
}

func (b *protoBuilder) msgField(num int, sub *protoBuilder) {
	b.bytesField(num, sub.data)
}

func (b *protoBuilder) float32Field(num int, f float32) {
	b.writeTag(num, wire32Bit)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
	b.data = append(b.data, buf[:]...)
}

func packedVarints(vals ...int64) []byte {
	b := &protoBuilder{}
	for _, v := range vals {
		b.writeVarint(v)
	}
	return b.data
}

func packedFloat32s(vals ...float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func buildValueInfo(name string, elemType int32, dims []int64) *protoBuilder {
	shape := &protoBuilder{}
	for _, d := range dims {
		dim := &protoBuilder{}
		if d > 0 {
			dim.varintField(1, d)
		} else {
			dim.stringField(2, "batch")
		}
		shape.msgField(1, dim)
	}
	tensorType := &protoBuilder{}
	tensorType.varintField(1, int64(elemType))
	tensorType.msgField(2, shape)
	typ := &protoBuilder{}
	typ.msgField(1, tensorType)
	vi := &protoBuilder{}
	vi.stringField(1, name)
	vi.msgField(2, typ)
	return vi
}

func buildModel(graph *protoBuilder) []byte {
	opset := &protoBuilder{}
	opset.stringField(1, "")
	opset.varintField(2, 13)

	meta := &protoBuilder{}
	meta.stringField(1, "framework")
	meta.stringField(2, "trellis")

	model := &protoBuilder{}
	model.varintField(1, 8)
	model.stringField(2, "trellis-test")
	model.stringField(3, "0.1")
	model.msgField(7, graph)
	model.msgField(8, opset)
	model.msgField(14, meta)
	return model.data
}

func buildAddModel() []byte {
	node := &protoBuilder{}
	node.stringField(1, "X")
	node.stringField(1, "Y")
	node.stringField(2, "Z")
	node.stringField(3, "add0")
	node.stringField(4, "Add")

	graph := &protoBuilder{}
	graph.msgField(1, node)
	graph.stringField(2, "add_graph")
	graph.msgField(11, buildValueInfo("X", TensorProtoFloat, []int64{-1, 4}))
	graph.msgField(11, buildValueInfo("Y", TensorProtoFloat, []int64{-1, 4}))
	graph.msgField(12, buildValueInfo("Z", TensorProtoFloat, []int64{-1, 4}))
	return buildModel(graph)
}

func TestParseAddModel(t *testing.T) {
	model, err := Parse(buildAddModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if model.IRVersion != 8 {
		t.Errorf("IRVersion = %d, want 8", model.IRVersion)
	}
	if model.ProducerName != "trellis-test" {
		t.Errorf("ProducerName = %q, want trellis-test", model.ProducerName)
	}
	if model.ProducerVersion != "0.1" {
		t.Errorf("ProducerVersion = %q, want 0.1", model.ProducerVersion)
	}

	if len(model.OpsetImport) != 1 {
		t.Fatalf("got %d opset imports, want 1", len(model.OpsetImport))
	}
	if op := model.OpsetImport[0]; op.Domain != "" || op.Version != 13 {
		t.Errorf("opset = {%q, %d}, want {\"\", 13}", op.Domain, op.Version)
	}

	if len(model.MetadataProps) != 1 {
		t.Fatalf("got %d metadata props, want 1", len(model.MetadataProps))
	}
	if p := model.MetadataProps[0]; p.Key != "framework" || p.Value != "trellis" {
		t.Errorf("metadata = {%q, %q}, want {framework, trellis}", p.Key, p.Value)
	}

	g := model.Graph
	if g == nil {
		t.Fatal("Graph is nil")
	}
	if g.Name != "add_graph" {
		t.Errorf("graph name = %q, want add_graph", g.Name)
	}
	if len(g.Nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(g.Nodes))
	}

	node := g.Nodes[0]
	if node.OpType != "Add" {
		t.Errorf("OpType = %q, want Add", node.OpType)
	}
	if node.Name != "add0" {
		t.Errorf("node name = %q, want add0", node.Name)
	}
	if len(node.Inputs) != 2 || node.Inputs[0] != "X" || node.Inputs[1] != "Y" {
		t.Errorf("inputs = %v, want [X Y]", node.Inputs)
	}
	if len(node.Outputs) != 1 || node.Outputs[0] != "Z" {
		t.Errorf("outputs = %v, want [Z]", node.Outputs)
	}

	if len(g.Inputs) != 2 || len(g.Outputs) != 1 {
		t.Fatalf("got %d inputs and %d outputs, want 2 and 1", len(g.Inputs), len(g.Outputs))
	}
	in := g.Inputs[0]
	if in.Name != "X" {
		t.Errorf("input name = %q, want X", in.Name)
	}
	if in.Type == nil || in.Type.TensorType == nil {
		t.Fatal("input type info is nil")
	}
	tt := in.Type.TensorType
	if tt.ElemType != TensorProtoFloat {
		t.Errorf("elem type = %d, want %d", tt.ElemType, TensorProtoFloat)
	}
	if tt.Shape == nil || len(tt.Shape.Dims) != 2 {
		t.Fatal("input shape missing or wrong rank")
	}
	if tt.Shape.Dims[0].DimParam != "batch" {
		t.Errorf("dim param = %q, want batch", tt.Shape.Dims[0].DimParam)
	}
	if tt.Shape.Dims[1].DimValue != 4 {
		t.Errorf("dim value = %d, want 4", tt.Shape.Dims[1].DimValue)
	}
}

func TestParseInitializers(t *testing.T) {
	// W carries raw bytes, B the legacy packed float field, I packed int64s.
	w := &protoBuilder{}
	w.varintField(1, 2)
	w.varintField(1, 2)
	w.varintField(2, TensorProtoFloat)
	w.stringField(8, "W")
	w.bytesField(9, packedFloat32s(1, 2, 3, 4))

	b := &protoBuilder{}
	b.varintField(1, 3)
	b.varintField(2, TensorProtoFloat)
	b.bytesField(4, packedFloat32s(0.5, 1.5, 2.5))
	b.stringField(8, "B")

	idx := &protoBuilder{}
	idx.varintField(1, 2)
	idx.varintField(2, TensorProtoInt64)
	idx.bytesField(7, packedVarints(10, 20))
	idx.stringField(8, "I")

	graph := &protoBuilder{}
	graph.stringField(2, "init_graph")
	graph.msgField(5, w)
	graph.msgField(5, b)
	graph.msgField(5, idx)

	model, err := Parse(buildModel(graph))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	inits := model.Graph.Initializers
	if len(inits) != 3 {
		t.Fatalf("got %d initializers, want 3", len(inits))
	}

	if inits[0].Name != "W" || inits[0].DataType != TensorProtoFloat {
		t.Errorf("W = {%q, %d}, want {W, float}", inits[0].Name, inits[0].DataType)
	}
	if len(inits[0].Dims) != 2 || inits[0].Dims[0] != 2 || inits[0].Dims[1] != 2 {
		t.Errorf("W dims = %v, want [2 2]", inits[0].Dims)
	}
	if len(inits[0].RawData) != 16 {
		t.Errorf("W raw data = %d bytes, want 16", len(inits[0].RawData))
	}

	if len(inits[1].FloatData) != 3 || inits[1].FloatData[2] != 2.5 {
		t.Errorf("B float data = %v, want [0.5 1.5 2.5]", inits[1].FloatData)
	}

	if len(inits[2].Int64Data) != 2 || inits[2].Int64Data[0] != 10 || inits[2].Int64Data[1] != 20 {
		t.Errorf("I int64 data = %v, want [10 20]", inits[2].Int64Data)
	}
}

func TestParseAttributes(t *testing.T) {
	alpha := &protoBuilder{}
	alpha.stringField(1, "alpha")
	alpha.float32Field(2, 0.25)
	alpha.varintField(20, AttributeProtoFloat)

	axis := &protoBuilder{}
	axis.stringField(1, "axis")
	axis.varintField(3, -1)
	axis.varintField(20, AttributeProtoInt)

	mode := &protoBuilder{}
	mode.stringField(1, "mode")
	mode.stringField(4, "reflect")
	mode.varintField(20, AttributeProtoString)

	pads := &protoBuilder{}
	pads.stringField(1, "pads")
	pads.bytesField(8, packedVarints(1, 1, 2, 2))
	pads.varintField(20, AttributeProtoInts)

	scales := &protoBuilder{}
	scales.stringField(1, "scales")
	scales.bytesField(7, packedFloat32s(1, 2))
	scales.varintField(20, AttributeProtoFloats)

	valueTensor := &protoBuilder{}
	valueTensor.varintField(1, 2)
	valueTensor.varintField(2, TensorProtoFloat)
	valueTensor.bytesField(9, packedFloat32s(7, 8))
	value := &protoBuilder{}
	value.stringField(1, "value")
	value.msgField(5, valueTensor)
	value.varintField(20, AttributeProtoTensor)

	node := &protoBuilder{}
	node.stringField(2, "out")
	node.stringField(4, "Custom")
	for _, attr := range []*protoBuilder{alpha, axis, mode, pads, scales, value} {
		node.msgField(5, attr)
	}

	graph := &protoBuilder{}
	graph.msgField(1, node)

	model, err := Parse(buildModel(graph))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	attrs := model.Graph.Nodes[0].Attributes
	if len(attrs) != 6 {
		t.Fatalf("got %d attributes, want 6", len(attrs))
	}

	if attrs[0].Name != "alpha" || attrs[0].Kind != AttributeProtoFloat || attrs[0].F != 0.25 {
		t.Errorf("alpha = {%q, %d, %v}", attrs[0].Name, attrs[0].Kind, attrs[0].F)
	}
	if attrs[1].I != -1 || attrs[1].Kind != AttributeProtoInt {
		t.Errorf("axis = {%d, %d}, want {-1, int}", attrs[1].I, attrs[1].Kind)
	}
	if string(attrs[2].S) != "reflect" {
		t.Errorf("mode = %q, want reflect", attrs[2].S)
	}
	if len(attrs[3].Ints) != 4 || attrs[3].Ints[2] != 2 {
		t.Errorf("pads = %v, want [1 1 2 2]", attrs[3].Ints)
	}
	if len(attrs[4].Floats) != 2 || attrs[4].Floats[1] != 2 {
		t.Errorf("scales = %v, want [1 2]", attrs[4].Floats)
	}
	if attrs[5].T == nil {
		t.Fatal("value tensor attribute is nil")
	}
	if attrs[5].T.DataType != TensorProtoFloat || len(attrs[5].T.RawData) != 8 {
		t.Errorf("value tensor = {%d, %d bytes}", attrs[5].T.DataType, len(attrs[5].T.RawData))
	}
}

func TestParsePermAttribute(t *testing.T) {
	// An ints attribute must land in Ints, never in Strings; a transposed
	// graph silently loses its permutation otherwise.
	perm := &protoBuilder{}
	perm.stringField(1, "perm")
	perm.bytesField(8, packedVarints(1, 0))
	perm.varintField(20, AttributeProtoInts)

	node := &protoBuilder{}
	node.stringField(1, "X")
	node.stringField(2, "Y")
	node.stringField(4, "Transpose")
	node.msgField(5, perm)

	graph := &protoBuilder{}
	graph.msgField(1, node)

	model, err := Parse(buildModel(graph))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	attr := model.Graph.Nodes[0].Attributes[0]
	if len(attr.Ints) != 2 || attr.Ints[0] != 1 || attr.Ints[1] != 0 {
		t.Errorf("perm Ints = %v, want [1 0]", attr.Ints)
	}
	if len(attr.Strings) != 0 {
		t.Errorf("perm leaked into Strings: %v", attr.Strings)
	}
}

func TestParseUnpackedInts(t *testing.T) {
	// Repeated int64 fields may also arrive unpacked, one varint per tag.
	attr := &protoBuilder{}
	attr.stringField(1, "axes")
	attr.varintField(8, 0)
	attr.varintField(8, 2)
	attr.varintField(20, AttributeProtoInts)

	node := &protoBuilder{}
	node.stringField(2, "out")
	node.stringField(4, "Squeeze")
	node.msgField(5, attr)

	graph := &protoBuilder{}
	graph.msgField(1, node)

	model, err := Parse(buildModel(graph))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ints := model.Graph.Nodes[0].Attributes[0].Ints
	if len(ints) != 2 || ints[0] != 0 || ints[1] != 2 {
		t.Errorf("ints = %v, want [0 2]", ints)
	}
}

func TestParseSkipsUnknownFields(t *testing.T) {
	graph := &protoBuilder{}
	graph.stringField(2, "g")

	model := &protoBuilder{}
	model.varintField(1, 8)
	model.varintField(99, 42)        // unknown varint
	model.stringField(98, "ignored") // unknown bytes
	model.float32Field(97, 1.5)      // unknown 32-bit
	model.writeTag(96, wire64Bit)    // unknown 64-bit
	model.data = append(model.data, make([]byte, 8)...)
	model.msgField(7, graph)

	parsed, err := Parse(model.data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.IRVersion != 8 {
		t.Errorf("IRVersion = %d, want 8", parsed.IRVersion)
	}
	if parsed.Graph == nil || parsed.Graph.Name != "g" {
		t.Error("graph lost while skipping unknown fields")
	}
}

func TestParseTruncated(t *testing.T) {
	data := buildAddModel()
	if _, err := Parse(data[:len(data)/2]); err == nil {
		t.Error("expected error for truncated data")
	}

	// Length prefix pointing past the end of the buffer.
	b := &protoBuilder{}
	b.writeTag(7, wireBytes)
	b.writeVarint(1000)
	if _, err := Parse(b.data); err == nil {
		t.Error("expected error for overlong length prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	model, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed on empty input: %v", err)
	}
	if model.Graph != nil {
		t.Error("expected nil graph for empty input")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.onnx")
	if err := os.WriteFile(path, buildAddModel(), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	model, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(model.Graph.Nodes) != 1 {
		t.Errorf("got %d nodes, want 1", len(model.Graph.Nodes))
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.onnx")); err == nil {
		t.Error("expected error for missing file")
	}
}
