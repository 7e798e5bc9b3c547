package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ParseFile parses an ONNX model from a file.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path) //nolint:gosec // model path is user-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := decodeModel(&decoder{data: data}, model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// decoder is a minimal protobuf wire-format reader. It understands just
// enough of the encoding to walk the ONNX message tree; unknown fields are
// skipped by wire type.
type decoder struct {
	data []byte
	pos  int
}

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

// fields iterates the decoder's fields, calling fn for each. fn returns
// false when it does not consume the field, in which case it is skipped.
func (d *decoder) fields(fn func(num, wire int) (bool, error)) error {
	for d.pos < len(d.data) {
		num, wire, err := d.tag()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		handled, err := fn(num, wire)
		if err != nil {
			return err
		}
		if !handled {
			if err := d.skip(wire); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeModel(d *decoder, m *ModelProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			return true, setVarint(d, &m.IRVersion)
		case 2:
			return true, setString(d, &m.ProducerName)
		case 3:
			return true, setString(d, &m.ProducerVersion)
		case 4:
			return true, setString(d, &m.Domain)
		case 5:
			return true, setVarint(d, &m.ModelVersion)
		case 6:
			return true, setString(d, &m.DocString)
		case 7:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			m.Graph = &GraphProto{}
			return true, decodeGraph(sub, m.Graph)
		case 8:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			var opset OperatorSetID
			if err := decodeOperatorSetID(sub, &opset); err != nil {
				return true, err
			}
			m.OpsetImport = append(m.OpsetImport, opset)
			return true, nil
		case 14:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			var entry StringStringEntry
			if err := decodeStringStringEntry(sub, &entry); err != nil {
				return true, err
			}
			m.MetadataProps = append(m.MetadataProps, entry)
			return true, nil
		}
		return false, nil
	})
}

func decodeGraph(d *decoder, g *GraphProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			var node NodeProto
			if err := decodeNode(sub, &node); err != nil {
				return true, err
			}
			g.Nodes = append(g.Nodes, node)
			return true, nil
		case 2:
			return true, setString(d, &g.Name)
		case 5:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			var t TensorProto
			if err := decodeTensor(sub, &t); err != nil {
				return true, err
			}
			g.Initializers = append(g.Initializers, t)
			return true, nil
		case 10:
			return true, setString(d, &g.DocString)
		case 11, 12:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			var vi ValueInfoProto
			if err := decodeValueInfo(sub, &vi); err != nil {
				return true, err
			}
			if num == 11 {
				g.Inputs = append(g.Inputs, vi)
			} else {
				g.Outputs = append(g.Outputs, vi)
			}
			return true, nil
		}
		return false, nil
	})
}

func decodeNode(d *decoder, n *NodeProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			s, err := d.str()
			n.Inputs = append(n.Inputs, s)
			return true, err
		case 2:
			s, err := d.str()
			n.Outputs = append(n.Outputs, s)
			return true, err
		case 3:
			return true, setString(d, &n.Name)
		case 4:
			return true, setString(d, &n.OpType)
		case 5:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			var attr AttributeProto
			if err := decodeAttribute(sub, &attr); err != nil {
				return true, err
			}
			n.Attributes = append(n.Attributes, attr)
			return true, nil
		case 6:
			return true, setString(d, &n.DocString)
		case 7:
			return true, setString(d, &n.Domain)
		}
		return false, nil
	})
}

func decodeTensor(d *decoder, t *TensorProto) error {
	return d.fields(func(num, wire int) (bool, error) {
		switch num {
		case 1:
			vals, err := d.varints(wire)
			t.Dims = append(t.Dims, vals...)
			return true, err
		case 2:
			v, err := d.varint()
			t.DataType = int32(v)
			return true, err
		case 4:
			vals, err := d.packedFloats()
			t.FloatData = append(t.FloatData, vals...)
			return true, err
		case 5:
			vals, err := d.varints(wire)
			for _, v := range vals {
				t.Int32Data = append(t.Int32Data, int32(v))
			}
			return true, err
		case 7:
			vals, err := d.varints(wire)
			t.Int64Data = append(t.Int64Data, vals...)
			return true, err
		case 8:
			return true, setString(d, &t.Name)
		case 9:
			raw, err := d.bytes()
			t.RawData = raw
			return true, err
		case 12:
			return true, setString(d, &t.DocString)
		}
		return false, nil
	})
}

func decodeValueInfo(d *decoder, vi *ValueInfoProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			return true, setString(d, &vi.Name)
		case 2:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			vi.Type = &TypeProto{}
			return true, decodeType(sub, vi.Type)
		case 3:
			return true, setString(d, &vi.DocString)
		}
		return false, nil
	})
}

func decodeType(d *decoder, t *TypeProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		if num != 1 {
			return false, nil
		}
		sub, err := d.sub()
		if err != nil {
			return true, err
		}
		t.TensorType = &TensorTypeProto{}
		return true, decodeTensorType(sub, t.TensorType)
	})
}

func decodeTensorType(d *decoder, t *TensorTypeProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			v, err := d.varint()
			t.ElemType = int32(v)
			return true, err
		case 2:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			t.Shape = &TensorShapeProto{}
			return true, decodeTensorShape(sub, t.Shape)
		}
		return false, nil
	})
}

func decodeTensorShape(d *decoder, s *TensorShapeProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		if num != 1 {
			return false, nil
		}
		sub, err := d.sub()
		if err != nil {
			return true, err
		}
		var dim DimensionProto
		if err := decodeDimension(sub, &dim); err != nil {
			return true, err
		}
		s.Dims = append(s.Dims, dim)
		return true, nil
	})
}

func decodeDimension(d *decoder, dim *DimensionProto) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			return true, setVarint(d, &dim.DimValue)
		case 2:
			return true, setString(d, &dim.DimParam)
		}
		return false, nil
	})
}

func decodeAttribute(d *decoder, a *AttributeProto) error {
	return d.fields(func(num, wire int) (bool, error) {
		switch num {
		case 1:
			return true, setString(d, &a.Name)
		case 2:
			v, err := d.float32()
			a.F = v
			return true, err
		case 3:
			return true, setVarint(d, &a.I)
		case 4:
			raw, err := d.bytes()
			a.S = raw
			return true, err
		case 5:
			sub, err := d.sub()
			if err != nil {
				return true, err
			}
			a.T = &TensorProto{}
			return true, decodeTensor(sub, a.T)
		case 7:
			vals, err := d.packedFloats()
			a.Floats = append(a.Floats, vals...)
			return true, err
		case 8:
			vals, err := d.varints(wire)
			a.Ints = append(a.Ints, vals...)
			return true, err
		case 9:
			raw, err := d.bytes()
			a.Strings = append(a.Strings, raw)
			return true, err
		case 13:
			return true, setString(d, &a.DocString)
		case 20:
			v, err := d.varint()
			a.Kind = int32(v)
			return true, err
		}
		return false, nil
	})
}

func decodeOperatorSetID(d *decoder, o *OperatorSetID) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			return true, setString(d, &o.Domain)
		case 2:
			return true, setVarint(d, &o.Version)
		}
		return false, nil
	})
}

func decodeStringStringEntry(d *decoder, e *StringStringEntry) error {
	return d.fields(func(num, _ int) (bool, error) {
		switch num {
		case 1:
			return true, setString(d, &e.Key)
		case 2:
			return true, setString(d, &e.Value)
		}
		return false, nil
	})
}

// tag reads the next field tag.
func (d *decoder) tag() (num, wire int, err error) {
	if d.pos >= len(d.data) {
		return 0, 0, io.EOF
	}
	v, err := d.varint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), int(v & 0x7), nil
}

// varint reads a varint-encoded integer.
func (d *decoder) varint() (int64, error) {
	var result uint64
	var shift uint
	for {
		if d.pos >= len(d.data) {
			return 0, io.EOF
		}
		b := d.data[d.pos]
		d.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return int64(result), nil
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}
}

// varints reads a repeated varint field, packed or not.
func (d *decoder) varints(wire int) ([]int64, error) {
	if wire != wireBytes {
		v, err := d.varint()
		if err != nil {
			return nil, err
		}
		return []int64{v}, nil
	}
	sub, err := d.sub()
	if err != nil {
		return nil, err
	}
	var vals []int64
	for sub.pos < len(sub.data) {
		v, err := sub.varint()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// bytes reads a length-delimited field.
func (d *decoder) bytes() ([]byte, error) {
	length, err := d.varint()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.New("negative length")
	}
	end := d.pos + int(length)
	if end > len(d.data) || end < d.pos {
		return nil, io.ErrUnexpectedEOF
	}
	result := d.data[d.pos:end]
	d.pos = end
	return result, nil
}

// str reads a length-delimited field as a string.
func (d *decoder) str() (string, error) {
	raw, err := d.bytes()
	return string(raw), err
}

// sub reads a length-delimited field as an embedded message decoder.
func (d *decoder) sub() (*decoder, error) {
	raw, err := d.bytes()
	if err != nil {
		return nil, err
	}
	return &decoder{data: raw}, nil
}

// float32 reads a 32-bit fixed field.
func (d *decoder) float32() (float32, error) {
	if d.pos+4 > len(d.data) {
		return 0, io.ErrUnexpectedEOF
	}
	bits := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return math.Float32frombits(bits), nil
}

// packedFloats reads a packed repeated float field.
func (d *decoder) packedFloats() ([]float32, error) {
	raw, err := d.bytes()
	if err != nil {
		return nil, err
	}
	vals := make([]float32, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		bits := binary.LittleEndian.Uint32(raw[i:])
		vals = append(vals, math.Float32frombits(bits))
	}
	return vals, nil
}

// skip advances past an unhandled field.
func (d *decoder) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := d.varint()
		return err
	case wire64Bit:
		if d.pos+8 > len(d.data) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 8
		return nil
	case wireBytes:
		_, err := d.bytes()
		return err
	case wire32Bit:
		if d.pos+4 > len(d.data) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type: %d", wire)
	}
}

func setString(d *decoder, dst *string) error {
	s, err := d.str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

func setVarint(d *decoder, dst *int64) error {
	v, err := d.varint()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
