package operators

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Attrs holds a node's attributes converted to native Go values, keyed by
// the runtime's argument names after translation.
type Attrs map[string]any

// attrRenames maps IR attribute names to the runtime's argument names. It
// applies to every operator unless overridden per op.
var attrRenames = map[string]string{
	"scale":    "stddev",
	"high":     "maxval",
	"low":      "minval",
	"axes":     "axis",
	"keepdims": "keepDims",
	"axis":     "dim",
}

// perOpAttrRenames has the final say over attrRenames for a single operator.
var perOpAttrRenames = map[string]map[string]string{
	// Pad carried its widths under "paddings" before the IR settled on
	// "pads"; the runtime keeps the old argument name.
	"Pad": {"pads": "paddings"},
}

// attrTranslators coerce attribute values before renaming, keyed by the IR
// attribute name.
var attrTranslators = map[string]func(v any) (any, error){
	"dtype": func(v any) (any, error) {
		code, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("dtype attribute must be an int, got %T", v)
		}
		dt, err := DataTypeFromProto(int32(code))
		if err != nil {
			return nil, err
		}
		return dt, nil
	},
	"keepdims": func(v any) (any, error) {
		code, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("keepdims attribute must be an int, got %T", v)
		}
		return code != 0, nil
	},
}

// convertAttr converts an attribute to a native Go value for its kind.
// Tensor-valued attributes come back as *TensorValue.
func convertAttr(a *Attribute) (any, error) {
	switch a.Kind {
	case AttributeFloat:
		return a.F, nil
	case AttributeInt:
		return a.I, nil
	case AttributeString:
		return string(a.S), nil
	case AttributeTensor:
		return a.Tensor, nil
	case AttributeFloats:
		return a.Floats, nil
	case AttributeInts:
		return a.Ints, nil
	case AttributeStrings:
		out := make([]string, len(a.Strings))
		for i, s := range a.Strings {
			out[i] = string(s)
		}
		return out, nil
	}

	// Writers predating the kind field leave it unset; fall back on
	// whichever value field is populated.
	switch {
	case len(a.Floats) > 0:
		return a.Floats, nil
	case len(a.Ints) > 0:
		return a.Ints, nil
	case len(a.Strings) > 0:
		out := make([]string, len(a.Strings))
		for i, s := range a.Strings {
			out[i] = string(s)
		}
		return out, nil
	case a.Tensor != nil:
		return a.Tensor, nil
	case len(a.S) > 0:
		return string(a.S), nil
	}
	return nil, fmt.Errorf("unsupported attribute %q", a.Name)
}

// TranslateAttrs converts a node's attributes to native values, applies the
// value translators, then renames them to the runtime's argument names. The
// per-op table overrides the global one.
func TranslateAttrs(node *Node) (Attrs, error) {
	overrides := perOpAttrRenames[node.OpType]

	attrs := make(Attrs, len(node.Attributes))
	for i := range node.Attributes {
		a := &node.Attributes[i]

		value, err := convertAttr(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.OpType, err)
		}
		if translate, ok := attrTranslators[a.Name]; ok {
			value, err = translate(value)
			if err != nil {
				return nil, fmt.Errorf("%s: attribute %q: %w", node.OpType, a.Name, err)
			}
		}

		name := a.Name
		if renamed, ok := overrides[name]; ok {
			name = renamed
		} else if renamed, ok := attrRenames[name]; ok {
			name = renamed
		}
		attrs[name] = value
	}
	return attrs, nil
}

// Int returns an int64 attribute or the default.
func (a Attrs) Int(name string, def int64) int64 {
	if v, ok := a[name].(int64); ok {
		return v
	}
	return def
}

// Ints returns an int64-list attribute, or nil when absent.
func (a Attrs) Ints(name string) []int64 {
	if v, ok := a[name].([]int64); ok {
		return v
	}
	return nil
}

// Float returns a float32 attribute or the default.
func (a Attrs) Float(name string, def float32) float32 {
	if v, ok := a[name].(float32); ok {
		return v
	}
	return def
}

// Bool returns a bool attribute or the default.
func (a Attrs) Bool(name string, def bool) bool {
	if v, ok := a[name].(bool); ok {
		return v
	}
	return def
}

// DataType returns a translated dtype attribute or the default.
func (a Attrs) DataType(name string, def tensor.DataType) tensor.DataType {
	if v, ok := a[name].(tensor.DataType); ok {
		return v
	}
	return def
}

// Seed returns the seed attribute as a source for the backend's random ops:
// nil when absent, deterministic otherwise.
func (a Attrs) Seed() *int64 {
	v, ok := a["seed"].(float32)
	if !ok {
		return nil
	}
	seed := int64(v)
	return &seed
}

// DataTypeFromProto maps an IR tensor element type to the runtime's DataType.
func DataTypeFromProto(code int32) (tensor.DataType, error) {
	switch code {
	case TensorProtoFloat:
		return tensor.Float32, nil
	case TensorProtoDouble:
		return tensor.Float64, nil
	case TensorProtoFloat16:
		return tensor.Float16, nil
	case TensorProtoInt32:
		return tensor.Int32, nil
	case TensorProtoInt64:
		return tensor.Int64, nil
	case TensorProtoUint8:
		return tensor.Uint8, nil
	case TensorProtoBool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("unsupported tensor element type %d", code)
	}
}
