// Package operators maps ONNX graph nodes onto Trellis tensor operations.
//
// The package provides a registry of operator handlers. Each handler reads a
// node's attributes, translates them to the runtime's argument names and
// value types, then delegates to the backend. Attribute translation applies
// a global rename table with per-operator overrides, so handlers see the
// runtime's vocabulary rather than the IR's.
package operators
