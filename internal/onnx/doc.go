// Package onnx loads ONNX models and runs them with a Trellis backend.
//
// The decoder is a minimal hand-written protobuf reader covering the subset
// of onnx.proto3 the runtime consumes. Loading a model parses the graph,
// materializes the initializers as weights, sorts the nodes into execution
// order and binds each node to an operator handler.
package onnx
