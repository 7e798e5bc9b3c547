package onnx

import "github.com/trellis-ml/trellis/internal/tensor"

// SupportsDevice reports whether models can run on the given device. Only
// the CPU backend ships today.
func SupportsDevice(device tensor.Device) bool {
	return device == tensor.CPU
}
