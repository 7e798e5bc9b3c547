// Package cpu implements the pure-Go reference backend for the runtime's
// operator set.
package cpu

import (
	"fmt"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// Backend implements tensor.Backend on the CPU.
type Backend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *Backend {
	return &Backend{device: tensor.CPU}
}

// Name returns the backend name.
func (c *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (c *Backend) Device() tensor.Device {
	return c.device
}

// alloc creates a result tensor or panics; kernels treat allocation failure
// (invalid shape) as a programming error at this layer.
func (c *Backend) alloc(shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	t, err := tensor.NewRaw(shape, dtype, c.device)
	if err != nil {
		panic(fmt.Sprintf("cpu: %v", err))
	}
	return t
}
