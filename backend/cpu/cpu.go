// Package cpu exposes the pure Go CPU backend.
package cpu

import (
	internalcpu "github.com/trellis-ml/trellis/internal/backend/cpu"
	"github.com/trellis-ml/trellis/tensor"
)

// Backend is the CPU implementation of tensor.Backend.
type Backend = internalcpu.Backend

var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
func New() *Backend {
	return internalcpu.New()
}
