package cpu

import (
	"fmt"
	"math/rand/v2"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// RandomNormal draws from a normal distribution with the given mean and
// standard deviation. A non-nil seed makes the result deterministic.
func (c *Backend) RandomNormal(shape tensor.Shape, dtype tensor.DataType, mean, stddev float32, seed *int64) *tensor.RawTensor {
	return c.random("randomNormal", shape, dtype, seed, func(rng *rand.Rand) float64 {
		return rng.NormFloat64()*float64(stddev) + float64(mean)
	})
}

// RandomUniform draws from a uniform distribution over [minval, maxval).
// A non-nil seed makes the result deterministic.
func (c *Backend) RandomUniform(shape tensor.Shape, dtype tensor.DataType, minval, maxval float32, seed *int64) *tensor.RawTensor {
	lo, hi := float64(minval), float64(maxval)
	return c.random("randomUniform", shape, dtype, seed, func(rng *rand.Rand) float64 {
		return lo + rng.Float64()*(hi-lo)
	})
}

func (c *Backend) random(op string, shape tensor.Shape, dtype tensor.DataType, seed *int64, draw func(*rand.Rand) float64) *tensor.RawTensor {
	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewPCG(uint64(*seed), 0))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	result := c.alloc(shape, dtype)
	switch dtype {
	case tensor.Float32:
		dst := result.AsFloat32()
		for i := range dst {
			dst[i] = float32(draw(rng))
		}
	case tensor.Float64:
		dst := result.AsFloat64()
		for i := range dst {
			dst[i] = draw(rng)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, dtype))
	}
	return result
}
