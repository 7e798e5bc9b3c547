package cpu

import (
	"math"
	"testing"

	"github.com/trellis-ml/trellis/internal/tensor"
)

func TestUnaryOps(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{-2, 4}, tensor.Shape{2})

	wantF32(t, backend.Abs(x), tensor.Shape{2}, []float32{2, 4})
	wantF32(t, backend.Neg(x), tensor.Shape{2}, []float32{2, -4})
	wantF32(t, backend.Sqrt(fromF32(t, []float32{4, 9}, tensor.Shape{2})), tensor.Shape{2}, []float32{2, 3})
	wantF32(t, backend.Reciprocal(fromF32(t, []float32{2, 4}, tensor.Shape{2})), tensor.Shape{2}, []float32{0.5, 0.25})
}

func TestExpLogRoundTrip(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{0.5, 1, 2}, tensor.Shape{3})

	got := backend.Log(backend.Exp(x))
	wantF32(t, got, tensor.Shape{3}, []float32{0.5, 1, 2})
}

func TestUnaryFloat64(t *testing.T) {
	backend := New()
	x, _ := tensor.FromSlice([]float64{1, math.E}, tensor.Shape{2}, tensor.CPU)

	got := backend.Log(x).AsFloat64()
	if got[0] != 0 {
		t.Errorf("log(1) = %v, want 0", got[0])
	}
	if diff := got[1] - 1; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("log(e) = %v, want 1", got[1])
	}
}

func TestUnaryIntPanics(t *testing.T) {
	backend := New()
	x, _ := tensor.FromSlice([]int32{1, 2}, tensor.Shape{2}, tensor.CPU)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for int32 exp")
		}
	}()
	backend.Exp(x)
}
