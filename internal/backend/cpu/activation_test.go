package cpu

import (
	"math"
	"testing"

	"github.com/trellis-ml/trellis/internal/tensor"
)

func TestRelu(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{-2, -0.5, 0, 0.5, 2}, tensor.Shape{5})

	wantF32(t, backend.Relu(x), tensor.Shape{5}, []float32{0, 0, 0, 0.5, 2})
}

func TestLeakyRelu(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{-10, 10}, tensor.Shape{2})

	wantF32(t, backend.LeakyRelu(x, 0.1), tensor.Shape{2}, []float32{-1, 10})
}

func TestElu(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{-1, 0, 1}, tensor.Shape{3})

	alpha := float32(1.0)
	want := []float32{alpha * (float32(math.Exp(-1)) - 1), 0, 1}
	wantF32(t, backend.Elu(x, alpha), tensor.Shape{3}, want)
}

func TestSigmoid(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{0, 100, -100}, tensor.Shape{3})

	wantF32(t, backend.Sigmoid(x), tensor.Shape{3}, []float32{0.5, 1, 0})
}

func TestTanh(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{0, 100, -100}, tensor.Shape{3})

	wantF32(t, backend.Tanh(x), tensor.Shape{3}, []float32{0, 1, -1})
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3, 1000, 1001, 1002}, tensor.Shape{2, 3})

	result := backend.Softmax(x, -1).AsFloat32()
	for row := 0; row < 2; row++ {
		var sum float32
		for col := 0; col < 3; col++ {
			sum += result[row*3+col]
		}
		if diff := sum - 1; diff > 1e-5 || diff < -1e-5 {
			t.Errorf("row %d sums to %v, want 1", row, sum)
		}
	}
	// Both rows have the same relative offsets, so the distributions match.
	for col := 0; col < 3; col++ {
		if diff := result[col] - result[3+col]; diff > 1e-5 || diff < -1e-5 {
			t.Errorf("column %d differs between rows: %v vs %v", col, result[col], result[3+col])
		}
	}
}

func TestSoftmaxAxis0(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{0, 0, 0, 0}, tensor.Shape{2, 2})

	wantF32(t, backend.Softmax(x, 0), tensor.Shape{2, 2}, []float32{0.5, 0.5, 0.5, 0.5})
}

func TestLogSoftmax(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 4})

	logQuarter := float32(math.Log(0.25))
	wantF32(t, backend.LogSoftmax(x, -1), tensor.Shape{1, 4},
		[]float32{logQuarter, logQuarter, logQuarter, logQuarter})
}
