package cpu

import (
	"testing"

	"github.com/trellis-ml/trellis/internal/tensor"
)

func TestConcat(t *testing.T) {
	backend := New()
	a := fromF32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromF32(t, []float32{5, 6}, tensor.Shape{1, 2})

	wantF32(t, backend.Concat([]*tensor.RawTensor{a, b}, 0), tensor.Shape{3, 2},
		[]float32{1, 2, 3, 4, 5, 6})
}

func TestConcatLastAxis(t *testing.T) {
	backend := New()
	a := fromF32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromF32(t, []float32{9, 10}, tensor.Shape{2, 1})

	wantF32(t, backend.Concat([]*tensor.RawTensor{a, b}, -1), tensor.Shape{2, 3},
		[]float32{1, 2, 9, 3, 4, 10})
}

func TestSplitEqualParts(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{6})

	parts := backend.Split(x, 0, nil, 3)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	wantF32(t, parts[0], tensor.Shape{2}, []float32{1, 2})
	wantF32(t, parts[1], tensor.Shape{2}, []float32{3, 4})
	wantF32(t, parts[2], tensor.Shape{2}, []float32{5, 6})
}

func TestSplitExplicitSizes(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	parts := backend.Split(x, 1, []int{1, 2}, 2)
	wantF32(t, parts[0], tensor.Shape{2, 1}, []float32{1, 4})
	wantF32(t, parts[1], tensor.Shape{2, 2}, []float32{2, 3, 5, 6})
}

func TestSlice(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{10})

	wantF32(t, backend.Slice(x, []int64{2}, []int64{5}, nil, nil), tensor.Shape{3}, []float32{2, 3, 4})
	wantF32(t, backend.Slice(x, []int64{0}, []int64{10}, nil, []int64{3}), tensor.Shape{4}, []float32{0, 3, 6, 9})
	wantF32(t, backend.Slice(x, []int64{-3}, []int64{10}, nil, nil), tensor.Shape{3}, []float32{7, 8, 9})
}

func TestSliceNegativeStep(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{0, 1, 2, 3, 4}, tensor.Shape{5})

	wantF32(t, backend.Slice(x, []int64{4}, []int64{-6}, nil, []int64{-1}), tensor.Shape{5},
		[]float32{4, 3, 2, 1, 0})
	wantF32(t, backend.Slice(x, []int64{4}, []int64{1}, nil, []int64{-2}), tensor.Shape{2},
		[]float32{4, 2})
}

func TestSliceWithAxes(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	wantF32(t, backend.Slice(x, []int64{1}, []int64{3}, []int64{1}, nil), tensor.Shape{2, 2},
		[]float32{2, 3, 5, 6})
}

func TestGather(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})
	idx, _ := tensor.FromSlice([]int64{3, 0, -1}, tensor.Shape{3}, tensor.CPU)

	wantF32(t, backend.Gather(x, idx, 0), tensor.Shape{3}, []float32{40, 10, 40})
}

func TestGatherAxis1(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	idx, _ := tensor.FromSlice([]int32{2, 0}, tensor.Shape{2}, tensor.CPU)

	wantF32(t, backend.Gather(x, idx, 1), tensor.Shape{2, 2}, []float32{3, 1, 6, 4})
}

func TestPadConstant(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	// One column of padding before and after the last axis.
	got := backend.Pad(x, []int{0, 1, 0, 1}, tensor.PadConstant, 9)
	wantF32(t, got, tensor.Shape{2, 4}, []float32{9, 1, 2, 9, 9, 3, 4, 9})
}

func TestPadReflect(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3}, tensor.Shape{3})

	wantF32(t, backend.Pad(x, []int{2, 2}, tensor.PadReflect, 0), tensor.Shape{7},
		[]float32{3, 2, 1, 2, 3, 2, 1})
}

func TestPadEdge(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1, 2, 3}, tensor.Shape{3})

	wantF32(t, backend.Pad(x, []int{2, 1}, tensor.PadEdge, 0), tensor.Shape{6},
		[]float32{1, 1, 1, 2, 3, 3})
}

func TestWhere(t *testing.T) {
	backend := New()
	cond, _ := tensor.FromSlice([]bool{true, false, true}, tensor.Shape{3}, tensor.CPU)
	x := fromF32(t, []float32{1, 2, 3}, tensor.Shape{3})
	y := fromF32(t, []float32{10, 20, 30}, tensor.Shape{3})

	wantF32(t, backend.Where(cond, x, y), tensor.Shape{3}, []float32{1, 20, 3})
}

func TestCast(t *testing.T) {
	backend := New()
	x := fromF32(t, []float32{1.7, -2.2, 3}, tensor.Shape{3})

	got := backend.Cast(x, tensor.Int64).AsInt64()
	want := []int64{1, -2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %d, want %d", i, got[i], want[i])
		}
	}

	back := backend.Cast(x, tensor.Float32)
	if &back.AsFloat32()[0] == &x.AsFloat32()[0] {
		t.Error("same-type cast should copy, not alias")
	}
}
