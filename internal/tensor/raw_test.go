package tensor

import (
	"testing"

	"github.com/x448/float16"
)

func TestNewRawZeroFilled(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range raw.AsFloat32() {
		if v != 0 {
			t.Fatalf("element %d = %v, want 0", i, v)
		}
	}
	if raw.ByteSize() != 24 {
		t.Errorf("ByteSize = %d, want 24", raw.ByteSize())
	}
}

func TestRawTensorAccessorsZeroCopy(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64, CPU)
	data := raw.AsInt64()
	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}
	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return a zero-copy slice")
	}
}

func TestRawTensorAccessorWrongType(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Float32, CPU)
	defer func() {
		if recover() == nil {
			t.Error("AsInt32 on a float32 tensor should panic")
		}
	}()
	raw.AsInt32()
}

func TestRawTensorFloat16(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Float16, CPU)
	data := raw.AsFloat16()
	data[0] = float16.Fromfloat32(1.5)
	if got := raw.AsFloat16()[0].Float32(); got != 1.5 {
		t.Errorf("round-trip = %v, want 1.5", got)
	}
}

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, CPU)
	if err != nil {
		t.Fatal(err)
	}
	if raw.AsFloat32()[3] != 4 {
		t.Errorf("element 3 = %v, want 4", raw.AsFloat32()[3])
	}

	if _, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2}, CPU); err == nil {
		t.Error("expected error for size mismatch")
	}
}

func TestRawTensorClone(t *testing.T) {
	raw, _ := FromSlice([]int32{1, 2, 3}, Shape{3}, CPU)
	clone := raw.Clone()
	clone.AsInt32()[0] = 99
	if raw.AsInt32()[0] != 1 {
		t.Error("Clone should deep-copy the data")
	}
}

func TestRawTensorWithShape(t *testing.T) {
	raw, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU)
	view, err := raw.WithShape(Shape{3, 2})
	if err != nil {
		t.Fatal(err)
	}
	view.AsFloat32()[0] = 9
	if raw.AsFloat32()[0] != 9 {
		t.Error("WithShape should share the underlying data")
	}

	if _, err := raw.WithShape(Shape{4, 2}); err == nil {
		t.Error("expected error for element count mismatch")
	}
}

func TestFull(t *testing.T) {
	raw, err := Full(Shape{2, 2}, Int64, 7, CPU)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range raw.AsInt64() {
		if v != 7 {
			t.Fatalf("element = %d, want 7", v)
		}
	}

	b, err := Full(Shape{2}, Bool, 1, CPU)
	if err != nil {
		t.Fatal(err)
	}
	if !b.AsBool()[0] {
		t.Error("Full with 1 should set bool elements true")
	}
}
