package models

import (
	"math"
	"testing"
)

// TestDTypeProperties checks names, sizes and ranges of every frame type
func TestDTypeProperties(t *testing.T) {
	tests := []struct {
		d       DType
		name    string
		size    int
		integer bool
		lo, hi  float64
	}{
		{Uint8, "uint8", 1, true, 0, 255},
		{Uint16, "uint16", 2, true, 0, 65535},
		{Uint32, "uint32", 4, true, 0, 4294967295},
		{Int8, "int8", 1, true, -128, 127},
		{Int16, "int16", 2, true, -32768, 32767},
		{Int32, "int32", 4, true, -2147483648, 2147483647},
		{Float32, "float32", 4, false, math.Inf(-1), math.Inf(1)},
		{Float64, "float64", 8, false, math.Inf(-1), math.Inf(1)},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		parsed, err := ParseDType(tt.name)
		if err != nil || parsed != tt.d {
			t.Errorf("ParseDType(%q) = %v, %v", tt.name, parsed, err)
		}
		if got := tt.d.Size(); got != tt.size {
			t.Errorf("%v.Size() = %d, want %d", tt.d, got, tt.size)
		}
		if got := tt.d.IsInteger(); got != tt.integer {
			t.Errorf("%v.IsInteger() = %v", tt.d, got)
		}
		if !tt.d.FrameCapable() {
			t.Errorf("%v should hold frames", tt.d)
		}
		if lo, hi := tt.d.Range(); lo != tt.lo || hi != tt.hi {
			t.Errorf("%v.Range() = [%v, %v], want [%v, %v]", tt.d, lo, hi, tt.lo, tt.hi)
		}
	}

	for _, d := range []DType{Invalid, Int64, Uint64} {
		if d.FrameCapable() {
			t.Errorf("%v should not hold frames", d)
		}
	}
	if _, err := ParseDType("complex64"); err == nil {
		t.Error("Expected error for unknown dtype name")
	}
}

// TestNewFrame verifies buffer allocation per element type
func TestNewFrame(t *testing.T) {
	shape := Shape{Rows: 3, Cols: 4}
	f, err := NewFrame(shape, Int16)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	pix, ok := Pixels[int16](f)
	if !ok || len(pix) != 12 {
		t.Fatalf("Expected 12 int16 pixels, got %T of %d", f.Pix(), len(pix))
	}
	if _, ok := Pixels[uint16](f); ok {
		t.Error("Pixels with the wrong element type should fail")
	}

	pix[1*4+2] = -7
	if got := f.AtRC(1, 2); got != -7 {
		t.Errorf("AtRC(1, 2) = %v, want -7", got)
	}
	if got := f.Float64s()[6]; got != -7 {
		t.Errorf("Float64s()[6] = %v, want -7", got)
	}

	if _, err := NewFrame(shape, Uint64); err == nil {
		t.Error("Expected error allocating a uint64 frame")
	}
}

// TestWrapPixels verifies wrapping checks the buffer length and keeps the buffer
func TestWrapPixels(t *testing.T) {
	buf := []float32{1, 2, 3, 4, 5, 6}
	f, err := WrapPixels(Shape{Rows: 2, Cols: 3}, buf)
	if err != nil {
		t.Fatalf("WrapPixels: %v", err)
	}
	if f.DType != Float32 || f.Len() != 6 || f.Shape.String() != "2x3" {
		t.Errorf("Unexpected frame %v %d %s", f.DType, f.Len(), f.Shape)
	}
	buf[5] = 60
	if got := f.At(5); got != 60 {
		t.Errorf("Expected wrapped buffer to be shared, got %v", got)
	}

	if _, err := WrapPixels(Shape{Rows: 2, Cols: 2}, buf); err == nil {
		t.Error("Expected error for mismatched buffer length")
	}
}

func TestClone(t *testing.T) {
	buf := []int16{1, -2, 3, -4}
	f, err := WrapPixels(Shape{Rows: 2, Cols: 2}, buf)
	if err != nil {
		t.Fatalf("WrapPixels: %v", err)
	}
	f.Number = 7

	c := f.Clone()
	if c.DType != Int16 || c.Shape != f.Shape || c.Number != 7 {
		t.Errorf("Clone changed metadata: %+v", c)
	}
	buf[0] = 100
	if got := c.At(0); got != 1 {
		t.Errorf("Expected clone to keep its own pixels, got %v", got)
	}
	pix, _ := Pixels[int16](c)
	pix[3] = 40
	if got := f.At(3); got != -4 {
		t.Errorf("Expected writes to the clone to stay local, got %v", got)
	}
}

func TestDTypeOf(t *testing.T) {
	if DTypeOf[uint8]() != Uint8 || DTypeOf[int32]() != Int32 || DTypeOf[float64]() != Float64 {
		t.Error("DTypeOf returned the wrong type")
	}
}
