package models

import (
	"fmt"
	"math"
	"slices"
)

// Shape is the 2D extent of a detector frame in pixels
type Shape struct {
	Rows int
	Cols int
}

// Size returns the number of pixels in a frame of this shape
func (s Shape) Size() int {
	return s.Rows * s.Cols
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Frame is a dense detector frame rebuilt from its sparse representation.
// The pixel buffer is contiguous in row-major order and owned by the frame.
type Frame struct {
	// Shape is the frame extent
	Shape Shape

	// DType is the element type of the pixel buffer
	DType DType

	// Number is the position of the frame in its series
	Number int

	// pix holds one of []uint8, []uint16, []uint32, []int8, []int16,
	// []int32, []float32 or []float64, matching DType
	pix any
}

// NewFrame allocates a zeroed frame of the given shape and element type
func NewFrame(shape Shape, dtype DType) (*Frame, error) {
	pix, err := dtype.alloc(shape.Size())
	if err != nil {
		return nil, err
	}
	return &Frame{Shape: shape, DType: dtype, pix: pix}, nil
}

// Len returns the number of pixels held by the frame
func (f *Frame) Len() int {
	return f.Shape.Size()
}

// Pix returns the typed pixel buffer; callers type-assert it or use Pixels
func (f *Frame) Pix() any {
	return f.pix
}

// At returns the pixel at flat offset i widened to float64
func (f *Frame) At(i int) float64 {
	switch p := f.pix.(type) {
	case []uint8:
		return float64(p[i])
	case []uint16:
		return float64(p[i])
	case []uint32:
		return float64(p[i])
	case []int8:
		return float64(p[i])
	case []int16:
		return float64(p[i])
	case []int32:
		return float64(p[i])
	case []float32:
		return float64(p[i])
	case []float64:
		return p[i]
	}
	return math.NaN()
}

// AtRC returns the pixel at row r, column c widened to float64
func (f *Frame) AtRC(r, c int) float64 {
	return f.At(r*f.Shape.Cols + c)
}

// Float64s returns a widened copy of the pixel buffer
func (f *Frame) Float64s() []float64 {
	out := make([]float64, f.Len())
	for i := range out {
		out[i] = f.At(i)
	}
	return out
}

// Clone returns a copy of the frame that shares no pixel storage with f
func (f *Frame) Clone() *Frame {
	c := *f
	switch p := f.pix.(type) {
	case []uint8:
		c.pix = slices.Clone(p)
	case []uint16:
		c.pix = slices.Clone(p)
	case []uint32:
		c.pix = slices.Clone(p)
	case []int8:
		c.pix = slices.Clone(p)
	case []int16:
		c.pix = slices.Clone(p)
	case []int32:
		c.pix = slices.Clone(p)
	case []float32:
		c.pix = slices.Clone(p)
	case []float64:
		c.pix = slices.Clone(p)
	}
	return &c
}

// Pixels returns the frame buffer as []T when T matches the frame's element type
func Pixels[T Element](f *Frame) ([]T, bool) {
	p, ok := f.pix.([]T)
	return p, ok
}

// WrapPixels builds a frame around an existing buffer without copying it
func WrapPixels[T Element](shape Shape, pix []T) (*Frame, error) {
	if len(pix) != shape.Size() {
		return nil, fmt.Errorf("buffer holds %d pixels, shape %s needs %d", len(pix), shape, shape.Size())
	}
	return &Frame{Shape: shape, DType: DTypeOf[T](), pix: pix}, nil
}
