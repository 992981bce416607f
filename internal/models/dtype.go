package models

import (
	"fmt"
	"math"
)

// DType enumerates the pixel element types a dense frame can carry
type DType int

const (
	Invalid DType = iota
	Uint8
	Uint16
	Uint32
	Int8
	Int16
	Int32
	Float32
	Float64

	// Int64 and Uint64 describe stored index arrays only; frames never use them
	Int64
	Uint64
)

// Element is the set of Go types backing a frame buffer
type Element interface {
	uint8 | uint16 | uint32 | int8 | int16 | int32 | float32 | float64
}

var dtypeNames = map[DType]string{
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
	Int64:   "int64",
	Uint64:  "uint64",
}

func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DType(%d)", int(d))
}

// ParseDType maps a type name such as "uint16" to its DType
func ParseDType(name string) (DType, error) {
	for d, n := range dtypeNames {
		if n == name {
			return d, nil
		}
	}
	return Invalid, fmt.Errorf("unknown dtype %q", name)
}

// IsInteger reports whether values of this type are rounded on finalization
func (d DType) IsInteger() bool {
	switch d {
	case Uint8, Uint16, Uint32, Int8, Int16, Int32, Int64, Uint64:
		return true
	}
	return false
}

// FrameCapable reports whether a dense frame can be stored with this type
func (d DType) FrameCapable() bool {
	switch d {
	case Uint8, Uint16, Uint32, Int8, Int16, Int32, Float32, Float64:
		return true
	}
	return false
}

// Size returns the element size in bytes
func (d DType) Size() int {
	switch d {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	}
	return 0
}

// Range returns the representable range of an integer type.
// Float types report an unbounded range.
func (d DType) Range() (lo, hi float64) {
	switch d {
	case Uint8:
		return 0, math.MaxUint8
	case Uint16:
		return 0, math.MaxUint16
	case Uint32:
		return 0, math.MaxUint32
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Int64:
		return math.MinInt64, math.MaxInt64
	case Uint64:
		return 0, math.MaxUint64
	}
	return math.Inf(-1), math.Inf(1)
}

func (d DType) alloc(n int) (any, error) {
	switch d {
	case Uint8:
		return make([]uint8, n), nil
	case Uint16:
		return make([]uint16, n), nil
	case Uint32:
		return make([]uint32, n), nil
	case Int8:
		return make([]int8, n), nil
	case Int16:
		return make([]int16, n), nil
	case Int32:
		return make([]int32, n), nil
	case Float32:
		return make([]float32, n), nil
	case Float64:
		return make([]float64, n), nil
	}
	return nil, fmt.Errorf("dtype %v cannot hold a frame", d)
}

// DTypeOf returns the DType matching the element type T
func DTypeOf[T Element]() DType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case float32:
		return Float32
	case float64:
		return Float64
	}
	return Invalid
}
