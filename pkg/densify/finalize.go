package densify

import (
	"math"

	"sparseframe/internal/models"
)

// Finalization turns an interpolated float64 value into a frame element.
// Integer element types are rounded half to even, matching the usual
// behaviour of array libraries, then saturated to the type's range; NaN
// becomes zero. Float element types are converted directly.

// Round applies the rounding used for integer frames
func Round(v float64) float64 {
	return math.RoundToEven(v)
}

type limits struct {
	integer bool
	lo, hi  float64
}

func limitsOf(d models.DType) limits {
	lo, hi := d.Range()
	return limits{integer: d.IsInteger(), lo: lo, hi: hi}
}

// cast converts an already rounded value to T
func cast[T models.Element](v float64, l limits) T {
	if !l.integer {
		return T(v)
	}
	switch {
	case math.IsNaN(v):
		return 0
	case v <= l.lo:
		return T(l.lo)
	case v >= l.hi:
		return T(l.hi)
	}
	return T(v)
}

func finalize[T models.Element](v float64, l limits) T {
	if l.integer {
		v = Round(v)
	}
	return cast[T](v, l)
}

// Finalize converts v the way a materialized frame of type T stores it
func Finalize[T models.Element](v float64) T {
	return finalize[T](v, limitsOf(models.DTypeOf[T]()))
}

func masked(r float64) bool {
	return math.IsNaN(r) || math.IsInf(r, 0)
}
