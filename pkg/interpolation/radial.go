// Package interpolation evaluates radial background profiles: a background
// intensity sampled along a radius axis, interpolated piecewise linearly at
// arbitrary per-pixel radial distances and clamped outside the axis.
package interpolation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

var (
	// ErrEmptyProfile is returned for a profile without samples
	ErrEmptyProfile = errors.New("background profile has no samples")

	// ErrLengthMismatch is returned when radius and values differ in length
	ErrLengthMismatch = errors.New("radius axis and background row differ in length")
)

// Predictor returns the background value at a radial distance
type Predictor interface {
	Predict(r float64) float64
}

// Profile is a background row aligned with its radius axis. Each distinct
// radius is one knot. A run of equal radii is a step: the curve approaches
// the knot towards the first value of the run and continues from the last.
type Profile struct {
	xs     []float64
	left   []float64
	right  []float64
	slopes []float64
}

// NewProfile validates a radius axis and its background samples and builds
// the knot set shared by every evaluator.
func NewProfile(radius, values []float64) (*Profile, error) {
	if len(radius) != len(values) {
		return nil, fmt.Errorf("%w: %d radii, %d values", ErrLengthMismatch, len(radius), len(values))
	}
	if len(radius) == 0 {
		return nil, ErrEmptyProfile
	}

	p := &Profile{
		xs:    make([]float64, 0, len(radius)),
		left:  make([]float64, 0, len(values)),
		right: make([]float64, 0, len(values)),
	}
	for i, r := range radius {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("radius[%d] is not finite", i)
		}
		n := len(p.xs)
		switch {
		case n > 0 && r < p.xs[n-1]:
			return nil, fmt.Errorf("radius axis decreases at %d (%g < %g)", i, r, p.xs[n-1])
		case n > 0 && r == p.xs[n-1]:
			p.right[n-1] = values[i]
		default:
			p.xs = append(p.xs, r)
			p.left = append(p.left, values[i])
			p.right = append(p.right, values[i])
		}
	}

	if n := len(p.xs); n > 1 {
		p.slopes = make([]float64, n-1)
		for i := range p.slopes {
			p.slopes[i] = (p.left[i+1] - p.right[i]) / (p.xs[i+1] - p.xs[i])
		}
	}
	return p, nil
}

// Knots returns the number of distinct radii in the profile
func (p *Profile) Knots() int {
	return len(p.xs)
}

// Bounds returns the first and last radius of the axis
func (p *Profile) Bounds() (lo, hi float64) {
	return p.xs[0], p.xs[len(p.xs)-1]
}

// Bracket returns the background samples on either side of r. Outside the
// axis both values are the clamped boundary value.
func (p *Profile) Bracket(r float64) (lo, hi float64) {
	n := len(p.xs)
	if !(r >= p.xs[0]) {
		return p.left[0], p.left[0]
	}
	if r >= p.xs[n-1] {
		return p.right[n-1], p.right[n-1]
	}
	i := sort.SearchFloat64s(p.xs, r)
	if p.xs[i] == r {
		return p.right[i], p.right[i]
	}
	return p.right[i-1], p.left[i]
}

// Reference returns an evaluator built on gonum's piecewise linear
// interpolator. The axis is split at every step into continuous pieces,
// each fitted separately, and the last knot holds the final value.
func (p *Profile) Reference() Predictor {
	n := len(p.xs)
	breaks := []int{0}
	for k := 1; k < n-1; k++ {
		if p.left[k] != p.right[k] {
			breaks = append(breaks, k)
		}
	}
	if n > 1 {
		breaks = append(breaks, n-1)
	}

	pw := &piecewise{below: p.left[0]}
	for j, b := range breaks {
		pw.starts = append(pw.starts, p.xs[b])
		if j == len(breaks)-1 {
			pw.pieces = append(pw.pieces, interp.Constant(p.right[n-1]))
			break
		}
		e := breaks[j+1]
		ys := append([]float64(nil), p.right[b:e]...)
		ys = append(ys, p.left[e])
		var pl interp.PiecewiseLinear
		// Fit only rejects inputs NewProfile has already ruled out.
		if err := pl.Fit(p.xs[b:e+1], ys); err != nil {
			panic(err)
		}
		pw.pieces = append(pw.pieces, pl)
	}
	return pw
}

// piecewise dispatches to the continuous piece starting at or below r
type piecewise struct {
	below  float64
	starts []float64
	pieces []Predictor
}

func (pw *piecewise) Predict(r float64) float64 {
	if !(r >= pw.starts[0]) {
		return pw.below
	}
	j := sort.Search(len(pw.starts), func(k int) bool { return pw.starts[k] > r }) - 1
	return pw.pieces[j].Predict(r)
}

// Interpolate evaluates the predictor at every radius, writing into dst.
// dst must be at least as long as radii.
func Interpolate(dst, radii []float64, pred Predictor) []float64 {
	dst = dst[:len(radii)]
	for i, r := range radii {
		dst[i] = pred.Predict(r)
	}
	return dst
}
