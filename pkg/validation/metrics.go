// Package validation measures how faithfully a densified frame reproduces a
// known dense frame, and summarises frame statistics.
package validation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics compares a reconstructed frame with its reference
type Metrics struct {
	// MaxAbsDiff is the largest absolute pixel difference
	MaxAbsDiff float64

	// Differing counts pixels that are not exactly equal
	Differing int

	// BeyondTolerance counts pixels whose difference exceeds the tolerance
	BeyondTolerance int

	// DifferingFraction is Differing over the number of pixels
	DifferingFraction float64

	// RMSE is the root mean square error over all pixels
	RMSE float64
}

// Summary describes the value distribution of one frame
type Summary struct {
	Min, Max     float64
	Mean, StdDev float64
}

// Compare computes Metrics for two equally sized frames
func Compare(reference, reconstructed []float64, tolerance float64) (Metrics, error) {
	n := len(reference)
	if n != len(reconstructed) {
		return Metrics{}, fmt.Errorf("frames differ in size: %d and %d pixels", n, len(reconstructed))
	}
	if n == 0 {
		return Metrics{}, fmt.Errorf("empty frames")
	}

	var m Metrics
	mse := 0.0
	for i := range reference {
		diff := reference[i] - reconstructed[i]
		mse += diff * diff
		ad := math.Abs(diff)
		if ad != 0 {
			m.Differing++
		}
		if ad > tolerance {
			m.BeyondTolerance++
		}
		m.MaxAbsDiff = math.Max(m.MaxAbsDiff, ad)
	}
	m.RMSE = math.Sqrt(mse / float64(n))
	m.DifferingFraction = float64(m.Differing) / float64(n)
	return m, nil
}

// Summarize returns min, max, mean and standard deviation of the finite
// values in data
func Summarize(data []float64) Summary {
	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return Summary{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), StdDev: math.NaN()}
	}
	s := Summary{Min: floats.Min(finite), Max: floats.Max(finite)}
	if len(finite) == 1 {
		s.Mean = finite[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(finite, nil)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("min %.3f max %.3f mean %.3f std %.3f", s.Min, s.Max, s.Mean, s.StdDev)
}
