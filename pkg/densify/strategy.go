package densify

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"sparseframe/internal/models"
	"sparseframe/pkg/interpolation"
)

// Strategy names a materialization implementation
type Strategy int

const (
	// StrategyAuto resolves to the preferred available strategy
	StrategyAuto Strategy = iota
	StrategyReference
	StrategyOptimized
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyReference:
		return "reference"
	case StrategyOptimized:
		return "optimized"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy maps "auto", "reference" or "optimized" to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return StrategyAuto, nil
	case "reference":
		return StrategyReference, nil
	case "optimized", "optimised":
		return StrategyOptimized, nil
	}
	return StrategyAuto, fmt.Errorf("%w: %q", ErrStrategyUnavailable, name)
}

// optimizedAvailable is resolved once per process: the optimized strategy
// must be compiled in and agree with the reference strategy on a probe frame.
var optimizedAvailable = sync.OnceValue(func() bool {
	return optimizedCompiled && probeOptimized()
})

// OptimizedAvailable reports whether the optimized strategy may be used
func OptimizedAvailable() bool {
	return optimizedAvailable()
}

// Default returns the optimized strategy when available, else the reference one
func Default() Materializer {
	if OptimizedAvailable() {
		return Optimized{}
	}
	return Reference{}
}

// ForStrategy returns the materializer for s
func ForStrategy(s Strategy) (Materializer, error) {
	switch s {
	case StrategyAuto:
		return Default(), nil
	case StrategyReference:
		return Reference{}, nil
	case StrategyOptimized:
		if OptimizedAvailable() {
			return Optimized{}, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrStrategyUnavailable, s)
}

// probeOptimized renders a small masked frame with both strategies and
// compares them pixel for pixel.
func probeOptimized() bool {
	shape := models.Shape{Rows: 9, Cols: 11}
	radial := make([]float64, shape.Size())
	for y := 0; y < shape.Rows; y++ {
		for x := 0; x < shape.Cols; x++ {
			dx, dy := float64(x-5), float64(y-4)
			radial[y*shape.Cols+x] = math.Hypot(dx, dy)
		}
	}
	radial[0] = math.NaN()
	radial[shape.Size()-1] = math.Inf(1)

	profile, err := interpolation.NewProfile([]float64{0, 1.5, 3, 4.5, 6}, []float64{40.2, 30.5, 12.5, 7.49, 2})
	if err != nil {
		return false
	}
	in := Input{
		Shape:       shape,
		RadialMap:   radial,
		Profile:     profile,
		Positions:   []int64{0, 12, 50, 50},
		Intensities: []float64{9, 1000, 3, 77},
		Dummy:       65535,
		DType:       models.Uint16,
	}

	ref, err := Reference{}.Materialize(in)
	if err != nil {
		return false
	}
	opt, err := Optimized{}.Materialize(in)
	if err != nil {
		return false
	}
	return samePixels[uint16](ref, opt)
}

// samePixels reports whether both frames hold T elements with equal values
func samePixels[T models.Element](x, y *models.Frame) bool {
	a, ok := models.Pixels[T](x)
	if !ok {
		return false
	}
	b, ok := models.Pixels[T](y)
	if !ok || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
