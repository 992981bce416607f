package densify

import (
	"sparseframe/internal/models"
	"sparseframe/pkg/interpolation"
)

// Optimized materializes a frame in one pass over the radial map, writing
// finalized values straight into the frame buffer. Overrides are applied
// afterwards and skipped on masked pixels.
type Optimized struct{}

// Strategy implements Materializer
func (Optimized) Strategy() Strategy { return StrategyOptimized }

// Materialize implements Materializer
func (o Optimized) Materialize(in Input) (*models.Frame, error) {
	return newFrame(o, in)
}

// MaterializeInto implements Materializer
func (Optimized) MaterializeInto(dst *models.Frame, in Input) error {
	if err := checkDestination(dst, &in); err != nil {
		return err
	}
	if err := checkOverrides(in.Positions, in.Intensities, len(in.RadialMap)); err != nil {
		return err
	}

	lookup := in.Profile.Fast()
	switch pix := dst.Pix().(type) {
	case []uint8:
		onePass(pix, &in, lookup)
	case []uint16:
		onePass(pix, &in, lookup)
	case []uint32:
		onePass(pix, &in, lookup)
	case []int8:
		onePass(pix, &in, lookup)
	case []int16:
		onePass(pix, &in, lookup)
	case []int32:
		onePass(pix, &in, lookup)
	case []float32:
		onePass(pix, &in, lookup)
	case []float64:
		onePass(pix, &in, lookup)
	}
	return nil
}

func onePass[T models.Element](dst []T, in *Input, lookup *interpolation.Lookup) {
	l := limitsOf(in.DType)
	dummy := finalize[T](in.Dummy, l)
	radial := in.RadialMap
	for i, r := range radial {
		if masked(r) {
			dst[i] = dummy
			continue
		}
		dst[i] = finalize[T](lookup.Predict(r), l)
	}
	for k, p := range in.Positions {
		if masked(radial[p]) {
			continue
		}
		dst[p] = finalize[T](in.Intensities[k], l)
	}
}
