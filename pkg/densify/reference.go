package densify

import (
	"sparseframe/internal/models"
	"sparseframe/pkg/interpolation"
)

// Reference materializes frames step by step on full-size arrays
type Reference struct{}

// Strategy implements Materializer
func (Reference) Strategy() Strategy { return StrategyReference }

// Materialize implements Materializer
func (r Reference) Materialize(in Input) (*models.Frame, error) {
	return newFrame(r, in)
}

// MaterializeInto implements Materializer
func (Reference) MaterializeInto(dst *models.Frame, in Input) error {
	if err := checkDestination(dst, &in); err != nil {
		return err
	}

	// 1. background field
	dense := interpolation.Interpolate(make([]float64, len(in.RadialMap)), in.RadialMap, in.Profile.Reference())

	// 2. explicit pixels
	if err := Overlay(dense, in.Positions, in.Intensities); err != nil {
		return err
	}

	// 3. rounding
	if in.DType.IsInteger() {
		for i, v := range dense {
			dense[i] = Round(v)
		}
	}

	// 4. cast, then mask
	switch pix := dst.Pix().(type) {
	case []uint8:
		castMask(pix, dense, &in)
	case []uint16:
		castMask(pix, dense, &in)
	case []uint32:
		castMask(pix, dense, &in)
	case []int8:
		castMask(pix, dense, &in)
	case []int16:
		castMask(pix, dense, &in)
	case []int32:
		castMask(pix, dense, &in)
	case []float32:
		castMask(pix, dense, &in)
	case []float64:
		castMask(pix, dense, &in)
	}
	return nil
}

func castMask[T models.Element](dst []T, dense []float64, in *Input) {
	l := limitsOf(in.DType)
	for i, v := range dense {
		dst[i] = cast[T](v, l)
	}
	dummy := finalize[T](in.Dummy, l)
	for i, r := range in.RadialMap {
		if masked(r) {
			dst[i] = dummy
		}
	}
}
