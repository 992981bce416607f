// Package densify rebuilds dense detector frames from their sparse
// representation: a radial background profile evaluated over a per-pixel
// radius map, overwritten by explicit pixel intensities, finalized to the
// output element type and filled with a dummy value where the map is masked.
//
// Two strategies are provided. Reference performs each step on full-size
// float64 arrays and serves as the oracle; Optimized produces the same frame
// in a single pass without temporaries. Default picks Optimized when the
// capability probe accepts it.
package densify

import (
	"fmt"

	"sparseframe/internal/models"
	"sparseframe/pkg/interpolation"
)

// Input holds everything needed to materialize one frame. The slices are
// only read; several materializations may share them concurrently.
type Input struct {
	// Shape is the frame extent; RadialMap has Shape.Size() entries
	Shape models.Shape

	// RadialMap holds each pixel's radial distance, non-finite when masked
	RadialMap []float64

	// Profile is the frame's background row on the shared radius axis
	Profile *interpolation.Profile

	// Positions and Intensities are the frame's override slice
	Positions   []int64
	Intensities []float64

	// Dummy fills masked pixels
	Dummy float64

	// DType is the element type of the produced frame
	DType models.DType
}

func (in *Input) validate() error {
	if in.Shape.Rows <= 0 || in.Shape.Cols <= 0 {
		return fmt.Errorf("%w: shape %s", ErrInvalidInput, in.Shape)
	}
	if len(in.RadialMap) != in.Shape.Size() {
		return fmt.Errorf("%w: radial map has %d pixels, shape %s needs %d",
			ErrInvalidInput, len(in.RadialMap), in.Shape, in.Shape.Size())
	}
	if in.Profile == nil {
		return fmt.Errorf("%w: missing background profile", ErrInvalidInput)
	}
	if !in.DType.FrameCapable() {
		return fmt.Errorf("%w: unsupported dtype %v", ErrInvalidInput, in.DType)
	}
	return nil
}

// Materializer produces dense frames from sparse inputs
type Materializer interface {
	// Strategy identifies the implementation
	Strategy() Strategy

	// Materialize allocates and returns a new frame
	Materialize(in Input) (*models.Frame, error)

	// MaterializeInto overwrites every pixel of dst, which must match the
	// input's shape and dtype
	MaterializeInto(dst *models.Frame, in Input) error
}

func newFrame(m Materializer, in Input) (*models.Frame, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	frame, err := models.NewFrame(in.Shape, in.DType)
	if err != nil {
		return nil, err
	}
	if err := m.MaterializeInto(frame, in); err != nil {
		return nil, err
	}
	return frame, nil
}

func checkDestination(dst *models.Frame, in *Input) error {
	if err := in.validate(); err != nil {
		return err
	}
	if dst == nil || dst.Shape != in.Shape || dst.DType != in.DType {
		return fmt.Errorf("%w: destination frame does not match %s %v", ErrInvalidInput, in.Shape, in.DType)
	}
	return nil
}

// Materialize rebuilds a frame with the default strategy from the raw
// arrays of the sparse representation.
func Materialize(shape models.Shape, radialMap, radius, background []float64,
	positions []int64, intensities []float64, dummy float64, dtype models.DType) (*models.Frame, error) {
	profile, err := interpolation.NewProfile(radius, background)
	if err != nil {
		return nil, fmt.Errorf("background profile: %w", err)
	}
	return Default().Materialize(Input{
		Shape:       shape,
		RadialMap:   radialMap,
		Profile:     profile,
		Positions:   positions,
		Intensities: intensities,
		Dummy:       dummy,
		DType:       dtype,
	})
}
