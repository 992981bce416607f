package densify

import "fmt"

// Overlay writes each intensity into the field at its flat position, in
// order, so a repeated position keeps its last intensity. All positions are
// checked before the field is touched.
func Overlay(field []float64, positions []int64, intensities []float64) error {
	if err := checkOverrides(positions, intensities, len(field)); err != nil {
		return err
	}
	for k, p := range positions {
		field[p] = intensities[k]
	}
	return nil
}

func checkOverrides(positions []int64, intensities []float64, size int) error {
	if len(positions) != len(intensities) {
		return fmt.Errorf("%w: %d override positions, %d intensities",
			ErrInvalidInput, len(positions), len(intensities))
	}
	for k, p := range positions {
		if p < 0 || p >= int64(size) {
			return &CorruptOverrideError{Index: k, Position: p, Size: size}
		}
	}
	return nil
}
