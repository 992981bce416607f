package densify

import (
	"errors"
	"fmt"
)

var (
	// ErrStrategyUnavailable is returned when a materialization strategy
	// is unknown or was not compiled into this build
	ErrStrategyUnavailable = errors.New("densify: strategy unavailable")

	// ErrInvalidInput is returned for inputs whose arrays disagree in size
	ErrInvalidInput = errors.New("densify: invalid input")
)

// CorruptOverrideError reports an override position outside the frame.
// It is fatal for the materialization of that frame.
type CorruptOverrideError struct {
	// Index is the offset of the bad entry within the frame's override slice
	Index int

	// Position is the flat pixel offset that was requested
	Position int64

	// Size is the number of pixels in the frame
	Size int
}

func (e *CorruptOverrideError) Error() string {
	return fmt.Sprintf("densify: override %d targets pixel %d outside frame of %d pixels",
		e.Index, e.Position, e.Size)
}
