// Package source defines the boundary to the hierarchical array container a
// sparse frame series is stored in, and loads the default NXdata layout from
// any store implementing it.
package source

import (
	"errors"
	"fmt"

	"sparseframe/internal/models"
)

// Dataset names inside the default NXdata group
const (
	MaskDataset       = "mask"
	RadiusDataset     = "radius"
	BackgroundDataset = "background_avg"
	FramePtrDataset   = "frame_ptr"
	IndexDataset      = "index"
	IntensityDataset  = "intensity"
	DummyDataset      = "dummy"

	// DefaultAttr names the attribute pointing at the default child group
	DefaultAttr = "default"
)

// ErrNotFound is wrapped by stores when a group or dataset does not exist
var ErrNotFound = errors.New("source: not found")

// Store is an open hierarchical array container
type Store interface {
	// Root returns the top-level group
	Root() (Group, error)

	// Close releases the underlying handle
	Close() error
}

// Group is a named node holding attributes, child groups and datasets
type Group interface {
	Name() string
	Attr(name string) (string, bool)
	Group(name string) (Group, error)
	Dataset(name string) (Dataset, error)
}

// Dataset is an n-dimensional array stored in C order
type Dataset interface {
	Name() string
	Shape() []int
	DType() models.DType

	// Float64s reads the whole array widened to float64
	Float64s() ([]float64, error)

	// Int64s reads the whole array as integers; it fails for float data
	// holding non-integral values
	Int64s() ([]int64, error)
}

// StructureError reports a container that lacks the required indirections
// or datasets, or whose datasets disagree in shape. It aborts opening.
type StructureError struct {
	// Path locates the offending node, e.g. "/entry/sparse/frame_ptr"
	Path string

	// Reason describes what is wrong
	Reason string

	// Err is the underlying cause, if any
	Err error
}

func (e *StructureError) Error() string {
	msg := fmt.Sprintf("source structure: %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StructureError) Unwrap() error {
	return e.Err
}

// NumElements returns the product of the dimensions of shape
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
