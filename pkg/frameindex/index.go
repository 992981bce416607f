// Package frameindex maps frame numbers to their background row and their
// slice of the override arrays shared by a whole series.
package frameindex

import (
	"fmt"

	"sparseframe/pkg/source"
)

// FrameRangeError reports a frame number outside [0, Count)
type FrameRangeError struct {
	Frame int
	Count int
}

func (e *FrameRangeError) Error() string {
	return fmt.Sprintf("frame %d out of range [0, %d)", e.Frame, e.Count)
}

// Span locates one frame's data: the background table row and the half-open
// range [Start, End) of the override arrays
type Span struct {
	Row   int
	Start int64
	End   int64
}

// Len returns the number of overrides in the span
func (s Span) Len() int {
	return int(s.End - s.Start)
}

// Index is a validated CSR frame pointer
type Index struct {
	ptr []int64
}

// New validates ptr against the length of the override arrays. The pointer
// must hold at least two entries, start at 0, never decrease and end at
// overrides. Violations are reported as *source.StructureError.
func New(ptr []int64, overrides int) (*Index, error) {
	const where = "frame_ptr"
	if len(ptr) < 2 {
		return nil, &source.StructureError{Path: where, Reason: fmt.Sprintf("needs at least 2 entries, got %d", len(ptr))}
	}
	if ptr[0] != 0 {
		return nil, &source.StructureError{Path: where, Reason: fmt.Sprintf("starts at %d, not 0", ptr[0])}
	}
	for i := 1; i < len(ptr); i++ {
		if ptr[i] < ptr[i-1] {
			return nil, &source.StructureError{Path: where, Reason: fmt.Sprintf("decreases at entry %d (%d < %d)", i, ptr[i], ptr[i-1])}
		}
	}
	if last := ptr[len(ptr)-1]; last != int64(overrides) {
		return nil, &source.StructureError{Path: where, Reason: fmt.Sprintf("ends at %d, override arrays hold %d", last, overrides)}
	}
	return &Index{ptr: ptr}, nil
}

// Count returns the number of frames
func (x *Index) Count() int {
	return len(x.ptr) - 1
}

// Resolve returns the span of frame n
func (x *Index) Resolve(n int) (Span, error) {
	if n < 0 || n >= x.Count() {
		return Span{}, &FrameRangeError{Frame: n, Count: x.Count()}
	}
	return Span{Row: n, Start: x.ptr[n], End: x.ptr[n+1]}, nil
}
