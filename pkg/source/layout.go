package source

import (
	"fmt"
	"path"

	"sparseframe/internal/models"
)

// Layout is the decoded content of a sparse frame container: the arrays
// shared by every frame of the series.
type Layout struct {
	Shape      models.Shape
	RadialMap  []float64
	Radius     []float64
	Background [][]float64
	FramePtr   []int64
	Index      []int64
	Intensity  []float64
	Dummy      float64

	// DType is the element type of the intensity dataset and of every frame
	DType models.DType

	// Entry and Data name the default groups the layout was read from
	Entry string
	Data  string
}

// FrameCount returns the number of frames described by the frame pointer
func (l *Layout) FrameCount() int {
	if len(l.FramePtr) == 0 {
		return 0
	}
	return len(l.FramePtr) - 1
}

// Load follows the root's default entry and the entry's default data group,
// then reads every dataset of the sparse representation. Any missing or
// inconsistent node yields a *StructureError.
func Load(store Store) (*Layout, error) {
	root, err := store.Root()
	if err != nil {
		return nil, &StructureError{Path: "/", Reason: "cannot open root group", Err: err}
	}

	entryName, ok := root.Attr(DefaultAttr)
	if !ok || entryName == "" {
		return nil, &StructureError{Path: "/", Reason: "no default entry"}
	}
	entry, err := root.Group(entryName)
	if err != nil {
		return nil, &StructureError{Path: "/" + entryName, Reason: "default entry missing", Err: err}
	}
	entryPath := "/" + entryName

	dataName, ok := entry.Attr(DefaultAttr)
	if !ok || dataName == "" {
		return nil, &StructureError{Path: entryPath, Reason: "no default data group"}
	}
	data, err := entry.Group(dataName)
	if err != nil {
		return nil, &StructureError{Path: path.Join(entryPath, dataName), Reason: "default data group missing", Err: err}
	}

	r := reader{group: data, base: path.Join(entryPath, dataName)}
	l := &Layout{Entry: entryName, Data: dataName}

	mask := r.dataset(MaskDataset, 2)
	radius := r.dataset(RadiusDataset, 1)
	background := r.dataset(BackgroundDataset, 2)
	framePtr := r.dataset(FramePtrDataset, 1)
	index := r.dataset(IndexDataset, 1)
	intensity := r.dataset(IntensityDataset, 1)
	dummy := r.dataset(DummyDataset, -1)
	if r.err != nil {
		return nil, r.err
	}

	shape := mask.Shape()
	l.Shape = models.Shape{Rows: shape[0], Cols: shape[1]}
	l.DType = intensity.DType()
	if !l.DType.FrameCapable() {
		return nil, r.fail(IntensityDataset, fmt.Sprintf("element type %v cannot hold a frame", l.DType), nil)
	}

	l.RadialMap = r.floats(mask)
	l.Radius = r.floats(radius)
	bg := r.floats(background)
	l.FramePtr = r.ints(framePtr)
	l.Index = r.ints(index)
	l.Intensity = r.floats(intensity)
	dummyValues := r.floats(dummy)
	if r.err != nil {
		return nil, r.err
	}

	if len(dummyValues) != 1 {
		return nil, r.fail(DummyDataset, fmt.Sprintf("expected a scalar, got %d values", len(dummyValues)), nil)
	}
	l.Dummy = dummyValues[0]

	bgShape := background.Shape()
	if bgShape[1] != len(l.Radius) {
		return nil, r.fail(BackgroundDataset, fmt.Sprintf("rows hold %d samples, radius axis has %d", bgShape[1], len(l.Radius)), nil)
	}
	if len(l.FramePtr) < 2 {
		return nil, r.fail(FramePtrDataset, "needs at least two entries", nil)
	}
	if bgShape[0] != l.FrameCount() {
		return nil, r.fail(BackgroundDataset, fmt.Sprintf("has %d rows for %d frames", bgShape[0], l.FrameCount()), nil)
	}
	if len(l.Index) != len(l.Intensity) {
		return nil, r.fail(IndexDataset, fmt.Sprintf("has %d entries, intensity has %d", len(l.Index), len(l.Intensity)), nil)
	}

	l.Background = make([][]float64, bgShape[0])
	for i := range l.Background {
		l.Background[i] = bg[i*bgShape[1] : (i+1)*bgShape[1] : (i+1)*bgShape[1]]
	}
	return l, nil
}

// reader accumulates the first error met while reading datasets
type reader struct {
	group Group
	base  string
	err   error
}

func (r *reader) fail(name, reason string, err error) error {
	return &StructureError{Path: path.Join(r.base, name), Reason: reason, Err: err}
}

// dataset opens name and checks its rank; rank -1 accepts a scalar or a
// one-element array
func (r *reader) dataset(name string, rank int) Dataset {
	if r.err != nil {
		return nil
	}
	ds, err := r.group.Dataset(name)
	if err != nil {
		r.err = r.fail(name, "dataset missing", err)
		return nil
	}
	shape := ds.Shape()
	switch {
	case rank < 0:
		if NumElements(shape) != 1 {
			r.err = r.fail(name, fmt.Sprintf("expected a scalar, got shape %v", shape), nil)
		}
	case len(shape) != rank:
		r.err = r.fail(name, fmt.Sprintf("expected rank %d, got shape %v", rank, shape), nil)
	}
	return ds
}

func (r *reader) floats(ds Dataset) []float64 {
	if r.err != nil {
		return nil
	}
	v, err := ds.Float64s()
	if err != nil {
		r.err = r.fail(ds.Name(), "cannot read", err)
	}
	return v
}

func (r *reader) ints(ds Dataset) []int64 {
	if r.err != nil {
		return nil
	}
	v, err := ds.Int64s()
	if err != nil {
		r.err = r.fail(ds.Name(), "cannot read", err)
	}
	return v
}
