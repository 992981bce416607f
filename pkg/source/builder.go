package source

import (
	"fmt"

	"sparseframe/internal/models"
)

// Default group names used when writing a layout
const (
	DefaultEntryName = "entry_0000"
	DefaultDataName  = "sparse_frames"
)

// GroupBuilder is the writable side of a store group
type GroupBuilder interface {
	SetAttr(name, value string) error
	CreateGroup(name string) (GroupBuilder, error)
	WriteFloat64s(name string, dtype models.DType, shape []int, data []float64) error
	WriteInt64s(name string, dtype models.DType, shape []int, data []int64) error
}

// WriteOptions selects the storage types used by WriteLayout
type WriteOptions struct {
	// Entry and Data name the default groups; empty selects the defaults
	Entry string
	Data  string

	// FloatType stores the radial map, radius axis and background table
	FloatType models.DType

	// IndexType stores the override positions
	IndexType models.DType
}

// WriteLayout stores l under root so that Load reads it back: the root's
// default attribute names the entry, the entry's names the data group.
func WriteLayout(root GroupBuilder, l *Layout, opts WriteOptions) error {
	if opts.Entry == "" {
		opts.Entry = DefaultEntryName
	}
	if opts.Data == "" {
		opts.Data = DefaultDataName
	}
	if opts.FloatType == models.Invalid {
		opts.FloatType = models.Float32
	}
	if opts.IndexType == models.Invalid {
		opts.IndexType = models.Uint32
	}

	if err := root.SetAttr(DefaultAttr, opts.Entry); err != nil {
		return err
	}
	entry, err := root.CreateGroup(opts.Entry)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", opts.Entry, err)
	}
	if err := entry.SetAttr(DefaultAttr, opts.Data); err != nil {
		return err
	}
	data, err := entry.CreateGroup(opts.Data)
	if err != nil {
		return fmt.Errorf("create data group %s: %w", opts.Data, err)
	}

	bg := make([]float64, 0, len(l.Background)*len(l.Radius))
	for i, row := range l.Background {
		if len(row) != len(l.Radius) {
			return fmt.Errorf("background row %d has %d samples, radius axis has %d", i, len(row), len(l.Radius))
		}
		bg = append(bg, row...)
	}

	writes := []struct {
		name  string
		dtype models.DType
		shape []int
		f     []float64
		i     []int64
	}{
		{name: MaskDataset, dtype: opts.FloatType, shape: []int{l.Shape.Rows, l.Shape.Cols}, f: l.RadialMap},
		{name: RadiusDataset, dtype: opts.FloatType, shape: []int{len(l.Radius)}, f: l.Radius},
		{name: BackgroundDataset, dtype: opts.FloatType, shape: []int{len(l.Background), len(l.Radius)}, f: bg},
		{name: FramePtrDataset, dtype: models.Int64, shape: []int{len(l.FramePtr)}, i: l.FramePtr},
		{name: IndexDataset, dtype: opts.IndexType, shape: []int{len(l.Index)}, i: l.Index},
		{name: IntensityDataset, dtype: l.DType, shape: []int{len(l.Intensity)}, f: l.Intensity},
		{name: DummyDataset, dtype: l.DType, shape: []int{}, f: []float64{l.Dummy}},
	}
	for _, w := range writes {
		if w.i != nil {
			err = data.WriteInt64s(w.name, w.dtype, w.shape, w.i)
		} else {
			err = data.WriteFloat64s(w.name, w.dtype, w.shape, w.f)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", w.name, err)
		}
	}
	return nil
}
