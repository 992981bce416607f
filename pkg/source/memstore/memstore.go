// Package memstore is an in-memory hierarchical array store. It backs tests
// and synthetic series that never touch disk.
package memstore

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"sparseframe/internal/models"
	"sparseframe/pkg/source"
)

// ErrClosed is returned by a store after Close
var ErrClosed = errors.New("memstore: store is closed")

// Store is an in-memory tree of groups and datasets
type Store struct {
	mu     sync.Mutex
	root   *Group
	closed bool
}

// New returns an empty store
func New() *Store {
	return &Store{root: newGroup("/")}
}

// FromLayout returns a store holding l in the default layout
func FromLayout(l *source.Layout, opts source.WriteOptions) (*Store, error) {
	s := New()
	if err := source.WriteLayout(s.root, l, opts); err != nil {
		return nil, err
	}
	return s, nil
}

// Root implements source.Store
func (s *Store) Root() (source.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.root, nil
}

// Builder returns the writable root group
func (s *Store) Builder() *Group {
	return s.root
}

// Close implements source.Store
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Group is an in-memory group
type Group struct {
	name     string
	attrs    map[string]string
	groups   map[string]*Group
	datasets map[string]*Dataset
}

func newGroup(name string) *Group {
	return &Group{
		name:     name,
		attrs:    make(map[string]string),
		groups:   make(map[string]*Group),
		datasets: make(map[string]*Dataset),
	}
}

// Name implements source.Group
func (g *Group) Name() string { return g.name }

// Attr implements source.Group
func (g *Group) Attr(name string) (string, bool) {
	v, ok := g.attrs[name]
	return v, ok
}

// Group implements source.Group
func (g *Group) Group(name string) (source.Group, error) {
	child, ok := g.groups[name]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", name, source.ErrNotFound)
	}
	return child, nil
}

// Dataset implements source.Group
func (g *Group) Dataset(name string) (source.Dataset, error) {
	ds, ok := g.datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", name, source.ErrNotFound)
	}
	return ds, nil
}

// SetAttr implements source.GroupBuilder
func (g *Group) SetAttr(name, value string) error {
	g.attrs[name] = value
	return nil
}

// DeleteAttr removes an attribute
func (g *Group) DeleteAttr(name string) {
	delete(g.attrs, name)
}

// CreateGroup implements source.GroupBuilder; an existing group is returned as is
func (g *Group) CreateGroup(name string) (source.GroupBuilder, error) {
	return g.Child(name), nil
}

// Child returns the named child group, creating it if needed
func (g *Group) Child(name string) *Group {
	child, ok := g.groups[name]
	if !ok {
		child = newGroup(name)
		g.groups[name] = child
	}
	return child
}

// DeleteDataset removes a dataset
func (g *Group) DeleteDataset(name string) {
	delete(g.datasets, name)
}

// WriteFloat64s implements source.GroupBuilder
func (g *Group) WriteFloat64s(name string, dtype models.DType, shape []int, data []float64) error {
	if err := checkSize(shape, len(data)); err != nil {
		return err
	}
	values := make([]float64, len(data))
	for i, v := range data {
		values[i] = store(dtype, v)
	}
	g.datasets[name] = &Dataset{name: name, dtype: dtype, shape: append([]int(nil), shape...), values: values}
	return nil
}

// WriteInt64s implements source.GroupBuilder
func (g *Group) WriteInt64s(name string, dtype models.DType, shape []int, data []int64) error {
	if err := checkSize(shape, len(data)); err != nil {
		return err
	}
	g.datasets[name] = &Dataset{name: name, dtype: dtype, shape: append([]int(nil), shape...), ints: append([]int64(nil), data...)}
	return nil
}

func checkSize(shape []int, n int) error {
	if want := source.NumElements(shape); want != n {
		return fmt.Errorf("shape %v needs %d values, got %d", shape, want, n)
	}
	return nil
}

// store mimics the precision loss of writing v with the given element type
func store(dtype models.DType, v float64) float64 {
	switch {
	case dtype == models.Float32:
		return float64(float32(v))
	case dtype.IsInteger():
		return math.Trunc(v)
	}
	return v
}

// Dataset is an in-memory array; exactly one of values and ints is set
type Dataset struct {
	name   string
	dtype  models.DType
	shape  []int
	values []float64
	ints   []int64
}

// Name implements source.Dataset
func (d *Dataset) Name() string { return d.name }

// Shape implements source.Dataset
func (d *Dataset) Shape() []int { return append([]int(nil), d.shape...) }

// DType implements source.Dataset
func (d *Dataset) DType() models.DType { return d.dtype }

// Float64s implements source.Dataset
func (d *Dataset) Float64s() ([]float64, error) {
	if d.ints == nil {
		return append([]float64(nil), d.values...), nil
	}
	out := make([]float64, len(d.ints))
	for i, v := range d.ints {
		out[i] = float64(v)
	}
	return out, nil
}

// Int64s implements source.Dataset
func (d *Dataset) Int64s() ([]int64, error) {
	if d.ints != nil || d.values == nil {
		return append([]int64(nil), d.ints...), nil
	}
	out := make([]int64, len(d.values))
	for i, v := range d.values {
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("dataset %q: value %g at %d is not an integer", d.name, v, i)
		}
		out[i] = int64(v)
	}
	return out, nil
}
