package zarrstore

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"sparseframe/internal/models"
	"sparseframe/pkg/source"
)

// Group is a directory of the hierarchy
type Group struct {
	store *Store
	rel   string
	name  string
	attrs map[string]any
}

// Name implements source.Group
func (g *Group) Name() string { return g.name }

// Attr implements source.Group; only string attributes are reported
func (g *Group) Attr(name string) (string, bool) {
	v, ok := g.attrs[name].(string)
	return v, ok
}

// Group implements source.Group
func (g *Group) Group(name string) (source.Group, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	child, err := g.store.group(filepath.Join(g.rel, name), path.Join(g.name, name))
	if err != nil {
		return nil, err
	}
	return child, nil
}

// Dataset implements source.Group
func (g *Group) Dataset(name string) (source.Dataset, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(g.store.dir, g.rel, name)
	var meta arrayMeta
	if err := readJSON(filepath.Join(dir, arrayFile), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dataset %q: %w", path.Join(g.name, name), source.ErrNotFound)
		}
		return nil, fmt.Errorf("dataset %q metadata: %w", name, err)
	}
	arr, err := newArray(g.store, dir, name, meta)
	if err != nil {
		return nil, err
	}
	return arr, nil
}

// SetAttr implements source.GroupBuilder
func (g *Group) SetAttr(name, value string) error {
	g.attrs[name] = value
	return writeJSON(filepath.Join(g.store.dir, g.rel, attrsFile), g.attrs)
}

// CreateGroup implements source.GroupBuilder
func (g *Group) CreateGroup(name string) (source.GroupBuilder, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	rel := filepath.Join(g.rel, name)
	dir := filepath.Join(g.store.dir, rel)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create group %q: %w", name, err)
	}
	if err := writeJSON(filepath.Join(dir, groupFile), groupMeta{ZarrFormat: zarrFormat}); err != nil {
		return nil, err
	}
	child, err := g.store.group(rel, path.Join(g.name, name))
	if err != nil {
		return nil, err
	}
	return child, nil
}

// WriteFloat64s implements source.GroupBuilder
func (g *Group) WriteFloat64s(name string, dtype models.DType, shape []int, data []float64) error {
	return g.writeArray(name, dtype, shape, len(data), func(et elementType, b []byte, i int) {
		et.encodeFloat(b, data[i])
	})
}

// WriteInt64s implements source.GroupBuilder
func (g *Group) WriteInt64s(name string, dtype models.DType, shape []int, data []int64) error {
	return g.writeArray(name, dtype, shape, len(data), func(et elementType, b []byte, i int) {
		if et.kind == 'f' {
			et.encodeFloat(b, float64(data[i]))
			return
		}
		et.encodeInt(b, data[i])
	})
}

// writeArray stores an array as a single chunk
func (g *Group) writeArray(name string, dtype models.DType, shape []int, n int,
	put func(et elementType, b []byte, i int)) error {
	if err := checkName(name); err != nil {
		return err
	}
	if want := source.NumElements(shape); want != n {
		return fmt.Errorf("array %q: shape %v needs %d values, got %d", name, shape, want, n)
	}
	code, err := formatElementType(dtype)
	if err != nil {
		return err
	}
	et, err := parseElementType(code)
	if err != nil {
		return err
	}

	chunks := make([]int, len(shape))
	for d, s := range shape {
		chunks[d] = max(s, 1)
	}
	meta := arrayMeta{
		ZarrFormat: zarrFormat,
		Shape:      append([]int{}, shape...),
		Chunks:     chunks,
		DType:      code,
		FillValue:  []byte("0"),
		Order:      "C",
		Filters:    []byte("null"),
	}
	if g.store.compression == Zstd {
		meta.Compressor = &compressorMeta{ID: "zstd", Level: 3}
	}

	dir := filepath.Join(g.store.dir, g.rel, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create array %q: %w", name, err)
	}
	if err := writeJSON(filepath.Join(dir, arrayFile), meta); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	buf := make([]byte, source.NumElements(chunks)*et.size)
	for i := 0; i < n; i++ {
		put(et, buf[i*et.size:], i)
	}
	if meta.Compressor != nil {
		enc, err := g.store.encoder()
		if err != nil {
			return fmt.Errorf("zstd encoder: %w", err)
		}
		buf = enc.EncodeAll(buf, nil)
	}

	key := "0"
	if len(shape) > 1 {
		key = strings.Repeat("0.", len(shape)-1) + "0"
	}
	if err := os.WriteFile(filepath.Join(dir, key), buf, 0644); err != nil {
		return fmt.Errorf("write chunk of %q: %w", name, err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid node name %q", name)
	}
	return nil
}
