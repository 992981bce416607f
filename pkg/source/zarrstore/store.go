// Package zarrstore reads and writes sparse frame series kept in a Zarr v2
// directory hierarchy. Groups are directories holding .zgroup and .zattrs,
// arrays are directories holding .zarray and one file per chunk. Chunks are
// stored raw or compressed with zstd.
package zarrstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"sparseframe/pkg/source"
)

// ErrClosed is returned by a store after Close
var ErrClosed = errors.New("zarrstore: store is closed")

// Compression selects how written chunks are encoded
type Compression int

const (
	// Raw writes chunks uncompressed
	Raw Compression = iota

	// Zstd writes zstd compressed chunks
	Zstd
)

// Option configures a Store
type Option func(*Store)

// WithCompression selects the chunk encoding used by writers
func WithCompression(c Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// Store is a Zarr v2 directory hierarchy rooted at dir
type Store struct {
	dir         string
	compression Compression

	mu     sync.Mutex
	closed bool
	dec    *zstd.Decoder
	enc    *zstd.Encoder
}

// Open opens an existing hierarchy for reading
func Open(dir string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(filepath.Join(dir, groupFile)); err != nil {
		return nil, fmt.Errorf("open zarr hierarchy %s: %w", dir, err)
	}
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create initialises an empty hierarchy at dir, creating the directory
func Create(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create zarr hierarchy: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, groupFile), groupMeta{ZarrFormat: zarrFormat}); err != nil {
		return nil, err
	}
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the hierarchy's root directory
func (s *Store) Dir() string {
	return s.dir
}

// Root implements source.Store
func (s *Store) Root() (source.Group, error) {
	g, err := s.group("", "/")
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Builder returns the writable root group
func (s *Store) Builder() (*Group, error) {
	return s.group("", "/")
}

// Close implements source.Store
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.dec != nil {
		s.dec.Close()
	}
	if s.enc != nil {
		return s.enc.Close()
	}
	return nil
}

func (s *Store) group(rel, name string) (*Group, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	dir := filepath.Join(s.dir, rel)
	if _, err := os.Stat(filepath.Join(dir, groupFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("group %q: %w", name, source.ErrNotFound)
		}
		return nil, err
	}
	g := &Group{store: s, rel: rel, name: name, attrs: map[string]any{}}
	if err := readJSON(filepath.Join(dir, attrsFile), &g.attrs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("group %q attributes: %w", name, err)
	}
	return g, nil
}

func (s *Store) decoder() (*zstd.Decoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		s.dec = dec
	}
	return s.dec, nil
}

func (s *Store) encoder() (*zstd.Encoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		s.enc = enc
	}
	return s.enc, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// keep dtype strings such as "<u2" unescaped
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
