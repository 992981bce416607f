package zarrstore

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sparseframe/internal/models"
	"sparseframe/pkg/source"
)

// Array is a chunked Zarr array; its chunks are read on demand
type Array struct {
	store *Store
	dir   string
	name  string
	meta  arrayMeta
	et    elementType
	fill  float64
}

func newArray(s *Store, dir, name string, meta arrayMeta) (*Array, error) {
	if meta.ZarrFormat != zarrFormat {
		return nil, fmt.Errorf("array %q: unsupported zarr_format %d", name, meta.ZarrFormat)
	}
	if meta.Order != "" && meta.Order != "C" {
		return nil, fmt.Errorf("array %q: unsupported order %q", name, meta.Order)
	}
	if len(meta.Chunks) != len(meta.Shape) {
		return nil, fmt.Errorf("array %q: chunks %v do not match shape %v", name, meta.Chunks, meta.Shape)
	}
	for d, c := range meta.Chunks {
		if c <= 0 || meta.Shape[d] < 0 {
			return nil, fmt.Errorf("array %q: invalid chunking %v for shape %v", name, meta.Chunks, meta.Shape)
		}
	}
	if meta.Compressor != nil && meta.Compressor.ID != "zstd" {
		return nil, fmt.Errorf("array %q: unsupported compressor %q", name, meta.Compressor.ID)
	}
	et, err := parseElementType(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}
	fill, err := fillValue(meta.FillValue)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}
	return &Array{store: s, dir: dir, name: name, meta: meta, et: et, fill: fill}, nil
}

// Name implements source.Dataset
func (a *Array) Name() string { return a.name }

// Shape implements source.Dataset
func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

// DType implements source.Dataset
func (a *Array) DType() models.DType { return a.et.dtype }

// Float64s implements source.Dataset
func (a *Array) Float64s() ([]float64, error) {
	raw, err := a.raw()
	if err != nil {
		return nil, err
	}
	size := a.et.size
	out := make([]float64, len(raw)/size)
	for i := range out {
		out[i] = a.et.decodeFloat(raw[i*size:])
	}
	return out, nil
}

// Int64s implements source.Dataset
func (a *Array) Int64s() ([]int64, error) {
	raw, err := a.raw()
	if err != nil {
		return nil, err
	}
	size := a.et.size
	out := make([]int64, len(raw)/size)
	for i := range out {
		b := raw[i*size:]
		switch a.et.kind {
		case 'f':
			v := a.et.decodeFloat(b)
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("array %q: value %g at %d is not an integer", a.name, v, i)
			}
			out[i] = int64(v)
		case 'u':
			v := a.et.decodeUint(b)
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("array %q: value %d at %d overflows int64", a.name, v, i)
			}
			out[i] = int64(v)
		default:
			out[i] = a.et.decodeInt(b)
		}
	}
	return out, nil
}

// raw assembles the whole array in C order from its chunks. Missing chunks
// hold the fill value.
func (a *Array) raw() ([]byte, error) {
	shape, chunks := a.meta.Shape, a.meta.Chunks
	size := a.et.size
	total := source.NumElements(shape)
	buf := make([]byte, total*size)
	if a.fill != 0 {
		for i := 0; i < total; i++ {
			a.et.encodeFloat(buf[i*size:], a.fill)
		}
	}
	if total == 0 {
		return buf, nil
	}

	n := len(shape)
	if n == 0 {
		chunk, err := a.readChunk("0", size)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			copy(buf, chunk)
		}
		return buf, nil
	}

	grid := make([]int, n)
	for d := range grid {
		grid[d] = (shape[d] + chunks[d] - 1) / chunks[d]
	}
	chunkLen := source.NumElements(chunks) * size

	idx := make([]int, n)
	for {
		chunk, err := a.readChunk(chunkKey(idx), chunkLen)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			a.scatter(buf, chunk, idx)
		}

		d := n - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < grid[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return buf, nil
		}
	}
}

// scatter copies the in-bounds part of chunk at grid position idx into buf,
// one contiguous run along the last dimension at a time
func (a *Array) scatter(buf, chunk []byte, idx []int) {
	shape, chunks := a.meta.Shape, a.meta.Chunks
	size := a.et.size
	n := len(shape)

	origin := make([]int, n)
	extent := make([]int, n)
	for d := range origin {
		origin[d] = idx[d] * chunks[d]
		extent[d] = min(chunks[d], shape[d]-origin[d])
	}
	outStride := make([]int, n)
	chunkStride := make([]int, n)
	outStride[n-1], chunkStride[n-1] = 1, 1
	for d := n - 2; d >= 0; d-- {
		outStride[d] = outStride[d+1] * shape[d+1]
		chunkStride[d] = chunkStride[d+1] * chunks[d+1]
	}

	run := extent[n-1] * size
	local := make([]int, n)
	for {
		src, dst := 0, origin[n-1]
		for d := 0; d < n-1; d++ {
			src += local[d] * chunkStride[d]
			dst += (origin[d] + local[d]) * outStride[d]
		}
		copy(buf[dst*size:dst*size+run], chunk[src*size:src*size+run])

		d := n - 2
		for ; d >= 0; d-- {
			local[d]++
			if local[d] < extent[d] {
				break
			}
			local[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// readChunk returns the decoded chunk stored under key, or nil when the
// chunk was never written
func (a *Array) readChunk(key string, want int) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("array %q chunk %s: %w", a.name, key, err)
	}
	if a.meta.Compressor != nil {
		dec, err := a.store.decoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("array %q chunk %s: %w", a.name, key, err)
		}
	}
	if len(data) != want {
		return nil, fmt.Errorf("array %q chunk %s: %d bytes, want %d", a.name, key, len(data), want)
	}
	return data, nil
}

func chunkKey(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}
