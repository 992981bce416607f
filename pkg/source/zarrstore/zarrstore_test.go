package zarrstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparseframe/internal/models"
	"sparseframe/pkg/source"
	"sparseframe/pkg/synth"
)

func generated(t *testing.T) *source.Layout {
	t.Helper()
	p := synth.DefaultParams()
	p.Shape = models.Shape{Rows: 20, Cols: 18}
	p.Frames = 3
	p.RadiusPoints = 25
	p.PeaksMin, p.PeaksMax = 4, 9
	p.MaskBeyond = 11
	p.Dummy = 65535
	s, err := synth.Generate(p)
	require.NoError(t, err)
	return s.Layout
}

func writeStore(t *testing.T, dir string, l *source.Layout, c Compression) {
	t.Helper()
	store, err := Create(dir, WithCompression(c))
	require.NoError(t, err)
	root, err := store.Builder()
	require.NoError(t, err)
	require.NoError(t, source.WriteLayout(root, l, source.WriteOptions{}))
	require.NoError(t, store.Close())
}

func TestLayoutRoundTrip(t *testing.T) {
	for _, c := range []Compression{Raw, Zstd} {
		name := map[Compression]string{Raw: "raw", Zstd: "zstd"}[c]
		t.Run(name, func(t *testing.T) {
			want := generated(t)
			dir := filepath.Join(t.TempDir(), "series.zarr")
			writeStore(t, dir, want, c)

			store, err := Open(dir)
			require.NoError(t, err)
			defer store.Close()
			got, err := source.Load(store)
			require.NoError(t, err)

			assert.Equal(t, source.DefaultEntryName, got.Entry)
			assert.Equal(t, source.DefaultDataName, got.Data)
			want.Entry, want.Data = got.Entry, got.Data
			if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
				t.Errorf("layout mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestZstdChunksAreCompressed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "series.zarr")
	writeStore(t, dir, generated(t), Zstd)

	chunk, err := os.ReadFile(filepath.Join(dir, source.DefaultEntryName, source.DefaultDataName, source.MaskDataset, "0.0"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(chunk, []byte{0x28, 0xb5, 0x2f, 0xfd}), "chunk lacks the zstd frame magic")

	meta, err := os.ReadFile(filepath.Join(dir, source.DefaultEntryName, source.DefaultDataName, source.MaskDataset, arrayFile))
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"id": "zstd"`)
	assert.Contains(t, string(meta), `"dtype": "<f4"`)
}

// writeArray lays out an array by hand, the way other Zarr writers do
func writeArray(t *testing.T, dir, meta string, chunks map[string][]byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, arrayFile), []byte(meta), 0644))
	for key, data := range chunks {
		require.NoError(t, os.WriteFile(filepath.Join(dir, key), data, 0644))
	}
}

func TestChunkGrid(t *testing.T) {
	dir := t.TempDir()
	store, err := Create(dir)
	require.NoError(t, err)
	defer store.Close()

	// 5x3 array in 2x2 chunks, chunk 1.1 never written
	chunk := func(r0, c0 int) []byte {
		b := make([]byte, 8)
		for i := 0; i < 4; i++ {
			r, c := r0+i/2, c0+i%2
			binary.LittleEndian.PutUint16(b[2*i:], uint16(r*10+c))
		}
		return b
	}
	chunks := map[string][]byte{
		"0.0": chunk(0, 0), "0.1": chunk(0, 2),
		"1.0": chunk(2, 0),
		"2.0": chunk(4, 0), "2.1": chunk(4, 2),
	}
	writeArray(t, filepath.Join(dir, "grid"),
		`{"zarr_format":2,"shape":[5,3],"chunks":[2,2],"dtype":"<u2","compressor":null,"fill_value":7,"order":"C","filters":null}`,
		chunks)

	root, err := store.Root()
	require.NoError(t, err)
	ds, err := root.Dataset("grid")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3}, ds.Shape())
	assert.Equal(t, models.Uint16, ds.DType())

	got, err := ds.Int64s()
	require.NoError(t, err)
	want := []int64{
		0, 1, 2,
		10, 11, 12,
		20, 21, 7,
		30, 31, 7,
		40, 41, 42,
	}
	assert.Equal(t, want, got)
}

func TestElementTypes(t *testing.T) {
	dir := t.TempDir()
	store, err := Create(dir)
	require.NoError(t, err)
	defer store.Close()

	be := make([]byte, 12)
	for i, v := range []int32{-5, 0, 70000} {
		binary.BigEndian.PutUint32(be[4*i:], uint32(v))
	}
	writeArray(t, filepath.Join(dir, "big"),
		`{"zarr_format":2,"shape":[3],"chunks":[3],"dtype":">i4","compressor":null,"fill_value":0,"order":"C","filters":null}`,
		map[string][]byte{"0": be})

	writeArray(t, filepath.Join(dir, "nanfill"),
		`{"zarr_format":2,"shape":[2],"chunks":[2],"dtype":"<f8","compressor":null,"fill_value":"NaN","order":"C","filters":null}`,
		nil)

	writeArray(t, filepath.Join(dir, "fortran"),
		`{"zarr_format":2,"shape":[2],"chunks":[2],"dtype":"<f8","compressor":null,"fill_value":0,"order":"F","filters":null}`,
		nil)

	root, err := store.Root()
	require.NoError(t, err)

	ds, err := root.Dataset("big")
	require.NoError(t, err)
	assert.Equal(t, models.Int32, ds.DType())
	ints, err := ds.Int64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{-5, 0, 70000}, ints)

	ds, err = root.Dataset("nanfill")
	require.NoError(t, err)
	floats, err := ds.Float64s()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(floats[0]) && math.IsNaN(floats[1]))

	_, err = root.Dataset("fortran")
	assert.Error(t, err)
}

func TestTruncatedChunk(t *testing.T) {
	dir := t.TempDir()
	store, err := Create(dir)
	require.NoError(t, err)
	defer store.Close()
	writeArray(t, filepath.Join(dir, "short"),
		`{"zarr_format":2,"shape":[4],"chunks":[4],"dtype":"<u2","compressor":null,"fill_value":0,"order":"C","filters":null}`,
		map[string][]byte{"0": {1, 0, 2}})

	root, err := store.Root()
	require.NoError(t, err)
	ds, err := root.Dataset("short")
	require.NoError(t, err)
	_, err = ds.Float64s()
	assert.Error(t, err)
}

func TestMissingNodes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "series.zarr")
	writeStore(t, dir, generated(t), Raw)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, source.DefaultEntryName, source.DefaultDataName, source.IntensityDataset)))

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	root, err := store.Root()
	require.NoError(t, err)
	_, err = root.Group("absent")
	assert.ErrorIs(t, err, source.ErrNotFound)
	_, err = root.Dataset("absent")
	assert.ErrorIs(t, err, source.ErrNotFound)
	_, err = root.Group("../escape")
	assert.Error(t, err)

	_, err = source.Load(store)
	var structErr *source.StructureError
	require.ErrorAs(t, err, &structErr)
	assert.Contains(t, structErr.Path, source.IntensityDataset)
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestOpenAndClose(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nothing"))
	assert.Error(t, err)

	store, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Root()
	assert.True(t, errors.Is(err, ErrClosed))
}
