package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparseframe/internal/models"
	"sparseframe/pkg/source"
)

func TestWritePrecision(t *testing.T) {
	s := New()
	g := s.Builder()
	require.NoError(t, g.WriteFloat64s("f32", models.Float32, []int{2}, []float64{0.1, 1e10 + 1}))
	require.NoError(t, g.WriteFloat64s("u16", models.Uint16, []int{2}, []float64{3.7, 12}))
	require.NoError(t, g.WriteFloat64s("f64", models.Float64, []int{}, []float64{0.1}))

	root, err := s.Root()
	require.NoError(t, err)

	ds, err := root.Dataset("f32")
	require.NoError(t, err)
	v, err := ds.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{float64(float32(0.1)), float64(float32(1e10 + 1))}, v)

	ds, err = root.Dataset("u16")
	require.NoError(t, err)
	ints, err := ds.Int64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 12}, ints)

	ds, err = root.Dataset("f64")
	require.NoError(t, err)
	assert.Empty(t, ds.Shape())
	v, err = ds.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1}, v)
	_, err = ds.Int64s()
	assert.Error(t, err, "0.1 is not an integer")
}

func TestShapeMismatch(t *testing.T) {
	g := New().Builder()
	assert.Error(t, g.WriteFloat64s("x", models.Float32, []int{2, 2}, []float64{1, 2, 3}))
	assert.Error(t, g.WriteInt64s("y", models.Int64, []int{4}, []int64{1}))
}

func TestGroups(t *testing.T) {
	s := New()
	b := s.Builder()
	require.NoError(t, b.SetAttr("default", "entry"))
	child, err := b.CreateGroup("entry")
	require.NoError(t, err)
	again, err := b.CreateGroup("entry")
	require.NoError(t, err)
	assert.Same(t, child, again)

	root, err := s.Root()
	require.NoError(t, err)
	v, ok := root.Attr("default")
	assert.True(t, ok)
	assert.Equal(t, "entry", v)

	_, err = root.Group("entry")
	assert.NoError(t, err)
	_, err = root.Group("other")
	assert.ErrorIs(t, err, source.ErrNotFound)
	_, err = root.Dataset("other")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestClose(t *testing.T) {
	s := New()
	assert.False(t, s.Closed())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	_, err := s.Root()
	assert.ErrorIs(t, err, ErrClosed)
}
