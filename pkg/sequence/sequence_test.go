package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparseframe/internal/models"
	"sparseframe/pkg/densify"
	"sparseframe/pkg/source"
	"sparseframe/pkg/source/memstore"
	"sparseframe/pkg/synth"
	"sparseframe/pkg/validation"
)

func generate(t *testing.T, frames int) *synth.Series {
	t.Helper()
	p := synth.DefaultParams()
	p.Shape = models.Shape{Rows: 24, Cols: 20}
	p.Frames = frames
	p.RadiusPoints = 31
	p.PeaksMin, p.PeaksMax = 3, 8
	p.Seed = 7
	s, err := synth.Generate(p)
	require.NoError(t, err)
	return s
}

func openMemory(t *testing.T, frames int, opts ...Option) (*Sequence, *memstore.Store, *synth.Series) {
	t.Helper()
	series := generate(t, frames)
	store, err := memstore.FromLayout(series.Layout, source.WriteOptions{})
	require.NoError(t, err)
	seq, err := Open(store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { seq.Close() })
	return seq, store, series
}

func pixels(t *testing.T, f *models.Frame) []uint16 {
	t.Helper()
	pix, ok := models.Pixels[uint16](f)
	require.True(t, ok, "frame holds %v", f.DType)
	return pix
}

func TestOpenStartsAtFirstFrame(t *testing.T) {
	seq, _, series := openMemory(t, 3)

	assert.Equal(t, 0, seq.Index())
	assert.Equal(t, 3, seq.FrameCount())

	cur := seq.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 0, cur.Number)
	assert.Equal(t, models.Uint16, cur.DType)
	assert.Equal(t, series.Layout.Shape, cur.Shape)

	assert.LessOrEqual(t, maxDiff(t, series.Truth[0], cur), 1.0)
}

func maxDiff(t *testing.T, truth []uint16, f *models.Frame) float64 {
	t.Helper()
	want := make([]float64, len(truth))
	for i, x := range truth {
		want[i] = float64(x)
	}
	m, err := validation.Compare(want, f.Float64s(), 1)
	require.NoError(t, err)
	return m.MaxAbsDiff
}

func TestNavigation(t *testing.T) {
	seq, _, _ := openMemory(t, 3)

	f, err := seq.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Number)
	assert.Equal(t, 1, seq.Index())

	f, err = seq.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, f.Number)
	last := seq.Current()
	assert.Equal(t, pixels(t, f), pixels(t, last))

	_, err = seq.Next()
	var rangeErr *FrameRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 3, rangeErr.Frame)
	assert.Equal(t, 3, rangeErr.Count)
	assert.Equal(t, 2, seq.Index(), "failed move keeps the cursor")
	assert.Equal(t, last, seq.Current(), "failed move keeps the current frame")

	f, err = seq.Previous()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Number)

	f, err = seq.Goto(0)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Number)

	_, err = seq.Previous()
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, -1, rangeErr.Frame)
	assert.Equal(t, 0, seq.Index())

	_, err = seq.Goto(17)
	require.ErrorAs(t, err, &rangeErr)
	assert.NotErrorIs(t, err, ErrNoMoreFrames)
}

func TestNavigationMatchesTruth(t *testing.T) {
	seq, _, series := openMemory(t, 4)
	for n := 1; n < 4; n++ {
		f, err := seq.Next()
		require.NoError(t, err)
		assert.LessOrEqual(t, maxDiff(t, series.Truth[n], f), 1.0, "frame %d", n)
	}
}

func TestSingleFrameSequence(t *testing.T) {
	seq, _, _ := openMemory(t, 1)

	_, err := seq.Next()
	assert.ErrorIs(t, err, ErrNoMoreFrames)
	_, err = seq.Previous()
	assert.ErrorIs(t, err, ErrNoMoreFrames)
	_, err = seq.Goto(5)
	assert.ErrorIs(t, err, ErrNoMoreFrames)
	assert.Equal(t, 0, seq.Index())

	f, err := seq.Goto(0)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Number)
}

func TestFrameKeepsCursor(t *testing.T) {
	seq, _, _ := openMemory(t, 3)
	before := seq.Current()

	f, err := seq.Frame(2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Number)
	assert.Equal(t, 0, seq.Index())
	assert.Equal(t, before, seq.Current())

	next, err := seq.Goto(2)
	require.NoError(t, err)
	assert.Equal(t, pixels(t, f), pixels(t, next))
	assert.NotSame(t, f, next, "each call returns a fresh frame")
}

func TestReturnedFramesAreCopies(t *testing.T) {
	seq, _, series := openMemory(t, 3)

	cur := seq.Current()
	want := append([]uint16(nil), pixels(t, cur)...)
	for i := range pixels(t, cur) {
		pixels(t, cur)[i] = 0
	}
	cur.Number = 99
	again := seq.Current()
	assert.Equal(t, 0, again.Number)
	assert.Equal(t, want, pixels(t, again), "writes to a returned frame stay local")

	f, err := seq.Next()
	require.NoError(t, err)
	pixels(t, f)[0]++
	assert.LessOrEqual(t, maxDiff(t, series.Truth[1], seq.Current()), 1.0)
	assert.NotEqual(t, pixels(t, f), pixels(t, seq.Current()))
}

func TestCloseReleasesStore(t *testing.T) {
	seq, store, _ := openMemory(t, 2)
	kept := seq.Current()

	require.NoError(t, seq.Close())
	assert.True(t, store.Closed())
	assert.Nil(t, seq.Current())

	_, err := seq.Next()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = seq.Frame(1)
	assert.ErrorIs(t, err, ErrClosed)
	err = seq.MaterializeAll(context.Background(), 1, func(*models.Frame) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, seq.Close())

	// frames outlive the sequence
	assert.Equal(t, kept.Shape.Size(), len(pixels(t, kept)))
}

func TestFromSeriesHoldsNoStore(t *testing.T) {
	series, err := NewSeries(generate(t, 2).Layout)
	require.NoError(t, err)
	seq, err := FromSeries(series)
	require.NoError(t, err)
	assert.Same(t, series, seq.Series())
	assert.NoError(t, seq.Close())

	_, err = FromSeries(nil)
	assert.Error(t, err)
}

func TestStrategiesAgree(t *testing.T) {
	series, err := NewSeries(generate(t, 3).Layout)
	require.NoError(t, err)
	ref, err := FromSeries(series, WithMaterializer(densify.Reference{}))
	require.NoError(t, err)
	opt, err := FromSeries(series, WithMaterializer(densify.Optimized{}))
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		a, err := ref.Goto(n)
		require.NoError(t, err)
		b, err := opt.Goto(n)
		require.NoError(t, err)
		assert.Equal(t, pixels(t, a), pixels(t, b), "frame %d", n)
	}
}

func TestOpenRejectsBadStructure(t *testing.T) {
	t.Run("missing default entry", func(t *testing.T) {
		store, err := memstore.FromLayout(generate(t, 2).Layout, source.WriteOptions{})
		require.NoError(t, err)
		store.Builder().DeleteAttr(source.DefaultAttr)

		_, err = Open(store)
		var structErr *source.StructureError
		require.ErrorAs(t, err, &structErr)
		assert.Equal(t, "/", structErr.Path)
	})

	t.Run("frame pointer not starting at zero", func(t *testing.T) {
		l := generate(t, 2).Layout
		l.FramePtr[0] = 1
		store, err := memstore.FromLayout(l, source.WriteOptions{})
		require.NoError(t, err)

		_, err = Open(store)
		var structErr *source.StructureError
		require.ErrorAs(t, err, &structErr)
		assert.Equal(t, "frame_ptr", structErr.Path)
		assert.False(t, store.Closed(), "failed open leaves the store to the caller")
	})

	t.Run("frame pointer past the overrides", func(t *testing.T) {
		l := generate(t, 2).Layout
		l.FramePtr[2] += 4
		_, err := NewSeries(l)
		var structErr *source.StructureError
		require.ErrorAs(t, err, &structErr)
	})

	t.Run("background rows", func(t *testing.T) {
		l := generate(t, 2).Layout
		l.Background = l.Background[:1]
		_, err := NewSeries(l)
		var structErr *source.StructureError
		require.ErrorAs(t, err, &structErr)
		assert.Equal(t, source.BackgroundDataset, structErr.Path)
	})
}

func TestCorruptOverrideFailsFrame(t *testing.T) {
	l := generate(t, 2).Layout
	l.Index[l.FramePtr[1]] = int64(l.Shape.Size())
	series, err := NewSeries(l)
	require.NoError(t, err)
	seq, err := FromSeries(series)
	require.NoError(t, err)

	_, err = seq.Next()
	var corrupt *densify.CorruptOverrideError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, int64(l.Shape.Size()), corrupt.Position)
	assert.Equal(t, 0, seq.Index())
}

func TestMaterializeAllDeliversInOrder(t *testing.T) {
	seq, _, _ := openMemory(t, 6)

	var got []int
	err := seq.MaterializeAll(context.Background(), 3, func(f *models.Frame) error {
		want, err := seq.Frame(f.Number)
		require.NoError(t, err)
		assert.Equal(t, pixels(t, want), pixels(t, f), "frame %d", f.Number)
		got = append(got, f.Number)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
	assert.Equal(t, 0, seq.Index())
}

func TestMaterializeAllStops(t *testing.T) {
	seq, _, _ := openMemory(t, 6)

	t.Run("callback error", func(t *testing.T) {
		stop := errors.New("stop")
		var got []int
		err := seq.MaterializeAll(context.Background(), 2, func(f *models.Frame) error {
			got = append(got, f.Number)
			if f.Number == 2 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, []int{0, 1, 2}, got)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var got []int
		err := seq.MaterializeAll(ctx, 4, func(f *models.Frame) error {
			got = append(got, f.Number)
			if f.Number == 1 {
				cancel()
			}
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []int{0, 1}, got)
	})

	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := seq.MaterializeAll(ctx, 1, func(*models.Frame) error {
			t.Fatal("no frame expected")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConcurrentNavigation(t *testing.T) {
	seq, _, _ := openMemory(t, 4)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				f, err := seq.Goto((w + i) % 4)
				if assert.NoError(t, err) {
					assert.Equal(t, (w+i)%4, f.Number)
				}
			}
		}(w)
	}
	wg.Wait()

	cur := seq.Current()
	assert.Equal(t, seq.Index(), cur.Number)
}
