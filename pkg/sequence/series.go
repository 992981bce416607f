package sequence

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"sparseframe/internal/models"
	"sparseframe/pkg/densify"
	"sparseframe/pkg/frameindex"
	"sparseframe/pkg/interpolation"
	"sparseframe/pkg/source"
)

// Series holds the arrays shared by every frame: radial map, radius axis,
// background table, override arrays and dummy value. It is immutable once
// built and may be shared by any number of sequences and goroutines.
type Series struct {
	layout *source.Layout
	index  *frameindex.Index
}

// NewSeries validates a layout and indexes its frames. Inconsistent arrays
// are reported as *source.StructureError.
func NewSeries(l *source.Layout) (*Series, error) {
	if l == nil {
		return nil, &source.StructureError{Path: "/", Reason: "no layout"}
	}
	if l.Shape.Rows <= 0 || l.Shape.Cols <= 0 || len(l.RadialMap) != l.Shape.Size() {
		return nil, &source.StructureError{Path: source.MaskDataset,
			Reason: fmt.Sprintf("%d values for shape %s", len(l.RadialMap), l.Shape)}
	}
	if !l.DType.FrameCapable() {
		return nil, &source.StructureError{Path: source.IntensityDataset,
			Reason: fmt.Sprintf("element type %v cannot hold a frame", l.DType)}
	}
	if len(l.Index) != len(l.Intensity) {
		return nil, &source.StructureError{Path: source.IndexDataset,
			Reason: fmt.Sprintf("%d positions for %d intensities", len(l.Index), len(l.Intensity))}
	}
	index, err := frameindex.New(l.FramePtr, len(l.Index))
	if err != nil {
		return nil, err
	}
	if len(l.Background) != index.Count() {
		return nil, &source.StructureError{Path: source.BackgroundDataset,
			Reason: fmt.Sprintf("%d rows for %d frames", len(l.Background), index.Count())}
	}
	for i, row := range l.Background {
		if len(row) != len(l.Radius) {
			return nil, &source.StructureError{Path: source.BackgroundDataset,
				Reason: fmt.Sprintf("row %d holds %d samples, radius axis has %d", i, len(row), len(l.Radius))}
		}
	}
	if _, err := interpolation.NewProfile(l.Radius, l.Background[0]); err != nil {
		return nil, &source.StructureError{Path: source.RadiusDataset, Reason: "unusable radius axis", Err: err}
	}
	return &Series{layout: l, index: index}, nil
}

// Layout returns the shared arrays; callers must not modify them
func (s *Series) Layout() *source.Layout {
	return s.layout
}

// FrameCount returns the number of frames in the series
func (s *Series) FrameCount() int {
	return s.index.Count()
}

// Shape returns the frame extent
func (s *Series) Shape() models.Shape {
	return s.layout.Shape
}

// DType returns the element type of every frame
func (s *Series) DType() models.DType {
	return s.layout.DType
}

// Input resolves frame n to the materializer input. Out of range numbers
// yield *frameindex.FrameRangeError.
func (s *Series) Input(n int) (densify.Input, error) {
	span, err := s.index.Resolve(n)
	if err != nil {
		return densify.Input{}, err
	}
	l := s.layout
	profile, err := interpolation.NewProfile(l.Radius, l.Background[span.Row])
	if err != nil {
		return densify.Input{}, fmt.Errorf("background row %d: %w", span.Row, err)
	}
	return densify.Input{
		Shape:       l.Shape,
		RadialMap:   l.RadialMap,
		Profile:     profile,
		Positions:   l.Index[span.Start:span.End],
		Intensities: l.Intensity[span.Start:span.End],
		Dummy:       l.Dummy,
		DType:       l.DType,
	}, nil
}

// Frame materializes frame n with m
func (s *Series) Frame(m densify.Materializer, n int) (*models.Frame, error) {
	in, err := s.Input(n)
	if err != nil {
		return nil, err
	}
	frame, err := m.Materialize(in)
	if err != nil {
		return nil, fmt.Errorf("materialize frame %d: %w", n, err)
	}
	frame.Number = n
	return frame, nil
}

// MaterializeAll renders every frame with up to workers goroutines and hands
// the frames to fn in frame order. Rendering stops at the first error from a
// frame or from fn, or when ctx is done. workers <= 0 uses every CPU.
func (s *Series) MaterializeAll(ctx context.Context, m densify.Materializer, workers int, fn func(*models.Frame) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	count := s.FrameCount()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		n     int
		frame *models.Frame
		err   error
	}
	jobs := make(chan int)
	results := make(chan result, workers)
	// bounds the frames held while waiting for an earlier one
	window := make(chan struct{}, 2*workers)

	go func() {
		defer close(jobs)
		for n := 0; n < count; n++ {
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				frame, err := s.Frame(m, n)
				select {
				case results <- result{n: n, frame: frame, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]*models.Frame)
	next := 0
	var firstErr error
	for res := range results {
		if firstErr != nil {
			continue
		}
		if res.err != nil {
			firstErr = res.err
			cancel()
			continue
		}
		pending[res.n] = res.frame
		for {
			frame, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			<-window
			if err := ctx.Err(); err != nil {
				firstErr = fmt.Errorf("stopped before frame %d: %w", next, err)
				break
			}
			if err := fn(frame); err != nil {
				firstErr = err
				cancel()
				break
			}
			next++
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if next < count {
		return fmt.Errorf("materialized %d of %d frames: %w", next, count, context.Cause(ctx))
	}
	return nil
}
