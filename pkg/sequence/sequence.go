// Package sequence presents a sparse series as an ordered run of dense
// frames with a cursor. Every frame shares the radial map, radius axis and
// background table of the series; only its background row and override
// slice differ.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"sparseframe/internal/models"
	"sparseframe/pkg/densify"
	"sparseframe/pkg/frameindex"
	"sparseframe/pkg/source"
)

var (
	// ErrNoMoreFrames is returned when a single-frame sequence is asked to
	// move away from its only frame
	ErrNoMoreFrames = errors.New("sequence: no other frame")

	// ErrClosed is returned by every call made after Close
	ErrClosed = errors.New("sequence: closed")
)

// FrameRangeError reports a frame number outside [0, frame count)
type FrameRangeError = frameindex.FrameRangeError

// Option configures a Sequence
type Option func(*Sequence)

// WithMaterializer replaces the strategy chosen by densify.Default
func WithMaterializer(m densify.Materializer) Option {
	return func(s *Sequence) {
		if m != nil {
			s.materializer = m
		}
	}
}

// WithLogger sets the logger used for open and navigation messages
func WithLogger(l *log.Logger) Option {
	return func(s *Sequence) {
		if l != nil {
			s.logger = l
		}
	}
}

// Sequence is a cursor over the frames of a series together with the most
// recently materialized frame. It is safe for concurrent use.
type Sequence struct {
	mu sync.Mutex

	series       *Series
	store        source.Store
	materializer densify.Materializer
	logger       *log.Logger

	cursor  int
	current *models.Frame
	closed  bool
}

// Open reads the sparse layout from store and positions the sequence on
// frame 0. On success the sequence owns store and closes it in Close; on
// failure the store is left to the caller.
func Open(store source.Store, opts ...Option) (*Sequence, error) {
	layout, err := source.Load(store)
	if err != nil {
		return nil, fmt.Errorf("open sparse series: %w", err)
	}
	series, err := NewSeries(layout)
	if err != nil {
		return nil, fmt.Errorf("open sparse series: %w", err)
	}
	s, err := bind(series, store, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("opened %s/%s: %d frames of %s %v, %v strategy",
		layout.Entry, layout.Data, series.FrameCount(), layout.Shape, layout.DType,
		s.materializer.Strategy())
	return s, nil
}

// FromSeries positions a new sequence on frame 0 of an already loaded
// series. The sequence holds no store.
func FromSeries(series *Series, opts ...Option) (*Sequence, error) {
	if series == nil {
		return nil, errors.New("sequence: nil series")
	}
	return bind(series, nil, opts)
}

func bind(series *Series, store source.Store, opts []Option) (*Sequence, error) {
	s := &Sequence{
		series:       series,
		store:        store,
		materializer: densify.Default(),
		logger:       log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	frame, err := series.Frame(s.materializer, 0)
	if err != nil {
		return nil, fmt.Errorf("materialize first frame: %w", err)
	}
	s.current = frame
	return s, nil
}

// Series returns the shared series behind the sequence
func (s *Sequence) Series() *Series {
	return s.series
}

// FrameCount returns the number of frames
func (s *Sequence) FrameCount() int {
	return s.series.FrameCount()
}

// Index returns the cursor position
func (s *Sequence) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Current returns a copy of the frame at the cursor, or nil after Close.
// Writes to the returned frame do not reach the sequence.
func (s *Sequence) Current() *models.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

// Goto materializes frame n and moves the cursor there. The caller owns the
// returned frame. On error the cursor and current frame are unchanged.
func (s *Sequence) Goto(n int) (*models.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotoLocked(n)
}

// Next moves to the frame after the cursor
func (s *Sequence) Next() (*models.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotoLocked(s.cursor + 1)
}

// Previous moves to the frame before the cursor
func (s *Sequence) Previous() (*models.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotoLocked(s.cursor - 1)
}

func (s *Sequence) gotoLocked(n int) (*models.Frame, error) {
	if s.closed {
		return nil, ErrClosed
	}
	frame, err := s.render(n)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("frame %d -> %d", s.cursor, n)
	s.cursor, s.current = n, frame
	return frame.Clone(), nil
}

// Frame materializes frame n without moving the cursor
func (s *Sequence) Frame(n int) (*models.Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return s.render(n)
}

func (s *Sequence) render(n int) (*models.Frame, error) {
	frame, err := s.series.Frame(s.materializer, n)
	if err != nil {
		var rangeErr *FrameRangeError
		if errors.As(err, &rangeErr) && s.series.FrameCount() == 1 {
			return nil, ErrNoMoreFrames
		}
		return nil, err
	}
	return frame, nil
}

// MaterializeAll renders every frame with up to workers goroutines and calls
// fn with each frame in frame order. The cursor does not move.
func (s *Sequence) MaterializeAll(ctx context.Context, workers int, fn func(*models.Frame) error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.series.MaterializeAll(ctx, s.materializer, workers, fn)
}

// Close releases the store and drops the current frame. Frames already
// returned stay valid. Closing twice is a no-op.
func (s *Sequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.current = nil
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
