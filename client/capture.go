package voxcli

import (
	"context"
	"errors"
	"sync"
	"time"
)

// SegmentInterval is the nominal capture cadence: one binary segment every
// 250ms while a source is active.
const SegmentInterval = 250 * time.Millisecond

// ErrCaptureDenied indicates the capture device could not be acquired. The
// pipeline never transitions to active; the caller may retry.
var ErrCaptureDenied = errors.New("capture device denied")

// Source turns live or file audio into a sequence of fixed-interval binary
// segments. Start begins emission; emit receives each non-empty segment and
// end fires exactly once when the source is exhausted or stopped. No segment
// is ever emitted after end. Stop releases the underlying device immediately,
// even if sends downstream are failing.
type Source interface {
	Start(ctx context.Context, emit func(segment []byte), end func()) error
	Stop()
}

// segmenter accumulates raw PCM and emits fixed-size segments. It carries the
// shared edge-case handling for both sources: zero-byte segments are
// discarded, and nothing is emitted after finish.
type segmenter struct {
	mu          sync.Mutex
	pending     []byte
	segmentSize int
	finished    bool
	emit        func([]byte)
	end         func()
	endOnce     sync.Once
}

func newSegmenter(segmentSize int, emit func([]byte), end func()) *segmenter {
	return &segmenter{
		segmentSize: segmentSize,
		emit:        emit,
		end:         end,
	}
}

// write appends captured PCM, emitting a segment for every full interval's
// worth of data.
func (s *segmenter) write(pcm []byte) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, pcm...)
	var ready [][]byte
	for len(s.pending) >= s.segmentSize {
		segment := make([]byte, s.segmentSize)
		copy(segment, s.pending[:s.segmentSize])
		s.pending = s.pending[s.segmentSize:]
		ready = append(ready, segment)
	}
	s.mu.Unlock()

	for _, segment := range ready {
		s.emit(segment)
	}
}

// finish flushes any trailing partial segment and fires end exactly once.
// Subsequent writes are dropped.
func (s *segmenter) finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	tail := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(tail) > 0 {
		s.emit(tail)
	}
	s.endOnce.Do(s.end)
}
