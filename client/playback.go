package voxcli

import (
	"context"
	"log/slog"
	"sync"
)

// Player renders one audio segment and blocks until it has finished. The
// scheduler tolerates any error: a segment that fails to play is skipped, the
// queue moves on.
type Player interface {
	Play(ctx context.Context, segment []byte) error
}

// Scheduler is a single-consumer FIFO over received audio segments. Arrival
// order equals play order, and the playing flag guarantees at most one
// segment is ever rendering: the audio output device is a shared sink, and
// two segments must never overlap on it. Each session owns its own Scheduler;
// it is never shared.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   [][]byte
	playing bool
	closed  bool
	player  Player
}

func NewScheduler(player Player) *Scheduler {
	s := &Scheduler{player: player}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue appends a segment and starts the drain loop if nothing is playing.
// Safe to call from the Conn read loop.
func (s *Scheduler) Enqueue(segment []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Debug("Dropping segment on closed scheduler", "bytes", len(segment))
		return
	}
	s.queue = append(s.queue, segment)
	start := !s.playing
	if start {
		s.playing = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
}

func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.playing = false
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
		segment := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		// A failed segment must not stall the stream: log and move on.
		if err := s.player.Play(context.Background(), segment); err != nil {
			slog.Warn("Segment playback failed, skipping", "error", err, "bytes", len(segment))
		}
	}
}

// Len reports the number of queued, not-yet-playing segments.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// WaitIdle blocks until the queue is empty and nothing is playing. Closing
// the connection does not clear the queue, so callers use this to let
// already-received audio finish.
func (s *Scheduler) WaitIdle() {
	s.mu.Lock()
	for s.playing || len(s.queue) > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Close stops accepting new segments. Segments already queued keep draining.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
