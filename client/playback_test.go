package voxcli

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// orderPlayer records play order and fails the test if two segments ever
// render concurrently.
type orderPlayer struct {
	mu      sync.Mutex
	played  [][]byte
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
	failOn  string
}

func (p *orderPlayer) Play(ctx context.Context, segment []byte) error {
	if p.active.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.active.Add(-1)

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.played = append(p.played, segment)
	p.mu.Unlock()

	if p.failOn != "" && string(segment) == p.failOn {
		return fmt.Errorf("simulated playback rejection")
	}
	return nil
}

func (p *orderPlayer) segments() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	for i, s := range p.played {
		out[i] = string(s)
	}
	return out
}

func TestPlaysInArrivalOrderOneAtATime(t *testing.T) {
	player := &orderPlayer{delay: time.Millisecond}
	s := NewScheduler(player)

	want := make([]string, 20)
	for i := range want {
		want[i] = fmt.Sprintf("segment-%02d", i)
		s.Enqueue([]byte(want[i]))
	}
	s.WaitIdle()

	got := player.segments()
	if len(got) != len(want) {
		t.Fatalf("expected %d segments played, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d out of order: expected %q, got %q", i, want[i], got[i])
		}
	}
	if player.overlap.Load() {
		t.Fatal("two segments were playing concurrently")
	}
}

func TestFailedSegmentDoesNotStallQueue(t *testing.T) {
	player := &orderPlayer{failOn: "B"}
	s := NewScheduler(player)

	s.Enqueue([]byte("A"))
	s.Enqueue([]byte("B"))
	s.Enqueue([]byte("C"))
	s.WaitIdle()

	got := player.segments()
	if len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Fatalf("expected playback to continue past failure, got %v", got)
	}
}

func TestSecondSegmentWaitsForFirst(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)

	player := playFunc(func(ctx context.Context, segment []byte) error {
		started <- string(segment)
		if string(segment) == "A" {
			<-release
		}
		return nil
	})
	s := NewScheduler(player)

	s.Enqueue([]byte("A"))
	s.Enqueue([]byte("B"))

	select {
	case first := <-started:
		if first != "A" {
			t.Fatalf("expected A to start first, got %q", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first segment never started")
	}

	// B must not start while A is still playing
	select {
	case second := <-started:
		t.Fatalf("segment %q started before the previous one finished", second)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case second := <-started:
		if second != "B" {
			t.Fatalf("expected B next, got %q", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second segment never started")
	}
	s.WaitIdle()
}

func TestCloseKeepsDrainingQueuedSegments(t *testing.T) {
	release := make(chan struct{})
	player := &gatedPlayer{release: release}
	s := NewScheduler(player)

	s.Enqueue([]byte("A"))
	s.Enqueue([]byte("B"))
	s.Close()
	// New segments are refused after close...
	s.Enqueue([]byte("C"))
	// ...but what was queued still plays out.
	close(release)
	s.WaitIdle()

	got := player.segments()
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("expected [A B] to finish after close, got %v", got)
	}
}

type playFunc func(ctx context.Context, segment []byte) error

func (f playFunc) Play(ctx context.Context, segment []byte) error { return f(ctx, segment) }

type gatedPlayer struct {
	release <-chan struct{}
	mu      sync.Mutex
	played  []string
}

func (p *gatedPlayer) Play(ctx context.Context, segment []byte) error {
	<-p.release
	p.mu.Lock()
	p.played = append(p.played, string(segment))
	p.mu.Unlock()
	return nil
}

func (p *gatedPlayer) segments() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}
