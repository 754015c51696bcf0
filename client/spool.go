package voxcli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const spoolQueueSize = 64

// Spool watches a drop directory and streams each newly created WAV file as a
// broadcast run. Dropping a file into the directory is equivalent to pressing
// "play and broadcast" on it. Files dropped while a run is in progress are
// queued and streamed in drop order, one run at a time.
type Spool struct {
	dir    string
	settle time.Duration
	stream func(path string) error
	queue  chan string
}

// NewSpool streams files appearing under dir through stream, which must block
// until its run has finished: the queue worker starts the next file only when
// stream returns. A file is only streamed once its size has stopped changing
// for the settle window, so a file still being copied in is not picked up
// mid-write.
func NewSpool(dir string, stream func(path string) error) *Spool {
	return &Spool{
		dir:    dir,
		settle: 500 * time.Millisecond,
		stream: stream,
		queue:  make(chan string, spoolQueueSize),
	}
}

// Watch blocks until ctx is cancelled or the watcher fails.
func (s *Spool) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	go s.drainQueue(ctx)

	slog.Info("Watching spool directory", "path", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if err := s.handleEvent(event); err != nil {
				slog.Error("Failed to handle spool event",
					"error", err,
					"event", event)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Spool watcher error", "error", err)
		}
	}
}

// handleEvent enqueues newly created WAV files. Streaming happens on the
// queue worker so a long run never blocks event intake.
func (s *Spool) handleEvent(event fsnotify.Event) error {
	if event.Op != fsnotify.Create {
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(event.Name), ".wav") {
		return nil
	}

	select {
	case s.queue <- event.Name:
		return nil
	default:
		return fmt.Errorf("spool queue full, dropping %s", event.Name)
	}
}

// drainQueue streams queued files one at a time, in drop order.
func (s *Spool) drainQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-s.queue:
			if err := s.waitSettled(ctx, path); err != nil {
				slog.Error("Failed to settle spooled file", "error", err, "file", path)
				continue
			}
			slog.Info("Streaming spooled file", "file", path)
			if err := s.stream(path); err != nil {
				slog.Error("Failed to stream spooled file", "error", err, "file", path)
			}
		}
	}
}

// waitSettled polls the file size until it holds steady for one settle
// window.
func (s *Spool) waitSettled(ctx context.Context, path string) error {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat spooled file: %w", err)
		}
		if info.Size() == lastSize {
			return nil
		}
		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.settle):
		}
	}
}
