package voxserv

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxlate/voxlate/audio"
)

// Recorder persists each processed utterance as a WAV file under
// <dir>/<day>/<sessionID>/, one file per utterance.
type Recorder struct {
	dir string
	mu  sync.Mutex
}

func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

func (r *Recorder) Save(sessionID uuid.UUID, pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := time.Now().Format("20060102")
	sessionDir := filepath.Join(r.dir, day, sessionID.String())
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}

	timestamp := time.Now().Format("150405.000")
	path := filepath.Join(sessionDir, fmt.Sprintf("audio_%s.wav", timestamp))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	defer file.Close()

	if err := audio.WriteWavHeader(file, uint32(len(pcm))); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	if _, err := file.Write(pcm); err != nil {
		return fmt.Errorf("failed to write recording data: %w", err)
	}

	slog.Debug("Saved utterance recording", "file", path, "bytes", len(pcm))
	return nil
}
