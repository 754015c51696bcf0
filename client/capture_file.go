package voxcli

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/youpy/go-wav"
)

// FileSource streams a pre-recorded WAV file as if it were live: segments are
// paced in real time at the capture cadence, and reaching the end of the file
// emits the terminal sentinel, same contract as the microphone.
type FileSource struct {
	path     string
	interval time.Duration

	mu       sync.Mutex
	active   bool
	stop     chan struct{}
	stopOnce sync.Once
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, interval: SegmentInterval}
}

// NewFileSourceInterval overrides the pacing interval. Tests use this to
// stream faster than real time.
func NewFileSourceInterval(path string, interval time.Duration) *FileSource {
	return &FileSource{path: path, interval: interval}
}

func (f *FileSource) Start(ctx context.Context, emit func([]byte), end func()) error {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return fmt.Errorf("file source already active")
	}

	file, err := os.Open(f.path)
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("failed to open audio file: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		f.mu.Unlock()
		return fmt.Errorf("failed to read WAV format: %w", err)
	}

	samplesPerSegment := uint32(float64(format.SampleRate) * f.interval.Seconds())
	if samplesPerSegment == 0 {
		samplesPerSegment = 1
	}

	f.active = true
	f.stop = make(chan struct{})
	f.stopOnce = sync.Once{}
	stop := f.stop
	f.mu.Unlock()

	seg := newSegmenter(int(samplesPerSegment)*2, emit, end)

	slog.Info("Streaming audio file",
		"file", f.path,
		"sampleRate", format.SampleRate,
		"channels", format.NumChannels)

	go func() {
		defer file.Close()
		defer seg.finish()

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				samples, err := reader.ReadSamples(samplesPerSegment)
				if len(samples) > 0 {
					pcm := make([]byte, len(samples)*2)
					for i, sample := range samples {
						binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample.Values[0])))
					}
					seg.write(pcm)
				}
				if err == io.EOF {
					slog.Info("Audio file exhausted", "file", f.path)
					return
				}
				if err != nil {
					slog.Error("Error reading from WAV file", "error", err)
					return
				}
			}
		}
	}()

	return nil
}

// Stop halts the decoder immediately. The terminal sentinel still fires
// exactly once through the segmenter.
func (f *FileSource) Stop() {
	f.mu.Lock()
	stop := f.stop
	f.active = false
	f.mu.Unlock()
	if stop != nil {
		f.stopOnce.Do(func() { close(stop) })
	}
}
