package voxcli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/youpy/go-wav"
)

// PortAudioPlayer renders WAV-encapsulated segments through the default
// output device. Play blocks until the segment has fully rendered, which is
// what lets the Scheduler enforce non-overlapping playback.
type PortAudioPlayer struct {
	mu sync.Mutex
}

func NewPortAudioPlayer() (*PortAudioPlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioPlayer{}, nil
}

// Close releases PortAudio. Call once when the session ends.
func (p *PortAudioPlayer) Close() error {
	return portaudio.Terminate()
}

func (p *PortAudioPlayer) Play(ctx context.Context, segment []byte) error {
	// One stream at a time on the shared output device.
	p.mu.Lock()
	defer p.mu.Unlock()

	reader := wav.NewReader(bytes.NewReader(segment))
	format, err := reader.Format()
	if err != nil {
		return fmt.Errorf("failed to decode segment: %w", err)
	}

	done := make(chan struct{})
	var doneOnce sync.Once

	stream, err := portaudio.OpenDefaultStream(
		0,
		int(format.NumChannels),
		float64(format.SampleRate),
		framesPerBuffer,
		func(out []int16) {
			samples, rerr := reader.ReadSamples(uint32(len(out)))
			for i := 0; i < len(samples) && i < len(out); i++ {
				out[i] = int16(samples[i].Values[0])
			}
			// Fill remaining buffer with silence
			for i := len(samples); i < len(out); i++ {
				out[i] = 0
			}
			if rerr == io.EOF || len(samples) == 0 {
				doneOnce.Do(func() { close(done) })
			}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	return stream.Stop()
}
