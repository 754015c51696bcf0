package audio

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/youpy/go-wav"
)

func TestSegmentBytes(t *testing.T) {
	// 250ms of 44.1kHz mono int16 is 11025 samples, 22050 bytes
	got := SegmentBytes(250 * time.Millisecond)
	if got != 22050 {
		t.Fatalf("expected 22050 bytes for 250ms, got %d", got)
	}
	if SegmentBytes(time.Second) != SampleRate*2 {
		t.Fatalf("expected %d bytes for 1s, got %d", SampleRate*2, SegmentBytes(time.Second))
	}
}

func TestEncodeSegmentDecodable(t *testing.T) {
	pcm := Tone(440, 100*time.Millisecond)
	seg, err := EncodeSegment(pcm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seg) != HeaderSize+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+len(pcm), len(seg))
	}

	reader := wav.NewReader(bytes.NewReader(seg))
	format, err := reader.Format()
	if err != nil {
		t.Fatalf("failed to read format: %v", err)
	}
	if format.SampleRate != SampleRate || format.NumChannels != Channels {
		t.Fatalf("unexpected format: %+v", format)
	}

	total := 0
	for {
		samples, err := reader.ReadSamples(4096)
		total += len(samples)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read samples: %v", err)
		}
	}
	if total != len(pcm)/2 {
		t.Fatalf("expected %d samples, got %d", len(pcm)/2, total)
	}
}

func TestWriteWavHeaderSize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWavHeader(&buf, 1234); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("expected %d header bytes, got %d", HeaderSize, buf.Len())
	}
}
