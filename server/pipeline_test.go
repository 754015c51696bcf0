package voxserv

import (
	"strings"
	"testing"

	"github.com/voxlate/voxlate/audio"
	"github.com/voxlate/voxlate/config"
)

func TestStubPipeline(t *testing.T) {
	p := NewStubPipeline(config.Default().Pipeline)

	// 500ms of 16-bit mono PCM
	pcm := make([]byte, audio.SampleRate)
	transcript := p.Transcribe(pcm, "en-US")
	if transcript != "[en-US 500ms]" {
		t.Fatalf("unexpected transcript %q", transcript)
	}

	translated := p.Translate(transcript, "en-US", "hi-IN")
	if !strings.HasPrefix(translated, "(hi-IN) ") || !strings.Contains(translated, transcript) {
		t.Fatalf("unexpected translation %q", translated)
	}

	synth, err := p.Synthesize(translated, "hi-IN", "Standard", "NEUTRAL", "")
	if err != nil {
		t.Fatalf("unexpected synthesis error: %v", err)
	}
	if len(synth) <= audio.HeaderSize || string(synth[:4]) != "RIFF" {
		t.Fatalf("synthesized output is not a WAV stream, %d bytes", len(synth))
	}
}
