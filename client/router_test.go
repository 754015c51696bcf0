package voxcli

import (
	"testing"
)

func TestParseControl(t *testing.T) {
	cases := []struct {
		in      string
		kind    ControlKind
		payload string
	}{
		{"TRANSCRIPT:hello there", ControlTranscript, "hello there"},
		{"TRANSLATION:bonjour", ControlTranslation, "bonjour"},
		{"STREAM_COMPLETE", ControlStreamComplete, ""},
		{"ERROR:pipeline exploded", ControlError, "pipeline exploded"},
		{"TRANSCRIPT:", ControlTranscript, ""},
		{"PING", ControlUnknown, "PING"},
		{"", ControlUnknown, ""},
		{"transcript:lowercase is not a tag", ControlUnknown, "transcript:lowercase is not a tag"},
	}

	for _, tc := range cases {
		got := ParseControl(tc.in)
		if got.Kind != tc.kind || got.Payload != tc.payload {
			t.Fatalf("ParseControl(%q) = %+v, expected kind %v payload %q", tc.in, got, tc.kind, tc.payload)
		}
	}
}

func TestTranscriptAccumulation(t *testing.T) {
	r := NewRouter(RouterOptions{})

	r.Route(TextFrame("TRANSCRIPT:Hello "))
	r.Route(TextFrame("TRANSCRIPT:there, "))
	r.Route(TextFrame("TRANSCRIPT: world"))

	if got := r.Transcript(); got != "Hello there, world" {
		t.Fatalf("expected %q, got %q", "Hello there, world", got)
	}
}

func TestEmptyChunkDoesNotAddSpace(t *testing.T) {
	r := NewRouter(RouterOptions{})
	r.Route(TextFrame("TRANSLATION:Hello"))
	r.Route(TextFrame("TRANSLATION:   "))
	r.Route(TextFrame("TRANSLATION:World"))

	if got := r.Translation(); got != "Hello World" {
		t.Fatalf("expected %q, got %q", "Hello World", got)
	}
}

func TestTextAndAudioInterleaved(t *testing.T) {
	// Scenario: TRANSLATION:"Hello ", binary A, binary B, TRANSLATION:"World"
	var audio [][]byte
	r := NewRouter(RouterOptions{
		Audio: func(seg []byte) { audio = append(audio, seg) },
	})

	r.Route(TextFrame("TRANSLATION:Hello "))
	r.Route(BinaryFrame([]byte("A")))
	r.Route(BinaryFrame([]byte("B")))
	r.Route(TextFrame("TRANSLATION:World"))

	if got := r.Translation(); got != "Hello World" {
		t.Fatalf("expected %q, got %q", "Hello World", got)
	}
	if len(audio) != 2 || string(audio[0]) != "A" || string(audio[1]) != "B" {
		t.Fatalf("expected audio order [A B], got %v", audio)
	}
}

func TestStreamCompleteFlipsActivityOnly(t *testing.T) {
	var audio [][]byte
	completed := false
	r := NewRouter(RouterOptions{
		Audio:      func(seg []byte) { audio = append(audio, seg) },
		OnComplete: func() { completed = true },
	})

	r.Route(BinaryFrame([]byte("queued")))
	r.Route(TextFrame("STREAM_COMPLETE"))

	if !completed || !r.Complete() {
		t.Fatal("expected completion to be signalled")
	}
	// The marker must not have touched routed audio
	if len(audio) != 1 {
		t.Fatalf("expected queued audio untouched, got %d segments", len(audio))
	}
}

func TestUnknownTextIgnored(t *testing.T) {
	errs := 0
	r := NewRouter(RouterOptions{
		OnError: func(string) { errs++ },
	})

	r.Route(TextFrame("HEARTBEAT"))
	r.Route(TextFrame("x"))

	if errs != 0 {
		t.Fatalf("unknown frames must not surface as errors, got %d", errs)
	}
	if r.Transcript() != "" || r.Translation() != "" {
		t.Fatal("unknown frames must not touch accumulators")
	}
}

func TestErrorFrameSurfaced(t *testing.T) {
	var got string
	r := NewRouter(RouterOptions{
		OnError: func(msg string) { got = msg },
	})
	r.Route(TextFrame("ERROR:speech service unavailable"))
	if got != "speech service unavailable" {
		t.Fatalf("expected error payload, got %q", got)
	}
}

func TestReset(t *testing.T) {
	r := NewRouter(RouterOptions{})
	r.Route(TextFrame("TRANSCRIPT:old"))
	r.Route(TextFrame("STREAM_COMPLETE"))
	r.Reset()
	if r.Transcript() != "" || r.Complete() {
		t.Fatal("expected reset to clear accumulated state")
	}
}
