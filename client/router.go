package voxcli

import (
	"log/slog"
	"strings"
	"sync"
)

// Wire protocol control tags. Text frames carry exactly one of these;
// everything else arrives as binary audio.
const (
	prefixTranscript  = "TRANSCRIPT:"
	prefixTranslation = "TRANSLATION:"
	prefixError       = "ERROR:"

	// SentinelStreamComplete marks backend processing done for the current
	// utterance. It does not close the connection and must not clear any
	// queued audio.
	SentinelStreamComplete = "STREAM_COMPLETE"

	// SentinelEndOfAudio is the outbound marker for capture exhaustion.
	SentinelEndOfAudio = "END_OF_AUDIO"
)

type ControlKind int

const (
	ControlUnknown ControlKind = iota
	ControlTranscript
	ControlTranslation
	ControlStreamComplete
	ControlError
)

// Control is the tagged-union form of one inbound text frame.
type Control struct {
	Kind    ControlKind
	Payload string
}

// ParseControl classifies a text frame by its prefix tag. Unrecognized text
// parses as ControlUnknown and is routed nowhere.
func ParseControl(s string) Control {
	switch {
	case strings.HasPrefix(s, prefixTranscript):
		return Control{Kind: ControlTranscript, Payload: strings.TrimPrefix(s, prefixTranscript)}
	case strings.HasPrefix(s, prefixTranslation):
		return Control{Kind: ControlTranslation, Payload: strings.TrimPrefix(s, prefixTranslation)}
	case s == SentinelStreamComplete:
		return Control{Kind: ControlStreamComplete}
	case strings.HasPrefix(s, prefixError):
		return Control{Kind: ControlError, Payload: strings.TrimPrefix(s, prefixError)}
	}
	return Control{Kind: ControlUnknown, Payload: s}
}

// Router classifies inbound frames and dispatches them: binary audio goes to
// the playback sink, transcript and translation text accumulate into running
// strings (an utterance may span several frames), STREAM_COMPLETE and ERROR:
// fire their callbacks.
type Router struct {
	mu          sync.Mutex
	transcript  string
	translation string
	complete    bool

	audio      func(segment []byte)
	onText     func() // fired after either accumulator changes
	onComplete func()
	onError    func(msg string)
}

type RouterOptions struct {
	Audio      func(segment []byte)
	OnText     func()
	OnComplete func()
	OnError    func(msg string)
}

func NewRouter(opts RouterOptions) *Router {
	return &Router{
		audio:      opts.Audio,
		onText:     opts.OnText,
		onComplete: opts.OnComplete,
		onError:    opts.OnError,
	}
}

// SetCallbacks replaces the router's callbacks. Like the connection's
// handler slot, the latest registration wins; a nil Audio keeps the sink set
// at construction.
func (r *Router) SetCallbacks(opts RouterOptions) {
	r.mu.Lock()
	if opts.Audio != nil {
		r.audio = opts.Audio
	}
	r.onText = opts.OnText
	r.onComplete = opts.OnComplete
	r.onError = opts.OnError
	r.mu.Unlock()
}

// Route dispatches one inbound frame. Frames must be routed in arrival order;
// the Conn read loop guarantees that when Route is its handler.
func (r *Router) Route(f Frame) {
	if f.Binary {
		r.mu.Lock()
		audio := r.audio
		r.mu.Unlock()
		if audio != nil {
			audio(f.Data)
		}
		return
	}

	ctl := ParseControl(f.Text())
	switch ctl.Kind {
	case ControlTranscript:
		r.mu.Lock()
		r.transcript = appendChunk(r.transcript, ctl.Payload)
		onText := r.onText
		r.mu.Unlock()
		if onText != nil {
			onText()
		}
	case ControlTranslation:
		r.mu.Lock()
		r.translation = appendChunk(r.translation, ctl.Payload)
		onText := r.onText
		r.mu.Unlock()
		if onText != nil {
			onText()
		}
	case ControlStreamComplete:
		r.mu.Lock()
		r.complete = true
		onComplete := r.onComplete
		r.mu.Unlock()
		slog.Debug("Backend stream complete")
		if onComplete != nil {
			onComplete()
		}
	case ControlError:
		r.mu.Lock()
		onError := r.onError
		r.mu.Unlock()
		slog.Warn("Backend reported error", "message", ctl.Payload)
		if onError != nil {
			onError(ctl.Payload)
		}
	default:
		slog.Debug("Ignoring unrecognized text frame", "text", ctl.Payload)
	}
}

// appendChunk joins successive payload chunks with a single space, trimming
// each chunk so the result is identical regardless of chunk boundaries.
func appendChunk(acc, chunk string) string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return acc
	}
	if acc == "" {
		return chunk
	}
	return acc + " " + chunk
}

func (r *Router) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript
}

func (r *Router) Translation() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.translation
}

func (r *Router) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete
}

// Reset clears the accumulated text for a fresh utterance, as the room pages
// do before reconnecting or restarting capture.
func (r *Router) Reset() {
	r.mu.Lock()
	r.transcript = ""
	r.translation = ""
	r.complete = false
	r.mu.Unlock()
}
