package voxcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSpeaker  Role = "speaker"
	RoleListener Role = "listener"
)

// ErrConfigUnresolved blocks a listener from connecting before its room
// configuration has resolved: the voice parameters are required parts of the
// connection URL.
var ErrConfigUnresolved = errors.New("room config not resolved")

// Defaults applied when a speaker session does not carry voice settings,
// matching the backend's own parameter defaults.
const (
	defaultVoiceModel  = "Standard"
	defaultVoiceGender = "NEUTRAL"
	defaultSourceLang  = "en-US"
	defaultTargetLang  = "es-ES"
)

// Params configures one session. ServerURL is the WebSocket base
// (ws://host:port) and APIURL the REST base (http://host:port) of the room
// store.
type Params struct {
	ServerURL   string
	APIURL      string
	RoomID      string
	SourceLang  string
	TargetLang  string
	InsecureTLS bool
}

// Session is one participant's end-to-end streaming context: role, room,
// languages, one connection, one frame router, and (for listeners) one
// playback queue. Sessions are never shared across participants.
type Session struct {
	ID     uuid.UUID
	Role   Role
	params Params

	conn   *Conn
	router *Router
	sched  *Scheduler

	mu          sync.Mutex
	room        *RoomConfig
	source      Source
	streaming   bool
	captureDone chan struct{}
}

// NewSpeakerSession prepares a broadcast session. The speaker does not need
// the room's voice configuration; its own frames carry default voice params.
func NewSpeakerSession(p Params) *Session {
	s := &Session{
		ID:     uuid.New(),
		Role:   RoleSpeaker,
		params: withLangDefaults(p),
	}
	s.conn = NewConn(p.InsecureTLS)
	s.router = NewRouter(RouterOptions{})
	s.conn.SetHandler(s.router.Route)
	return s
}

// NewListenerSession prepares a receive-only session. Segments received on
// the connection drain through the playback scheduler in arrival order.
func NewListenerSession(p Params, player Player) *Session {
	s := &Session{
		ID:     uuid.New(),
		Role:   RoleListener,
		params: withLangDefaults(p),
	}
	s.conn = NewConn(p.InsecureTLS)
	s.sched = NewScheduler(player)
	s.router = NewRouter(RouterOptions{
		Audio: s.sched.Enqueue,
	})
	s.conn.SetHandler(s.router.Route)
	return s
}

func withLangDefaults(p Params) Params {
	if p.SourceLang == "" {
		p.SourceLang = defaultSourceLang
	}
	if p.TargetLang == "" {
		p.TargetLang = defaultTargetLang
	}
	return p
}

// Router exposes the session's frame router so callers can hook text and
// error callbacks before connecting.
func (s *Session) Router() *Router { return s.router }

// Scheduler returns the listener's playback scheduler, nil for speakers.
func (s *Session) Scheduler() *Scheduler { return s.sched }

func (s *Session) Conn() *Conn { return s.conn }

// Resolve fetches the room configuration. Listeners must resolve before
// Connect; resolution happens at most once per session.
func (s *Session) Resolve(ctx context.Context) error {
	s.mu.Lock()
	if s.room != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	cfg, err := ResolveRoom(ctx, s.params.APIURL, s.params.RoomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.room = cfg
	s.mu.Unlock()
	return nil
}

// URL computes the connection URL from the session parameters. Voice settings
// come from the resolved room config for listeners and defaults for speakers.
func (s *Session) URL() string {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()

	voice, gender, prompt := defaultVoiceModel, defaultVoiceGender, ""
	if room != nil {
		voice, gender, prompt = room.VoiceModel, room.VoiceGender, room.VoicePrompt
	}

	q := url.Values{}
	q.Set("roomId", s.params.RoomID)
	q.Set("role", string(s.Role))
	q.Set("source", s.params.SourceLang)
	q.Set("target", s.params.TargetLang)
	q.Set("voice", voice)
	q.Set("gender", gender)
	q.Set("prompt", prompt)

	return fmt.Sprintf("%s/ws/translate?%s", s.params.ServerURL, q.Encode())
}

// Connect opens the session connection. A listener that has not resolved its
// room configuration is refused: no socket is opened.
func (s *Session) Connect(ctx context.Context) error {
	if s.Role == RoleListener {
		s.mu.Lock()
		resolved := s.room != nil
		s.mu.Unlock()
		if !resolved {
			return ErrConfigUnresolved
		}
	}
	return s.conn.Connect(ctx, s.URL())
}

// StartCapture begins streaming from src. The session must already be
// connected; captured segments are sent in capture order and the source's
// exhaustion emits exactly one END_OF_AUDIO frame.
func (s *Session) StartCapture(ctx context.Context, src Source) error {
	if s.Role != RoleSpeaker {
		return fmt.Errorf("only speaker sessions capture audio")
	}
	if s.conn.State() != StateOpen {
		return fmt.Errorf("cannot start capture: %w", ErrNotOpen)
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return fmt.Errorf("capture already running")
	}
	s.streaming = true
	s.source = src
	s.captureDone = make(chan struct{})
	s.mu.Unlock()

	s.router.Reset()

	if err := src.Start(ctx, s.sendSegment, s.endOfAudio); err != nil {
		s.mu.Lock()
		s.streaming = false
		s.source = nil
		close(s.captureDone)
		s.captureDone = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// StartMic begins live microphone capture.
func (s *Session) StartMic(ctx context.Context, deviceID int) error {
	return s.StartCapture(ctx, NewMicSource(deviceID))
}

// StreamFile broadcasts a WAV file at the live capture cadence.
func (s *Session) StreamFile(ctx context.Context, path string) error {
	return s.StartCapture(ctx, NewFileSource(path))
}

// RunFile broadcasts a WAV file and blocks until the run's terminal sentinel
// has been sent, so callers can stream files back to back without overlapping
// runs.
func (s *Session) RunFile(ctx context.Context, path string) error {
	if err := s.StreamFile(ctx, path); err != nil {
		return err
	}

	s.mu.Lock()
	done := s.captureDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.StopCapture()
		return ctx.Err()
	}
}

// StopCapture halts the active source. The device is released immediately;
// the source's end hook sends the END_OF_AUDIO sentinel.
func (s *Session) StopCapture() {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src != nil {
		src.Stop()
	}
}

func (s *Session) sendSegment(segment []byte) {
	if len(segment) == 0 {
		return
	}
	s.mu.Lock()
	streaming := s.streaming
	s.mu.Unlock()
	if !streaming {
		return
	}
	if err := s.conn.SendBinary(segment); err != nil {
		slog.Warn("Failed to send audio segment", "error", err, "bytes", len(segment))
	}
}

func (s *Session) endOfAudio() {
	// The sentinel goes out before the run is marked finished, so a waiter
	// released by RunFile can start the next run without racing it.
	if err := s.conn.SendText(SentinelEndOfAudio); err != nil {
		slog.Warn("Failed to send end-of-audio marker", "error", err)
	}

	s.mu.Lock()
	s.streaming = false
	s.source = nil
	done := s.captureDone
	s.captureDone = nil
	s.mu.Unlock()

	slog.Info("Capture finished", "sessionID", s.ID)
	if done != nil {
		close(done)
	}
}

// Streaming reports whether a capture source is active.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Transcript returns the accumulated source-language text.
func (s *Session) Transcript() string { return s.router.Transcript() }

// Translation returns the accumulated translated text.
func (s *Session) Translation() string { return s.router.Translation() }

// Close tears the session down: capture stops, the connection closes, and the
// playback queue stops accepting new segments but keeps draining what it has.
func (s *Session) Close() {
	s.StopCapture()
	s.conn.Disconnect()
	if s.sched != nil {
		s.sched.Close()
	}
}
