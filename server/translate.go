package voxserv

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next frame from the peer
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	sentinelEndOfAudio = "END_OF_AUDIO"
	sentinelStreamDone = "STREAM_COMPLETE"
	prefixTranscript   = "TRANSCRIPT:"
	prefixTranslation  = "TRANSLATION:"
	prefixError        = "ERROR:"

	roleSpeaker  = "speaker"
	roleListener = "listener"
)

// wsSession is one participant's connection plus its query parameters.
// Writes are serialized per connection so text and binary frames reach the
// peer in emission order.
type wsSession struct {
	id     uuid.UUID
	roomID string
	role   string

	sourceLang  string
	targetLang  string
	voiceModel  string
	voiceGender string
	voicePrompt string

	conn    *websocket.Conn
	writeMu sync.Mutex

	// Buffered speaker audio for the current utterance window
	utterance []byte
}

func (s *wsSession) sendText(text string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		slog.Error("Failed to send text frame", "error", err, "sessionID", s.id)
	}
}

func (s *wsSession) sendBinary(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		slog.Error("Failed to send binary frame", "error", err, "sessionID", s.id)
	}
}

func (s *wsSession) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (sv *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sess := &wsSession{
		id:          uuid.New(),
		roomID:      q.Get("roomId"),
		role:        q.Get("role"),
		sourceLang:  q.Get("source"),
		targetLang:  q.Get("target"),
		voiceModel:  q.Get("voice"),
		voiceGender: q.Get("gender"),
		voicePrompt: q.Get("prompt"),
	}
	applyParamDefaults(sess)

	conn, err := sv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	sess.conn = conn

	sv.registry.Add(sess)
	slog.Info("Session connected",
		"sessionID", sess.id,
		"roomId", sess.roomID,
		"role", sess.role,
		"source", sess.sourceLang,
		"target", sess.targetLang)

	go sv.pingLoop(sess)
	sv.readLoop(sess)
}

func applyParamDefaults(s *wsSession) {
	if s.role == "" {
		s.role = roleSpeaker
	}
	if s.sourceLang == "" {
		s.sourceLang = "en-US"
	}
	if s.targetLang == "" {
		s.targetLang = "es-ES"
	}
	if s.voiceModel == "" {
		s.voiceModel = "Standard"
	}
	if s.voiceGender == "" {
		s.voiceGender = "NEUTRAL"
	}
}

func (sv *Server) pingLoop(sess *wsSession) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if err := sess.ping(); err != nil {
			return
		}
	}
}

func (sv *Server) readLoop(sess *wsSession) {
	defer func() {
		sv.registry.Remove(sess)
		sess.conn.Close()
		slog.Info("Session disconnected", "sessionID", sess.id, "roomId", sess.roomID)
	}()

	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	windowBytes := sv.utteranceWindowBytes()

	for {
		mt, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("WebSocket read error", "error", err, "sessionID", sess.id)
			}
			// Flush whatever the speaker had buffered before the drop
			if sess.role == roleSpeaker && len(sess.utterance) > 0 {
				sv.processUtterance(sess)
			}
			return
		}
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch mt {
		case websocket.BinaryMessage:
			if sess.role != roleSpeaker {
				continue
			}
			sess.utterance = append(sess.utterance, data...)
			if len(sess.utterance) >= windowBytes {
				sv.processUtterance(sess)
			}

		case websocket.TextMessage:
			if string(data) == sentinelEndOfAudio {
				slog.Info("End of audio", "sessionID", sess.id)
				if len(sess.utterance) > 0 {
					sv.processUtterance(sess)
				}
				sv.streamComplete(sess)
			}
			// Any other text frame is ignored
		}
	}
}

// processUtterance runs the buffered audio through the pipeline and fans the
// results out: transcript to the speaker, translation and synthesized audio
// to each listener in the room, per that listener's language and voice.
func (sv *Server) processUtterance(sess *wsSession) {
	pcm := sess.utterance
	sess.utterance = nil

	if sv.recorder != nil {
		if err := sv.recorder.Save(sess.id, pcm); err != nil {
			slog.Error("Failed to record utterance", "error", err, "sessionID", sess.id)
		}
	}

	transcript := sv.pipeline.Transcribe(pcm, sess.sourceLang)
	sess.sendText(prefixTranscript + transcript)

	for _, listener := range sv.registry.Listeners(sess.roomID) {
		translated := sv.pipeline.Translate(transcript, sess.sourceLang, listener.targetLang)
		listener.sendText(prefixTranslation + translated)

		synth, err := sv.pipeline.Synthesize(translated, listener.targetLang,
			listener.voiceModel, listener.voiceGender, listener.voicePrompt)
		if err != nil {
			slog.Error("Synthesis failed", "error", err, "sessionID", listener.id)
			listener.sendText(prefixError + "synthesis failed")
			continue
		}
		listener.sendBinary(synth)
	}
}

// streamComplete marks backend processing done for the utterance. Listeners
// keep their queued audio; the marker changes activity state only.
func (sv *Server) streamComplete(sess *wsSession) {
	sess.sendText(sentinelStreamDone)
	for _, listener := range sv.registry.Listeners(sess.roomID) {
		listener.sendText(sentinelStreamDone)
	}
}
