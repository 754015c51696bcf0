package voxserv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/voxlate/voxlate/audio"
	"github.com/voxlate/voxlate/config"
)

// Server is the dev translation backend: the /ws/translate wire contract plus
// the /api/rooms configuration store.
type Server struct {
	cfg      *config.Config
	store    *RoomStore
	registry *Registry
	pipeline Pipeline
	recorder *Recorder
	upgrader websocket.Upgrader
	server   *http.Server
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, err := OpenRoomStore(ctx, cfg.RoomsDBPath, slog.Default())
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		registry: NewRegistry(),
		pipeline: NewStubPipeline(cfg.Pipeline),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dev backend, any origin may connect
			},
		},
	}
	if cfg.Recordings.Enabled {
		s.recorder = NewRecorder(cfg.Recordings.Dir)
	}
	return s, nil
}

// Handler builds the route table. Exposed separately so tests can mount it on
// an in-process listener.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/rooms", s.handleCreateRoom).Methods("POST")
	router.HandleFunc("/api/rooms/{roomId}", s.handleGetRoom).Methods("GET")
	router.HandleFunc("/ws/translate", s.handleTranslate)
	return router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.cfg.Bind,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Backend listening", "bind", s.cfg.Bind)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.store.Close()
		return err
	case <-ctx.Done():
	}

	slog.Debug("Backend shutting down")
	if err := s.server.Shutdown(context.Background()); err != nil {
		return err
	}
	return s.store.Close()
}

func (s *Server) utteranceWindowBytes() int {
	ms := s.cfg.Pipeline.UtteranceWindowMs
	return audio.SampleRate * audio.Channels * (audio.BitsPerSample / 8) * ms / 1000
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	rec, err := s.store.Get(r.Context(), roomID)
	if errors.Is(err, ErrRoomNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load room", "error", err, "roomId", roomID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var rec RoomRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if rec.VoiceModel == "" || rec.VoiceGender == "" {
		http.Error(w, "voiceModel and voiceGender are required", http.StatusBadRequest)
		return
	}
	if rec.RoomID == "" {
		rec.RoomID = uuid.New().String()
	}

	if err := s.store.Upsert(r.Context(), rec); err != nil {
		slog.Error("Failed to save room", "error", err, "roomId", rec.RoomID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}
