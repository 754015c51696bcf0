package voxserv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRoomNotFound indicates no room configuration exists for the id.
var ErrRoomNotFound = errors.New("room not found")

// RoomRecord is the persisted voice configuration for one room, set by the
// admin surface and read by joining listeners.
type RoomRecord struct {
	RoomID      string `json:"roomId"`
	VoiceModel  string `json:"voiceModel"`
	VoiceGender string `json:"voiceGender"`
	VoicePrompt string `json:"voicePrompt"`
}

// RoomStore is the SQLite-backed room configuration store behind the
// /api/rooms surface.
type RoomStore struct {
	db  *sql.DB
	log *slog.Logger
}

func OpenRoomStore(ctx context.Context, path string, log *slog.Logger) (*RoomStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &RoomStore{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RoomStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    voice_model TEXT NOT NULL,
    voice_gender TEXT NOT NULL,
    voice_prompt TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Upsert creates the room or replaces its voice configuration.
func (s *RoomStore) Upsert(ctx context.Context, rec RoomRecord) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rooms (id, voice_model, voice_gender, voice_prompt, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    voice_model = excluded.voice_model,
    voice_gender = excluded.voice_gender,
    voice_prompt = excluded.voice_prompt,
    updated_at = excluded.updated_at
`, rec.RoomID, rec.VoiceModel, rec.VoiceGender, rec.VoicePrompt, now, now)
	if err != nil {
		return fmt.Errorf("upsert room: %w", err)
	}
	s.log.Info("Room configuration saved",
		"roomId", rec.RoomID,
		"voiceModel", rec.VoiceModel,
		"voiceGender", rec.VoiceGender)
	return nil
}

func (s *RoomStore) Get(ctx context.Context, roomID string) (*RoomRecord, error) {
	var rec RoomRecord
	var prompt sql.NullString
	err := s.db.QueryRowContext(ctx, `
SELECT id, voice_model, voice_gender, voice_prompt FROM rooms WHERE id = ?
`, roomID).Scan(&rec.RoomID, &rec.VoiceModel, &rec.VoiceGender, &prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query room: %w", err)
	}
	rec.VoicePrompt = prompt.String
	return &rec, nil
}

func (s *RoomStore) Close() error {
	return s.db.Close()
}
