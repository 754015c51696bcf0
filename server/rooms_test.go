package voxserv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxlate/voxlate/config"
)

func newTestStore(t *testing.T) *RoomStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.db")
	store, err := OpenRoomStore(context.Background(), path, slog.Default())
	if err != nil {
		t.Fatalf("failed to open room store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.RoomsDBPath = filepath.Join(t.TempDir(), "rooms.db")
	cfg.Pipeline.UtteranceWindowMs = 1 // tiny window so a single segment triggers processing
	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	t.Cleanup(func() { s.store.Close() })
	return s
}

func TestRoomStoreUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := RoomRecord{RoomID: "demo", VoiceModel: "Chirp3-HD", VoiceGender: "FEMALE", VoicePrompt: "warm"}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	got, err := store.Get(ctx, "demo")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if *got != rec {
		t.Fatalf("got %+v, expected %+v", got, rec)
	}

	// Upsert on an existing id replaces the voice configuration
	rec.VoiceGender = "MALE"
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	got, err = store.Get(ctx, "demo")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got.VoiceGender != "MALE" {
		t.Fatalf("expected replaced gender, got %s", got.VoiceGender)
	}
}

func TestRoomStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomAPICreateAndFetch(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(RoomRecord{RoomID: "demo", VoiceModel: "Chirp3-HD", VoiceGender: "FEMALE"})
	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create returned status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/rooms/demo")
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch returned status %d", resp.StatusCode)
	}
	var rec RoomRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}
	if rec.RoomID != "demo" || rec.VoiceModel != "Chirp3-HD" || rec.VoiceGender != "FEMALE" {
		t.Fatalf("unexpected room %+v", rec)
	}
}

func TestRoomAPIGeneratesID(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(RoomRecord{VoiceModel: "Standard", VoiceGender: "NEUTRAL"})
	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	defer resp.Body.Close()
	var rec RoomRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}
	if rec.RoomID == "" {
		t.Fatal("expected a generated room id")
	}
}

func TestRoomAPIValidation(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(RoomRecord{RoomID: "demo"})
	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing voice settings, got %d", resp.StatusCode)
	}
}

func TestStartClosesStoreOnListenFailure(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Bind = "127.0.0.1:-1"

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected listen failure")
	}

	_, err := s.store.Get(context.Background(), "any")
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("expected closed store, got %v", err)
	}
}

func TestRoomAPINotFound(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/rooms/missing")
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
