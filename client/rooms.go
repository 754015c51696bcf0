package voxcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// ErrRoomNotFound indicates the room store has no configuration for the
// requested room id.
var ErrRoomNotFound = errors.New("room not found")

// RoomConfig is the admin-set voice configuration a listener must fetch
// before joining: the connection URL cannot be built without it.
type RoomConfig struct {
	RoomID      string `json:"roomId"`
	VoiceModel  string `json:"voiceModel"`
	VoiceGender string `json:"voiceGender"`
	VoicePrompt string `json:"voicePrompt"`
}

// ResolveRoom fetches the room configuration from the external room store.
// Any failure (network, 404, malformed or incomplete body) blocks the join:
// no partial or guessed configuration is ever used.
func ResolveRoom(ctx context.Context, apiBase, roomID string) (*RoomConfig, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%s", apiBase, url.PathEscape(roomID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build room request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("room store returned status %d", resp.StatusCode)
	}

	var cfg RoomConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode room config: %w", err)
	}
	if cfg.VoiceModel == "" || cfg.VoiceGender == "" {
		return nil, fmt.Errorf("room config for %s is incomplete", roomID)
	}

	slog.Debug("Resolved room config",
		"roomId", roomID,
		"voiceModel", cfg.VoiceModel,
		"voiceGender", cfg.VoiceGender)
	return &cfg, nil
}
