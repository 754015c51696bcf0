package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the dev backend settings. Values come from defaults, then an
// optional YAML file, then VOXLATE_* environment overrides.
type Config struct {
	Bind        string           `yaml:"bind"`
	RoomsDBPath string           `yaml:"rooms_db_path"`
	LogLevel    string           `yaml:"log_level"`
	Recordings  RecordingsConfig `yaml:"recordings"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
}

type RecordingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type PipelineConfig struct {
	// UtteranceWindowMs is how much buffered audio triggers an incremental
	// transcript emission before the stream flush.
	UtteranceWindowMs int `yaml:"utterance_window_ms"`
	// SynthToneHz is the stub synthesizer's tone frequency.
	SynthToneHz float64 `yaml:"synth_tone_hz"`
	// SynthSegmentMs is the duration of each synthesized playback segment.
	SynthSegmentMs int `yaml:"synth_segment_ms"`
}

func Default() *Config {
	return &Config{
		Bind:        ":8080",
		RoomsDBPath: "data/rooms.db",
		LogLevel:    "info",
		Recordings: RecordingsConfig{
			Enabled: false,
			Dir:     "recordings",
		},
		Pipeline: PipelineConfig{
			UtteranceWindowMs: 2000,
			SynthToneHz:       440,
			SynthSegmentMs:    300,
		},
	}
}

// Load reads path when non-empty, falling back to defaults, and applies
// environment overrides last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VOXLATE_BIND"); v != "" {
		cfg.Bind = v
	}
	if v := os.Getenv("VOXLATE_ROOMS_DB_PATH"); v != "" {
		cfg.RoomsDBPath = v
	}
	if v := os.Getenv("VOXLATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VOXLATE_RECORDINGS_ENABLED"); v != "" {
		cfg.Recordings.Enabled = parseBool(v)
	}
	if v := os.Getenv("VOXLATE_RECORDINGS_DIR"); v != "" {
		cfg.Recordings.Dir = v
	}
	if v := os.Getenv("VOXLATE_UTTERANCE_WINDOW_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.UtteranceWindowMs = n
		}
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	if c.Bind == "" {
		return fmt.Errorf("bind address must not be empty")
	}
	if c.RoomsDBPath == "" {
		return fmt.Errorf("rooms_db_path must not be empty")
	}
	if c.Pipeline.UtteranceWindowMs <= 0 {
		return fmt.Errorf("utterance_window_ms must be positive")
	}
	if c.Pipeline.SynthSegmentMs <= 0 {
		return fmt.Errorf("synth_segment_ms must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
