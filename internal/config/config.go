package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Tuning holds the DSP constants of the segmentation pipeline. The
// defaults (32/800/640 ms, threshold 0.02) are tuned values, not
// truths; everything is configurable.
type Tuning struct {
	SampleRate   int     `yaml:"sample_rate"`
	FrameMS      int     `yaml:"frame_ms"`
	BufferMS     int     `yaml:"buffer_ms"`
	PauseMS      int     `yaml:"pause_ms"`
	VADThreshold float64 `yaml:"vad_threshold"`
	VADWindow    int     `yaml:"vad_window"`
}

// DefaultTuning returns the default pipeline parameters.
func DefaultTuning() Tuning {
	return Tuning{
		SampleRate:   16000,
		FrameMS:      32,
		BufferMS:     800,
		PauseMS:      640,
		VADThreshold: 0.02,
		VADWindow:    3,
	}
}

// FrameSamples is the per-frame sample count.
func (t Tuning) FrameSamples() int { return t.SampleRate * t.FrameMS / 1000 }

// BufferFrames is the pre-activation ring capacity, rounded up.
func (t Tuning) BufferFrames() int { return ceilDiv(t.BufferMS, t.FrameMS) }

// PauseFrames is the end-of-utterance silence run length, rounded up.
func (t Tuning) PauseFrames() int { return ceilDiv(t.PauseMS, t.FrameMS) }

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 1
	}
	return (a + b - 1) / b
}

// Config holds application configuration.
type Config struct {
	ServerURL      string
	AuthToken      string
	ChatID         string
	CharacterID    string
	HTTPAddress    string
	FFPlayPath     string
	MicCommand     string
	ReconnectDelay time.Duration
	MaxReconnects  int
	Tuning         Tuning
}

// Load reads environment variables (and an optional YAML tuning file
// named by COGNITIA_TUNING_FILE) and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	serverURL := os.Getenv("COGNITIA_SERVER_URL")
	if serverURL == "" {
		serverURL = "ws://localhost:8765/session"
	}
	token := os.Getenv("COGNITIA_AUTH_TOKEN")
	if token == "" {
		log.Println("Warning: COGNITIA_AUTH_TOKEN not set - authentication will fail")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8081"
	}

	cfg := Config{
		ServerURL:      serverURL,
		AuthToken:      token,
		ChatID:         os.Getenv("COGNITIA_CHAT_ID"),
		CharacterID:    os.Getenv("COGNITIA_CHARACTER_ID"),
		HTTPAddress:    addr,
		FFPlayPath:     os.Getenv("FFPLAY_PATH"),
		MicCommand:     os.Getenv("MIC_COMMAND"),
		ReconnectDelay: envDuration("RECONNECT_DELAY_MS", 2000) * time.Millisecond,
		MaxReconnects:  envInt("MAX_RECONNECTS", 5),
		Tuning:         DefaultTuning(),
	}

	if path := os.Getenv("COGNITIA_TUNING_FILE"); path != "" {
		t, err := loadTuning(path)
		if err != nil {
			log.Printf("tuning file %s ignored: %v", path, err)
		} else {
			cfg.Tuning = t
		}
	}

	log.Printf("config: server=%s http=%s frame=%dms buffer=%dms pause=%dms",
		cfg.ServerURL, cfg.HTTPAddress, cfg.Tuning.FrameMS, cfg.Tuning.BufferMS, cfg.Tuning.PauseMS)
	return cfg
}

// loadTuning parses a YAML tuning file; fields left zero fall back to
// the defaults.
func loadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t := DefaultTuning()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, err
	}
	d := DefaultTuning()
	if t.SampleRate <= 0 {
		t.SampleRate = d.SampleRate
	}
	if t.FrameMS <= 0 {
		t.FrameMS = d.FrameMS
	}
	if t.BufferMS <= 0 {
		t.BufferMS = d.BufferMS
	}
	if t.PauseMS <= 0 {
		t.PauseMS = d.PauseMS
	}
	if t.VADThreshold <= 0 {
		t.VADThreshold = d.VADThreshold
	}
	if t.VADWindow <= 0 {
		t.VADWindow = d.VADWindow
	}
	return t, nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("invalid %s=%q, using %d", key, os.Getenv(key), def)
	}
	return def
}

func envDuration(key string, def int) time.Duration {
	return time.Duration(envInt(key, def))
}
