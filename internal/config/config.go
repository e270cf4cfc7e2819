// Package config loads client settings from the environment and an optional .env file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// STT providers
const (
	STTNone   = "none"
	STTGoogle = "google"
	STTMock   = "mock"
)

// Config holds client configuration
type Config struct {
	BackendURL     string
	WSURL          string
	RequestTimeout time.Duration

	ControlAddr   string
	ControlSecret string

	MicFile       string
	MicSampleRate int
	SpeakerFile   string
	CameraFile    string
	CameraEnabled bool
	FrameInterval time.Duration

	STTProvider string
	STTLanguage string

	MongoURI      string
	MongoDatabase string

	LogLevel string

	// EnvFileLoaded reports whether a .env file was found
	EnvFileLoaded bool
}

// Load reads the environment, after applying .env if present, and fills in defaults.
func Load() (Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv(os.Getenv)
	cfg.EnvFileLoaded = loaded
	return cfg, err
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		BackendURL:    strings.TrimRight(get("BACKEND_URL", "http://localhost:8000/api"), "/"),
		ControlAddr:   get("CONTROL_ADDR", "127.0.0.1:8090"),
		ControlSecret: getenv("CONTROL_SECRET"),
		MicFile:       get("MIC_FILE", ""),
		SpeakerFile:   get("SPEAKER_FILE", ""),
		CameraFile:    get("CAMERA_FILE", ""),
		STTProvider:   strings.ToLower(get("STT_PROVIDER", STTNone)),
		STTLanguage:   get("STT_LANGUAGE", "en-US"),
		MongoURI:      get("MONGODB_URI", ""),
		MongoDatabase: get("MONGODB_DATABASE", "mockmaster"),
		LogLevel:      strings.ToLower(get("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.WSURL, err = wsBase(get("WS_URL", ""), cfg.BackendURL); err != nil {
		return cfg, err
	}
	if cfg.MicSampleRate, err = strconv.Atoi(get("MIC_SAMPLE_RATE", "48000")); err != nil || cfg.MicSampleRate <= 0 {
		return cfg, fmt.Errorf("invalid MIC_SAMPLE_RATE %q", getenv("MIC_SAMPLE_RATE"))
	}
	if cfg.CameraEnabled, err = strconv.ParseBool(get("CAMERA_ENABLED", "false")); err != nil {
		return cfg, fmt.Errorf("invalid CAMERA_ENABLED: %w", err)
	}
	if cfg.FrameInterval, err = time.ParseDuration(get("FRAME_INTERVAL", "5s")); err != nil {
		return cfg, fmt.Errorf("invalid FRAME_INTERVAL: %w", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(get("REQUEST_TIMEOUT", "30s")); err != nil {
		return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	switch cfg.STTProvider {
	case STTNone, STTGoogle, STTMock:
	default:
		return cfg, fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider)
	}

	if cfg.ControlSecret == "" {
		if cfg.ControlSecret, err = randomSecret(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// wsBase returns the explicit WebSocket base or derives one from the backend host
func wsBase(explicit, backend string) (string, error) {
	if explicit != "" {
		return strings.TrimRight(explicit, "/"), nil
	}
	u, err := url.Parse(backend)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid BACKEND_URL %q", backend)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + u.Host, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate control secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
