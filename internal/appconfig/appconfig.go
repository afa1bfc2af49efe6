// Package appconfig turns env-backed string values into typed application settings
package appconfig

import (
	"log"
	"strings"
	"time"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
)

// Getter - то, что нужно от wbf/config
type Getter interface {
	GetString(key string) string
}

const (
	BackendMemory = "memory"
	BackendMinio  = "minio"
)

type Settings struct {
	AppPort          string
	GinMode          string
	LogLevel         string
	SegmentEndpoint  string
	SegmentTimeout   time.Duration
	Theme            model.Theme
	PreviewBackend   string
	PreviewKeyPrefix string
	SessionIdleTTL   time.Duration
	SessionSweepSpec string
	ShutdownTimeout  time.Duration
}

const (
	defaultPort             = "8080"
	defaultGinMode          = "release"
	defaultLogLevel         = "info"
	DefaultSegmentEndpoint  = "http://localhost:8000/api/segment"
	defaultPreviewKeyPrefix = "previews/"
	defaultSessionIdleTTL   = 30 * time.Minute
	defaultSessionSweepSpec = "@every 1m"
	defaultShutdownTimeout  = 10 * time.Second
)

func Load(cfg Getter) Settings {
	s := Settings{
		AppPort:          stringOr(cfg, "APP_PORT", defaultPort),
		GinMode:          stringOr(cfg, "GIN_MODE", defaultGinMode),
		LogLevel:         stringOr(cfg, "LOG_LEVEL", defaultLogLevel),
		SegmentEndpoint:  stringOr(cfg, "SEGMENT_ENDPOINT_URL", DefaultSegmentEndpoint),
		SegmentTimeout:   durationOr(cfg, "SEGMENT_TIMEOUT", 0),
		Theme:            model.ParseTheme(strings.ToLower(cfg.GetString("UI_THEME"))),
		PreviewBackend:   strings.ToLower(stringOr(cfg, "PREVIEW_BACKEND", BackendMemory)),
		PreviewKeyPrefix: stringOr(cfg, "PREVIEW_KEY_PREFIX", defaultPreviewKeyPrefix),
		SessionIdleTTL:   durationOr(cfg, "SESSION_IDLE_TTL", defaultSessionIdleTTL),
		SessionSweepSpec: stringOr(cfg, "SESSION_SWEEP_SPEC", defaultSessionSweepSpec),
		ShutdownTimeout:  durationOr(cfg, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	if s.PreviewBackend != BackendMemory && s.PreviewBackend != BackendMinio {
		log.Printf("Unknown preview backend %q. Using %q...", s.PreviewBackend, BackendMemory)
		s.PreviewBackend = BackendMemory
	}

	return s
}

func stringOr(cfg Getter, key, fallback string) string {
	if v := strings.TrimSpace(cfg.GetString(key)); v != "" {
		return v
	}
	return fallback
}

// durationOr также принимает голое число секунд
func durationOr(cfg Getter, key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(cfg.GetString(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	if d, err := time.ParseDuration(raw + "s"); err == nil && d >= 0 {
		return d
	}
	log.Printf("Incorrect duration %q for %s. Using default %v...", raw, key, fallback)
	return fallback
}
