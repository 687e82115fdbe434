// Package config loads the mentor server configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings for the mentor server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// CORSAllowedOrigins is the exact-match origin allowlist. Empty means
	// no cross-origin browser access.
	CORSAllowedOrigins map[string]struct{}

	// ChatRatePerMinute caps POST /api/chat requests per client IP.
	ChatRatePerMinute int

	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64

	// ShutdownTimeout bounds graceful shutdown on SIGTERM.
	ShutdownTimeout time.Duration

	// GeminiAPIKey enables the chat mentor. Empty disables /api/chat.
	GeminiAPIKey string
	GeminiModel  string

	// ElevenLabsAPIKey and ElevenLabsAgentID enable the voice relay.
	ElevenLabsAPIKey  string
	ElevenLabsAgentID string

	// DatabaseURL selects the postgres session store; empty falls back to
	// the in-memory store.
	DatabaseURL string

	// SessionTTL is how long an idle session survives before cleanup.
	SessionTTL time.Duration

	// SessionMaxHistory caps conversation turns kept per session.
	SessionMaxHistory int

	// LogLevel is debug, info, warn or error. LogFormat is text or json.
	LogLevel  string
	LogFormat string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:               ":8080",
		CORSAllowedOrigins: map[string]struct{}{},
		ChatRatePerMinute:  10,
		MaxBodyBytes:       1 << 20,
		ShutdownTimeout:    10 * time.Second,
		GeminiModel:        "gemini-2.5-flash",
		SessionTTL:         24 * time.Hour,
		SessionMaxHistory:  20,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// LoadFromEnv builds a Config from environment variables on top of the
// defaults.
func LoadFromEnv() (Config, error) {
	cfg := Default()

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return cfg, fmt.Errorf("config: PORT must be numeric, got %q", port)
		}
		cfg.Addr = ":" + port
	}
	cfg.Addr = envOr("ADDR", cfg.Addr)

	for _, origin := range splitCSV(os.Getenv("ALLOWED_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	var err error
	if cfg.ChatRatePerMinute, err = envIntOr("RATE_LIMIT_FREE_TIER", cfg.ChatRatePerMinute); err != nil {
		return cfg, err
	}
	if cfg.MaxBodyBytes, err = envInt64Or("MAX_BODY_BYTES", cfg.MaxBodyBytes); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = envDurationOr("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = envDurationOr("SESSION_TTL", cfg.SessionTTL); err != nil {
		return cfg, err
	}
	if cfg.SessionMaxHistory, err = envIntOr("SESSION_MAX_HISTORY", cfg.SessionMaxHistory); err != nil {
		return cfg, err
	}

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.GeminiModel = envOr("GEMINI_MODEL", cfg.GeminiModel)
	cfg.ElevenLabsAPIKey = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	cfg.ElevenLabsAgentID = strings.TrimSpace(os.Getenv("ELEVENLABS_AGENT_ID"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(envOr("LOG_FORMAT", cfg.LogFormat))

	return cfg, cfg.Validate()
}

// Validate checks value ranges. Missing provider credentials are not errors
// here; the affected endpoints degrade at runtime instead.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("config: addr is required")
	}
	if c.ChatRatePerMinute <= 0 {
		return fmt.Errorf("config: chat rate limit must be positive, got %d", c.ChatRatePerMinute)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session ttl must be positive, got %s", c.SessionTTL)
	}
	if c.SessionMaxHistory <= 0 {
		return fmt.Errorf("config: session max history must be positive, got %d", c.SessionMaxHistory)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid log format %q", c.LogFormat)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

func envInt64Or(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

func envDurationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("config: %s must be a duration, got %q", key, v)
	}
	return d, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
