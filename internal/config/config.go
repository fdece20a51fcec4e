package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvLookup abstracts environment access so tests can inject values.
type EnvLookup func(key string) (string, bool)

// DefaultEnvLookup reads from the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

const (
	defaultChatAPIURL    = "http://127.0.0.1:6060/api/chat"
	defaultWidgetBaseURL = "http://127.0.0.1:3003"
	defaultCookieName    = "cw_session"
	defaultSessionSecret = "development-session-secret-change-me"
	defaultMaxAgeDays    = 30
	defaultPort          = "8080"

	minSecretLength = 16
)

// Config holds the proxy runtime configuration, sourced from the environment.
type Config struct {
	Environment string
	Port        string

	ChatAPIURL     string
	WidgetBaseURL  string
	AllowedOrigins []string

	SessionCookieName string
	SessionSecret     string
	SessionMaxAge     time.Duration

	RateLimitWindow  time.Duration
	RateLimitCeiling int

	ServerMemoryEnabled bool
	RedisURL            string
	RedisToken          string

	// StreamTimeout bounds one upstream chat stream end to end, including
	// the inspector drain after the client has gone away.
	StreamTimeout time.Duration

	LogPII bool
}

// IsProduction reports whether the proxy runs in a production-like environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load builds a Config from the environment and validates it. A missing or
// weak session secret in production is a load error, never a request-time one.
func Load(lookup EnvLookup) (*Config, error) {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}

	cfg := &Config{
		Environment:       "development",
		Port:              defaultPort,
		ChatAPIURL:        defaultChatAPIURL,
		WidgetBaseURL:     defaultWidgetBaseURL,
		SessionCookieName: defaultCookieName,
		SessionMaxAge:     defaultMaxAgeDays * 24 * time.Hour,
		RateLimitWindow:   5 * time.Minute,
		RateLimitCeiling:  45,
		StreamTimeout:     5 * time.Minute,
	}

	if value, ok := lookup("ENVIRONMENT"); ok && value != "" {
		cfg.Environment = strings.TrimSpace(value)
	}
	if value, ok := lookup("PORT"); ok && value != "" {
		cfg.Port = strings.TrimSpace(value)
	}

	explicitChatURL := false
	if value, ok := lookup("CHAT_API_URL"); ok && strings.TrimSpace(value) != "" {
		cfg.ChatAPIURL = strings.TrimSpace(value)
		explicitChatURL = true
	}
	if value, ok := lookup("WIDGET_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		cfg.WidgetBaseURL = strings.TrimSpace(value)
	}
	if value, ok := lookup("ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitOrigins(value)
	}

	if value, ok := lookup("SESSION_COOKIE_NAME"); ok && strings.TrimSpace(value) != "" {
		cfg.SessionCookieName = strings.TrimSpace(value)
	}
	explicitSecret := false
	if value, ok := lookup("SESSION_COOKIE_SECRET"); ok && strings.TrimSpace(value) != "" {
		cfg.SessionSecret = strings.TrimSpace(value)
		explicitSecret = true
	}
	if value, ok := lookup("SESSION_COOKIE_MAX_AGE_DAYS"); ok && value != "" {
		days, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || days < 1 {
			return nil, fmt.Errorf("parse SESSION_COOKIE_MAX_AGE_DAYS: invalid value %q", value)
		}
		cfg.SessionMaxAge = time.Duration(days) * 24 * time.Hour
	}

	if value, ok := lookup("SERVER_MEMORY_ENABLED"); ok && value != "" {
		parsed, err := parseBoolEnv(value)
		if err != nil {
			return nil, fmt.Errorf("parse SERVER_MEMORY_ENABLED: %w", err)
		}
		cfg.ServerMemoryEnabled = parsed
	}
	if value, ok := lookup("REDIS_URL"); ok {
		cfg.RedisURL = strings.TrimSpace(value)
	}
	if value, ok := lookup("REDIS_TOKEN"); ok {
		cfg.RedisToken = strings.TrimSpace(value)
	}

	if value, ok := lookup("LOG_PII"); ok && value != "" {
		parsed, err := parseBoolEnv(value)
		if err != nil {
			return nil, fmt.Errorf("parse LOG_PII: %w", err)
		}
		cfg.LogPII = parsed
	}

	if cfg.IsProduction() {
		if !explicitChatURL {
			return nil, fmt.Errorf("CHAT_API_URL must be configured in production")
		}
		if !explicitSecret {
			return nil, fmt.Errorf("SESSION_COOKIE_SECRET must be configured in production")
		}
	}
	if !explicitSecret {
		cfg.SessionSecret = defaultSessionSecret
	}
	if len(cfg.SessionSecret) < minSecretLength {
		return nil, fmt.Errorf("SESSION_COOKIE_SECRET must be at least %d characters", minSecretLength)
	}

	return cfg, nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func parseBoolEnv(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", value)
}
