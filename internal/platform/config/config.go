package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv             string `env:"APP_ENV" default:"development"`
	Port               string `env:"PORT" default:"3000"`
	DatabaseURL        string `env:"DATABASE_URL"`
	RedisURL           string `env:"REDIS_URL"`
	AdminToken         string `env:"ADMIN_TOKEN"`
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`
	LogLevel           string `env:"LOG_LEVEL" default:"info"`
	LogFormat          string `env:"LOG_FORMAT" default:"text"`

	EngineURL            string        `env:"ENGINE_URL"`
	EngineAPIKey         string        `env:"ENGINE_API_KEY"`
	EnginePollInterval   time.Duration `env:"ENGINE_POLL_INTERVAL" default:"1s"`
	EngineStatusInterval time.Duration `env:"ENGINE_STATUS_INTERVAL" default:"15s"`
	EngineRequestTimeout time.Duration `env:"ENGINE_REQUEST_TIMEOUT" default:"30s"`

	LabelPollInterval time.Duration `env:"LABEL_POLL_INTERVAL" default:"2s"`
	LabelPollAttempts int           `env:"LABEL_POLL_ATTEMPTS" default:"5"`

	CredentialCacheTTL time.Duration `env:"CREDENTIAL_CACHE_TTL" default:"5m"`

	AdminRateLimit float64 `env:"ADMIN_RATE_LIMIT" default:"1"`
	AdminRateBurst int     `env:"ADMIN_RATE_BURST" default:"5"`

	ConnectMaxStreams      int `env:"CONNECT_MAX_STREAMS" default:"200"`
	ConnectMaxStreamsPerIP int `env:"CONNECT_MAX_STREAMS_PER_IP" default:"5"`
}

const minAdminTokenLength = 16

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	// checked in order so the reported variable is deterministic
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"ADMIN_TOKEN", cfg.AdminToken},
		{"ENGINE_URL", cfg.EngineURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.AdminToken) < minAdminTokenLength {
		return fmt.Errorf("ADMIN_TOKEN must be at least %d characters", minAdminTokenLength)
	}

	if u, err := url.Parse(cfg.EngineURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ENGINE_URL must be an absolute URL, got %q", cfg.EngineURL)
	}

	if cfg.TokenEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(cfg.TokenEncryptionKey)
		if err != nil {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	if cfg.LabelPollAttempts < 1 {
		return errors.New("LABEL_POLL_ATTEMPTS must be at least 1")
	}
	if cfg.ConnectMaxStreams < 0 || cfg.ConnectMaxStreamsPerIP < 0 {
		return errors.New("stream limits must not be negative")
	}
	if cfg.LabelPollInterval <= 0 || cfg.EnginePollInterval <= 0 || cfg.EngineStatusInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}

	return nil
}
