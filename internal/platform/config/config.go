package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"10000"`
	AdminPort string `env:"ADMIN_PORT" default:"9090"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	IdentityBackend  string `env:"IDENTITY_BACKEND" default:"file"`
	IdentityFile     string `env:"IDENTITY_FILE" default:"ip_to_uuid.json"`
	RedisURL         string `env:"REDIS_URL"`
	RedisIdentityKey string `env:"REDIS_IDENTITY_KEY" default:"chatrelay:identities"`
	DatabaseURL      string `env:"DATABASE_URL"`
	BadgerPath       string `env:"BADGER_PATH" default:"data/identities"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRatePerSecond float64 `env:"CONNECTION_RATE_PER_SECOND" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"20"`

	MaxMessageBytes int64  `env:"MAX_MESSAGE_BYTES" default:"1048576"`
	SendBufferSize  int    `env:"SEND_BUFFER_SIZE" default:"64"`
	ExcludeSender   bool   `env:"EXCLUDE_SENDER" default:"false"`
	AllowedOrigins  string `env:"ALLOWED_ORIGINS"`
}

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

// Origins returns the configured origin allow-list. Empty means any origin.
func (c *Config) Origins() []string {
	return strings.FieldsFunc(c.AllowedOrigins, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func validate(cfg *Config) error {
	if cfg.Port == "" {
		return errors.New("PORT is required")
	}

	switch cfg.IdentityBackend {
	case BackendFile:
		if cfg.IdentityFile == "" {
			return errors.New("IDENTITY_FILE is required for the file backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendBadger:
		if cfg.BadgerPath == "" {
			return errors.New("BADGER_PATH is required for the badger backend")
		}
	default:
		return fmt.Errorf("IDENTITY_BACKEND must be one of file, redis, postgres, badger, got %q", cfg.IdentityBackend)
	}

	positive := map[string]float64{
		"MAX_WEBSOCKET_CONNECTIONS":  float64(cfg.MaxWebSocketConnections),
		"MAX_CONNECTIONS_PER_IP":     float64(cfg.MaxConnectionsPerIP),
		"CONNECTION_RATE_PER_SECOND": cfg.ConnectionRatePerSecond,
		"CONNECTION_BURST":           float64(cfg.ConnectionBurst),
		"MAX_MESSAGE_BYTES":          float64(cfg.MaxMessageBytes),
		"SEND_BUFFER_SIZE":           float64(cfg.SendBufferSize),
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}
