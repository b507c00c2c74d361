// Package config loads the bridge configuration from the environment and an
// optional .env file. It is read once at startup.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	apperrors "github.com/sebbywestside/exercise-monitoring-vest/internal/errors"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/logging"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Host   string `env:"HOST" default:"localhost"`
	Port   int    `env:"PORT" default:"8765"`

	SyntheticMode  bool          `env:"SYNTHETIC_MODE" default:"true"`
	UpdateInterval time.Duration `env:"UPDATE_INTERVAL" default:"1s"`
	SyntheticCycle time.Duration `env:"SYNTHETIC_CYCLE" default:"600s"`
	ProfileFile    string        `env:"PROFILE_FILE"`

	SerialPort        string        `env:"SERIAL_PORT" default:"/dev/ttyUSB0"`
	BaudRate          int           `env:"BAUD_RATE" default:"115200"`
	SerialReadTimeout time.Duration `env:"SERIAL_READ_TIMEOUT" default:"1s"`
	SerialRetryDelay  time.Duration `env:"SERIAL_RETRY_DELAY" default:"5s"`

	AllowedOrigin        string  `env:"ALLOWED_ORIGIN"`
	MaxConnections       int64   `env:"MAX_CONNECTIONS" default:"1000"`
	MaxConnectionsPerIP  int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionsPerSecond float64 `env:"CONNECTIONS_PER_SECOND" default:"10"`
	ConnectionBurst      int     `env:"CONNECTION_BURST" default:"20"`

	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" default:"vest:telemetry"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, apperrors.ConfigError("failed to load environment variables", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AllowedOrigins splits ALLOWED_ORIGIN on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	invalid := func(name string, value any, why string) error {
		return apperrors.ConfigError(fmt.Sprintf("%s %s", name, why), nil).WithContext("value", value)
	}

	switch cfg.AppEnv {
	case "development", "production":
	default:
		return invalid("APP_ENV", cfg.AppEnv, "must be development or production")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return invalid("PORT", cfg.Port, "must be between 1 and 65535")
	}
	if cfg.UpdateInterval <= 0 {
		return invalid("UPDATE_INTERVAL", cfg.UpdateInterval, "must be positive")
	}
	if cfg.SyntheticCycle < time.Second {
		return invalid("SYNTHETIC_CYCLE", cfg.SyntheticCycle, "must be at least 1s")
	}
	if !cfg.SyntheticMode {
		if cfg.SerialPort == "" {
			return invalid("SERIAL_PORT", cfg.SerialPort, "is required when SYNTHETIC_MODE is false")
		}
		if cfg.BaudRate <= 0 {
			return invalid("BAUD_RATE", cfg.BaudRate, "must be positive")
		}
	}
	if cfg.SerialReadTimeout <= 0 {
		return invalid("SERIAL_READ_TIMEOUT", cfg.SerialReadTimeout, "must be positive")
	}
	if cfg.SerialRetryDelay <= 0 {
		return invalid("SERIAL_RETRY_DELAY", cfg.SerialRetryDelay, "must be positive")
	}
	if cfg.MaxConnections < 1 {
		return invalid("MAX_CONNECTIONS", cfg.MaxConnections, "must be at least 1")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return invalid("MAX_CONNECTIONS_PER_IP", cfg.MaxConnectionsPerIP, "must be at least 1")
	}
	if cfg.ConnectionsPerSecond <= 0 || cfg.ConnectionBurst < 1 {
		return invalid("CONNECTIONS_PER_SECOND", cfg.ConnectionsPerSecond, "and CONNECTION_BURST must be positive")
	}
	if cfg.RedisURL != "" && cfg.RedisChannel == "" {
		return invalid("REDIS_CHANNEL", cfg.RedisChannel, "is required when REDIS_URL is set")
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return invalid("LOG_LEVEL", cfg.LogLevel, "must be debug, info, warn or error")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return invalid("LOG_FORMAT", cfg.LogFormat, "must be text or json")
	}

	return nil
}
