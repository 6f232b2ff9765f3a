// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	// RequestTimeout bounds handler work. It stays below WriteTimeout so a
	// timed-out request still has time to write its error response.
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL              string        `yaml:"url"`
	MaxConns         int32         `yaml:"max_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	LockTimeout      time.Duration `yaml:"lock_timeout"`
	StatsInterval    time.Duration `yaml:"stats_interval"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type RedemptionConfig struct {
	CheckLimit  int           `yaml:"check_limit"`  // pass code lookups per merchant per window
	CheckWindow time.Duration `yaml:"check_window"` // fixed window length
}

type PasscodeConfig struct {
	MaxAttempts int `yaml:"max_attempts"` // collision retries per issuance
}

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Redemption RedemptionConfig `yaml:"redemption"`
	Passcode   PasscodeConfig   `yaml:"passcode"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes YAML, applies defaults and validates required fields.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 15*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, requestTimeoutFor(cfg.HTTP.WriteTimeout))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Database.StatementTimeout = orDefault(cfg.Database.StatementTimeout, 5*time.Second)
	cfg.Database.LockTimeout = orDefault(cfg.Database.LockTimeout, 2*time.Second)
	cfg.Database.StatsInterval = orDefault(cfg.Database.StatsInterval, 15*time.Second)
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, time.Hour)
	if cfg.Redemption.CheckLimit <= 0 {
		cfg.Redemption.CheckLimit = 30
	}
	cfg.Redemption.CheckWindow = orDefault(cfg.Redemption.CheckWindow, time.Minute)
	if cfg.Passcode.MaxAttempts <= 0 {
		cfg.Passcode.MaxAttempts = 5
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.HTTP.RequestTimeout >= cfg.HTTP.WriteTimeout {
		return nil, fmt.Errorf("http.request_timeout (%s) must be shorter than http.write_timeout (%s)", cfg.HTTP.RequestTimeout, cfg.HTTP.WriteTimeout)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// requestTimeoutFor leaves a two second margin under the write deadline, or
// half of it for very short deadlines.
func requestTimeoutFor(write time.Duration) time.Duration {
	if write > 4*time.Second {
		return write - 2*time.Second
	}
	return write / 2
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
