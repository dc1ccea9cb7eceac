package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"calib-bridge/internal/models"
)

const (
	DefaultPort            = 55000
	DefaultReadTimeout     = 5 * time.Second
	DefaultShutdownTimeout = time.Second
	DefaultTickInterval    = 16 * time.Millisecond
	DefaultLogLevel        = "info"
)

var (
	ErrInvalidPort     = errors.New("port must be between 0 and 65535")
	ErrInvalidDuration = errors.New("duration must not be negative")
)

// fileConfig mirrors models.Config with durations spelled the way humans write them ("5s", "250ms").
type fileConfig struct {
	Host            string   `json:"host"`
	Port            *int     `json:"port"`
	ReadTimeout     string   `json:"read_timeout"`
	ShutdownTimeout string   `json:"shutdown_timeout"`
	TickInterval    string   `json:"tick_interval"`
	RateLimit       *float64 `json:"rate_limit"`
	RateBurst       *int     `json:"rate_burst"`
	LogLevel        string   `json:"log_level"`
	PrettyLogs      *bool    `json:"pretty_logs"`
}

// Default returns the configuration used when no file or flag overrides a value.
func Default() *models.Config {
	return &models.Config{
		Port:            DefaultPort,
		ReadTimeout:     DefaultReadTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		TickInterval:    DefaultTickInterval,
		LogLevel:        DefaultLogLevel,
		PrettyLogs:      true,
	}
}

// Load reads the server configuration from a JSON file on top of Default.
// A missing file is not an error; the defaults are returned instead.
func Load(path string) (*models.Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := fc.apply(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *models.Config) error {
	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"read_timeout", fc.ReadTimeout, &cfg.ReadTimeout},
		{"shutdown_timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"tick_interval", fc.TickInterval, &cfg.TickInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	if fc.RateLimit != nil {
		cfg.RateLimit = *fc.RateLimit
	}
	if fc.RateBurst != nil {
		cfg.RateBurst = *fc.RateBurst
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.PrettyLogs != nil {
		cfg.PrettyLogs = *fc.PrettyLogs
	}
	return nil
}

// Validate checks ranges and fills in defaults for values left at zero where zero is meaningless.
func Validate(cfg *models.Config) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, cfg.Port)
	}
	if cfg.ReadTimeout < 0 || cfg.ShutdownTimeout < 0 || cfg.TickInterval < 0 {
		return ErrInvalidDuration
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative: got %v", cfg.RateLimit)
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	return nil
}
