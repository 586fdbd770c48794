package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if COURTSYNC_CONFIG is set
//  3. env (prefix COURTSYNC_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("COURTSYNC_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: COURTSYNC_ADDR, COURTSYNC_MAX_ROUND_TRIP_MS, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("COURTSYNC_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "courtsync_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Device != "handheld" && c.Device != "vision":
		return fmt.Errorf("%w: device must be handheld or vision, got %q", ErrInvalidConfig, c.Device)
	case c.RetryDelayMinMS > c.RetryDelayMaxMS:
		return fmt.Errorf("%w: retry_delay_min_ms exceeds retry_delay_max_ms", ErrInvalidConfig)
	case c.MaxSyncAttempts < 1:
		return fmt.Errorf("%w: max_sync_attempts must be positive", ErrInvalidConfig)
	}
	return nil
}
