package config

import (
	"errors"
	"fmt"
)

// Valid privacy levels. "scheduled" is submitted to the API as private with
// a publish_at timestamp; the distinction only exists client-side.
var validPrivacy = map[string]bool{
	"private":   true,
	"unlisted":  true,
	"public":    true,
	"scheduled": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

const regionCodeLen = 2

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be debug, info, warn, or error, got %q", cfg.LogLevel))
	}

	if !validPrivacy[cfg.DefaultPrivacy] {
		errs = append(errs, fmt.Errorf("default_privacy: must be private, unlisted, public, or scheduled, got %q", cfg.DefaultPrivacy))
	}

	if len(cfg.Region) != regionCodeLen {
		errs = append(errs, fmt.Errorf("region: must be a two-letter ISO country code, got %q", cfg.Region))
	}

	if cfg.ChunkSizeMiB < minChunkMiB || cfg.ChunkSizeMiB > maxChunkMiB {
		errs = append(errs, fmt.Errorf("chunk_size_mib: must be between %d and %d, got %d",
			minChunkMiB, maxChunkMiB, cfg.ChunkSizeMiB))
	}

	if cfg.Watch.SettleSeconds < 1 {
		errs = append(errs, fmt.Errorf("watch.settle_seconds: must be at least 1, got %d", cfg.Watch.SettleSeconds))
	}

	return errors.Join(errs...)
}
