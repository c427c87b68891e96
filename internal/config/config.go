// Package config loads and validates ytput configuration. Configuration is
// a TOML file with a strict schema: unknown keys are errors, because a
// silently ignored typo in a config file leads to hard-to-debug behavior.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "ytput"

// Config file name.
const configFileName = "config.toml"

// Chunk size bounds. The YouTube API requires chunk sizes to be a multiple
// of 256 KiB; we expose whole MiB, which always satisfies that.
const (
	minChunkMiB = 1
	maxChunkMiB = 64
)

// Config is the full configuration schema. Field names map 1:1 to TOML keys.
type Config struct {
	LogLevel string `toml:"log_level"`

	// Upload defaults, used when the corresponding flag is not given.
	DefaultPrivacy  string   `toml:"default_privacy"`
	DefaultCategory string   `toml:"default_category"`
	DefaultTags     []string `toml:"default_tags"`
	MadeForKids     bool     `toml:"made_for_kids"`
	Region          string   `toml:"region"`
	ChunkSizeMiB    int      `toml:"chunk_size_mib"`

	// File locations. Empty means the platform default under the ytput
	// config/data directories.
	ClientSecretPath string `toml:"client_secret_path"`
	TokenPath        string `toml:"token_path"`
	HistoryPath      string `toml:"history_path"`
	CategoryCache    string `toml:"category_cache_path"`

	Watch WatchConfig `toml:"watch"`
}

// WatchConfig configures the drop-folder watcher.
type WatchConfig struct {
	Dir string `toml:"dir"`
	// SettleSeconds is how long a file must stop growing before it is
	// considered fully written and queued for upload.
	SettleSeconds int `toml:"settle_seconds"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		DefaultPrivacy:   "private",
		DefaultCategory:  "Entertainment",
		Region:           "US",
		ChunkSizeMiB:     4,
		ClientSecretPath: filepath.Join(DefaultConfigDir(), "client_secret.json"),
		TokenPath:        filepath.Join(DefaultDataDir(), "token.json"),
		HistoryPath:      filepath.Join(DefaultDataDir(), "history.db"),
		CategoryCache:    filepath.Join(DefaultCacheDir(), "categories.json"),
		Watch: WatchConfig{
			SettleSeconds: 3,
		},
	}
}

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/ytput).
// On macOS, uses ~/Library/Application Support/ytput per Apple guidelines.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for application
// data (token, history database).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// DefaultCacheDir returns the platform-specific directory for cache files
// (the category cache).
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Caches", appName)
	default:
		return filepath.Join(home, ".cache", appName)
	}
}

// xdgDir resolves an XDG base directory variable with a fallback,
// appending the application directory name.
func xdgDir(envVar, fallback string) string {
	if xdg := os.Getenv(envVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(fallback, appName)
}

// DefaultConfigPath returns the full path to the default config file.
// This is the fallback when neither YTPUT_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}
