package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values. This supports the zero-config
// first-run experience: users can start without creating a config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables. CLI flags are applied
// by the command layer on top of the result, so flags always win.
func Resolve(env EnvOverrides, cliConfigPath string) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cliConfigPath != "" {
		cfgPath = cliConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.Region != "" {
		cfg.Region = env.Region
	}

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}

	if env.WatchDir != "" {
		cfg.Watch.Dir = env.WatchDir
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// knownKeys lists every valid top-level or dotted TOML key, used for
// unknown-key suggestions.
var knownKeys = []string{
	"log_level",
	"default_privacy",
	"default_category",
	"default_tags",
	"made_for_kids",
	"region",
	"chunk_size_mib",
	"client_secret_path",
	"token_path",
	"history_path",
	"category_cache_path",
	"watch.dir",
	"watch.settle_seconds",
}

// checkUnknownKeys treats every undecoded key as fatal, with a "did you
// mean" suggestion when an obvious near-match exists.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		keyStr := key.String()
		if suggestion := closestKey(keyStr); suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q (did you mean %q?)", keyStr, suggestion))
			continue
		}

		errs = append(errs, fmt.Errorf("unknown config key %q", keyStr))
	}

	return errors.Join(errs...)
}

// closestKey returns the known key with the smallest edit distance to key,
// or "" if nothing is close enough to be a plausible typo.
func closestKey(key string) string {
	best := ""
	bestDist := len(key)/2 + 1 // anything further than this isn't a typo

	for _, k := range knownKeys {
		if d := editDistance(strings.ToLower(key), k); d < bestDist {
			best = k
			bestDist = d
		}
	}

	return best
}

// editDistance computes the Levenshtein distance between two strings.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i

		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}

		prev, cur = cur, prev
	}

	return prev[len(b)]
}
