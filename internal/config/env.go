package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "YTPUT_CONFIG"
	EnvRegion   = "YTPUT_REGION"
	EnvLogLevel = "YTPUT_LOG_LEVEL"
	EnvWatchDir = "YTPUT_WATCH_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // YTPUT_CONFIG: override config file path
	Region     string // YTPUT_REGION: category region code
	LogLevel   string // YTPUT_LOG_LEVEL: baseline log level
	WatchDir   string // YTPUT_WATCH_DIR: drop-folder directory
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Region:     os.Getenv(EnvRegion),
		LogLevel:   os.Getenv(EnvLogLevel),
		WatchDir:   os.Getenv(EnvWatchDir),
	}
}
