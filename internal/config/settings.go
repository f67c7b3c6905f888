package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of process-level settings in the environment.
const EnvPrefix = "AIQ_"

// Settings are process-level knobs read from the environment, as opposed to
// the per-project documents in .aiq/.
type Settings struct {
	// DevMode warms a dev cache slot from ./quality. Only AIQ_DEV_MODE=1
	// turns it on; any other value leaves it off.
	DevMode bool `koanf:"-"`
	// CacheDir overrides the asset cache root (AIQ_CACHE_DIR).
	CacheDir string `koanf:"cache_dir"`
	// LogLevel is the zap level name (AIQ_LOG_LEVEL).
	LogLevel string `koanf:"log_level"`
	// LogFormat is "console" or "json" (AIQ_LOG_FORMAT).
	LogFormat string `koanf:"log_format"`
	// HistoryDSN selects the run-history backend (AIQ_HISTORY_DSN).
	HistoryDSN string `koanf:"history_dsn"`
}

// DefaultSettings returns the settings used when nothing is set.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:  "warn",
		LogFormat: "console",
	}
}

// LoadSettings overlays AIQ_* environment variables onto DefaultSettings.
//
//	AIQ_DEV_MODE    -> dev_mode
//	AIQ_CACHE_DIR   -> cache_dir
//	AIQ_HISTORY_DSN -> history_dsn
func LoadSettings() (Settings, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("load environment: %w", err)
	}

	s := DefaultSettings()
	s.DevMode = k.String("dev_mode") == "1"
	k.Delete("dev_mode")
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}
