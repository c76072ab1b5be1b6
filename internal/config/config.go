// Package config loads the TOML configuration of the rrule command.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/cyp0633/librrule/recurrence"
	"github.com/cyp0633/librrule/rrule"
)

// EnvPath names the environment variable that overrides the default
// configuration file location.
const EnvPath = "LIBRRULE_CONFIG"

// Config is the on-disk configuration. Flags override every field.
type Config struct {
	LogLevel string `toml:"log_level"`
	// Timezone receives floating DTSTART values and the default start.
	Timezone string `toml:"timezone"`
	// Limit caps listings over unbounded rules.
	Limit int  `toml:"limit"`
	JSON  bool `toml:"json"`

	Engine EngineConfig `toml:"engine"`
}

// EngineConfig selects the recurrence engine tuning for ics expansion.
type EngineConfig struct {
	Preset         string `toml:"preset"`
	MaxOccurrences int    `toml:"max_occurrences"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel: "warn",
		Timezone: "UTC",
		Limit:    100,
		Engine:   EngineConfig{Preset: "default"},
	}
}

// DefaultPath returns $LIBRRULE_CONFIG, or config.toml under the user
// configuration directory.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "librrule", "config.toml"), nil
}

// Load reads the file at path over the defaults. An empty path uses
// DefaultPath; a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate reports the first field that cannot be used.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, accepting the UTC±hh:mm fixed zone form.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := rrule.LoadZone(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// EngineConfig returns the recurrence engine tuning named by the preset,
// with max_occurrences applied when set.
func (c Config) EngineConfig() (recurrence.EngineConfig, error) {
	engine, ok := recurrence.Preset(c.Engine.Preset)
	if !ok {
		return recurrence.EngineConfig{}, fmt.Errorf("unknown engine preset %q", c.Engine.Preset)
	}
	if c.Engine.MaxOccurrences > 0 {
		engine.MaxExpansionOccurrences = c.Engine.MaxOccurrences
	}
	return engine, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
