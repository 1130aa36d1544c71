// Package config loads the server configuration from an optional YAML
// file and AGENDA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/agenda/internal/model"
	"github.com/dukerupert/agenda/internal/tz"
)

const (
	DefaultListen       = "127.0.0.1:8080"
	DefaultDBPath       = "agenda.db"
	DefaultLogLevel     = "info"
	DefaultReminderCron = "* * * * *"
	DefaultSnapshotCron = "0 3 * * *"
	DefaultSnapshotKeep = 14
)

type SnapshotConfig struct {
	// Dir and Passphrase must both be set for snapshots to run.
	Dir        string `yaml:"dir"`
	Passphrase string `yaml:"passphrase"`
	Cron       string `yaml:"cron"`
	Keep       int    `yaml:"keep"`
}

// Enabled reports whether snapshots are configured.
func (s SnapshotConfig) Enabled() bool {
	return s.Dir != "" && s.Passphrase != ""
}

type ReminderConfig struct {
	Cron string `yaml:"cron"`
}

// Config is the top-level server configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	DBPath   string `yaml:"db_path"`
	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`

	// AllowedOrigins are extra host patterns allowed to open the WebSocket
	// feed cross-origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	DefaultView model.ViewMode `yaml:"default_view"`
	DefaultSort model.SortMode `yaml:"default_sort"`

	Reminders ReminderConfig `yaml:"reminders"`
	Snapshots SnapshotConfig `yaml:"snapshots"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or invalid values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	c.Timezone = tz.NormalizeTimeZone(c.Timezone, tz.SystemZone{}.Zone())
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		c.LogLevel = DefaultLogLevel
	}
	c.DefaultView = model.ParseViewMode(string(c.DefaultView))
	c.DefaultSort = model.ParseSortMode(string(c.DefaultSort))
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{}
	}
	if c.Reminders.Cron == "" {
		c.Reminders.Cron = DefaultReminderCron
	}
	if c.Snapshots.Cron == "" {
		c.Snapshots.Cron = DefaultSnapshotCron
	}
	if c.Snapshots.Keep <= 0 {
		c.Snapshots.Keep = DefaultSnapshotKeep
	}
}

// Load reads the YAML file at path, applies environment overrides and
// normalizes the result. An empty path or a missing file yields the
// defaults plus the environment.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("AGENDA_LISTEN", &c.Listen)
	set("AGENDA_DB_PATH", &c.DBPath)
	set("AGENDA_TIMEZONE", &c.Timezone)
	set("AGENDA_LOG_LEVEL", &c.LogLevel)
	set("AGENDA_SNAPSHOT_DIR", &c.Snapshots.Dir)
	set("AGENDA_SNAPSHOT_PASSPHRASE", &c.Snapshots.Passphrase)
	set("AGENDA_SNAPSHOT_CRON", &c.Snapshots.Cron)
	set("AGENDA_REMINDER_CRON", &c.Reminders.Cron)

	if v := strings.TrimSpace(getenv("AGENDA_SNAPSHOT_KEEP")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENDA_SNAPSHOT_KEEP: %w", err)
		}
		c.Snapshots.Keep = n
	}
	if v := strings.TrimSpace(getenv("AGENDA_ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
	return nil
}
