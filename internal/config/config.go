// Package config loads the renewal runner configuration from a YAML file.
//
// Every field is optional in the file; Load fills defaults and Validate
// rejects values the runner cannot use. Command-line flags override file
// values after loading (see internal/cli).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultDatabase   = "renewal.db"
	DefaultPageSize   = 500
	DefaultActor      = "system"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultTimezone   = "UTC"
	DefaultRunTimeout = 30 * time.Minute
)

// Config is the runner configuration.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database"`

	// Tenant is the tenant to run. Zero means "must come from a flag".
	Tenant int64 `yaml:"tenant"`

	// PageSize is the number of profiles read per keyset page.
	PageSize int `yaml:"page_size"`

	// Actor is recorded on audit lines.
	Actor string `yaml:"actor"`

	// AtomicCommit creates the transaction and its ledger marks in one
	// database transaction. Nil means true.
	AtomicCommit *bool `yaml:"atomic_commit"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Schedule is a cron expression for `renewal schedule`. Seconds are
	// optional; descriptors such as @daily are accepted.
	Schedule string `yaml:"schedule"`

	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string `yaml:"timezone"`

	// RunTimeout bounds a single run, as a Go duration string. "0s" disables it.
	RunTimeout string `yaml:"run_timeout"`
}

// Default returns a Config with every default applied.
func Default() Config {
	c := Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates a YAML config file. Unknown keys are errors.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML config bytes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Actor == "" {
		c.Actor = DefaultActor
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Tenant < 0 {
		return fmt.Errorf("tenant: must be positive, got %d", c.Tenant)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size: must be positive, got %d", c.PageSize)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format: must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// Atomic reports whether atomic commit is enabled.
func (c Config) Atomic() bool {
	return c.AtomicCommit == nil || *c.AtomicCommit
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// Timeout parses RunTimeout. An empty value gives DefaultRunTimeout; zero
// disables the limit.
func (c Config) Timeout() (time.Duration, error) {
	s := strings.TrimSpace(c.RunTimeout)
	if s == "" {
		return DefaultRunTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("run_timeout: invalid duration %q: %w", c.RunTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("run_timeout: must be >= 0")
	}
	return d, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level: unknown level %q", s)
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
