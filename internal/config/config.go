// Package config loads admin.conf: the process-wide settings (database
// connection, backoff/locking tunables, logging) plus the ordered list of job
// configuration lines (spec §6, §9). YAML is the primary format, mirroring
// the teacher's config feeders; TOML is accepted as an alternate format for
// operators who prefer it, selected by file extension.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"

	"github.com/crontabber/crontabber/internal/registry"
)

// Database holds the Postgres connection settings (spec §6).
type Database struct {
	DSN             string `yaml:"dsn" toml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns" toml:"max_open_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

// Config is the fully parsed admin.conf (spec §6).
type Config struct {
	Database            Database `yaml:"database" toml:"database"`
	BaseBackoffSeconds   int      `yaml:"base_backoff_seconds" toml:"base_backoff_seconds"`
	MaxOngoingAgeHours   int      `yaml:"max_ongoing_age_hours" toml:"max_ongoing_age_hours"`
	Verbose              bool     `yaml:"verbose" toml:"verbose"`
	Jobs                 []string `yaml:"jobs" toml:"jobs"`
}

// defaults mirror spec §6's stated defaults.
func defaults() Config {
	return Config{
		BaseBackoffSeconds: 1800,
		MaxOngoingAgeHours: 12,
	}
}

// Load reads and parses the admin.conf file at path, then applies environment
// variable overrides for the database DSN, base backoff, max ongoing age and
// verbose settings (coerced via golobby/cast the way the teacher's env feeder
// coerces string env vars into typed struct fields). The other database
// fields have no environment override.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaults()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parsing toml config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parsing yaml config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets operators override scalar settings without editing
// admin.conf, e.g. CRONTABBER_DATABASE_DSN in a container environment.
func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv("CRONTABBER_DATABASE_DSN"); ok {
		cfg.Database.DSN = v
	}
	if v, ok := os.LookupEnv("CRONTABBER_BASE_BACKOFF_SECONDS"); ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return fmt.Errorf("CRONTABBER_BASE_BACKOFF_SECONDS: %w", err)
		}
		cfg.BaseBackoffSeconds = n
	}
	if v, ok := os.LookupEnv("CRONTABBER_MAX_ONGOING_AGE_HOURS"); ok {
		n, err := cast.ToInt(v)
		if err != nil {
			return fmt.Errorf("CRONTABBER_MAX_ONGOING_AGE_HOURS: %w", err)
		}
		cfg.MaxOngoingAgeHours = n
	}
	if v, ok := os.LookupEnv("CRONTABBER_VERBOSE"); ok {
		b, err := cast.ToBool(v)
		if err != nil {
			return fmt.Errorf("CRONTABBER_VERBOSE: %w", err)
		}
		cfg.Verbose = b
	}
	return nil
}

// BaseBackoff returns the configured retry backoff as a time.Duration.
func (c *Config) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffSeconds) * time.Second
}

// MaxOngoingAge returns the configured stale-claim threshold as a time.Duration.
func (c *Config) MaxOngoingAge() time.Duration {
	return time.Duration(c.MaxOngoingAgeHours) * time.Hour
}

// ConfigLines parses every job line in Jobs into registry.ConfigLine values,
// collecting every malformed line rather than stopping at the first (spec
// §4.2: --configtest must report every problem job in one pass).
func (c *Config) ConfigLines() ([]registry.ConfigLine, []error) {
	var lines []registry.ConfigLine
	var errs []error
	for _, raw := range c.Jobs {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		line, err := registry.ParseConfigLine(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lines = append(lines, line)
	}
	return lines, errs
}
