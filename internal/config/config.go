package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as "90s", "5m" or "12h" in TOML and
// environment variables.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Limits    LimitsConfig    `toml:"limits"`
	Clock     ClockConfig     `toml:"clock"`
	Sweeper   SweeperConfig   `toml:"sweeper"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type DatabaseConfig struct {
	Path string `toml:"path" env:"TIMECLOCK_DB"`
}

type LimitsConfig struct {
	WorkCap   int `toml:"work_cap" env:"TIMECLOCK_WORK_CAP"`
	ReviewCap int `toml:"review_cap" env:"TIMECLOCK_REVIEW_CAP"`
}

type ClockConfig struct {
	SkewTolerance Duration `toml:"skew_tolerance" env:"TIMECLOCK_SKEW_TOLERANCE"`
}

type SweeperConfig struct {
	Interval        Duration   `toml:"interval" env:"TIMECLOCK_SWEEP_INTERVAL"`
	AlertThresholds []Duration `toml:"alert_thresholds" env:"TIMECLOCK_ALERT_THRESHOLDS" envSeparator:","`
	AutoCloseAfter  Duration   `toml:"auto_close_after" env:"TIMECLOCK_AUTO_CLOSE_AFTER"`
	AuditEvery      int        `toml:"audit_every" env:"TIMECLOCK_AUDIT_EVERY"`
	RetryMaxTries   uint       `toml:"retry_max_tries" env:"TIMECLOCK_RETRY_MAX_TRIES"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"TIMECLOCK_LOG_LEVEL"`
	Format string `toml:"format" env:"TIMECLOCK_LOG_FORMAT"` // text | json
}

type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP traces URL. Empty disables export.
	Endpoint    string `toml:"endpoint" env:"TIMECLOCK_OTEL_ENDPOINT"`
	ServiceName string `toml:"service_name" env:"TIMECLOCK_OTEL_SERVICE_NAME"`
}

// DefaultDBPath returns ~/.timeclock/timeclock.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".timeclock", "timeclock.db"), nil
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{Path: dbPath},
		Limits: LimitsConfig{
			WorkCap:   3,
			ReviewCap: 1,
		},
		Clock: ClockConfig{SkewTolerance: Duration(5 * time.Second)},
		Sweeper: SweeperConfig{
			Interval:        Duration(5 * time.Minute),
			AlertThresholds: []Duration{Duration(3 * time.Hour)},
			AutoCloseAfter:  Duration(12 * time.Hour),
			AuditEvery:      12,
			RetryMaxTries:   4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{ServiceName: "timeclock"},
	}
}

// Load layers an optional TOML file and then TIMECLOCK_* environment
// variables over defaults. A missing file is not an error.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if err := decodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return nil
	}
	if err := toml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("decode toml: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Telemetry.Endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
}

func (c Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Limits.WorkCap < 1 {
		return fmt.Errorf("limits.work_cap must be >= 1, got %d", c.Limits.WorkCap)
	}
	if c.Limits.ReviewCap < 1 {
		return fmt.Errorf("limits.review_cap must be >= 1, got %d", c.Limits.ReviewCap)
	}
	if c.Clock.SkewTolerance < 0 {
		return errors.New("clock.skew_tolerance must be >= 0")
	}
	if c.Sweeper.Interval <= 0 {
		return errors.New("sweeper.interval must be > 0")
	}
	if c.Sweeper.AutoCloseAfter <= 0 {
		return errors.New("sweeper.auto_close_after must be > 0")
	}
	for i, th := range c.Sweeper.AlertThresholds {
		if th <= 0 {
			return fmt.Errorf("sweeper.alert_thresholds[%d] must be > 0", i)
		}
		if th >= c.Sweeper.AutoCloseAfter {
			return fmt.Errorf("sweeper.alert_thresholds[%d] (%s) must be below auto_close_after (%s)",
				i, th, c.Sweeper.AutoCloseAfter)
		}
	}
	if c.Sweeper.AuditEvery < 0 {
		return errors.New("sweeper.audit_every must be >= 0")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %q", c.Logging.Format)
	}
	if c.Telemetry.Endpoint != "" && c.Telemetry.ServiceName == "" {
		return errors.New("telemetry.service_name is required when telemetry.endpoint is set")
	}
	return nil
}

// Thresholds returns the alert thresholds as time.Durations.
func (c SweeperConfig) Thresholds() []time.Duration {
	out := make([]time.Duration, 0, len(c.AlertThresholds))
	for _, th := range c.AlertThresholds {
		out = append(out, th.Std())
	}
	return out
}
