// Package config loads ConfigurationPort (spec.md §6) from an optional
// YAML file and environment variables, validates its bounds, and
// serves typed session.Config/obslog.Config/journalsink.Config slices
// to the rest of the agent. A reload never mutates a live Config; it
// produces a brand new one (spec.md §6) and hands it to the Reloader's
// callback. cmd/bytehotd does not start a Reloader, so a running agent
// keeps the Config it loaded at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// WatchRoot is one configured directory to watch.
type WatchRoot struct {
	Path      string `mapstructure:"path" validate:"required"`
	Recursive bool   `mapstructure:"recursive"`
}

// Config is the typed ConfigurationPort (spec.md §6). Bounds are
// enforced by Validate via struct tags, mirroring the teacher's
// viper-unmarshal-then-validate shape.
type Config struct {
	WatchRoots           []WatchRoot   `mapstructure:"watch_roots" validate:"required,min=1,dive"`
	DebounceMS           int           `mapstructure:"debounce_ms" validate:"min=0,max=5000"`
	AllowMethodAddition  bool          `mapstructure:"allow_method_addition"`
	RedefineTimeoutMS    int           `mapstructure:"redefine_timeout_ms" validate:"min=100,max=60000"`
	SnapshotRetentionMS  int           `mapstructure:"snapshot_retention_ms" validate:"min=0,max=3600000"`
	QuarantineErrorCount int           `mapstructure:"quarantine_error_count" validate:"min=1,max=100"`
	QuarantineWindowMS   int           `mapstructure:"quarantine_window_ms" validate:"min=1000,max=3600000"`
	IncludePatterns      []string      `mapstructure:"include_patterns"`
	ExcludePatterns      []string      `mapstructure:"exclude_patterns"`
	FrameworkHooks       []string      `mapstructure:"framework_hooks"`
	Log                  LogConfig     `mapstructure:"log"`
	Metrics              MetricsConfig `mapstructure:"metrics"`
	HTTP                 HTTPConfig    `mapstructure:"http"`
	Journal              JournalConfig `mapstructure:"journal"`
}

// LogConfig mirrors obslog.Config's mapstructure-loadable fields.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig governs the Prometheus exporter (internal/metrics).
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// HTTPConfig governs the read-only admin surface (internal/httpapi).
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// JournalConfig selects the durable backend journalsink.Open wires up
// (spec.md §4.2's append-only journal; "memory" loses history on
// restart and suits development, "sqlite"/"postgres" persist across
// restarts and are required for replay after a crash).
type JournalConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// Debounce returns DebounceMS as a time.Duration.
func (c Config) Debounce() time.Duration { return time.Duration(c.DebounceMS) * time.Millisecond }

// RedefineTimeout returns RedefineTimeoutMS as a time.Duration.
func (c Config) RedefineTimeout() time.Duration {
	return time.Duration(c.RedefineTimeoutMS) * time.Millisecond
}

// SnapshotRetention returns SnapshotRetentionMS as a time.Duration.
func (c Config) SnapshotRetention() time.Duration {
	return time.Duration(c.SnapshotRetentionMS) * time.Millisecond
}

// QuarantineWindow returns QuarantineWindowMS as a time.Duration.
func (c Config) QuarantineWindow() time.Duration {
	return time.Duration(c.QuarantineWindowMS) * time.Millisecond
}

var validate = validator.New()

// setDefaults matches spec.md §6's stated defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debounce_ms", 200)
	v.SetDefault("allow_method_addition", false)
	v.SetDefault("redefine_timeout_ms", 5000)
	v.SetDefault("snapshot_retention_ms", 60000)
	v.SetDefault("quarantine_error_count", 5)
	v.SetDefault("quarantine_window_ms", 60000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8081")

	v.SetDefault("journal.driver", "memory")
	v.SetDefault("journal.sqlite_path", "bytehot-journal.db")
	v.SetDefault("journal.migrations_dir", "migrations/sqlite")
}

// Load reads configuration from configPath (if non-empty) and
// environment variables (prefixed BYTEHOT_, nested keys joined with
// underscores), applies spec.md §6 defaults, and validates bounds.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BYTEHOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Validate enforces spec.md §6's bounds and required fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	for _, root := range c.WatchRoots {
		if root.Path == "" || root.Path[0] != '/' {
			return fmt.Errorf("watch_roots: %q must be an absolute path", root.Path)
		}
	}
	return nil
}
