package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/portcheck/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PC_FORMAT=json.
const EnvPrefix = "PC"

// FileConfig represents the TOML structure:
//
//	format = "json"
//	extra = true
//	elevate = false
//	no_color = false
//	timeout = "5s"
//
//	[log]
//	level = "debug"
//	file = "/var/log/pc.log"
//
//	[metrics]
//	textfile = "/var/lib/node_exporter/pc.prom"
type FileConfig struct {
	Format  string        `toml:"format" mapstructure:"format"`
	Extra   bool          `toml:"extra" mapstructure:"extra"`
	Elevate bool          `toml:"elevate" mapstructure:"elevate"`
	NoColor bool          `toml:"no_color" mapstructure:"no_color"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Timestamps bool   `toml:"timestamps" mapstructure:"timestamps"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type MetricsConfig struct {
	Textfile string `toml:"textfile" mapstructure:"textfile"`
}

// Logger converts the log section for the logger package. Color is decided
// by the caller from the terminal and --no-color.
func (l LogConfig) Logger(color bool) logger.Config {
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      l.Level,
			Format:     l.Format,
			Color:      color,
			TimeStamps: l.Timestamps,
		},
		File: logger.FileConfig{
			Path:       l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
			MaxAgeDays: l.MaxAgeDays,
			Compress:   l.Compress,
		},
	}
}

// flagKeys maps config keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"format":           "format",
	"extra":            "extra",
	"elevate":          "sudo",
	"no_color":         "no-color",
	"timeout":          "timeout",
	"metrics.textfile": "metrics-file",
}

func defaults(v *viper.Viper) {
	v.SetDefault("format", "human")
	v.SetDefault("extra", false)
	v.SetDefault("elevate", false)
	v.SetDefault("no_color", false)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("log.level", logger.LevelWarn)
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.timestamps", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("metrics.textfile", "")
}

// Load merges defaults, the optional TOML file at path, PC_* environment
// variables and explicitly set flags, in increasing order of precedence.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*FileConfig, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if fs != nil {
		for key, name := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate checks values that the decoder accepts but the program cannot use.
func (c *FileConfig) Validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if err := logger.ValidateLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
