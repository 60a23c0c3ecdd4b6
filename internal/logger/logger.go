package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Level names accepted in configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Format names accepted in configuration.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// SlogConfig controls the diagnostic logger.
type SlogConfig struct {
	Level      string // debug|info|warn|error (default warn)
	Format     string // text|json (default text)
	Color      bool   // colored level prefix; ignored for json and for files
	TimeStamps bool
}

// FileConfig sends diagnostics to a rotating file instead of stderr.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Path       string
	MaxSizeMB  int // megabytes before rotation (default 10)
	MaxBackups int // number of backups to keep (default 3)
	MaxAgeDays int // days to keep (default 7)
	Compress   bool
}

type Config struct {
	Slog SlogConfig
	File FileConfig
}

// Writer returns the lumberjack writer for File.Path, or nil when no file is configured.
func (c Config) Writer() io.WriteCloser {
	if c.File.Path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   c.File.Path,
		MaxSize:    valOr(c.File.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.File.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.File.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.File.Compress,
	}
}

// NewSlogger builds a logger writing to w.
func (c Config) NewSlogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Slog.Level)}
	if strings.EqualFold(c.Slog.Format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	if c.Slog.Color {
		return slog.New(NewColorTextHandler(w, opts, c.Slog.TimeStamps))
	}
	if !c.Slog.TimeStamps {
		opts.ReplaceAttr = dropTime
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Open builds the logger for a run: the rotating file when configured,
// stderr otherwise. The returned closer is never nil.
func (c Config) Open(stderr io.Writer) (*slog.Logger, io.Closer) {
	if fw := c.Writer(); fw != nil {
		fc := c
		fc.Slog.Color = false
		fc.Slog.TimeStamps = true
		return fc.NewSlogger(fw), fw
	}
	return c.NewSlogger(stderr), io.NopCloser(nil)
}

// ParseLevel maps a level name to slog.Level; unknown names mean warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// ValidateLevel rejects names ParseLevel would silently map to warn.
func ValidateLevel(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
		return nil
	}
	return fmt.Errorf("invalid log level %q", s)
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
