// Package log builds the slog loggers used by hosts, units and the CLI.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format selects the slog handler.
type Format string

const (
	// FormatAuto picks text on a terminal and JSON otherwise.
	FormatAuto Format = ""
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Option configures New.
type Option func(*handlerConfig)

type handlerConfig struct {
	writer    io.Writer
	format    Format
	level     slog.Leveler
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		writer: os.Stderr,
		level:  slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report. A *slog.LevelVar may be
// passed to change the level later.
func WithLevel(level slog.Leveler) Option {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) Option {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithFormat forces the output format.
func WithFormat(f Format) Option {
	return func(c *handlerConfig) {
		c.format = f
	}
}

// WithWriter sets the output destination. Default is stderr.
func WithWriter(w io.Writer) Option {
	return func(c *handlerConfig) {
		if w != nil {
			c.writer = w
		}
	}
}

// NewHandler creates a text or JSON handler with the given options.
func NewHandler(opts ...Option) slog.Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}
	if resolveFormat(cfg.format, cfg.writer) == FormatJSON {
		return slog.NewJSONHandler(cfg.writer, hopts)
	}
	return slog.NewTextHandler(cfg.writer, hopts)
}

// New creates a logger with the given options.
func New(opts ...Option) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

func resolveFormat(f Format, w io.Writer) Format {
	if f != FormatAuto {
		return f
	}
	if file, ok := w.(*os.File); ok && isTerminal(file.Fd()) {
		return FormatText
	}
	return FormatJSON
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && isTerminal(file.Fd())
}

// ParseLevel converts "debug", "info", "warn" or "error" (any case) to a
// slog level. An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// ParseFormat converts "text", "json" or "" to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatText, FormatJSON:
		return f, nil
	default:
		return FormatAuto, fmt.Errorf("invalid log format %q", s)
	}
}
