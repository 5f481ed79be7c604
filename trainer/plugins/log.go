package plugins

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	"github.com/reglet-dev/reglet-compose/hook"
	rlog "github.com/reglet-dev/reglet-compose/log"
	"github.com/reglet-dev/reglet-compose/plugin"
	"github.com/reglet-dev/reglet-compose/trainer"
	"github.com/reglet-dev/reglet-compose/unit"
)

// Parameters read by Log.
const (
	KeyLogFile  = "log_file"
	KeyLogLevel = "log_level"
)

// Log installs the process logger when the engine starts: console output
// at log_level, plus JSON records at debug level in log_file when set. It
// disables itself afterwards; the file stays open until the host closes.
type Log struct {
	plugin.Base

	// Console receives the console records. Defaults to stderr.
	Console io.Writer `copier:"-"`

	file *os.File

	_ hook.On `hook:"engine_start" method:"Setup"`
}

// NewLog creates a Log prototype writing to console.
func NewLog(console io.Writer) *Log {
	return &Log{Console: console}
}

func (l *Log) Declare() unit.Spec {
	return unit.Spec{
		Name:      "log",
		HookTypes: []entities.EventType{trainer.EngineStart},
	}
}

// Setup builds and installs the logger.
func (l *Log) Setup(entry string) error {
	eng, err := trainer.Parent(l)
	if err != nil {
		return err
	}
	level, err := rlog.ParseLevel(eng.Params.GetStringDefault(KeyLogLevel, ""))
	if err != nil {
		return err
	}

	console := l.Console
	if console == nil {
		console = os.Stderr
	}
	handlers := []slog.Handler{rlog.NewHandler(rlog.WithWriter(console), rlog.WithLevel(level))}

	if path := eng.Params.GetStringDefault(KeyLogFile, ""); path != "" && l.file == nil {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		l.file = f
		handlers = append(handlers, rlog.NewHandler(
			rlog.WithWriter(f), rlog.WithFormat(rlog.FormatJSON), rlog.WithLevel(slog.LevelDebug)))
	}

	logger := slog.New(slogmulti.Fanout(handlers...)).With(slog.String("run", eng.RunID))
	slog.SetDefault(logger)
	logger.Info("logging configured", slog.String("entry", entry), slog.String("level", level.String()))

	l.SetEnabled(false)
	return nil
}

// Close closes the log file.
func (l *Log) Close(context.Context) error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var (
	_ plugin.Plugin = (*Log)(nil)
	_ unit.Closer   = (*Log)(nil)
)
