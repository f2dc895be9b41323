// Package logging builds the process logger from the logging configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/syntrixbase/pager/internal/config"
)

const (
	mainLogFile  = "pager.log"
	errorLogFile = "errors.log"
)

var (
	// console is where the console destination writes.
	console io.Writer = os.Stdout

	openFiles   []io.Closer
	openFilesMu sync.Mutex
)

// Initialize builds the logger and makes it the slog default.
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)
	slog.Info("Logging initialized",
		"level", cfg.Level,
		"console", cfg.Console.Enabled,
		"file", cfg.File.Enabled,
		"dir", cfg.Dir,
	)
	return nil
}

// NewLogger creates a logger writing to the configured destinations. With
// file output on it writes everything to pager.log and warnings and errors
// again to errors.log, both rotated.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var handlers Fanout
	if cfg.Console.Enabled {
		handlers = append(handlers, newHandler(console, cfg.Console.Format, ParseLevel(cfg.Console.Level)))
	}
	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		mainFile := rotating(filepath.Join(cfg.Dir, mainLogFile), cfg.Rotation)
		errFile := rotating(filepath.Join(cfg.Dir, errorLogFile), cfg.Rotation)
		handlers = append(handlers,
			newHandler(mainFile, cfg.File.Format, ParseLevel(cfg.File.Level)),
			NewLevelFilter(newHandler(errFile, cfg.File.Format, slog.LevelWarn), slog.LevelWarn),
		)
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		h = slog.NewTextHandler(io.Discard, nil)
	case 1:
		h = handlers[0]
	default:
		h = handlers
	}
	if cfg.RepeatWindow > 0 {
		h = NewRepeatHandler(h, cfg.RepeatWindow)
	}
	return slog.New(h), nil
}

// Shutdown closes the log files opened by NewLogger.
func Shutdown() error {
	openFilesMu.Lock()
	defer openFilesMu.Unlock()

	var first error
	for _, f := range openFiles {
		if err := f.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close log file: %w", err)
		}
	}
	openFiles = nil
	return first
}

func rotating(path string, r config.RotationConfig) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSize,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAge,
		Compress:   r.Compress,
	}
	openFilesMu.Lock()
	openFiles = append(openFiles, l)
	openFilesMu.Unlock()
	return l
}

// ParseLevel maps a configured level name to a slog level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
