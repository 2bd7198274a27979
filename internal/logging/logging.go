// Package logging builds the process-wide structured logger. Output goes
// to stdout, and additionally to a size-rotated file when a log directory
// is configured. The level can be changed at runtime through the LevelVar.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes the desired logging configuration.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Dir    string // when set, logs also rotate into Dir/cantata.log
}

// Logger bundles the root slog.Logger with its runtime level control and
// the file writer that must be closed on shutdown.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// New builds the root logger from opts.
func New(opts Options) *Logger {
	level := &slog.LevelVar{}
	level.Set(ParseLevel(opts.Level))

	var writer io.Writer = os.Stdout
	var closer io.Closer
	if opts.Dir != "" {
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "cantata.log"),
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		writer = io.MultiWriter(os.Stdout, lj)
		closer = lj
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(writer, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		closer: closer,
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(s string) {
	l.level.Set(ParseLevel(s))
}

// Level returns the current minimum level name.
func (l *Logger) Level() string {
	return FormatLevel(l.level.Level())
}

// Close releases the rotated file writer, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// ParseLevel converts a string to slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch s {
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

// FormatLevel converts a slog.Level to its string name.
func FormatLevel(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// ValidLevel returns true if s is a recognized log level.
func ValidLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
