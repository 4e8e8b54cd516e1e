package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by New.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options selects the backend and verbosity of a Logger.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a Logger for opts. "text" and "json" use log/slog handlers,
// "console" uses zerolog's human-readable console writer. Unknown formats
// fall back to text.
func New(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(opts.Format) {
	case FormatConsole:
		zerolog.TimeFieldFormat = time.RFC3339Nano
		zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
			With().Timestamp().Logger().
			Level(parseZerologLevel(opts.Level))
		return NewZerologLogger(zl)
	case FormatJSON:
		h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseSlogLevel(opts.Level)})
		return NewSlogLogger(slog.New(h))
	default:
		h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseSlogLevel(opts.Level)})
		return NewSlogLogger(slog.New(h))
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) Logger                  { return n }

func parseSlogLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseZerologLevel(value string) zerolog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}
