package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// Backends understood by New.
const (
	BackendSlog   = "slog"
	BackendLogrus = "logrus"
)

// Options selects and tunes the logging backend.
type Options struct {
	Level   string
	Format  string // json or text
	Backend string // slog or logrus
	Output  io.Writer
}

// New builds a ServiceLogger for the requested backend. Empty options yield a
// JSON slog logger at info level writing to stdout.
func New(opts Options) (ServiceLogger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendSlog:
		level, err := parseSlogLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		handlerOpts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		switch strings.ToLower(opts.Format) {
		case "", "json":
			handler = slog.NewJSONHandler(out, handlerOpts)
		case "text":
			handler = slog.NewTextHandler(out, handlerOpts)
		default:
			return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
		}
		return NewSlogServiceLogger(slog.New(handler)), nil

	case BackendLogrus:
		level := logrus.InfoLevel
		if opts.Level != "" {
			parsed, err := logrus.ParseLevel(opts.Level)
			if err != nil {
				return nil, fmt.Errorf("logging: %w", err)
			}
			level = parsed
		}
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(level)
		switch strings.ToLower(opts.Format) {
		case "", "json":
			l.SetFormatter(&logrus.JSONFormatter{})
		case "text":
			l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		default:
			return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
		}
		return NewEntryServiceLogger(logrus.NewEntry(l)), nil

	default:
		return nil, fmt.Errorf("logging: unknown backend %q", opts.Backend)
	}
}

// Nop returns a logger that discards everything.
func Nop() ServiceLogger {
	return NewWatermillServiceLogger(watermill.NopLogger{})
}

func parseSlogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return slog.LevelDebug - 4, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", level)
	}
}
