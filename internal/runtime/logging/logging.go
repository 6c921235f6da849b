// Package logging provides the structured logger used across bidgate. The
// same ServiceLogger feeds the HTTP layer, the admission pipeline and every
// watermill sink.
package logging

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields are structured key/value pairs attached to a log line.
type LogFields map[string]any

// ServiceLogger is the logger every gateway component receives. Its shape
// matches watermill.LoggerAdapter so one instance serves both worlds.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// EntryLoggerAdapter is the subset of *logrus.Entry that NewEntryServiceLogger
// needs. T is the entry type returned by the With* methods.
type EntryLoggerAdapter[T any] interface {
	Error(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithError(err error) T
	WithField(key string, value any) T
}

// Named returns a child logger tagged with the component that owns it.
func Named(log ServiceLogger, component string) ServiceLogger {
	return log.With(LogFields{"component": component})
}

// slogLevels keeps slog's own levels; watermill would otherwise shift them.
var slogLevels = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// NewSlogServiceLogger adapts a slog.Logger through watermill's slog adapter.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("bidgate: slog logger cannot be nil")
	}
	return NewWatermillServiceLogger(watermill.NewSlogLoggerWithLevelMapping(log, slogLevels))
}

// NewWatermillServiceLogger adapts an existing watermill.LoggerAdapter.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("bidgate: watermill logger cannot be nil")
	}
	return wmLogger{adapter: logger}
}

// NewEntryServiceLogger adapts an entry logger such as *logrus.Entry.
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	if any(entry) == nil {
		panic("bidgate: entry logger cannot be nil")
	}
	return &entryLogger[T]{entry: entry}
}

// NewWatermillAdapter exposes a ServiceLogger to watermill publishers.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("bidgate: ServiceLogger cannot be nil")
	}
	return sinkLogger{log: log}
}

type wmLogger struct {
	adapter watermill.LoggerAdapter
}

func (l wmLogger) With(fields LogFields) ServiceLogger {
	return wmLogger{adapter: l.adapter.With(wmFields(fields))}
}

func (l wmLogger) Debug(msg string, fields LogFields) { l.adapter.Debug(msg, wmFields(fields)) }
func (l wmLogger) Info(msg string, fields LogFields)  { l.adapter.Info(msg, wmFields(fields)) }
func (l wmLogger) Trace(msg string, fields LogFields) { l.adapter.Trace(msg, wmFields(fields)) }

func (l wmLogger) Error(msg string, err error, fields LogFields) {
	l.adapter.Error(msg, err, wmFields(fields))
}

type entryLogger[T EntryLoggerAdapter[T]] struct {
	entry T
}

func (l *entryLogger[T]) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return l
	}
	return &entryLogger[T]{entry: withEntryFields(l.entry, fields)}
}

func (l *entryLogger[T]) Debug(msg string, fields LogFields) {
	withEntryFields(l.entry, fields).Debug(msg)
}

func (l *entryLogger[T]) Info(msg string, fields LogFields) {
	withEntryFields(l.entry, fields).Info(msg)
}

func (l *entryLogger[T]) Trace(msg string, fields LogFields) {
	withEntryFields(l.entry, fields).Trace(msg)
}

func (l *entryLogger[T]) Error(msg string, err error, fields LogFields) {
	entry := withEntryFields(l.entry, fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

// sinkLogger runs watermill's log calls through a ServiceLogger.
type sinkLogger struct {
	log ServiceLogger
}

func (s sinkLogger) Error(msg string, err error, fields watermill.LogFields) {
	s.log.Error(msg, err, serviceFields(fields))
}

func (s sinkLogger) Info(msg string, fields watermill.LogFields) {
	s.log.Info(msg, serviceFields(fields))
}

func (s sinkLogger) Debug(msg string, fields watermill.LogFields) {
	s.log.Debug(msg, serviceFields(fields))
}

func (s sinkLogger) Trace(msg string, fields watermill.LogFields) {
	s.log.Trace(msg, serviceFields(fields))
}

func (s sinkLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return sinkLogger{log: s.log.With(serviceFields(fields))}
}

func wmFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func serviceFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}

func withEntryFields[T EntryLoggerAdapter[T]](entry T, fields LogFields) T {
	for key, value := range fields {
		entry = entry.WithField(key, value)
	}
	return entry
}
