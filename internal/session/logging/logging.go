package logging

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured logging key/value pairs used by voxwire.
type LogFields map[string]any

// SessionLogger is the minimal logging contract required by the session
// layer. It maps directly onto Watermill's logging needs so transport
// internals and the session core share one logger without depending on slog.
type SessionLogger interface {
	With(fields LogFields) SessionLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
}

// NewSlogSessionLogger wraps a slog.Logger so it satisfies the SessionLogger
// interface.
func NewSlogSessionLogger(log *slog.Logger) SessionLogger {
	if log == nil {
		panic("voxwire: slog logger cannot be nil")
	}
	return &slogSessionLogger{inner: log}
}

// NewNopSessionLogger returns a logger that discards everything. Useful in
// tests and as the default when no logger is supplied.
func NewNopSessionLogger() SessionLogger {
	return &watermillSessionLogger{inner: watermill.NopLogger{}}
}

// NewWatermillSessionLogger wraps an existing Watermill LoggerAdapter so it
// can be supplied to NewSession.
func NewWatermillSessionLogger(logger watermill.LoggerAdapter) SessionLogger {
	if logger == nil {
		panic("voxwire: watermill logger cannot be nil")
	}
	return &watermillSessionLogger{inner: logger}
}

type slogSessionLogger struct {
	inner *slog.Logger
}

func (s *slogSessionLogger) With(fields LogFields) SessionLogger {
	if len(fields) == 0 {
		return s
	}
	return &slogSessionLogger{inner: s.inner.With(toSlogArgs(fields)...)}
}

func (s *slogSessionLogger) Debug(msg string, fields LogFields) {
	s.inner.Debug(msg, toSlogArgs(fields)...)
}

func (s *slogSessionLogger) Info(msg string, fields LogFields) {
	s.inner.Info(msg, toSlogArgs(fields)...)
}

func (s *slogSessionLogger) Warn(msg string, fields LogFields) {
	s.inner.Warn(msg, toSlogArgs(fields)...)
}

func (s *slogSessionLogger) Error(msg string, err error, fields LogFields) {
	args := toSlogArgs(fields)
	if err != nil {
		args = append(args, "error", err)
	}
	s.inner.Error(msg, args...)
}

type watermillSessionLogger struct {
	inner watermill.LoggerAdapter
}

func (w *watermillSessionLogger) With(fields LogFields) SessionLogger {
	return &watermillSessionLogger{inner: w.inner.With(toWatermillFields(fields))}
}

func (w *watermillSessionLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w *watermillSessionLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillSessionLogger) Warn(msg string, fields LogFields) {
	// LoggerAdapter has no warn level; Info keeps the message visible.
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillSessionLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

type sessionLoggerAdapter struct {
	base SessionLogger
}

// NewWatermillAdapter converts a SessionLogger into a Watermill LoggerAdapter
// so transport backends can reuse the same logger abstraction.
func NewWatermillAdapter(log SessionLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("voxwire: SessionLogger cannot be nil")
	}
	return &sessionLoggerAdapter{base: log}
}

func (s *sessionLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	s.base.Error(msg, err, fromWatermillFields(fields))
}

func (s *sessionLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	s.base.Info(msg, fromWatermillFields(fields))
}

func (s *sessionLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	s.base.Debug(msg, fromWatermillFields(fields))
}

func (s *sessionLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	s.base.Debug(msg, fromWatermillFields(fields))
}

func (s *sessionLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &sessionLoggerAdapter{base: s.base.With(fromWatermillFields(fields))}
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func fromWatermillFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}

func toSlogArgs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return args
}
