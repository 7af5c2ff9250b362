// Package logger provides leveled logging for the client packages.
//
// It wraps rs/zerolog behind a small printf-style interface so that the
// rest and websocket clients can log without being tied to a concrete
// logging backend.
package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// --------------------------------------------------------------------------------
// Types

// Interface is the logging contract consumed by the client packages.
type Interface interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// Logger is a zerolog-backed implementation of Interface.
type Logger struct {
	zl zerolog.Logger
}

var _ Interface = (*Logger)(nil)

// --------------------------------------------------------------------------------
// Constructors

// New creates a Logger writing to w at the given level.
//
// Accepted levels are the zerolog level names ("debug", "info", "warn",
// "error", "disabled", ...). An unknown level is an error.
func New(level string, w io.Writer) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zl := zerolog.New(w).Level(lvl).With().Timestamp().Logger()

	return &Logger{zl: zl}, nil
}

// Nop returns a Logger that discards everything. Useful in tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// From wraps an existing zerolog.Logger.
func From(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// --------------------------------------------------------------------------------
// Interface Implementation

// Debug logs a message at debug level.
func (l *Logger) Debug(format string, v ...any) {
	l.zl.Debug().Msgf(format, v...)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, v ...any) {
	l.zl.Info().Msgf(format, v...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, v ...any) {
	l.zl.Warn().Msgf(format, v...)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, v ...any) {
	l.zl.Error().Msgf(format, v...)
}
