package log

import (
	"github.com/rs/zerolog"

	"github.com/kochabx/courier/log/desensitize"
)

// G is the process-wide logger used when no logger is injected. Credentials
// in logged URLs and JSON fields are masked.
var G = New(WithDesensitize(desensitize.NewHook(desensitize.BuiltinRules()...)))

// SetGlobalLogger replaces G.
func SetGlobalLogger(logger *Logger) {
	G = logger
}

// SetGlobalLevel sets the minimum level of G.
func SetGlobalLevel(level zerolog.Level) {
	G.Logger = G.Logger.Level(level)
}

// Debug starts a debug event on G.
func Debug() *zerolog.Event {
	return G.Debug()
}

// Info starts an info event on G.
func Info() *zerolog.Event {
	return G.Info()
}

// Warn starts a warn event on G.
func Warn() *zerolog.Event {
	return G.Warn()
}

// Error starts an error event on G with a stack trace.
func Error() *zerolog.Event {
	return G.Error().Stack()
}

// Debugf logs a formatted debug message on G.
func Debugf(format string, args ...any) {
	G.Debug().Msgf(format, args...)
}

// Infof logs a formatted info message on G.
func Infof(format string, args ...any) {
	G.Info().Msgf(format, args...)
}

// Warnf logs a formatted warn message on G.
func Warnf(format string, args ...any) {
	G.Warn().Msgf(format, args...)
}

// Errorf logs a formatted error message on G with a stack trace.
func Errorf(format string, args ...any) {
	G.Error().Stack().Msgf(format, args...)
}
