package log

import (
	"github.com/rs/zerolog"

	"github.com/kochabx/courier/log/desensitize"
)

// Option Logger 选项函数
type Option func(*Logger)

// WithLevel sets the minimum level of this logger.
func WithLevel(level zerolog.Level) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.Level(level)
	}
}

// WithLevelString parses level ("debug", "info", ...) and falls back to
// info when it is not a known level name.
func WithLevelString(level string) Option {
	return func(l *Logger) {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil || level == "" {
			parsed = zerolog.InfoLevel
		}
		l.Logger = l.Logger.Level(parsed)
	}
}

// WithCaller adds the caller location to every event.
func WithCaller() Option {
	return func(l *Logger) {
		l.Logger = l.Logger.With().Caller().Logger()
	}
}

// WithField adds a constant string field to every event, e.g. a component name.
func WithField(key, value string) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.With().Str(key, value).Logger()
	}
}

// WithDesensitize masks output with hook's rules before it reaches the writer.
func WithDesensitize(hook *desensitize.Hook) Option {
	return func(l *Logger) {
		if hook == nil || l.out == nil {
			return
		}
		l.hook = hook
		l.Logger = l.Logger.Output(desensitize.NewWriter(l.out, hook))
	}
}
