// Package logger provides structured logging for policypipe
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with policypipe-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string    `yaml:"level"`  // debug, info, warn, error
	Pretty     bool      `yaml:"pretty"` // console output for development
	Output     io.Writer `yaml:"-"`
	WithCaller bool      `yaml:"with_caller"`
}

// ParseLevel maps a config level name to a zerolog level. Unknown names
// fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch name {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a structured logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "policypipe").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Component returns a sub-logger tagged with a component name
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// LogStageFailure records a pipeline stage failure before it propagates.
func (l *Logger) LogStageFailure(stage, file, policyID string, err error) {
	event := l.zlog.Error().
		Str("stage", stage).
		Str("file", file).
		Err(err)
	if policyID != "" {
		event = event.Str("policy_id", policyID)
	}
	event.Msg("pipeline stage failed")
}

// LogConversion records a completed conversion.
func (l *Logger) LogConversion(file string, pages int, bytes int, duration time.Duration) {
	l.zlog.Info().
		Str("file", file).
		Int("pages", pages).
		Int("bytes", bytes).
		Dur("duration_ms", duration).
		Msg("conversion completed")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(addr, dbPath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Str("addr", addr).
		Str("database", dbPath).
		Msg("policypipe server starting")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("policypipe server shutting down")
}

// InitGlobal builds a logger from cfg and installs it as the zerolog
// global logger.
func InitGlobal(cfg Config) *Logger {
	l := New(cfg)
	log.Logger = l.zlog
	return l
}
