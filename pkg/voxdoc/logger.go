package voxdoc

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// VoxdocLogger wraps zerolog for structured logging
type VoxdocLogger struct {
	logger zerolog.Logger
}

// LogLevel represents the logging level
type LogLevel int

const (
	TraceLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// LogConfig represents the configuration for logging
type LogConfig struct {
	Level     LogLevel
	Pretty    bool
	Output    io.Writer
	AddSource bool
	Fields    map[string]interface{}
}

// DefaultLogConfig returns a default logging configuration
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  InfoLevel,
		Pretty: true,
		Output: os.Stdout,
		Fields: make(map[string]interface{}),
	}
}

// NewVoxdocLogger creates a new structured logger
func NewVoxdocLogger(config *LogConfig) *VoxdocLogger {
	if config == nil {
		config = DefaultLogConfig()
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger

	if config.Pretty {
		logger = log.Output(zerolog.ConsoleWriter{
			Out:        config.Output,
			TimeFormat: time.Kitchen,
		})
	} else {
		logger = zerolog.New(config.Output)
	}

	switch config.Level {
	case TraceLevel:
		logger = logger.Level(zerolog.TraceLevel)
	case DebugLevel:
		logger = logger.Level(zerolog.DebugLevel)
	case InfoLevel:
		logger = logger.Level(zerolog.InfoLevel)
	case WarnLevel:
		logger = logger.Level(zerolog.WarnLevel)
	case ErrorLevel:
		logger = logger.Level(zerolog.ErrorLevel)
	case FatalLevel:
		logger = logger.Level(zerolog.FatalLevel)
	}

	logger = logger.With().Timestamp().Logger()

	if config.AddSource {
		logger = logger.With().Caller().Logger()
	}

	if len(config.Fields) > 0 {
		logger = logger.With().Fields(config.Fields).Logger()
	}

	return &VoxdocLogger{
		logger: logger,
	}
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "TRACE", "trace":
		return TraceLevel
	case "DEBUG", "debug":
		return DebugLevel
	case "WARNING", "WARN", "warn":
		return WarnLevel
	case "ERROR", "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// WithComponent adds a component field to the logger
func (l *VoxdocLogger) WithComponent(component string) *VoxdocLogger {
	return &VoxdocLogger{
		logger: l.logger.With().Str("component", component).Logger(),
	}
}

// WithField adds a field to the logger
func (l *VoxdocLogger) WithField(key string, value interface{}) *VoxdocLogger {
	return &VoxdocLogger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

// WithFields adds multiple fields to the logger
func (l *VoxdocLogger) WithFields(fields map[string]interface{}) *VoxdocLogger {
	return &VoxdocLogger{
		logger: l.logger.With().Fields(fields).Logger(),
	}
}

// WithError adds an error field to the logger
func (l *VoxdocLogger) WithError(err error) *VoxdocLogger {
	return &VoxdocLogger{
		logger: l.logger.With().Err(err).Logger(),
	}
}

// Trace logs a trace level message
func (l *VoxdocLogger) Trace(msg string) {
	l.logger.Trace().Msg(msg)
}

// Debug logs a debug level message
func (l *VoxdocLogger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Debugf logs a debug level formatted message
func (l *VoxdocLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// Info logs an info level message
func (l *VoxdocLogger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs an info level formatted message
func (l *VoxdocLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warn level message
func (l *VoxdocLogger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Warnf logs a warn level formatted message
func (l *VoxdocLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Error logs an error level message
func (l *VoxdocLogger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// Errorf logs an error level formatted message
func (l *VoxdocLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// Fatal logs a fatal level message and exits
func (l *VoxdocLogger) Fatal(msg string) {
	l.logger.Fatal().Msg(msg)
}

// LogAudioEvent logs audio-related events with structured fields
func (l *VoxdocLogger) LogAudioEvent(event string, fields map[string]interface{}) {
	l.logger.Debug().
		Str("event_type", "audio").
		Str("event", event).
		Fields(fields).
		Msg("Audio event")
}

// LogSessionEvent logs live session lifecycle events
func (l *VoxdocLogger) LogSessionEvent(event string, state ConnectionState, fields map[string]interface{}) {
	l.logger.Info().
		Str("event_type", "session").
		Str("event", event).
		Str("state", string(state)).
		Fields(fields).
		Msg("Session event")
}

// LogPatchEvent logs document patch outcomes
func (l *VoxdocLogger) LogPatchEvent(op, selector string, success bool, fields map[string]interface{}) {
	l.logger.Info().
		Str("event_type", "patch").
		Str("op", op).
		Str("selector", selector).
		Bool("success", success).
		Fields(fields).
		Msg("Patch event")
}

// LogError logs a VoxdocError with structured fields
func (l *VoxdocLogger) LogError(err *VoxdocError) {
	if err == nil {
		return
	}
	l.logger.Error().
		Str("error_code", err.Code).
		Float64("timestamp", err.Timestamp).
		Fields(err.Details).
		Msg(err.Message)
}

// LogMessageEvent logs wire message events
func (l *VoxdocLogger) LogMessageEvent(msgType string, fields map[string]interface{}) {
	l.logger.Debug().
		Str("event_type", "message").
		Str("message_type", msgType).
		Fields(fields).
		Msg("Message event")
}

// Global logger instance
var globalLogger *VoxdocLogger

func init() {
	globalLogger = NewVoxdocLogger(DefaultLogConfig())
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *VoxdocLogger {
	return globalLogger
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *VoxdocLogger) {
	globalLogger = logger
}

// Global logging functions for convenience
func Debug(msg string) {
	globalLogger.Debug(msg)
}

func Debugf(format string, args ...interface{}) {
	globalLogger.Debugf(format, args...)
}

func Info(msg string) {
	globalLogger.Info(msg)
}

func Infof(format string, args ...interface{}) {
	globalLogger.Infof(format, args...)
}

func Warn(msg string) {
	globalLogger.Warn(msg)
}

func Warnf(format string, args ...interface{}) {
	globalLogger.Warnf(format, args...)
}

func Error(msg string) {
	globalLogger.Error(msg)
}

func Errorf(format string, args ...interface{}) {
	globalLogger.Errorf(format, args...)
}

func LogVoxdocError(err *VoxdocError) {
	globalLogger.LogError(err)
}
