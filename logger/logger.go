// logger/logger.go
// Ref: https://betterstack.com/community/guides/logging/go/zap/#logging-errors-with-zap
package logger

import (
	"errors"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the level of logging. Higher values denote more severe log messages.
type LogLevel int

const (
	// LogLevelDebug is for messages that are useful during software debugging.
	LogLevelDebug LogLevel = -1 // Zap's DEBUG level
	// LogLevelInfo is for informational messages, indicating normal operation.
	LogLevelInfo LogLevel = 0 // Zap's INFO level
	// LogLevelWarn is for messages that highlight potential issues in the system.
	LogLevelWarn LogLevel = 1 // Zap's WARN level
	// LogLevelError is for messages that highlight errors in the application's execution.
	LogLevelError LogLevel = 2 // Zap's ERROR level
	// LogLevelDPanic is for severe error conditions that are actionable in development.
	LogLevelDPanic LogLevel = 3 // Zap's DPANIC level
	// LogLevelPanic is for severe error conditions that should cause the program to panic.
	LogLevelPanic LogLevel = 4 // Zap's PANIC level
	// LogLevelFatal is for errors that require immediate program termination.
	LogLevelFatal LogLevel = 5 // Zap's FATAL level
	// LogLevelNone disables every level handled by this package.
	LogLevelNone LogLevel = 6
)

// logLevelNames maps configuration spellings to levels. Both the long form used
// in configuration files and the short form used on the command line are accepted.
var logLevelNames = map[string]LogLevel{
	"logleveldebug":  LogLevelDebug,
	"loglevelinfo":   LogLevelInfo,
	"loglevelwarn":   LogLevelWarn,
	"loglevelerror":  LogLevelError,
	"logleveldpanic": LogLevelDPanic,
	"loglevelpanic":  LogLevelPanic,
	"loglevelfatal":  LogLevelFatal,
	"debug":          LogLevelDebug,
	"info":           LogLevelInfo,
	"warn":           LogLevelWarn,
	"error":          LogLevelError,
	"dpanic":         LogLevelDPanic,
	"panic":          LogLevelPanic,
	"fatal":          LogLevelFatal,
}

// ParseLogLevelFromString converts "LogLevelDebug" or "debug" (any case) to a LogLevel.
// Unknown names yield LogLevelNone.
func ParseLogLevelFromString(levelStr string) LogLevel {
	if level, ok := logLevelNames[strings.ToLower(strings.TrimSpace(levelStr))]; ok {
		return level
	}
	return LogLevelNone
}

// IsValidLogLevel reports whether levelStr names a level ParseLogLevelFromString understands.
func IsValidLogLevel(levelStr string) bool {
	_, ok := logLevelNames[strings.ToLower(strings.TrimSpace(levelStr))]
	return ok
}

// Logger is the logging collaborator injected into the token guard, the request
// executor and the client. Error returns an error carrying msg so call sites can
// log and return in one statement.
type Logger interface {
	GetLogLevel() LogLevel
	SetLevel(level LogLevel)
	With(fields ...zapcore.Field) Logger
	Debug(msg string, fields ...zapcore.Field)
	Info(msg string, fields ...zapcore.Field)
	Warn(msg string, fields ...zapcore.Field)
	Error(msg string, fields ...zapcore.Field) error
}

// defaultLogger is an implementation of the Logger interface using Uber's zap logging library.
// The logLevel field filters entries before they reach zap.
type defaultLogger struct {
	logger   *zap.Logger // logger holds the reference to the zap.Logger instance.
	logLevel LogLevel    // logLevel determines the current logging level (e.g., DEBUG, INFO, WARN).
}

// NewLogger wraps an existing zap logger. Useful when the host application already
// owns a zap configuration, and in tests with zaptest/observer.
func NewLogger(zapLogger *zap.Logger, level LogLevel) Logger {
	return &defaultLogger{
		logger:   zapLogger,
		logLevel: level,
	}
}

// GetLogLevel returns the current logging level of the logger.
func (d *defaultLogger) GetLogLevel() LogLevel {
	return d.logLevel
}

// SetLevel updates the logging level of the logger.
func (d *defaultLogger) SetLevel(level LogLevel) {
	d.logLevel = level
}

// With returns a new logger instance carrying the given fields on every entry.
func (d *defaultLogger) With(fields ...zapcore.Field) Logger {
	return &defaultLogger{
		logger:   d.logger.With(fields...),
		logLevel: d.logLevel,
	}
}

// Debug logs a message at the Debug level. Request and response bodies are only
// ever written at this level.
func (d *defaultLogger) Debug(msg string, fields ...zapcore.Field) {
	if d.logLevel <= LogLevelDebug {
		d.logger.Debug(msg, fields...)
	}
}

// Info logs a message at the Info level.
func (d *defaultLogger) Info(msg string, fields ...zapcore.Field) {
	if d.logLevel <= LogLevelInfo {
		d.logger.Info(msg, fields...)
	}
}

// Warn logs a message at the Warn level.
func (d *defaultLogger) Warn(msg string, fields ...zapcore.Field) {
	if d.logLevel <= LogLevelWarn {
		d.logger.Warn(msg, fields...)
	}
}

// Error logs a message at the Error level and returns an error with the same message.
func (d *defaultLogger) Error(msg string, fields ...zapcore.Field) error {
	if d.logLevel <= LogLevelError {
		d.logger.Error(msg, fields...)
	}
	return errors.New(msg)
}
