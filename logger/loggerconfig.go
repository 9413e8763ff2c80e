// logger/loggerconfig.go
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogOutputJSON          = "json"
	LogOutputHumanReadable = "pretty"
)

// BuildLogger creates and returns a new zap logger instance.
// JSON output is the default; "pretty" switches to zap's console encoder with colored levels
// and the given console separator. Entries go to stderr so that stdout stays free for command
// output, and are also appended to a file when logExportPath is set (see EnsureLogFilePath).
// The core is wrapped so that the 'request_id' and 'service' fields appear at the end of each entry.
func BuildLogger(logLevel LogLevel, logOutputFormat, logConsoleSeparator, logExportPath string) (Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()

	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderCfg.MessageKey = "msg"
	encoderCfg.LevelKey = "level"
	encoderCfg.NameKey = "logger"
	encoderCfg.StacktraceKey = "stacktrace"
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder

	encoding := "json"
	if logOutputFormat == LogOutputHumanReadable {
		encoding = "console"
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.ConsoleSeparator = logConsoleSeparator
	}

	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(convertToZapLevel(logLevel)),
		Development:       false,
		Encoding:          encoding,
		DisableCaller:     true,
		DisableStacktrace: true,
		Sampling:          nil,
		EncoderConfig:     encoderCfg,
		OutputPaths: []string{
			"stderr",
		},
		// Zap's internal errors only.
		ErrorOutputPaths: []string{
			"stderr",
		},
	}

	if logExportPath != "" {
		logFile, err := EnsureLogFilePath(logExportPath)
		if err != nil {
			return nil, fmt.Errorf("preparing log export path: %w", err)
		}
		config.OutputPaths = append(config.OutputPaths, logFile)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building zap logger: %w", err)
	}

	wrappedCore := &customCore{Core: logger.Core()}

	return &defaultLogger{
		logger:   zap.New(wrappedCore),
		logLevel: logLevel,
	}, nil
}

// convertToZapLevel converts the custom LogLevel to a zapcore.Level
func convertToZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zap.DebugLevel
	case LogLevelInfo:
		return zap.InfoLevel
	case LogLevelWarn:
		return zap.WarnLevel
	case LogLevelError:
		return zap.ErrorLevel
	case LogLevelDPanic:
		return zap.DPanicLevel
	case LogLevelPanic:
		return zap.PanicLevel
	case LogLevelFatal:
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
