package utils

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

var (
	logger     = zerolog.New(os.Stderr).With().Timestamp().Logger()
	loggerOnce sync.Once
)

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      zerolog.Level
	Console    bool
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultLoggerConfig logs to the console only at info level.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      zerolog.InfoLevel,
		Console:    true,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// InitLogger initializes the global logger with the given config
func InitLogger(cfg LoggerConfig) {
	loggerOnce.Do(func() {
		var writers []io.Writer

		if cfg.Console {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		}

		if cfg.FilePath != "" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			})
		}

		if len(writers) == 0 {
			writers = append(writers, os.Stderr)
		}

		zerolog.TimeFieldFormat = time.RFC3339
		logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(cfg.Level)
	})
}

// ParseLevel maps LOG_LEVEL values, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	logger.Info().
		Str("module", strings.ToUpper(module)).
		Str("action", action).
		Str("request_id", strings.TrimSpace(requestID)).
		Msg(message)
}

// Info logs an info message
func Info(msg string, fields ...any) {
	logWithFields(logger.Info(), msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...any) {
	logWithFields(logger.Warn(), msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...any) {
	logWithFields(logger.Error(), msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...any) {
	logWithFields(logger.Debug(), msg, fields...)
}

// Logger returns the underlying zerolog.Logger.
func Logger() zerolog.Logger {
	return logger
}

// logWithFields treats fields as key/value pairs; an "error" key is attached with Err.
func logWithFields(event *zerolog.Event, msg string, fields ...any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if key == "error" {
			if err, ok := fields[i+1].(error); ok && err != nil {
				event = event.Err(err)
				continue
			}
		}
		event = event.Interface(key, fields[i+1])
	}
	event.Msg(msg)
}
