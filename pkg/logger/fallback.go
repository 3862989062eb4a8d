/* pkg/logger/fallback.go */

package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFallbackLogger returns a console-only logger honoring LOG_LEVEL.
func NewFallbackLogger() *zap.Logger {
	return newConsoleLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")))
}

func newConsoleLogger(level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// InitFallback installs a console-only logger. Safe to call repeatedly.
func InitFallback() {
	if log != nil {
		return
	}
	SetLogger(NewFallbackLogger())
}

// InitializeWithFallback installs the full logger: a console core teed with a
// JSON file core at the first writable log path. Falls back to console-only
// when no path is writable.
func InitializeWithFallback() {
	initAtLevel(ParseLogLevel(os.Getenv("LOG_LEVEL")))
}

// EnableDebug rebuilds the logger at debug level, keeping the same sinks.
func EnableDebug() {
	initAtLevel(zapcore.DebugLevel)
}

func initAtLevel(level zapcore.Level) {
	path, err := FindWritableLogPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "no writable log path found, logging to console only")
		SetLogger(newConsoleLogger(level))
		return
	}

	writer, err := GetLogFileWriter(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not write to log file, falling back to console:", err)
		SetLogger(newConsoleLogger(level))
		return
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), writer, level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	SetLogger(l)
	l.Debug("Logger initialized",
		zap.String("log_level", level.String()),
		zap.String("log_path", path),
	)
}
