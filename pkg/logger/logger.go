// pkg/logger/logger.go

package logger

import (
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var log *zap.Logger

// L returns the global logger, or nil before initialization.
func L() *zap.Logger {
	return log
}

// SetLogger replaces the package-level logger and the zap/otelzap globals,
// so otelzap.Ctx(ctx) picks up the same sinks everywhere.
func SetLogger(l *zap.Logger) {
	log = l
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

// GetLogger returns the global logger, initializing a console fallback if needed.
func GetLogger() *zap.Logger {
	if log == nil {
		InitFallback()
	}
	return log
}

// Sync flushes any buffered log entries. Call before the process exits.
func Sync() error {
	if log == nil {
		return nil
	}
	return log.Sync()
}
