// Package logging is the module's ambient structured-logging layer. The
// teacher's own monitoring/logging.go hand-rolled a JSON formatter and
// file-rotation writer from scratch; the rest of the retrieved corpus
// (AKJUS-bsc-erigon) reaches for go.uber.org/zap for exactly this job,
// so this package wraps zap instead of re-deriving rotation and
// formatting logic the ecosystem already solved.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style JSON logger writing to stderr, scoped
// to component (e.g. "pool", "engine", "checkpoint") via a permanent
// field so every line is attributable without passing it at each call
// site.
func New(component string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		// zap's own production config never fails to build against
		// stderr; fall back to a no-op logger rather than panic from a
		// logging constructor.
		logger = zap.NewNop()
	}
	return logger.With(zap.String("component", component))
}

// Discard returns a logger that drops everything, used by tests and by
// callers that opt out of logging entirely.
func Discard() *zap.Logger { return zap.NewNop() }

// NewDevelopment builds a human-readable console logger, used by
// cmd/kvstore for interactive runs.
func NewDevelopment(component string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("component", component))
}
