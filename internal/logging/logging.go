// Package logging builds the process-wide zap logger and the
// SugaredLogger values threaded through CodeVault's long-running
// components (indexer, embedder, MCP tool handlers).
//
// Built on go.uber.org/zap, with structured zap.String/zap.Int call sites
// generalized into a single constructor so every component is handed
// the same *zap.SugaredLogger rather than each building its own.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	// Development enables human-readable console output and debug level;
	// otherwise JSON output at info level is used.
	Development bool
	// Level overrides the default level ("debug", "info", "warn", "error").
	// Empty uses the Development-implied default.
	Level string
}

// New builds a *zap.SugaredLogger per opts. Callers should defer
// Sync() on the returned logger's Desugar() if they need to flush
// buffered output before exit.
func New(opts Options) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Noop returns a SugaredLogger that discards everything, for tests and
// callers that don't care about log output.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
