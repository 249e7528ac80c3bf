// Package observability wires up the process-wide structured logger used
// by cmd/server and cmd/migrate, and by the policy engine to report
// failures to persist an audit record.
package observability

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	logger *zap.SugaredLogger = zap.NewNop().Sugar()
)

// Init builds the singleton logger from the LOG_LEVEL environment value
// ("debug", "info", "warn", "error"; defaults to "info") and a
// human/dev flag. Subsequent calls are no-ops.
func Init(level string, dev bool) {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if dev {
			cfg = zap.NewDevelopmentConfig()
		}
		if lvl, err := zap.ParseAtomicLevel(strings.ToLower(level)); err == nil {
			cfg.Level = lvl
		}
		z, err := cfg.Build()
		if err != nil {
			return
		}
		logger = z.Sugar()
	})
}

// L returns the process-wide sugared logger. Safe to call before Init;
// it returns a no-op logger until Init runs.
func L() *zap.SugaredLogger {
	return logger
}
