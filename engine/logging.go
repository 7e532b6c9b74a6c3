package engine

import "go.uber.org/zap"

// NewLogger builds the process-wide structured logger. debug selects
// zap's development config (console-friendly, caller/stack on every
// line); otherwise production config at info level, or warn level when
// quiet output was requested. debug wins over quiet.
func NewLogger(debug, quiet bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		if quiet {
			cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		}
	}
	return cfg.Build()
}
