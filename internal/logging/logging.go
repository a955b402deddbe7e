// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment selects the baseline logger profile.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

// New creates a structured logger. Development uses the console encoder at
// debug level; production emits JSON at info level. A non-empty level
// overrides the environment default.
func New(env Environment, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case EnvironmentDevelopment, "":
		cfg = zap.NewDevelopmentConfig()
	case EnvironmentProduction:
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown logging environment %q", env)
	}

	if level != "" {
		var parsed zapcore.Level
		if err := parsed.Set(level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
