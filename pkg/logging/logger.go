package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the root zap logger for the engine.
// Local environments get human-readable console output; everything else
// gets production JSON suitable for log aggregation.
func NewLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" || env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
