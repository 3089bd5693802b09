// Package logging builds the service logger and scrubs secrets from log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New constructs the service logger. Local environments get the development
// config (console encoder, debug level); everything else gets production JSON.
func New(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if env == "local" || env == "test" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
