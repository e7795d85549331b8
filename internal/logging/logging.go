// Package logging builds the service's zap logger.
package logging

import (
	"go.uber.org/zap"
)

// New returns a production logger, or a development logger with debug
// level when debug is set.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
