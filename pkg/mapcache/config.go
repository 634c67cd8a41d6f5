package mapcache

import (
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config holds mapper creation parameters.
type Config struct {
	// TeardownRetries bounds the non-blocking retry passes buffer teardown
	// makes before falling back to blocking acquisition.
	TeardownRetries uint64
	// TeardownBackoff is the yield interval between those passes.
	TeardownBackoff time.Duration
	// ClosePoolSize is the worker pool size used by Close to tear down
	// device indexes in parallel.
	ClosePoolSize int
	// Meter and Tracer are optional OpenTelemetry hooks.
	Meter  metric.Meter
	Tracer trace.Tracer
	// LogOutput overrides the destination of the internal logger.
	LogOutput io.Writer
}

// DefaultConfig returns the default mapper configuration.
func DefaultConfig() *Config {
	return &Config{
		TeardownRetries: 16,
		TeardownBackoff: 50 * time.Microsecond,
		ClosePoolSize:   4,
	}
}

// VerifyConfig validates user-supplied configuration.
func VerifyConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.TeardownBackoff <= 0 {
		return errors.New("TeardownBackoff must be positive")
	}
	if c.ClosePoolSize <= 0 {
		return errors.New("ClosePoolSize must be positive")
	}
	return nil
}
