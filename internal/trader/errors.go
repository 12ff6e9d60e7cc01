package trader

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the local limiter denies a quote or swap.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotReady is returned by Start on an orchestrator that failed construction.
	ErrNotReady = errors.New("orchestrator not ready")
)

// ConfigError is a fatal construction error.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
