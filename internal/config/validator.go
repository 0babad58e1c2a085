package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCallTimeout is returned when the call timeout is not positive
	ErrInvalidCallTimeout = errors.New("call timeout must be > 0")

	// ErrInvalidBatchTimeout is returned when the batch timeout is not positive
	ErrInvalidBatchTimeout = errors.New("batch timeout must be > 0")

	// ErrBatchTimeoutTooSmall is returned when the batch timeout is below the call timeout
	ErrBatchTimeoutTooSmall = errors.New("batch timeout must be >= call timeout")

	// ErrInvalidPoolSize is returned when the pool size is below 1
	ErrInvalidPoolSize = errors.New("pool size must be >= 1")

	// ErrInvalidMaxOutputBytes is returned when the output cap is negative
	ErrInvalidMaxOutputBytes = errors.New("max output bytes must be >= 0")

	// ErrJournalPathRequired is returned when the journal is enabled without a path
	ErrJournalPathRequired = errors.New("journal path is required when the journal is enabled")
)

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Execution.CallTimeout <= 0 {
		return ErrInvalidCallTimeout
	}
	if c.Execution.BatchTimeout <= 0 {
		return ErrInvalidBatchTimeout
	}
	if c.Execution.BatchTimeout < c.Execution.CallTimeout {
		return ErrBatchTimeoutTooSmall
	}
	if c.Execution.PoolSize < 1 {
		return ErrInvalidPoolSize
	}
	if c.Execution.MaxOutputBytes < 0 {
		return ErrInvalidMaxOutputBytes
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return ErrJournalPathRequired
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	return nil
}
