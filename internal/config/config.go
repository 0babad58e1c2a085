package config

import (
	"time"

	"github.com/mirel/lanes/internal/tracing"
	"github.com/mirel/lanes/pkg/dispatch"
)

// Config represents the execution engine configuration
type Config struct {
	// Execution settings for the dispatcher
	Execution ExecutionConfig `json:"execution" mapstructure:"execution"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Journal configuration
	Journal JournalConfig `json:"journal" mapstructure:"journal"`

	// Tracing configuration
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ExecutionConfig holds the dispatcher's execution knobs
type ExecutionConfig struct {
	// CallTimeout bounds a single tool call unless the tool overrides it
	CallTimeout time.Duration `json:"call_timeout" mapstructure:"call_timeout"`

	// BatchTimeout bounds the concurrent and isolated lanes of one batch
	BatchTimeout time.Duration `json:"batch_timeout" mapstructure:"batch_timeout"`

	// PoolSize is the number of isolated-lane workers
	PoolSize int `json:"pool_size" mapstructure:"pool_size"`

	// MaxOutputBytes truncates journaled results beyond this size
	MaxOutputBytes int `json:"max_output_bytes" mapstructure:"max_output_bytes"`
}

// DispatchSettings converts the execution knobs into dispatcher settings,
// e.g. for a hot-reload callback feeding Dispatcher.Reconfigure.
func (ec ExecutionConfig) DispatchSettings() dispatch.Settings {
	return dispatch.Settings{
		CallTimeout:  ec.CallTimeout,
		BatchTimeout: ec.BatchTimeout,
		PoolSize:     ec.PoolSize,
	}
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// JournalConfig holds execution journal configuration
type JournalConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// InitTracing installs the OpenTelemetry tracer provider when tracing is
// enabled. When disabled, the no-op provider stays in effect and spans cost
// nothing.
func (c *Config) InitTracing() error {
	if !c.Tracing.Enabled {
		return nil
	}

	return tracing.Init(c.Tracing.ServiceName)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Execution: ExecutionConfig{
			CallTimeout:    10 * time.Second,
			BatchTimeout:   60 * time.Second,
			PoolSize:       4,
			MaxOutputBytes: 10 * 1024,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Journal: JournalConfig{
			Enabled: false,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "lanes",
		},
	}
}
