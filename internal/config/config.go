package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level configuration struct for spelltrack.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Series    SeriesConfig    `mapstructure:"series"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PipelineConfig holds worker pool knobs.
type PipelineConfig struct {
	// Workers is the pool size; 0 means one per CPU.
	Workers int `mapstructure:"workers"`
	// TaskTimeout bounds a single file, as a Go duration ("30s", "5m").
	// Empty or "0" disables the timeout.
	TaskTimeout string `mapstructure:"task_timeout"`
}

// AggregateConfig holds aggregate document settings.
type AggregateConfig struct {
	// Dir holds the aggregate document; empty means the corpus directory.
	Dir           string `mapstructure:"dir"`
	SchemaVersion string `mapstructure:"schema_version"`
	Compress      bool   `mapstructure:"compress"`
}

// SeriesConfig holds chart series output settings.
type SeriesConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Validate bool `mapstructure:"validate"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus settings.
type TelemetryConfig struct {
	Environment     string  `mapstructure:"environment"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string  `mapstructure:"otlp_headers"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	TraceVerbose    bool    `mapstructure:"trace_verbose"`
	MetricsTextfile string  `mapstructure:"metrics_textfile"`
}

// sampleRatioMax is the upper bound for the trace sampling ratio.
const sampleRatioMax = 1.0

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("pipeline.workers must be non-negative")
	// ErrInvalidTaskTimeout indicates an unparsable or negative task timeout.
	ErrInvalidTaskTimeout = errors.New("pipeline.task_timeout must be a non-negative duration")
	// ErrEmptySchemaVersion indicates a blank aggregate schema version.
	ErrEmptySchemaVersion = errors.New("aggregate.schema_version must not be empty")
	// ErrInvalidLogLevel indicates an unknown logging level.
	ErrInvalidLogLevel = errors.New("logging.level must be one of debug, info, warn, error")
	// ErrInvalidSampleRatio indicates the sampling ratio is out of range.
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 0 {
		return ErrInvalidWorkers
	}

	_, timeoutErr := c.TaskTimeout()
	if timeoutErr != nil {
		return timeoutErr
	}

	if strings.TrimSpace(c.Aggregate.SchemaVersion) == "" {
		return ErrEmptySchemaVersion
	}

	_, levelErr := c.LogLevel()
	if levelErr != nil {
		return levelErr
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > sampleRatioMax {
		return ErrInvalidSampleRatio
	}

	return nil
}

// TaskTimeout parses pipeline.task_timeout.
func (c *Config) TaskTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.Pipeline.TaskTimeout)
	if raw == "" {
		return 0, nil
	}

	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTaskTimeout, err)
	}

	if timeout < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTaskTimeout, raw)
	}

	return timeout, nil
}

// LogLevel parses logging.level. Empty means info.
func (c *Config) LogLevel() (slog.Level, error) {
	raw := strings.TrimSpace(c.Logging.Level)
	if raw == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level

	err := level.UnmarshalText([]byte(raw))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, raw)
	}

	return level, nil
}
