package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".spelltrack"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for spelltrack settings.
const envPrefix = "SPELLTRACK"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Default values.
const (
	DefaultPipelineWorkers     = 0
	DefaultPipelineTaskTimeout = "5m"
	// DefaultAggregateSchemaVersion tags the aggregate layout written by this
	// release. Changing it makes the next run recompute the whole corpus.
	DefaultAggregateSchemaVersion = "0.1"
	DefaultAggregateCompress      = false
	DefaultSeriesEnabled          = true
	DefaultSeriesValidate         = true
	DefaultLoggingLevel           = "info"
	DefaultLoggingJSON            = false
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// applyDefaults registers every key, which also lets AutomaticEnv resolve
// nested keys during Unmarshal.
func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("pipeline.workers", DefaultPipelineWorkers)
	viperCfg.SetDefault("pipeline.task_timeout", DefaultPipelineTaskTimeout)

	viperCfg.SetDefault("aggregate.dir", "")
	viperCfg.SetDefault("aggregate.schema_version", DefaultAggregateSchemaVersion)
	viperCfg.SetDefault("aggregate.compress", DefaultAggregateCompress)

	viperCfg.SetDefault("series.enabled", DefaultSeriesEnabled)
	viperCfg.SetDefault("series.validate", DefaultSeriesValidate)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.trace_verbose", false)
	viperCfg.SetDefault("telemetry.metrics_textfile", "")
}
