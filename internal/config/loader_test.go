package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/spelltrack/internal/config"
)

func emptyConfigFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(emptyConfigFile(t))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.DefaultPipelineWorkers, cfg.Pipeline.Workers)
	assert.Equal(t, config.DefaultPipelineTaskTimeout, cfg.Pipeline.TaskTimeout)
	assert.Empty(t, cfg.Aggregate.Dir)
	assert.Equal(t, config.DefaultAggregateSchemaVersion, cfg.Aggregate.SchemaVersion)
	assert.Equal(t, config.DefaultAggregateCompress, cfg.Aggregate.Compress)
	assert.Equal(t, config.DefaultSeriesEnabled, cfg.Series.Enabled)
	assert.Equal(t, config.DefaultSeriesValidate, cfg.Series.Validate)
	assert.Equal(t, config.DefaultLoggingLevel, cfg.Logging.Level)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), ".spelltrack.yaml")
	content := `pipeline:
  workers: 8
  task_timeout: 45s
aggregate:
  dir: /srv/spelltrack/state
  schema_version: "0.2"
  compress: true
series:
  enabled: false
logging:
  level: warn
  json: true
telemetry:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  metrics_textfile: /tmp/spelltrack.prom
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	expectedWorkers := 8

	assert.Equal(t, expectedWorkers, cfg.Pipeline.Workers)
	assert.Equal(t, "45s", cfg.Pipeline.TaskTimeout)
	assert.Equal(t, "/srv/spelltrack/state", cfg.Aggregate.Dir)
	assert.Equal(t, "0.2", cfg.Aggregate.SchemaVersion)
	assert.True(t, cfg.Aggregate.Compress)
	assert.False(t, cfg.Series.Enabled)
	assert.Equal(t, config.DefaultSeriesValidate, cfg.Series.Validate)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.OTLPInsecure)
	assert.Equal(t, "/tmp/spelltrack.prom", cfg.Telemetry.MetricsTextfile)
}

func TestLoadConfig_InvalidValue_ReturnsError(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("pipeline:\n  workers: -2\n"), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
	assert.Nil(t, cfg)
}

func TestLoadConfig_MalformedYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("pipeline: [workers"), 0o600))

	_, err := config.LoadConfig(cfgPath)
	require.Error(t, err)
}

func TestLoadConfig_EnvOverride_Pipeline(t *testing.T) {
	t.Setenv("SPELLTRACK_PIPELINE_WORKERS", "32")

	cfg, err := config.LoadConfig(emptyConfigFile(t))
	require.NoError(t, err)

	expectedWorkers := 32

	assert.Equal(t, expectedWorkers, cfg.Pipeline.Workers)
}

func TestLoadConfig_EnvOverride_NestedKey(t *testing.T) {
	t.Setenv("SPELLTRACK_AGGREGATE_SCHEMA_VERSION", "0.9")
	t.Setenv("SPELLTRACK_LOGGING_LEVEL", "error")

	cfg, err := config.LoadConfig(emptyConfigFile(t))
	require.NoError(t, err)

	assert.Equal(t, "0.9", cfg.Aggregate.SchemaVersion)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadConfig_ExplicitPath_NotFound_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}
