package config

import (
	"github.com/Sumatoshi-tech/spelltrack/internal/observability"
)

// Observability maps the logging and telemetry sections onto an
// observability.Config. The config must have passed Validate.
func (c *Config) Observability(serviceVersion string) observability.Config {
	out := observability.DefaultConfig()

	out.ServiceVersion = serviceVersion
	out.Environment = c.Telemetry.Environment
	out.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	out.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	out.OTLPInsecure = c.Telemetry.OTLPInsecure
	out.SampleRatio = c.Telemetry.SampleRatio
	out.TraceVerbose = c.Telemetry.TraceVerbose
	out.MetricsTextfile = c.Telemetry.MetricsTextfile
	out.LogJSON = c.Logging.JSON

	if level, err := c.LogLevel(); err == nil {
		out.LogLevel = level
	}

	return out
}
