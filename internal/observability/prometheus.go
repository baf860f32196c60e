package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// textfileWriter bridges OTel instruments to a Prometheus registry that is
// dumped to a node-exporter textfile at the end of a batch run.
type textfileWriter struct {
	path     string
	registry *prometheus.Registry
	reader   sdkmetric.Reader
}

// newTextfileWriter creates a Prometheus exporter backed by its own registry
// so repeated initialization never hits duplicate-collector errors.
func newTextfileWriter(path string) (*textfileWriter, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &textfileWriter{
		path:     path,
		registry: registry,
		reader:   exporter,
	}, nil
}

// Write gathers the registry and atomically replaces the textfile.
func (tw *textfileWriter) Write() error {
	err := prometheus.WriteToTextfile(tw.path, tw.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", tw.path, err)
	}

	return nil
}
