package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal     = "spelltrack.files.total"
	metricFileDuration   = "spelltrack.file.duration.seconds"
	metricRunDuration    = "spelltrack.run.duration.seconds"
	metricAggregateFiles = "spelltrack.aggregate.entries"
	metricPendingFiles   = "spelltrack.pending.files"

	attrOutcome = "outcome"
	attrKind    = "kind"
)

// File outcomes recorded by RunMetrics.RecordFile.
const (
	OutcomeMerged  = "merged"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
)

// fileBucketBoundaries covers 1ms to 60s; a single test file is parsed and
// classified in well under a second unless the worker is stuck.
var fileBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// runBucketBoundaries covers 10ms to 600s for whole-corpus runs.
var runBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// RunMetrics holds OTel instruments for aggregation runs.
type RunMetrics struct {
	filesTotal     metric.Int64Counter
	fileDuration   metric.Float64Histogram
	runDuration    metric.Float64Histogram
	aggregateFiles metric.Int64Gauge
	pendingFiles   metric.Int64Gauge
}

// RunStats is the outcome of one aggregation run, decoupled from pipeline types.
type RunStats struct {
	Duration       time.Duration
	Pending        int64
	AggregateFiles int64
}

// NewRunMetrics creates run metric instruments from the given meter.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &RunMetrics{
		filesTotal: b.counter(metricFilesTotal,
			"Test files handled, by outcome and test kind", "{file}"),
		fileDuration: b.histogram(metricFileDuration,
			"Per-file parse and summary duration in seconds", "s", fileBucketBoundaries...),
		runDuration: b.histogram(metricRunDuration,
			"Whole run duration in seconds", "s", runBucketBoundaries...),
		aggregateFiles: b.gauge(metricAggregateFiles,
			"Test entries held by the aggregate after the run", "{file}"),
		pendingFiles: b.gauge(metricPendingFiles,
			"Test files that were not yet aggregated at the start of the run", "{file}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordFile records one dispatched file.
// Safe to call on a nil receiver (no-op).
func (rm *RunMetrics) RecordFile(ctx context.Context, kind, outcome string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrOutcome, outcome),
	)

	rm.filesTotal.Add(ctx, 1, attrs)
	rm.fileDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordRun records the totals of a completed run.
// Safe to call on a nil receiver (no-op).
func (rm *RunMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if rm == nil {
		return
	}

	rm.runDuration.Record(ctx, stats.Duration.Seconds())
	rm.aggregateFiles.Record(ctx, stats.AggregateFiles)
	rm.pendingFiles.Record(ctx, stats.Pending)
}

// metricBuilder accumulates OTel instrument creation errors,
// enabling batch construction with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) gauge(name, desc, unit string) metric.Int64Gauge {
	g, err := b.meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return g
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}
