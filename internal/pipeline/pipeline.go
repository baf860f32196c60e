// Package pipeline runs one incremental aggregation pass over a corpus.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/corpus"
	"github.com/Sumatoshi-tech/spelltrack/internal/dispatch"
	"github.com/Sumatoshi-tech/spelltrack/internal/observability"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
)

// Span names for the pipeline stages.
const (
	SpanRun      = "spelltrack.pipeline.run"
	SpanScan     = "spelltrack.pipeline.scan"
	SpanDispatch = "spelltrack.pipeline.dispatch"
	SpanPersist  = "spelltrack.pipeline.persist"
)

// ErrShortResults is returned when the dispatcher closes its result channel
// before delivering one result per submitted path.
var ErrShortResults = errors.New("dispatcher returned fewer results than tasks")

// Option errors.
var (
	ErrNoCorpus = errors.New("no corpus filesystem")
	ErrNoStore  = errors.New("no aggregate store")
)

// Store loads and saves the aggregate.
type Store interface {
	aggregate.Loader
	Save(t *aggregate.Tree) error
	Path() string
}

// Options configures a run.
type Options struct {
	// FS is the corpus root, usually os.DirFS(corpusDir).
	FS fs.FS
	// Store holds the aggregate between runs.
	Store Store
	// SchemaVersion is the aggregate layout version. Required.
	SchemaVersion string

	Workers     int
	TaskTimeout time.Duration
	Registry    summary.Registry

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.RunMetrics
}

// Stats summarizes a run.
type Stats struct {
	Load     aggregate.LoadReport
	Scanned  int
	Pending  int
	Merged   int
	Skipped  int
	Failed   int
	TimedOut int
	Entries  int
	Saved    bool
	Elapsed  time.Duration
}

// Run loads or resets the aggregate, processes every corpus file not yet
// aggregated, merges results as they arrive and persists the tree.
//
// Files that fail to parse or build are counted and skipped; they are
// retried on the next run only if they were never merged. Context
// cancellation stops dispatch, persists what was merged and returns the
// context error.
func Run(ctx context.Context, opts Options) (*aggregate.Tree, Stats, error) {
	start := time.Now()
	logger := opts.logger()

	if opts.FS == nil {
		return nil, Stats{}, ErrNoCorpus
	}

	if opts.Store == nil {
		return nil, Stats{}, ErrNoStore
	}

	ctx, span := opts.tracer().Start(ctx, SpanRun)
	defer span.End()

	var stats Stats

	tree, report, err := aggregate.Guard{Version: opts.SchemaVersion}.LoadOrReset(opts.Store)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, stats, err
	}

	stats.Load = report
	logLoad(ctx, logger, opts.Store.Path(), report)

	pending, scanned, err := scan(ctx, opts, tree)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, stats, err
	}

	stats.Scanned = scanned
	stats.Pending = len(pending)

	logger.InfoContext(ctx, "corpus scanned",
		slog.Int("files", scanned),
		slog.Int("pending", len(pending)),
		slog.Int("aggregated", tree.Len()),
	)

	collectErr := collect(ctx, opts, tree, pending, &stats)

	stats.Entries = tree.Len()

	if stats.Merged > 0 || report.Outcome != aggregate.OutcomeLoaded {
		persistErr := persist(ctx, opts, tree)
		if persistErr != nil {
			span.RecordError(persistErr)
			span.SetStatus(codes.Error, persistErr.Error())

			return tree, stats, errors.Join(collectErr, persistErr)
		}

		stats.Saved = true
	} else {
		logger.InfoContext(ctx, "aggregate unchanged", slog.String("path", opts.Store.Path()))
	}

	stats.Elapsed = time.Since(start)

	opts.Metrics.RecordRun(ctx, observability.RunStats{
		Duration:       stats.Elapsed,
		Pending:        int64(stats.Pending),
		AggregateFiles: int64(stats.Entries),
	})

	span.SetAttributes(
		attribute.Int("spelltrack.files.scanned", stats.Scanned),
		attribute.Int("spelltrack.files.merged", stats.Merged),
		attribute.Int("spelltrack.files.failed", stats.Failed),
	)

	logger.InfoContext(ctx, "run complete",
		slog.Int("merged", stats.Merged),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int("timed_out", stats.TimedOut),
		slog.Int("entries", stats.Entries),
		slog.Duration("elapsed", stats.Elapsed),
	)

	if collectErr != nil {
		span.RecordError(collectErr)
		span.SetStatus(codes.Error, collectErr.Error())
	}

	return tree, stats, collectErr
}

func scan(ctx context.Context, opts Options, tree *aggregate.Tree) (pending []string, scanned int, err error) {
	_, span := opts.tracer().Start(ctx, SpanScan)
	defer span.End()

	paths, err := corpus.Scan(opts.FS)
	if err != nil {
		return nil, 0, fmt.Errorf("scan corpus: %w", err)
	}

	pending = corpus.Pending(paths, tree.Paths())

	span.SetAttributes(
		attribute.Int("spelltrack.files.scanned", len(paths)),
		attribute.Int("spelltrack.files.pending", len(pending)),
	)

	return pending, len(paths), nil
}

// collect drains exactly one result per pending path and merges each as it
// arrives. Only this goroutine touches the tree.
func collect(ctx context.Context, opts Options, tree *aggregate.Tree, pending []string, stats *Stats) error {
	ctx, span := opts.tracer().Start(ctx, SpanDispatch,
		trace.WithAttributes(attribute.Int("spelltrack.files.pending", len(pending))))
	defer span.End()

	logger := opts.logger()

	d := &dispatch.Dispatcher{
		FS:          opts.FS,
		Registry:    opts.Registry,
		Workers:     opts.Workers,
		TaskTimeout: opts.TaskTimeout,
		Logger:      logger,
		Tracer:      opts.Tracer,
	}

	results := d.Start(ctx, pending)
	total := len(pending)

	for idx := range total {
		res, ok := <-results
		if !ok {
			return fmt.Errorf("%w: got %d of %d", ErrShortResults, idx, total)
		}

		logger.DebugContext(ctx, fmt.Sprintf("[%d/%d] %s", idx+1, total, res.Path))

		outcome := mergeResult(ctx, logger, tree, res, stats)
		opts.Metrics.RecordFile(ctx, res.Key.Kind, outcome, res.Duration)
	}

	return ctx.Err()
}

func mergeResult(
	ctx context.Context, logger *slog.Logger, tree *aggregate.Tree, res dispatch.Result, stats *Stats,
) string {
	switch {
	case errors.Is(res.Err, dispatch.ErrTaskTimeout):
		stats.TimedOut++
		stats.Failed++

		return observability.OutcomeTimeout
	case res.Err != nil:
		stats.Failed++

		logger.WarnContext(ctx, "skipping test file", slog.String("path", res.Path), slog.Any("error", res.Err))

		return observability.OutcomeFailed
	case res.Skipped():
		stats.Skipped++

		return observability.OutcomeSkipped
	}

	added, err := tree.Merge(res.Entry())
	if err != nil {
		stats.Failed++

		logger.WarnContext(ctx, "merge failed", slog.String("path", res.Path), slog.Any("error", err))

		return observability.OutcomeFailed
	}

	if !added {
		stats.Skipped++

		return observability.OutcomeSkipped
	}

	stats.Merged++

	return observability.OutcomeMerged
}

func persist(ctx context.Context, opts Options, tree *aggregate.Tree) error {
	_, span := opts.tracer().Start(ctx, SpanPersist)
	defer span.End()

	err := opts.Store.Save(tree)
	if err != nil {
		return err
	}

	attrs := []any{
		slog.String("path", opts.Store.Path()),
		slog.Int("entries", tree.Len()),
	}

	if info, statErr := os.Stat(opts.Store.Path()); statErr == nil {
		attrs = append(attrs, slog.String("size", humanize.Bytes(uint64(info.Size())))) //nolint:gosec // size is non-negative
	}

	opts.logger().InfoContext(ctx, "aggregate saved", attrs...)

	return nil
}

func logLoad(ctx context.Context, logger *slog.Logger, path string, report aggregate.LoadReport) {
	switch report.Outcome {
	case aggregate.OutcomeLoaded:
		logger.InfoContext(ctx, "aggregate loaded",
			slog.String("path", path),
			slog.String("version", report.FoundVersion),
			slog.Int("entries", report.Entries),
		)
	case aggregate.OutcomeMissing:
		logger.InfoContext(ctx, "no aggregate yet, starting empty", slog.String("path", path))
	case aggregate.OutcomeMalformed:
		logger.WarnContext(ctx, "aggregate unreadable, recomputing",
			slog.String("path", path), slog.Any("error", report.Err))
	case aggregate.OutcomeVersionMismatch:
		logger.InfoContext(ctx, "aggregate version changed, recomputing",
			slog.String("path", path), slog.String("found", report.FoundVersion))
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}

	return o.Logger
}

func (o Options) tracer() trace.Tracer {
	if o.Tracer == nil {
		return nooptrace.NewTracerProvider().Tracer("spelltrack")
	}

	return o.Tracer
}
