// Package dispatch runs per-file summary builders on a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/corpus"
	"github.com/Sumatoshi-tech/spelltrack/internal/observability"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

// Poison result errors.
var (
	// ErrTaskTimeout marks a task that did not finish within TaskTimeout.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrWorkerPanic marks a task whose builder panicked.
	ErrWorkerPanic = errors.New("worker panicked")
)

// Result is the outcome of one dispatched path. Exactly one of the following
// holds: Summary is set, Err is set, or neither (the kind has no builder).
type Result struct {
	Path     string
	Key      corpus.Key
	Header   testfile.Header
	Summary  summary.Summary
	Err      error
	Duration time.Duration
}

// Skipped reports a result with neither summary nor error.
func (r Result) Skipped() bool {
	return r.Summary == nil && r.Err == nil
}

// Entry converts a successful result into an aggregate entry.
func (r Result) Entry() aggregate.Entry {
	return aggregate.Entry{File: r.Path, Header: r.Header, Summary: r.Summary}
}

// Dispatcher fans paths out to workers that decode the test file and run the
// builder registered for its kind.
type Dispatcher struct {
	// FS is the corpus root; paths are resolved against it.
	FS fs.FS
	// Registry maps test kinds to builders. Nil means summary.DefaultRegistry.
	Registry summary.Registry
	// Workers bounds parallelism. Zero or negative means runtime.NumCPU().
	Workers int
	// TaskTimeout bounds one task. Zero disables the timeout.
	TaskTimeout time.Duration

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Run dispatches paths and collects every result.
func (d *Dispatcher) Run(ctx context.Context, paths []string) []Result {
	out := make([]Result, 0, len(paths))

	for res := range d.Start(ctx, paths) {
		out = append(out, res)
	}

	return out
}

// Start dispatches paths and returns a channel that yields exactly one
// result per path in completion order, then closes. Results are buffered so
// workers never wait on a slow consumer.
func (d *Dispatcher) Start(ctx context.Context, paths []string) <-chan Result {
	tasks := make(chan string, len(paths))
	results := make(chan Result, len(paths))

	for _, p := range paths {
		tasks <- p
	}

	close(tasks)

	var wg sync.WaitGroup

	for range d.workerCount(len(paths)) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for p := range tasks {
				if err := ctx.Err(); err != nil {
					results <- Result{Path: p, Err: err}

					continue
				}

				results <- d.process(ctx, p)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (d *Dispatcher) workerCount(tasks int) int {
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return max(min(workers, tasks), 1)
}

// process runs one task under its deadline. A builder that overruns is
// abandoned: its goroutine finishes on its own and the result is dropped.
func (d *Dispatcher) process(ctx context.Context, path string) Result {
	start := time.Now()

	key, err := corpus.ParseKey(path)
	if err != nil {
		return Result{Path: path, Err: err, Duration: time.Since(start)}
	}

	ctx, span := d.tracer().Start(ctx, observability.SpanDispatchFile,
		trace.WithAttributes(
			attribute.String("spelltrack.file", path),
			attribute.String("spelltrack.kind", key.Kind),
		))
	defer span.End()

	builder, ok := d.registry().Lookup(key.Kind)
	if !ok {
		return Result{Path: path, Key: key, Duration: time.Since(start)}
	}

	taskCtx := ctx

	if d.TaskTimeout > 0 {
		var cancel context.CancelFunc

		taskCtx, cancel = context.WithTimeout(ctx, d.TaskTimeout)
		defer cancel()
	}

	done := make(chan Result, 1)

	go func() {
		done <- d.build(path, key, builder)
	}()

	var res Result

	select {
	case res = <-done:
	case <-taskCtx.Done():
		res = Result{Path: path, Key: key, Err: d.abandon(ctx, taskCtx, path, span)}
	}

	res.Duration = time.Since(start)

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	return res
}

func (d *Dispatcher) abandon(ctx, taskCtx context.Context, path string, span trace.Span) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.logger().Warn("task timed out",
		slog.String("path", path),
		slog.Duration("timeout", d.TaskTimeout),
	)
	span.AddEvent("dispatch.task_timeout")

	return fmt.Errorf("%s: %w: %w", path, ErrTaskTimeout, context.Cause(taskCtx))
}

func (d *Dispatcher) build(path string, key corpus.Key, builder summary.Builder) (res Result) {
	res = Result{Path: path, Key: key}

	defer func() {
		if r := recover(); r != nil {
			res.Summary = nil
			res.Err = fmt.Errorf("%s: %w: %v", path, ErrWorkerPanic, r)
		}
	}()

	file, err := testfile.Open(d.FS, path)
	if err != nil {
		res.Err = err

		return res
	}

	sum, err := builder.Build(file)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", path, err)

		return res
	}

	res.Header = file.Header
	res.Summary = sum

	return res
}

func (d *Dispatcher) registry() summary.Registry {
	if d.Registry == nil {
		return summary.DefaultRegistry()
	}

	return d.Registry
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}

	return d.Logger
}

func (d *Dispatcher) tracer() trace.Tracer {
	if d.Tracer == nil {
		return nooptrace.NewTracerProvider().Tracer("spelltrack")
	}

	return d.Tracer
}
