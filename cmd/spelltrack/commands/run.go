package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/observability"
	"github.com/Sumatoshi-tech/spelltrack/internal/pipeline"
	"github.com/Sumatoshi-tech/spelltrack/internal/series"
)

const runUsage = "Usage: spelltrack run <corpus-dir> <output-dir>"

// ErrNotADirectory is returned when the corpus path is not a directory.
var ErrNotADirectory = errors.New("corpus path is not a directory")

// RunCommand holds configuration for the run command.
type RunCommand struct {
	globals *GlobalOptions
	noColor bool
}

// NewRunCommand creates the run command.
func NewRunCommand(globals *GlobalOptions) *cobra.Command {
	rc := &RunCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   "run <corpus-dir> <output-dir>",
		Short: "Aggregate new test files and write chart series",
		Long: `Scan <corpus-dir> for language/speller/test-kind/*.xml test files, summarize
every file not yet in the aggregate, persist the aggregate and write one JSON
series file per chart into <output-dir>.`,
		Args: cobra.ArbitraryArgs,
		RunE: rc.run,
	}

	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) < 2 {
		fmt.Fprintln(out, runUsage)

		return nil
	}

	if rc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	corpusDir, outputDir := args[0], args[1]

	info, err := os.Stat(corpusDir)
	if err != nil {
		return fmt.Errorf("corpus: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, corpusDir)
	}

	env, err := rc.globals.setup()
	if err != nil {
		return err
	}

	runErr := rc.execute(cmd.Context(), env, corpusDir, outputDir, out)

	shutdownErr := env.providers.Shutdown(context.WithoutCancel(cmd.Context()))

	return errors.Join(runErr, shutdownErr)
}

func (rc *RunCommand) execute(ctx context.Context, env *environment, corpusDir, outputDir string, out io.Writer) error {
	cfg := env.cfg

	taskTimeout, err := cfg.TaskTimeout()
	if err != nil {
		return err
	}

	metrics, err := observability.NewRunMetrics(env.providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	stateDir := cfg.Aggregate.Dir
	if stateDir == "" {
		stateDir = corpusDir
	}

	tree, stats, err := pipeline.Run(ctx, pipeline.Options{
		FS:            os.DirFS(corpusDir),
		Store:         aggregate.NewStore(stateDir, cfg.Aggregate.Compress),
		SchemaVersion: cfg.Aggregate.SchemaVersion,
		Workers:       cfg.Pipeline.Workers,
		TaskTimeout:   taskTimeout,
		Logger:        env.logger,
		Tracer:        env.providers.Tracer,
		Metrics:       metrics,
	})
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", corpusDir, err)
	}

	printRunSummary(out, stats, rc.globals.Quiet)

	if !cfg.Series.Enabled {
		return nil
	}

	writer := &series.Writer{Dir: filepath.Clean(outputDir), Workers: cfg.Pipeline.Workers, Logger: env.logger}

	if cfg.Series.Validate {
		validator, validatorErr := series.NewValidator()
		if validatorErr != nil {
			return validatorErr
		}

		writer.Validator = validator
	}

	index, err := writer.Write(ctx, tree.Version, series.Build(tree, env.logger))
	if err != nil {
		return fmt.Errorf("write series: %w", err)
	}

	env.logger.DebugContext(ctx, "series index", slog.Int("charts", len(index.Charts)))

	if !rc.globals.Quiet {
		fmt.Fprintf(out, "Wrote %s chart files to %s\n", humanize.Comma(int64(len(index.Charts))), outputDir)
	}

	return nil
}

func printRunSummary(out io.Writer, stats pipeline.Stats, quiet bool) {
	if quiet {
		return
	}

	color.New(color.FgGreen).Fprintf(out, "Aggregated %s new files (%s total) in %s\n",
		humanize.Comma(int64(stats.Merged)), humanize.Comma(int64(stats.Entries)), stats.Elapsed.Round(time.Millisecond))

	if stats.Failed > 0 {
		color.New(color.FgYellow).Fprintf(out, "  %s files failed (%s timed out)\n",
			humanize.Comma(int64(stats.Failed)), humanize.Comma(int64(stats.TimedOut)))
	}

	if stats.Load.Outcome == aggregate.OutcomeVersionMismatch {
		color.New(color.FgYellow).Fprintf(out, "  aggregate version %s replaced, full recompute\n", stats.Load.FoundVersion)
	}
}
