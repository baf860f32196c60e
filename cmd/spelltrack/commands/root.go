// Package commands implements CLI command handlers for spelltrack.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/spelltrack/internal/config"
	"github.com/Sumatoshi-tech/spelltrack/internal/observability"
	"github.com/Sumatoshi-tech/spelltrack/pkg/version"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// NewRootCommand creates the spelltrack command tree.
func NewRootCommand() *cobra.Command {
	globals := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "spelltrack",
		Short: "Spell-checker test result aggregation",
		Long: `spelltrack aggregates per-run spell-checker test results laid out as
<language>/<speller>/<test-kind>/<file>.xml into one incremental aggregate
document and derives chart-ready time series from it.

Commands:
  run       Aggregate new test files and write chart series
  summary   Print the aggregate overview
  validate  Check a series file against its schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "config file (default: ./.spelltrack.yaml or ~/.spelltrack.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(NewRunCommand(globals))
	rootCmd.AddCommand(NewSummaryCommand(globals))
	rootCmd.AddCommand(NewValidateCommand(globals))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// environment is the loaded configuration plus initialized telemetry.
type environment struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
}

func (g *GlobalOptions) setup() (*environment, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obsCfg := cfg.Observability(version.Version)

	switch {
	case g.Verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case g.Quiet:
		obsCfg.LogLevel = slog.LevelWarn
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	slog.SetDefault(providers.Logger)

	return &environment{cfg: cfg, providers: providers, logger: providers.Logger}, nil
}
