package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/report"
)

// ErrNoAggregate is returned when the corpus has no aggregate document yet.
var ErrNoAggregate = errors.New("no aggregate document; run `spelltrack run` first")

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(globals *GlobalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "summary <corpus-dir>",
		Short: "Print the aggregate overview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(globals)
			if err != nil {
				return err
			}

			stateDir := cfg.Aggregate.Dir
			if stateDir == "" {
				stateDir = args[0]
			}

			store := aggregate.NewStore(stateDir, cfg.Aggregate.Compress)

			tree, err := store.Load()
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrNoAggregate, store.Path())
			}

			if err != nil {
				return err
			}

			return report.Write(cmd.OutOrStdout(), report.Summarize(tree), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", report.FormatTable, "Output format: table, json, yaml")

	return cmd
}
