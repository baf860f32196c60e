package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/spelltrack/internal/config"
	"github.com/Sumatoshi-tech/spelltrack/internal/series"
)

// ErrValidationFailed is returned when a file does not match its schema.
var ErrValidationFailed = errors.New("validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand(globals *GlobalOptions) *cobra.Command {
	var colorize, nocolor bool

	cmd := &cobra.Command{
		Use:   "validate <file.json>",
		Short: "Validate a series file against the embedded schema",
		Long: `Validate a chart series file, or an index.json, against the JSON Schema
embedded in spelltrack.

Examples:
  spelltrack validate out/sme-hfst-goldstandard-general.json
  spelltrack validate out/index.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nocolor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			} else if colorize {
				color.NoColor = false //nolint:reassign // intentional override of library global
			}

			return runValidate(cmd.OutOrStdout(), args[0], globals.Quiet)
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(out io.Writer, path string, quiet bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	validator, err := series.NewValidator()
	if err != nil {
		return err
	}

	err = validator.Bytes(path, data)
	if err == nil {
		if !quiet {
			color.New(color.FgGreen).Fprintf(out, "Series file is valid (%s)\n", path)
		}

		return nil
	}

	var verr *series.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("%s: %w", path, err)
	}

	color.New(color.FgRed).Fprintf(out, "Series file is invalid (%s)\n", path)
	fmt.Fprintf(out, "\nErrors:\n")

	for _, p := range verr.Problems {
		color.New(color.FgRed).Fprintf(out, "  - %s: %s\n", p.Field, p.Description)
	}

	return fmt.Errorf("%w: %s (%d problems)", ErrValidationFailed, path, len(verr.Problems))
}

// loadConfig loads the configuration for commands that need no telemetry.
func loadConfig(globals *GlobalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(globals.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}
