// Package report renders an aggregate overview as a table, JSON, or YAML.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/series"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

const dateLayout = "2006-01-02"

const msgNoData = "No aggregated test files"

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatYAML}
}

// Overview is the aggregate as a whole.
type Overview struct {
	Version string  `json:"version" yaml:"version"`
	Entries int     `json:"entries" yaml:"entries"`
	Groups  []Group `json:"groups"  yaml:"groups"`
}

// Group totals one language/speller/kind node over all its runs.
type Group struct {
	Language string `json:"language" yaml:"language"`
	Speller  string `json:"speller"  yaml:"speller"`
	Kind     string `json:"kind"     yaml:"kind"`
	Schema   string `json:"schema"   yaml:"schema"`
	Files    int    `json:"files"    yaml:"files"`
	FirstRun string `json:"first_run,omitempty" yaml:"first_run,omitempty"`
	LastRun  string `json:"last_run,omitempty"  yaml:"last_run,omitempty"`

	Words        int      `json:"words,omitempty"         yaml:"words,omitempty"`
	Correct      int      `json:"correct,omitempty"       yaml:"correct,omitempty"`
	FalseCorrect int      `json:"false_correct,omitempty" yaml:"false_correct,omitempty"`
	Error        int      `json:"error,omitempty"         yaml:"error,omitempty"`
	FalseError   int      `json:"false_error,omitempty"   yaml:"false_error,omitempty"`
	Precision    *float64 `json:"precision,omitempty"     yaml:"precision,omitempty"`
	Recall       *float64 `json:"recall,omitempty"        yaml:"recall,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"      yaml:"accuracy,omitempty"`

	Bugs     int `json:"bugs,omitempty"     yaml:"bugs,omitempty"`
	Solved   int `json:"solved,omitempty"   yaml:"solved,omitempty"`
	Unsolved int `json:"unsolved,omitempty" yaml:"unsolved,omitempty"`
}

// Summarize totals every group of tree in tree order.
func Summarize(tree *aggregate.Tree) *Overview {
	out := &Overview{Version: tree.Version, Entries: tree.Len(), Groups: []Group{}}

	for _, g := range tree.Groups() {
		out.Groups = append(out.Groups, summarizeGroup(g))
	}

	return out
}

func summarizeGroup(g aggregate.Group) Group {
	row := Group{Language: g.Language, Speller: g.Speller, Kind: g.Kind, Files: len(g.Entries)}

	var first, last time.Time

	bugs := make(map[string]struct{})

	for _, entry := range g.Entries {
		if date, err := entry.Header.Date(); err == nil {
			if first.IsZero() || date.Before(first) {
				first = date
			}

			if date.After(last) {
				last = date
			}
		}

		switch sum := entry.Summary.(type) {
		case *summary.Goldstandard:
			row.Schema = string(summary.SchemaGoldstandard)
			row.Words += sum.Words
			row.Correct += sum.Correct
			row.FalseCorrect += sum.FalseCorrect
			row.Error += sum.Error
			row.FalseError += sum.FalseError
		case *summary.Regression:
			row.Schema = string(summary.SchemaRegression)

			for id, outcome := range sum.Bugs {
				bugs[id] = struct{}{}
				row.Solved += outcome.Solved
				row.Unsolved += outcome.Unsolved
			}
		}
	}

	row.Bugs = len(bugs)

	if !first.IsZero() {
		row.FirstRun = first.Format(dateLayout)
		row.LastRun = last.Format(dateLayout)
	}

	if row.Schema == string(summary.SchemaGoldstandard) {
		row.Precision = ratio(row.Error, row.Error+row.FalseError)
		row.Recall = ratio(row.Error, row.Error+row.FalseCorrect)
		row.Accuracy = ratio(row.Error+row.Correct, row.Words)
	}

	return row
}

func ratio(num, den int) *float64 {
	v, ok := series.Ratio(num, den)
	if !ok {
		return nil
	}

	return &v
}

// Write renders the overview in the given format.
func Write(w io.Writer, overview *Overview, format string) error {
	switch strings.ToLower(format) {
	case FormatTable, "":
		_, err := io.WriteString(w, Table(overview)+"\n")
		if err != nil {
			return fmt.Errorf("write table: %w", err)
		}

		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(overview)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(overview)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
}

// Table renders the overview as a text table.
func Table(overview *Overview) string {
	if len(overview.Groups) == 0 {
		return msgNoData
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{
		"Language", "Speller", "Kind", "Files", "Runs", "Words", "Precision", "Recall", "Accuracy", "Bugs", "Solved", "Unsolved",
	})

	for _, g := range overview.Groups {
		runs := ""
		if g.FirstRun != "" {
			runs = g.FirstRun + " .. " + g.LastRun
		}

		row := table.Row{g.Language, g.Speller, g.Kind, humanize.Comma(int64(g.Files)), runs}

		if g.Schema == string(summary.SchemaGoldstandard) {
			row = append(row, humanize.Comma(int64(g.Words)),
				percent(g.Precision), percent(g.Recall), percent(g.Accuracy), "", "", "")
		} else {
			row = append(row, "", "", "", "",
				humanize.Comma(int64(g.Bugs)), humanize.Comma(int64(g.Solved)), humanize.Comma(int64(g.Unsolved)))
		}

		tbl.AppendRow(row)
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %s files", humanize.Comma(int64(overview.Entries)))})

	return fmt.Sprintf("Aggregate version %s\n%s", overview.Version, tbl.Render())
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}

	return fmt.Sprintf("%.1f%%", *v)
}
