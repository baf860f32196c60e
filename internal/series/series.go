// Package series turns the aggregate into chart-ready time series: one JSON
// document per language/speller/kind and chart, plus an index.
package series

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
)

// Chart names.
const (
	ChartGeneral     = "general"
	ChartBugs        = "bugs"
	ChartBugsPercent = "bugs-percent"
)

// Value units.
const (
	UnitPercent = "percent"
	UnitCount   = "count"
)

// Series labels.
const (
	LabelPrecision = "Precision"
	LabelRecall    = "Recall"
	LabelAccuracy  = "Accuracy"
	LabelSolved    = "Solved"
	LabelUnsolved  = "Unsolved"
)

const percent = 100

// Point is one run: the header date in milliseconds since the epoch (UTC)
// and the value. It encodes as a [time, value] pair.
type Point struct {
	Time  int64
	Value float64
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Time, p.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]json.Number

	err := json.Unmarshal(data, &pair)
	if err != nil {
		return fmt.Errorf("decode point: %w", err)
	}

	p.Time, err = pair[0].Int64()
	if err != nil {
		return fmt.Errorf("decode point time: %w", err)
	}

	p.Value, err = pair[1].Float64()
	if err != nil {
		return fmt.Errorf("decode point value: %w", err)
	}

	return nil
}

// Series is one labelled line of a chart, sorted by time.
type Series struct {
	Label string  `json:"label"`
	Data  []Point `json:"data"`
}

// Chart is the content of one series file.
type Chart struct {
	Language string   `json:"language"`
	Speller  string   `json:"speller"`
	Kind     string   `json:"kind"`
	Chart    string   `json:"chart"`
	Unit     string   `json:"unit"`
	Series   []Series `json:"series"`
}

// Basename returns the file name of the chart without extension,
// language-speller-kind-chart.
func (c *Chart) Basename() string {
	return strings.Join([]string{c.Language, c.Speller, c.Kind, c.Chart}, "-")
}

func (c *Chart) group() string {
	return c.Language + "/" + c.Speller + "/" + c.Kind
}

// Build computes the charts of every group in tree order. Goldstandard groups
// give one general chart; regression groups give the absolute and percent
// bug charts. Entries whose header date cannot be parsed are left out.
func Build(tree *aggregate.Tree, logger *slog.Logger) []*Chart {
	if logger == nil {
		logger = slog.Default()
	}

	var charts []*Chart

	for _, group := range tree.Groups() {
		runs := datedEntries(group, logger)
		if len(runs) == 0 {
			continue
		}

		switch runs[0].entry.Summary.Kind() {
		case summary.SchemaGoldstandard:
			charts = append(charts, general(group, runs))
		case summary.SchemaRegression:
			charts = append(charts, bugs(group, runs, false), bugs(group, runs, true))
		}
	}

	return charts
}

type datedEntry struct {
	entry aggregate.Entry
	ms    int64
}

func datedEntries(group aggregate.Group, logger *slog.Logger) []datedEntry {
	out := make([]datedEntry, 0, len(group.Entries))

	for _, entry := range group.Entries {
		date, err := entry.Header.Date()
		if err != nil {
			logger.Warn("skipping entry without usable date", slog.String("path", entry.File), slog.Any("error", err))

			continue
		}

		out = append(out, datedEntry{entry: entry, ms: date.UnixMilli()})
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].ms < out[b].ms })

	return out
}

func newChart(group aggregate.Group, name, unit string, labels ...string) *Chart {
	chart := &Chart{
		Language: group.Language,
		Speller:  group.Speller,
		Kind:     group.Kind,
		Chart:    name,
		Unit:     unit,
		Series:   make([]Series, len(labels)),
	}

	for idx, label := range labels {
		chart.Series[idx] = Series{Label: label, Data: []Point{}}
	}

	return chart
}

func (c *Chart) add(series int, ms int64, value float64) {
	c.Series[series].Data = append(c.Series[series].Data, Point{Time: ms, Value: value})
}

// general plots precision, recall and accuracy in percent. A point whose
// denominator is zero is omitted.
func general(group aggregate.Group, runs []datedEntry) *Chart {
	chart := newChart(group, ChartGeneral, UnitPercent, LabelPrecision, LabelRecall, LabelAccuracy)

	for _, run := range runs {
		gold, ok := run.entry.Summary.(*summary.Goldstandard)
		if !ok {
			continue
		}

		if ratio, ok := Ratio(gold.Error, gold.Error+gold.FalseError); ok {
			chart.add(0, run.ms, ratio)
		}

		if ratio, ok := Ratio(gold.Error, gold.Error+gold.FalseCorrect); ok {
			chart.add(1, run.ms, ratio)
		}

		if ratio, ok := Ratio(gold.Error+gold.Correct, gold.Words); ok {
			chart.add(2, run.ms, ratio)
		}
	}

	return chart
}

// bugs plots solved and unsolved word counts summed over the run's bugs,
// either absolute or as a share of the run total.
func bugs(group aggregate.Group, runs []datedEntry, asPercent bool) *Chart {
	name, unit := ChartBugs, UnitCount
	if asPercent {
		name, unit = ChartBugsPercent, UnitPercent
	}

	chart := newChart(group, name, unit, LabelSolved, LabelUnsolved)

	for _, run := range runs {
		reg, ok := run.entry.Summary.(*summary.Regression)
		if !ok {
			continue
		}

		var solved, unsolved int

		for _, outcome := range reg.Bugs {
			solved += outcome.Solved
			unsolved += outcome.Unsolved
		}

		if !asPercent {
			chart.add(0, run.ms, float64(solved))
			chart.add(1, run.ms, float64(unsolved))

			continue
		}

		solvedPct, ok := Ratio(solved, solved+unsolved)
		if !ok {
			continue
		}

		unsolvedPct, _ := Ratio(unsolved, solved+unsolved)

		chart.add(0, run.ms, solvedPct)
		chart.add(1, run.ms, unsolvedPct)
	}

	return chart
}

// Ratio returns num/den in percent; ok is false when den is zero.
func Ratio(num, den int) (float64, bool) {
	if den == 0 {
		return 0, false
	}

	return float64(num) / float64(den) * percent, true
}
