package report_test

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/report"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

func header(date string) testfile.Header {
	return testfile.Header{XMLName: xml.Name{Local: "header"}, Inner: "<date>" + date + "</date>"}
}

func sampleTree(t *testing.T) *aggregate.Tree {
	t.Helper()

	tree := aggregate.NewTree("0.1")

	for _, e := range []aggregate.Entry{
		{
			File: "sme/hfst/goldstandard/a.xml", Header: header("20130412"),
			Summary: &summary.Goldstandard{Words: 1200, Correct: 600, FalseCorrect: 100, Error: 300, FalseError: 200},
		},
		{
			File: "sme/hfst/goldstandard/b.xml", Header: header("20130410-0900"),
			Summary: &summary.Goldstandard{Words: 800, Correct: 400, Error: 100},
		},
		{
			File: "sme/hfst/regression/a.xml", Header: header("20130411"),
			Summary: &summary.Regression{Bugs: map[string]summary.BugOutcome{"1": {Solved: 2}, "2": {Unsolved: 1}}},
		},
		{
			File: "sme/hfst/regression/b.xml", Header: header("20130412"),
			Summary: &summary.Regression{Bugs: map[string]summary.BugOutcome{"1": {Solved: 1, Unsolved: 1}}},
		},
	} {
		_, err := tree.Merge(e)
		require.NoError(t, err)
	}

	return tree
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	overview := report.Summarize(sampleTree(t))

	assert.Equal(t, "0.1", overview.Version)
	assert.Equal(t, 4, overview.Entries)
	require.Len(t, overview.Groups, 2)

	gold := overview.Groups[0]
	assert.Equal(t, "goldstandard", gold.Schema)
	assert.Equal(t, 2, gold.Files)
	assert.Equal(t, "2013-04-10", gold.FirstRun)
	assert.Equal(t, "2013-04-12", gold.LastRun)
	assert.Equal(t, 2000, gold.Words)
	require.NotNil(t, gold.Precision)
	assert.InDelta(t, 400.0/600.0*100, *gold.Precision, 1e-9)
	require.NotNil(t, gold.Recall)
	assert.InDelta(t, 80.0, *gold.Recall, 1e-9)
	require.NotNil(t, gold.Accuracy)
	assert.InDelta(t, 70.0, *gold.Accuracy, 1e-9)

	reg := overview.Groups[1]
	assert.Equal(t, "regression", reg.Schema)
	assert.Equal(t, 2, reg.Bugs)
	assert.Equal(t, 3, reg.Solved)
	assert.Equal(t, 2, reg.Unsolved)
	assert.Nil(t, reg.Precision)
}

func TestWrite_Table(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.Write(&buf, report.Summarize(sampleTree(t)), report.FormatTable))

	out := buf.String()
	assert.Contains(t, out, "Aggregate version 0.1")
	assert.Contains(t, out, "2,000")
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "2013-04-10 .. 2013-04-12")
}

func TestWrite_EmptyTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.Write(&buf, report.Summarize(aggregate.NewTree("0.1")), ""))
	assert.Contains(t, buf.String(), "No aggregated test files")
}

func TestWrite_JSONAndYAML(t *testing.T) {
	t.Parallel()

	overview := report.Summarize(sampleTree(t))

	var jsonBuf bytes.Buffer

	require.NoError(t, report.Write(&jsonBuf, overview, report.FormatJSON))

	var fromJSON report.Overview

	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Equal(t, overview.Groups[1].Solved, fromJSON.Groups[1].Solved)

	var yamlBuf bytes.Buffer

	require.NoError(t, report.Write(&yamlBuf, overview, "YAML"))
	assert.Contains(t, yamlBuf.String(), "language: sme")

	var fromYAML report.Overview

	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, overview.Groups[0].Words, fromYAML.Groups[0].Words)
}

func TestWrite_UnknownFormat(t *testing.T) {
	t.Parallel()

	err := report.Write(&bytes.Buffer{}, &report.Overview{}, "csv")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}
