package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Sumatoshi-tech/spelltrack/internal/dispatch"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const goldFile = `<spelltestresult>
  <header><date>20130412</date></header>
  <results>
    <word><original>teh</original><expected>the</expected><status>SplErr</status>
      <edit_dist>1</edit_dist><position>2</position><suggestions count="4"/></word>
    <word><original>ja</original><status>SplCor</status></word>
  </results>
</spelltestresult>`

const regressionFile = `<spelltestresult>
  <header><date>20130412</date></header>
  <results>
    <word><original>a</original><expected>b</expected><status>SplErr</status><bug>7</bug></word>
  </results>
</spelltestresult>`

func corpusFS() fstest.MapFS {
	return fstest.MapFS{
		"sme/hfst/goldstandard/a.xml": {Data: []byte(goldFile)},
		"sme/hfst/regression/a.xml":   {Data: []byte(regressionFile)},
		"sme/hfst/typos/a.xml":        {Data: []byte(goldFile)},
		"sme/hfst/spellcheck/a.xml":   {Data: []byte(goldFile)},
		"sme/hfst/goldstandard/b.xml": {Data: []byte("<spelltestresult><header>")},
		"sme/hfst/goldstandard/c.xml": {Data: []byte("<spelltestresult><header/></spelltestresult>")},
	}
}

type blockingBuilder struct {
	release chan struct{}
}

func (b blockingBuilder) Schema() summary.Schema { return summary.SchemaGoldstandard }

func (b blockingBuilder) Build(*testfile.File) (summary.Summary, error) {
	<-b.release

	return &summary.Goldstandard{}, nil
}

type panickingBuilder struct{}

func (panickingBuilder) Schema() summary.Schema { return summary.SchemaGoldstandard }

func (panickingBuilder) Build(*testfile.File) (summary.Summary, error) {
	panic("boom")
}

func byPath(results []dispatch.Result) map[string]dispatch.Result {
	out := make(map[string]dispatch.Result, len(results))

	for _, res := range results {
		out[res.Path] = res
	}

	return out
}

func TestDispatcher_OneResultPerPath(t *testing.T) {
	t.Parallel()

	paths := []string{
		"sme/hfst/goldstandard/a.xml",
		"sme/hfst/regression/a.xml",
		"sme/hfst/typos/a.xml",
		"sme/hfst/spellcheck/a.xml",
		"sme/hfst/goldstandard/b.xml",
		"sme/hfst/goldstandard/c.xml",
		"sme/hfst/goldstandard/missing.xml",
		"stray.xml",
	}

	d := &dispatch.Dispatcher{FS: corpusFS(), Workers: 3}
	results := d.Run(context.Background(), paths)

	require.Len(t, results, len(paths))

	got := byPath(results)
	require.Len(t, got, len(paths))

	gold := got["sme/hfst/goldstandard/a.xml"]
	require.NoError(t, gold.Err)
	require.IsType(t, &summary.Goldstandard{}, gold.Summary)
	assert.Equal(t, 2, gold.Summary.(*summary.Goldstandard).Words)
	assert.Equal(t, "goldstandard", gold.Key.Kind)

	date, err := gold.Header.DateText()
	require.NoError(t, err)
	assert.Equal(t, "20130412", date)

	entry := gold.Entry()
	assert.Equal(t, "sme/hfst/goldstandard/a.xml", entry.File)
	assert.Same(t, gold.Summary, entry.Summary)

	assert.IsType(t, &summary.Regression{}, got["sme/hfst/regression/a.xml"].Summary)
	assert.IsType(t, &summary.Goldstandard{}, got["sme/hfst/typos/a.xml"].Summary)

	assert.True(t, got["sme/hfst/spellcheck/a.xml"].Skipped())

	assert.ErrorIs(t, got["sme/hfst/goldstandard/b.xml"].Err, testfile.ErrMalformed)
	assert.ErrorIs(t, got["sme/hfst/goldstandard/c.xml"].Err, summary.ErrMissingSection)
	assert.Error(t, got["sme/hfst/goldstandard/missing.xml"].Err)
	assert.Error(t, got["stray.xml"].Err)
}

func TestDispatcher_StartClosesAfterAllResults(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{}

	var paths []string

	for i := range 40 {
		p := fmt.Sprintf("nob/hunspell/goldstandard/run-%02d.xml", i)
		fsys[p] = &fstest.MapFile{Data: []byte(goldFile)}
		paths = append(paths, p)
	}

	d := &dispatch.Dispatcher{FS: fsys}

	var seen []string

	for res := range d.Start(context.Background(), paths) {
		require.NoError(t, res.Err)
		seen = append(seen, res.Path)
	}

	sort.Strings(seen)
	assert.Equal(t, paths, seen)
}

func TestDispatcher_EmptyWorkSet(t *testing.T) {
	t.Parallel()

	d := &dispatch.Dispatcher{FS: fstest.MapFS{}}
	assert.Empty(t, d.Run(context.Background(), nil))
}

func TestDispatcher_TimeoutYieldsPoisonResult(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	d := &dispatch.Dispatcher{
		FS:          corpusFS(),
		Registry:    summary.Registry{"goldstandard": blockingBuilder{release: release}},
		TaskTimeout: 20 * time.Millisecond,
		Workers:     1,
	}

	results := d.Run(context.Background(), []string{
		"sme/hfst/goldstandard/a.xml",
		"sme/hfst/spellcheck/a.xml",
	})
	require.Len(t, results, 2)

	got := byPath(results)

	timedOut := got["sme/hfst/goldstandard/a.xml"]
	require.ErrorIs(t, timedOut.Err, dispatch.ErrTaskTimeout)
	assert.Nil(t, timedOut.Summary)
	assert.GreaterOrEqual(t, timedOut.Duration, 20*time.Millisecond)

	assert.True(t, got["sme/hfst/spellcheck/a.xml"].Skipped())
}

func TestDispatcher_PanicYieldsPoisonResult(t *testing.T) {
	t.Parallel()

	d := &dispatch.Dispatcher{
		FS:       corpusFS(),
		Registry: summary.Registry{"goldstandard": panickingBuilder{}},
	}

	results := d.Run(context.Background(), []string{"sme/hfst/goldstandard/a.xml"})
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, dispatch.ErrWorkerPanic)
	assert.Contains(t, results[0].Err.Error(), "boom")
}

func TestDispatcher_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths := []string{"sme/hfst/goldstandard/a.xml", "sme/hfst/regression/a.xml"}

	d := &dispatch.Dispatcher{FS: corpusFS(), Workers: 2}
	results := d.Run(ctx, paths)

	require.Len(t, results, len(paths))

	for _, res := range results {
		assert.True(t, errors.Is(res.Err, context.Canceled), res.Path)
	}
}
