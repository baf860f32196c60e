package aggregate_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/spelltrack/internal/aggregate"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

const schemaVersion = "0.1"

const goldDoc = `<spelltestresult>
  <header>
    <date>%DATE%</date>
    <engine>hfst-ospell</engine>
  </header>
  <results>
    <word><original>teh</original><expected>the</expected><status>SplErr</status>
      <edit_dist>1</edit_dist><position>1</position><suggestions count="3"/></word>
    <word><original>hus</original><expected>hus</expected><status>SplErr</status>
      <edit_dist>2</edit_dist><position>0</position><suggestions count="0"/></word>
    <word><original>gávpot</original><status>SplCor</status></word>
    <word><original>mii</original><status>SplErr</status></word>
    <word><original>nuhkan</original><expected>nuhkat</expected><status>SplCor</status></word>
  </results>
</spelltestresult>`

const regressionDoc = `<spelltestresult>
  <header><date>%DATE%</date></header>
  <results>
    <word><original>a</original><expected>b</expected><status>SplErr</status><bug>1234</bug></word>
    <word><original>c</original><status>SplErr</status><bug>1234</bug></word>
    <word><original>d</original><status>Unknown</status><bug>99</bug></word>
  </results>
</spelltestresult>`

func entry(t *testing.T, path, date string) aggregate.Entry {
	t.Helper()

	src := goldDoc
	builder := summary.GoldstandardBuilder()

	if strings.Contains(path, "/regression/") {
		src = regressionDoc
		builder = summary.RegressionBuilder()
	}

	file, err := testfile.Decode(strings.NewReader(strings.ReplaceAll(src, "%DATE%", date)))
	require.NoError(t, err)

	sum, err := builder.Build(file)
	require.NoError(t, err)

	return aggregate.Entry{File: path, Header: file.Header, Summary: sum}
}

func sampleEntries(t *testing.T) []aggregate.Entry {
	t.Helper()

	return []aggregate.Entry{
		entry(t, "sme/hfst/goldstandard/run-1.xml", "20130412-1205"),
		entry(t, "sme/hfst/regression/run-1.xml", "20130412-1205"),
		entry(t, "sme/hfst/goldstandard/run-2.xml", "20130413"),
		entry(t, "nob/hunspell/typos/run-1.xml", "20130414"),
		entry(t, "sme/voikko/goldstandard/run-1.xml", "20130415"),
	}
}

func mergeAll(t *testing.T, tree *aggregate.Tree, entries []aggregate.Entry) {
	t.Helper()

	for _, e := range entries {
		added, err := tree.Merge(e)
		require.NoError(t, err)
		require.True(t, added, e.File)
	}
}

// canonical orders groups and entries by name so trees built in different
// arrival orders compare equal.
func canonical(tree *aggregate.Tree) []aggregate.Group {
	groups := tree.Groups()

	for idx := range groups {
		groups[idx].Entries = slices.Clone(groups[idx].Entries)
		sort.Slice(groups[idx].Entries, func(a, b int) bool {
			return groups[idx].Entries[a].File < groups[idx].Entries[b].File
		})
	}

	sort.Slice(groups, func(a, b int) bool {
		ka := groups[a].Language + "/" + groups[a].Speller + "/" + groups[a].Kind
		kb := groups[b].Language + "/" + groups[b].Speller + "/" + groups[b].Kind

		return ka < kb
	})

	return groups
}

func TestTree_MergeBuildsNodesInArrivalOrder(t *testing.T) {
	t.Parallel()

	tree := aggregate.NewTree(schemaVersion)
	mergeAll(t, tree, sampleEntries(t))

	assert.Equal(t, 5, tree.Len())

	var names []string

	for _, g := range tree.Groups() {
		names = append(names, g.Language+"/"+g.Speller+"/"+g.Kind)
	}

	assert.Equal(t, []string{
		"sme/hfst/goldstandard",
		"sme/hfst/regression",
		"sme/voikko/goldstandard",
		"nob/hunspell/typos",
	}, names)

	first := tree.Groups()[0]
	require.Len(t, first.Entries, 2)
	assert.Equal(t, "sme/hfst/goldstandard/run-1.xml", first.Entries[0].File)
	assert.Equal(t, "sme/hfst/goldstandard/run-2.xml", first.Entries[1].File)
}

func TestTree_MergeIsIdempotentByPath(t *testing.T) {
	t.Parallel()

	tree := aggregate.NewTree(schemaVersion)
	e := entry(t, "sme/hfst/goldstandard/run-1.xml", "20130412")

	added, err := tree.Merge(e)
	require.NoError(t, err)
	assert.True(t, added)

	again := entry(t, "sme/hfst/goldstandard/run-1.xml", "20990101")

	added, err = tree.Merge(again)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, 1, tree.Len())

	date, err := tree.Groups()[0].Entries[0].Header.DateText()
	require.NoError(t, err)
	assert.Equal(t, "20130412", date)
}

func TestTree_MergeRejectsBadEntries(t *testing.T) {
	t.Parallel()

	tree := aggregate.NewTree(schemaVersion)

	_, err := tree.Merge(aggregate.Entry{File: "sme/run.xml", Summary: &summary.Regression{}})
	require.Error(t, err)

	_, err = tree.Merge(aggregate.Entry{File: "sme/hfst/goldstandard/run.xml"})
	require.Error(t, err)

	assert.Zero(t, tree.Len())
}

func TestTree_MergeIsCommutative(t *testing.T) {
	t.Parallel()

	entries := sampleEntries(t)

	forward := aggregate.NewTree(schemaVersion)
	mergeAll(t, forward, entries)

	reversed := slices.Clone(entries)
	slices.Reverse(reversed)

	backward := aggregate.NewTree(schemaVersion)
	mergeAll(t, backward, reversed)

	if diff := cmp.Diff(canonical(forward), canonical(backward)); diff != "" {
		t.Errorf("trees differ (-forward +backward):\n%s", diff)
	}
}

func TestTree_PathsIsACopy(t *testing.T) {
	t.Parallel()

	tree := aggregate.NewTree(schemaVersion)
	mergeAll(t, tree, sampleEntries(t)[:1])

	paths := tree.Paths()
	assert.Contains(t, paths, "sme/hfst/goldstandard/run-1.xml")

	delete(paths, "sme/hfst/goldstandard/run-1.xml")
	assert.True(t, tree.Has("sme/hfst/goldstandard/run-1.xml"))
}

func TestTree_WalkStopsOnError(t *testing.T) {
	t.Parallel()

	tree := aggregate.NewTree(schemaVersion)
	mergeAll(t, tree, sampleEntries(t))

	errStop := errors.New("stop")
	calls := 0

	err := tree.Walk(func(aggregate.Group) error {
		calls++

		return errStop
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		store := aggregate.NewStore(t.TempDir(), compress)

		tree := aggregate.NewTree(schemaVersion)
		mergeAll(t, tree, sampleEntries(t))

		require.NoError(t, store.Save(tree))

		loaded, err := store.Load()
		require.NoError(t, err)

		assert.Equal(t, schemaVersion, loaded.Version)

		if diff := cmp.Diff(tree.Groups(), loaded.Groups()); diff != "" {
			t.Errorf("compress=%v: loaded tree differs (-saved +loaded):\n%s", compress, diff)
		}
	}
}

func TestStore_ResaveIsByteIdentical(t *testing.T) {
	t.Parallel()

	store := aggregate.NewStore(t.TempDir(), false)

	tree := aggregate.NewTree(schemaVersion)
	mergeAll(t, tree, sampleEntries(t))
	require.NoError(t, store.Save(tree))

	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(loaded))

	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestStore_NamespacedHeaderSurvivesResave(t *testing.T) {
	t.Parallel()

	src := strings.Replace(goldDoc, "<header>", `<header xmlns:y="urn:y" y:k="v">`, 1)
	src = strings.ReplaceAll(src, "%DATE%", "20130412")

	file, err := testfile.Decode(strings.NewReader(src))
	require.NoError(t, err)

	sum, err := summary.GoldstandardBuilder().Build(file)
	require.NoError(t, err)

	tree := aggregate.NewTree(schemaVersion)
	mergeAll(t, tree, []aggregate.Entry{{File: "sme/hfst/goldstandard/ns.xml", Header: file.Header, Summary: sum}})

	store := aggregate.NewStore(t.TempDir(), false)
	require.NoError(t, store.Save(tree))

	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(first), `<header xmlns:y="urn:y" y:k="v">`)

	for range 2 {
		loaded, loadErr := store.Load()
		require.NoError(t, loadErr)
		require.NoError(t, store.Save(loaded))
	}

	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestStore_DocumentLayout(t *testing.T) {
	t.Parallel()

	store := aggregate.NewStore(t.TempDir(), false)

	tree := aggregate.NewTree(schemaVersion)
	mergeAll(t, tree, sampleEntries(t)[:2])
	require.NoError(t, store.Save(tree))

	assert.Equal(t, "aggregated.xml", filepath.Base(store.Path()))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	doc := string(data)

	for _, want := range []string{
		`<statistics version="0.1">`,
		`<language value="sme">`,
		`<speller value="hfst">`,
		`<tests value="goldstandard">`,
		`<test file="sme/hfst/goldstandard/run-1.xml">`,
		"<engine>hfst-ospell</engine>",
		"<words>5</words>",
		"<correct>1</correct>",
		"<false-correct>1</false-correct>",
		"<error>2</error>",
		"<false-error>1</false-error>",
		`<edit-dist count="1" value="1">`,
		`<position value="1">1</position>`,
		`<position value="no-suggestions">1</position>`,
		`<bug id="1234">`,
		"<solved>1</solved>",
		"<unsolved>1</unsolved>",
	} {
		assert.Contains(t, doc, want)
	}

	assert.NotContains(t, doc, `<bug id="99">`)
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	_, err := aggregate.NewStore(t.TempDir(), false).Load()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_LoadMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "garbage", doc: "not xml at all"},
		{name: "wrong root", doc: `<aggregate version="0.1"></aggregate>`},
		{name: "truncated", doc: `<statistics version="0.1"><language value="sme">`},
		{
			name: "test without file",
			doc: `<statistics version="0.1"><language value="sme"><speller value="hfst">` +
				`<tests value="goldstandard"><test><header/><words>1</words><correct>1</correct>` +
				`<false-correct>0</false-correct><error>0</error><false-error>0</false-error>` +
				`</test></tests></speller></language></statistics>`,
		},
		{
			name: "test without header",
			doc: `<statistics version="0.1"><language value="sme"><speller value="hfst">` +
				`<tests value="regression"><test file="sme/hfst/regression/a.xml"><bugs/></test>` +
				`</tests></speller></language></statistics>`,
		},
		{
			name: "test outside its node",
			doc: `<statistics version="0.1"><language value="sme"><speller value="hfst">` +
				`<tests value="regression"><test file="nob/hfst/regression/a.xml"><header/><bugs/></test>` +
				`</tests></speller></language></statistics>`,
		},
		{
			name: "test without counters",
			doc: `<statistics version="0.1"><language value="sme"><speller value="hfst">` +
				`<tests value="goldstandard"><test file="sme/hfst/goldstandard/a.xml"><header/><words>3</words></test>` +
				`</tests></speller></language></statistics>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "aggregated.xml"), []byte(tt.doc), 0o600))

			_, err := aggregate.NewStore(dir, false).Load()
			require.ErrorIs(t, err, aggregate.ErrMalformed)
		})
	}
}

func TestGuard_LoadOrReset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := aggregate.NewStore(dir, false)
	guard := aggregate.Guard{Version: "0.1"}

	tree, report, err := guard.LoadOrReset(store)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OutcomeMissing, report.Outcome)
	assert.Zero(t, tree.Len())
	assert.Equal(t, "0.1", tree.Version)

	mergeAll(t, tree, sampleEntries(t))
	require.NoError(t, store.Save(tree))

	tree, report, err = guard.LoadOrReset(store)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OutcomeLoaded, report.Outcome)
	assert.Equal(t, 5, report.Entries)
	assert.Equal(t, 5, tree.Len())

	require.NoError(t, os.WriteFile(store.Path(), []byte("<statistics"), 0o600))

	tree, report, err = guard.LoadOrReset(store)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OutcomeMalformed, report.Outcome)
	require.Error(t, report.Err)
	assert.Zero(t, tree.Len())
}

func TestGuard_VersionMismatchDiscardsEntries(t *testing.T) {
	t.Parallel()

	store := aggregate.NewStore(t.TempDir(), false)

	old := aggregate.NewTree("0.0")
	mergeAll(t, old, sampleEntries(t))
	require.NoError(t, store.Save(old))

	tree, report, err := aggregate.Guard{Version: "0.1"}.LoadOrReset(store)
	require.NoError(t, err)

	assert.Equal(t, aggregate.OutcomeVersionMismatch, report.Outcome)
	assert.Equal(t, "0.0", report.FoundVersion)
	assert.NoError(t, report.Err)
	assert.Equal(t, "0.1", tree.Version)
	assert.Zero(t, tree.Len())
}

func TestGuard_RequiresVersion(t *testing.T) {
	t.Parallel()

	store := aggregate.NewStore(t.TempDir(), true)

	for _, version := range []string{"", "  "} {
		tree, _, err := aggregate.Guard{Version: version}.LoadOrReset(store)
		require.ErrorIs(t, err, aggregate.ErrNoVersion)
		assert.Nil(t, tree)
	}
}
