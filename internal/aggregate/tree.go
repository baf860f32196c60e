// Package aggregate holds the hierarchical aggregate of per-file summaries,
// its XML document form and the schema-version guard that decides whether a
// persisted aggregate can be reused.
package aggregate

import (
	"fmt"

	"github.com/Sumatoshi-tech/spelltrack/internal/corpus"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

// Entry is the aggregated summary of one test file.
type Entry struct {
	// File is the corpus-relative path, language/speller/kind/file.xml.
	File string
	// Header is the test file header, copied verbatim.
	Header testfile.Header
	// Summary is *summary.Goldstandard or *summary.Regression.
	Summary summary.Summary
}

// Group is the ordered entry list of one language/speller/kind node.
type Group struct {
	Language string
	Speller  string
	Kind     string
	Entries  []Entry
}

type kindNode struct {
	entries []Entry
}

type spellerNode struct {
	kinds map[string]*kindNode
	order []string
}

type languageNode struct {
	spellers map[string]*spellerNode
	order    []string
}

// Tree is the language → speller → kind → entries aggregate. Node names keep
// first-insertion order. Tree is not safe for concurrent use; the pipeline
// merges from a single goroutine.
type Tree struct {
	Version string

	languages map[string]*languageNode
	order     []string
	paths     map[string]struct{}
}

// NewTree returns an empty tree tagged with version.
func NewTree(version string) *Tree {
	return &Tree{
		Version:   version,
		languages: make(map[string]*languageNode),
		paths:     make(map[string]struct{}),
	}
}

// Merge inserts entry under the nodes named by its path, creating them as
// needed. A path already present is ignored and Merge reports false.
func (t *Tree) Merge(entry Entry) (bool, error) {
	if entry.Summary == nil {
		return false, fmt.Errorf("merge %s: no summary", entry.File)
	}

	key, err := corpus.ParseKey(entry.File)
	if err != nil {
		return false, fmt.Errorf("merge: %w", err)
	}

	if _, seen := t.paths[entry.File]; seen {
		return false, nil
	}

	lang, ok := t.languages[key.Language]
	if !ok {
		lang = &languageNode{spellers: make(map[string]*spellerNode)}
		t.languages[key.Language] = lang
		t.order = append(t.order, key.Language)
	}

	speller, ok := lang.spellers[key.Speller]
	if !ok {
		speller = &spellerNode{kinds: make(map[string]*kindNode)}
		lang.spellers[key.Speller] = speller
		lang.order = append(lang.order, key.Speller)
	}

	kind, ok := speller.kinds[key.Kind]
	if !ok {
		kind = &kindNode{}
		speller.kinds[key.Kind] = kind
		speller.order = append(speller.order, key.Kind)
	}

	kind.entries = append(kind.entries, entry)
	t.paths[entry.File] = struct{}{}

	return true, nil
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.paths)
}

// Has reports whether path is aggregated.
func (t *Tree) Has(path string) bool {
	_, ok := t.paths[path]

	return ok
}

// Paths returns a copy of the aggregated path set.
func (t *Tree) Paths() map[string]struct{} {
	out := make(map[string]struct{}, len(t.paths))

	for p := range t.paths {
		out[p] = struct{}{}
	}

	return out
}

// Walk calls fn for every kind node in insertion order and stops at the
// first error.
func (t *Tree) Walk(fn func(Group) error) error {
	for _, langName := range t.order {
		lang := t.languages[langName]

		for _, spellerName := range lang.order {
			speller := lang.spellers[spellerName]

			for _, kindName := range speller.order {
				err := fn(Group{
					Language: langName,
					Speller:  spellerName,
					Kind:     kindName,
					Entries:  speller.kinds[kindName].entries,
				})
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// Groups returns every kind node in insertion order.
func (t *Tree) Groups() []Group {
	var groups []Group

	//nolint:errcheck // the callback never fails
	t.Walk(func(g Group) error {
		groups = append(groups, g)

		return nil
	})

	return groups
}
