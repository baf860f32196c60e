package aggregate

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/spelltrack/internal/corpus"
	"github.com/Sumatoshi-tech/spelltrack/internal/summary"
	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

// ErrMalformed is returned for aggregate documents that decode but lack
// required structure.
var ErrMalformed = errors.New("malformed aggregate document")

// document is the persisted XML form of a Tree:
//
//	<statistics version="0.1">
//	  <language value="sme">
//	    <speller value="hfst">
//	      <tests value="goldstandard">
//	        <test file="sme/hfst/goldstandard/run.xml">
//	          <header>...</header>
//	          <words>10</words>
//	          ...
type document struct {
	XMLName   xml.Name      `xml:"statistics"`
	Version   string        `xml:"version,attr"`
	Languages []docLanguage `xml:"language"`
}

type docLanguage struct {
	Value    string       `xml:"value,attr"`
	Spellers []docSpeller `xml:"speller"`
}

type docSpeller struct {
	Value string     `xml:"value,attr"`
	Tests []docTests `xml:"tests"`
}

type docTests struct {
	Value string    `xml:"value,attr"`
	Tests []docTest `xml:"test"`
}

type docTest struct {
	File   string           `xml:"file,attr"`
	Header *testfile.Header `xml:"header"`

	Words        *int          `xml:"words"`
	Correct      *int          `xml:"correct"`
	FalseCorrect *int          `xml:"false-correct"`
	Error        *int          `xml:"error"`
	FalseError   *int          `xml:"false-error"`
	EditDists    *docEditDists `xml:"edit-dists"`

	Bugs *docBugs `xml:"bugs"`
}

type docEditDists struct {
	Dists []docEditDist `xml:"edit-dist"`
}

type docEditDist struct {
	Count     int           `xml:"count,attr"`
	Value     string        `xml:"value,attr"`
	Positions []docPosition `xml:"position"`
}

type docPosition struct {
	Value string `xml:"value,attr"`
	Count int    `xml:",chardata"`
}

type docBugs struct {
	Bugs []docBug `xml:"bug"`
}

type docBug struct {
	ID       string `xml:"id,attr"`
	Solved   int    `xml:"solved"`
	Unsolved int    `xml:"unsolved"`
}

func toDocument(t *Tree) *document {
	doc := &document{Version: t.Version}

	for _, langName := range t.order {
		lang := t.languages[langName]
		docLang := docLanguage{Value: langName}

		for _, spellerName := range lang.order {
			speller := lang.spellers[spellerName]
			docSp := docSpeller{Value: spellerName}

			for _, kindName := range speller.order {
				entries := speller.kinds[kindName].entries
				tests := docTests{Value: kindName, Tests: make([]docTest, 0, len(entries))}

				for idx := range entries {
					tests.Tests = append(tests.Tests, toDocTest(entries[idx]))
				}

				docSp.Tests = append(docSp.Tests, tests)
			}

			docLang.Spellers = append(docLang.Spellers, docSp)
		}

		doc.Languages = append(doc.Languages, docLang)
	}

	return doc
}

func toDocTest(entry Entry) docTest {
	header := entry.Header
	out := docTest{File: entry.File, Header: &header}

	switch sum := entry.Summary.(type) {
	case *summary.Goldstandard:
		out.Words = intPtr(sum.Words)
		out.Correct = intPtr(sum.Correct)
		out.FalseCorrect = intPtr(sum.FalseCorrect)
		out.Error = intPtr(sum.Error)
		out.FalseError = intPtr(sum.FalseError)
		out.EditDists = &docEditDists{}

		for _, label := range sum.EditDistances.Labels() {
			bucket := sum.EditDistances[label]
			dist := docEditDist{Count: bucket.Count, Value: label}

			for _, pos := range bucket.PositionLabels() {
				dist.Positions = append(dist.Positions, docPosition{Value: pos, Count: bucket.Positions[pos]})
			}

			out.EditDists.Dists = append(out.EditDists.Dists, dist)
		}
	case *summary.Regression:
		out.Bugs = &docBugs{}

		for _, id := range sum.BugIDs() {
			outcome := sum.Bugs[id]
			out.Bugs.Bugs = append(out.Bugs.Bugs, docBug{ID: id, Solved: outcome.Solved, Unsolved: outcome.Unsolved})
		}
	}

	return out
}

// toTree rebuilds a tree from a decoded document, rejecting entries that do
// not match their enclosing nodes.
func (doc *document) toTree() (*Tree, error) {
	t := NewTree(doc.Version)

	for _, lang := range doc.Languages {
		for _, speller := range lang.Spellers {
			for _, tests := range speller.Tests {
				for idx := range tests.Tests {
					entry, err := tests.Tests[idx].entry(corpus.Key{
						Language: lang.Value,
						Speller:  speller.Value,
						Kind:     tests.Value,
					})
					if err != nil {
						return nil, err
					}

					added, err := t.Merge(entry)
					if err != nil {
						return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
					}

					if !added {
						return nil, fmt.Errorf("%w: duplicate test %q", ErrMalformed, entry.File)
					}
				}
			}
		}
	}

	return t, nil
}

func (dt *docTest) entry(parent corpus.Key) (Entry, error) {
	if dt.File == "" {
		return Entry{}, fmt.Errorf("%w: test without file attribute", ErrMalformed)
	}

	key, err := corpus.ParseKey(dt.File)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if key.Language != parent.Language || key.Speller != parent.Speller || key.Kind != parent.Kind {
		return Entry{}, fmt.Errorf("%w: test %q outside its %s/%s/%s node",
			ErrMalformed, dt.File, parent.Language, parent.Speller, parent.Kind)
	}

	if dt.Header == nil {
		return Entry{}, fmt.Errorf("%w: test %q has no header", ErrMalformed, dt.File)
	}

	sum, err := dt.summary()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: test %q: %w", ErrMalformed, dt.File, err)
	}

	return Entry{File: dt.File, Header: *dt.Header, Summary: sum}, nil
}

func (dt *docTest) summary() (summary.Summary, error) {
	if dt.Bugs != nil {
		reg := &summary.Regression{Bugs: make(map[string]summary.BugOutcome, len(dt.Bugs.Bugs))}

		for _, bug := range dt.Bugs.Bugs {
			if bug.ID == "" {
				return nil, errors.New("bug without id")
			}

			reg.Bugs[bug.ID] = summary.BugOutcome{Solved: bug.Solved, Unsolved: bug.Unsolved}
		}

		return reg, nil
	}

	if dt.Words == nil || dt.Correct == nil || dt.FalseCorrect == nil || dt.Error == nil || dt.FalseError == nil {
		return nil, errors.New("neither goldstandard counters nor bugs")
	}

	gold := &summary.Goldstandard{
		EditDistances: make(summary.EditDistanceHistogram),
		Words:         *dt.Words,
		Correct:       *dt.Correct,
		FalseCorrect:  *dt.FalseCorrect,
		Error:         *dt.Error,
		FalseError:    *dt.FalseError,
	}

	if dt.EditDists != nil {
		for _, dist := range dt.EditDists.Dists {
			bucket := &summary.EditDistanceBucket{Count: dist.Count, Positions: make(map[string]int, len(dist.Positions))}

			for _, pos := range dist.Positions {
				bucket.Positions[pos.Value] = pos.Count
			}

			gold.EditDistances[dist.Value] = bucket
		}
	}

	return gold, nil
}

func intPtr(v int) *int {
	return &v
}
