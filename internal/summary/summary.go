package summary

import (
	"sort"

	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

// Summary is the per-file statistics entity. The set of implementations is
// closed: *Goldstandard and *Regression.
type Summary interface {
	// Kind returns the schema the summary follows.
	Kind() Schema

	sealed()
}

// Schema names a per-file statistics layout.
type Schema string

// Statistics layouts.
const (
	SchemaGoldstandard Schema = "goldstandard"
	SchemaRegression   Schema = "regression"
)

// EditDistanceBucket counts errors at one edit distance, split by suggestion rank.
type EditDistanceBucket struct {
	Positions map[string]int
	Count     int
}

// EditDistanceHistogram maps an edit-distance label to its bucket counters.
type EditDistanceHistogram map[string]*EditDistanceBucket

// Labels returns the histogram keys in string order.
func (h EditDistanceHistogram) Labels() []string {
	return sortedKeys(h)
}

// PositionLabels returns the bucket's position labels in string order.
func (b *EditDistanceBucket) PositionLabels() []string {
	return sortedKeys(b.Positions)
}

func (h EditDistanceHistogram) add(label, bucket string) {
	entry, ok := h[label]
	if !ok {
		entry = &EditDistanceBucket{Positions: make(map[string]int)}
		h[label] = entry
	}

	entry.Count++
	entry.Positions[bucket]++
}

// Goldstandard is the distributional summary of one test file.
type Goldstandard struct {
	EditDistances EditDistanceHistogram

	Words        int
	Correct      int
	FalseCorrect int
	Error        int
	FalseError   int
}

// Kind implements Summary.
func (g *Goldstandard) Kind() Schema { return SchemaGoldstandard }

func (g *Goldstandard) sealed() {}

// Count returns the counter for one outcome state.
func (g *Goldstandard) Count(state OutcomeState) int {
	switch state {
	case StateCorrect:
		return g.Correct
	case StateFalseCorrect:
		return g.FalseCorrect
	case StateError:
		return g.Error
	case StateFalseError:
		return g.FalseError
	case StateNone:
		return 0
	default:
		return 0
	}
}

func (g *Goldstandard) increment(state OutcomeState) {
	switch state {
	case StateCorrect:
		g.Correct++
	case StateFalseCorrect:
		g.FalseCorrect++
	case StateError:
		g.Error++
	case StateFalseError:
		g.FalseError++
	case StateNone:
	}
}

// BuildGoldstandard classifies every word and counts outcomes. The word total
// includes unresolved records so ratios keep the full denominator; only error
// records feed the edit-distance histogram.
func BuildGoldstandard(words []testfile.WordRecord) *Goldstandard {
	out := &Goldstandard{EditDistances: make(EditDistanceHistogram)}

	for idx := range words {
		state := Classify(words[idx])

		out.Words++
		out.increment(state)

		if state == StateError {
			out.EditDistances.add(editDistanceLabel(words[idx]), bucketFor(words[idx]))
		}
	}

	return out
}

// BugOutcome holds the solved and unsolved word counts of one bug.
type BugOutcome struct {
	Solved   int
	Unsolved int
}

// Regression is the per-bug summary of one regression test file.
type Regression struct {
	Bugs map[string]BugOutcome
}

// Kind implements Summary.
func (r *Regression) Kind() Schema { return SchemaRegression }

func (r *Regression) sealed() {}

// BugIDs returns the bug ids in string order.
func (r *Regression) BugIDs() []string {
	return sortedKeys(r.Bugs)
}

// BuildRegression accumulates solved/unsolved counts per bug id. Words
// without a bug id or with an unresolved state are skipped, and a bug whose
// counts are both zero is never emitted.
func BuildRegression(words []testfile.WordRecord) *Regression {
	out := &Regression{Bugs: make(map[string]BugOutcome)}

	for idx := range words {
		if words[idx].BugID == "" {
			continue
		}

		state := Classify(words[idx])
		if !state.Resolved() {
			continue
		}

		outcome := out.Bugs[words[idx].BugID]

		if state.Solved() {
			outcome.Solved++
		} else {
			outcome.Unsolved++
		}

		out.Bugs[words[idx].BugID] = outcome
	}

	for id, outcome := range out.Bugs {
		if outcome.Solved == 0 && outcome.Unsolved == 0 {
			delete(out.Bugs, id)
		}
	}

	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))

	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
