// Package summary classifies word outcomes and rolls the words of one test
// file into a compact per-file summary.
package summary

import (
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

// OutcomeState is the classified outcome of one spelling attempt.
type OutcomeState string

// Outcome states. StateNone marks a record that cannot be classified and must
// not be counted anywhere.
const (
	StateNone         OutcomeState = ""
	StateCorrect      OutcomeState = "correct"
	StateFalseCorrect OutcomeState = "false-correct"
	StateError        OutcomeState = "error"
	StateFalseError   OutcomeState = "false-error"
)

// Histogram bucket labels for the suggestion rank of an error.
const (
	BucketIncorrectOnly = "incorrect-only"
	BucketNoSuggestions = "no-suggestions"
	BucketLowerThan5    = "lower-than-5"
)

// DefaultEditDistance labels errors that carry no edit_dist element.
const DefaultEditDistance = "0"

// maxRankedPosition is the last suggestion rank that gets its own bucket.
const maxRankedPosition = 5

const falsePrefix = "false-"

// Classify maps a word record to its outcome state.
//
//	expected | status | state
//	---------+--------+--------------
//	no       | SplErr | false-error
//	no       | SplCor | correct
//	yes      | SplCor | false-correct
//	yes      | SplErr | error
func Classify(word testfile.WordRecord) OutcomeState {
	switch word.Status {
	case testfile.StatusSpellError:
		if word.ExpectedPresent {
			return StateError
		}

		return StateFalseError
	case testfile.StatusSpellCorrect:
		if word.ExpectedPresent {
			return StateFalseCorrect
		}

		return StateCorrect
	case testfile.StatusUnknown:
		return StateNone
	default:
		return StateNone
	}
}

// Resolved reports whether the state counts towards any statistic.
func (s OutcomeState) Resolved() bool {
	return s != StateNone
}

// Solved reports whether the outcome counts as solved in regression terms:
// correct and error are solved, the false-* states are not.
func (s OutcomeState) Solved() bool {
	return s.Resolved() && !strings.HasPrefix(string(s), falsePrefix)
}

// Bucket returns the histogram bucket for an error with the given suggestion
// rank and suggestion count. Rank 0 means the expected word was not among the
// suggestions.
func Bucket(position, suggestions int) string {
	switch {
	case position <= 0 && suggestions > 0:
		return BucketIncorrectOnly
	case position <= 0:
		return BucketNoSuggestions
	case position > maxRankedPosition:
		return BucketLowerThan5
	default:
		return strconv.Itoa(position)
	}
}

// bucketFor applies Bucket to a record, treating missing fields as zero.
func bucketFor(word testfile.WordRecord) string {
	position, suggestions := 0, 0

	if word.Position != nil {
		position = *word.Position
	}

	if word.SuggestionCount != nil {
		suggestions = *word.SuggestionCount
	}

	return Bucket(position, suggestions)
}

// editDistanceLabel returns the histogram key for a record.
func editDistanceLabel(word testfile.WordRecord) string {
	if word.EditDistance == "" {
		return DefaultEditDistance
	}

	return word.EditDistance
}
