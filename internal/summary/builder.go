package summary

import (
	"errors"

	"github.com/Sumatoshi-tech/spelltrack/internal/testfile"
)

// ErrMissingSection is returned for test files without a header or results
// section. Such files are skipped, not retried.
var ErrMissingSection = errors.New("test file lacks header or results section")

// Registered test kinds.
const (
	KindGoldstandard = "goldstandard"
	KindRegression   = "regression"
	KindTypos        = "typos"
)

// Builder turns one decoded test file into its summary.
type Builder interface {
	// Schema returns the statistics layout the builder produces.
	Schema() Schema

	// Build computes the summary of a decoded test file.
	Build(file *testfile.File) (Summary, error)
}

type goldstandardBuilder struct{}

func (goldstandardBuilder) Schema() Schema { return SchemaGoldstandard }

func (goldstandardBuilder) Build(file *testfile.File) (Summary, error) {
	err := checkSections(file)
	if err != nil {
		return nil, err
	}

	return BuildGoldstandard(file.Words), nil
}

type regressionBuilder struct{}

func (regressionBuilder) Schema() Schema { return SchemaRegression }

func (regressionBuilder) Build(file *testfile.File) (Summary, error) {
	err := checkSections(file)
	if err != nil {
		return nil, err
	}

	return BuildRegression(file.Words), nil
}

func checkSections(file *testfile.File) error {
	if file == nil || !file.HasHeader || !file.HasResults {
		return ErrMissingSection
	}

	return nil
}

// GoldstandardBuilder returns the distributional builder.
func GoldstandardBuilder() Builder { return goldstandardBuilder{} }

// RegressionBuilder returns the per-bug builder.
func RegressionBuilder() Builder { return regressionBuilder{} }

// Registry maps a test kind (the third path segment of a corpus file) to the
// builder that handles it.
type Registry map[string]Builder

// DefaultRegistry returns the builders for the known test kinds. Typo runs
// are scored against a reference list, so they use the goldstandard layout.
func DefaultRegistry() Registry {
	return Registry{
		KindGoldstandard: GoldstandardBuilder(),
		KindTypos:        GoldstandardBuilder(),
		KindRegression:   RegressionBuilder(),
	}
}

// Lookup returns the builder for kind.
func (r Registry) Lookup(kind string) (Builder, bool) {
	builder, ok := r[kind]

	return builder, ok
}

// Kinds returns the registered kinds in sorted order.
func (r Registry) Kinds() []string {
	return sortedKeys(r)
}
