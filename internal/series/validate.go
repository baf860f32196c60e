package series

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/spelltrack/internal/series/schema"
)

// ErrInvalid is matched by every schema violation.
var ErrInvalid = errors.New("document does not match schema")

// ValidationError lists the schema violations of one document.
type ValidationError struct {
	Problems []Problem
}

// Problem is one schema violation.
type Problem struct {
	Field       string
	Description string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))

	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Description)
	}

	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrInvalid) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Validator checks chart and index documents against the embedded schemas.
type Validator struct {
	chart *gojsonschema.Schema
	index *gojsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	chart, err := compile(schema.ChartFile)
	if err != nil {
		return nil, err
	}

	index, err := compile(schema.IndexFile)
	if err != nil {
		return nil, err
	}

	return &Validator{chart: chart, index: index}, nil
}

func compile(name string) (*gojsonschema.Schema, error) {
	data, err := schema.FS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema %s: %w", name, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	return compiled, nil
}

// Chart validates a chart value.
func (v *Validator) Chart(chart *Chart) error {
	return check(v.chart, gojsonschema.NewGoLoader(chart))
}

// Index validates an index value.
func (v *Validator) Index(index *Index) error {
	return check(v.index, gojsonschema.NewGoLoader(index))
}

// Bytes validates a raw series file. Files named index.json are checked
// against the index schema, everything else against the chart schema.
func (v *Validator) Bytes(name string, data []byte) error {
	target := v.chart
	if path.Base(strings.ReplaceAll(name, "\\", "/")) == IndexBasename+jsonExtension {
		target = v.index
	}

	return check(target, gojsonschema.NewBytesLoader(data))
}

func check(s *gojsonschema.Schema, doc gojsonschema.JSONLoader) error {
	result, err := s.Validate(doc)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}

	for _, re := range result.Errors() {
		verr.Problems = append(verr.Problems, Problem{Field: re.Field(), Description: re.Description()})
	}

	return verr
}
