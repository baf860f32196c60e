package aggregate

import (
	"errors"
	"os"
	"strings"
)

// LoadOutcome says how LoadOrReset obtained its tree.
type LoadOutcome string

// Load outcomes.
const (
	OutcomeLoaded          LoadOutcome = "loaded"
	OutcomeMissing         LoadOutcome = "missing"
	OutcomeMalformed       LoadOutcome = "malformed"
	OutcomeVersionMismatch LoadOutcome = "version-mismatch"
)

// LoadReport describes a LoadOrReset call for logging.
type LoadReport struct {
	Outcome LoadOutcome
	// FoundVersion is the version tag of the discarded document on mismatch.
	FoundVersion string
	// Entries is the number of entries carried over.
	Entries int
	// Err is the load error behind OutcomeMissing or OutcomeMalformed.
	Err error
}

// Loader supplies a persisted tree.
type Loader interface {
	Load() (*Tree, error)
}

// ErrNoVersion is returned by LoadOrReset when the guard has no version.
var ErrNoVersion = errors.New("aggregate schema version is not set")

// Guard validates the schema version of a persisted aggregate.
type Guard struct {
	// Version is the engine schema version, usually aggregate.schema_version
	// from the configuration. It must not be empty.
	Version string
}

// LoadOrReset returns the persisted tree when its version matches, and an
// empty tree tagged with the guard version otherwise. None of the reset
// cases is an error: a missing, malformed, or outdated aggregate simply
// triggers a full recompute. The only error is a guard without a version.
func (g Guard) LoadOrReset(loader Loader) (*Tree, LoadReport, error) {
	version := strings.TrimSpace(g.Version)
	if version == "" {
		return nil, LoadReport{}, ErrNoVersion
	}

	t, err := loader.Load()
	if err != nil {
		outcome := OutcomeMalformed
		if errors.Is(err, os.ErrNotExist) {
			outcome = OutcomeMissing
		}

		return NewTree(version), LoadReport{Outcome: outcome, Err: err}, nil
	}

	if t.Version != version {
		return NewTree(version), LoadReport{Outcome: OutcomeVersionMismatch, FoundVersion: t.Version}, nil
	}

	return t, LoadReport{Outcome: OutcomeLoaded, FoundVersion: t.Version, Entries: t.Len()}, nil
}
