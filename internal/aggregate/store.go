package aggregate

import (
	"errors"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/spelltrack/pkg/persist"
)

// DefaultBasename is the aggregate document name without extension.
const DefaultBasename = "aggregated"

// Store reads and writes the aggregate document in one directory.
type Store struct {
	dir       string
	persister *persist.Persister[document]
}

// NewStore returns a store for dir/aggregated.xml, or dir/aggregated.xml.lz4
// when compress is set.
func NewStore(dir string, compress bool) *Store {
	var codec persist.Codec = persist.NewXMLCodec()
	if compress {
		codec = persist.NewLZ4Codec(codec)
	}

	return &Store{
		dir:       dir,
		persister: persist.NewPersister[document](DefaultBasename, codec),
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.persister.Path(s.dir)
}

// Load decodes the persisted tree. A missing document yields an error
// matching os.ErrNotExist; an unreadable or structurally invalid one matches
// ErrMalformed.
func (s *Store) Load() (*Tree, error) {
	var doc document

	err := s.persister.Load(s.dir, func(d *document) { doc = *d })
	if errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return doc.toTree()
}

// Save atomically replaces the persisted document with t.
func (s *Store) Save(t *Tree) error {
	err := s.persister.Save(s.dir, func() *document { return toDocument(t) })
	if err != nil {
		return fmt.Errorf("save aggregate %s: %w", s.Path(), err)
	}

	return nil
}
