// Package state persists the ids of messages already transferred to the sheet.
package state

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// ProcessedSet is the set of message ids already appended to the sheet.
type ProcessedSet map[string]struct{}

func NewProcessedSet(ids ...string) ProcessedSet {
	s := make(ProcessedSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s ProcessedSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s ProcessedSet) Add(id string) { s[id] = struct{}{} }

func (s ProcessedSet) Len() int { return len(s) }

// IDs returns the members sorted, so saved files diff cleanly.
func (s ProcessedSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot is what a Store returns on Load.
type Snapshot struct {
	ProcessedIDs ProcessedSet
	LastUpdated  time.Time // zero when nothing was saved yet
}

// Store loads the whole set at the start of a run and writes it back in full
// at the end. A store with no saved state loads an empty set without error.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, ids ProcessedSet) error
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(path), nil
	case BackendSQLite:
		return OpenSQLiteStore(path)
	default:
		return nil, errors.Errorf("unknown state backend %q", backend)
	}
}
