package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// zonelessISOFormat is the zone-less timestamp written by earlier versions of
// the transfer script; files carrying it still load.
const zonelessISOFormat = "2006-01-02T15:04:05.999999"

type document struct {
	ProcessedIDs []string `json:"processed_ids"`
	LastUpdated  string   `json:"last_updated"`
}

// JSONStore keeps the set in a single JSON document, overwritten on every save.
type JSONStore struct {
	path string
	now  func() time.Time
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{ProcessedIDs: NewProcessedSet()}, nil
		}
		return nil, errors.Wrapf(err, "reading state file %s", s.path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing state file %s", s.path)
	}

	return &Snapshot{
		ProcessedIDs: NewProcessedSet(doc.ProcessedIDs...),
		LastUpdated:  parseTimestamp(doc.LastUpdated),
	}, nil
}

func (s *JSONStore) Save(_ context.Context, ids ProcessedSet) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating state directory %s", dir)
		}
	}

	doc := document{
		ProcessedIDs: ids.IDs(),
		LastUpdated:  s.now().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing state file %s", s.path)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }

func parseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(zonelessISOFormat, v, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
