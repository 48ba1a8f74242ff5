package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed_ids (
    id TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS state_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

// SQLiteStore keeps the set in a local SQLite database. Save replaces the
// whole table inside one transaction.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLiteStore opens (or creates) the database at dbPath.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating state directory for %s", dbPath)
		}
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sqlite db %s", dbPath)
	}
	// One connection: a ":memory:" database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating state schema")
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, "SELECT id FROM processed_ids"); err != nil {
		return nil, errors.Wrap(err, "loading processed ids")
	}

	snap := &Snapshot{ProcessedIDs: NewProcessedSet(ids...)}

	var updated string
	err := s.db.GetContext(ctx, &updated, "SELECT value FROM state_meta WHERE key = 'last_updated'")
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, errors.Wrap(err, "loading last_updated")
	default:
		snap.LastUpdated = parseTimestamp(updated)
	}
	return snap, nil
}

func (s *SQLiteStore) Save(ctx context.Context, ids ProcessedSet) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning state transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM processed_ids"); err != nil {
		return errors.Wrap(err, "clearing processed ids")
	}
	for _, id := range ids.IDs() {
		if _, err := tx.ExecContext(ctx, "INSERT INTO processed_ids (id) VALUES (?)", id); err != nil {
			return errors.Wrapf(err, "inserting processed id %s", id)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_meta (key, value) VALUES ('last_updated', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		s.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "updating last_updated")
	}

	return errors.Wrap(tx.Commit(), "committing state")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
