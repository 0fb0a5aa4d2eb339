package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cogniclear/cogniclear/descriptor"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key  TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	ts   INTEGER NOT NULL
) STRICT;
`

// sqliteStore persists entries in SQLite so a long-lived service keeps its
// cache across restarts. Items are stored as JSON, timestamps as epoch
// milliseconds.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore prepares the schema on db and returns a Store backed by
// it. The caller owns the database handle and must import a sqlite driver
// (modernc.org/sqlite).
func NewSQLiteStore(db *sql.DB) (Store, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) get(key string) (Entry, bool, error) {
	var data []byte
	var ts int64
	err := s.db.QueryRow(`SELECT data, ts FROM entries WHERE key = ?`, key).Scan(&data, &ts)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: select: %w", err)
	}

	var items []descriptor.ClassifiedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return Entry{}, false, fmt.Errorf("cache: decode entry: %w", err)
	}
	return Entry{Key: key, Items: items, Timestamp: time.UnixMilli(ts)}, true, nil
}

func (s *sqliteStore) put(e Entry) error {
	data, err := json.Marshal(e.Items)
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO entries (key, data, ts) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, ts = excluded.ts`,
		e.Key, data, e.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("cache: upsert: %w", err)
	}
	return nil
}

func (s *sqliteStore) clear() error {
	if _, err := s.db.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}

func (s *sqliteStore) expire(before time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM entries WHERE ts <= ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache: expire: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *sqliteStore) size() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}
