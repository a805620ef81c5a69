// Package storage is the durable system of record: listings, subscriptions,
// notified markers, and crawler-run audit rows in a local sqlite database.
// The cache is reconstructible from here; the reverse is not true.
package storage

import (
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS listings (
  id                   INTEGER PRIMARY KEY,
  url                  TEXT NOT NULL,
  title                TEXT NOT NULL DEFAULT '',
  price                INTEGER,
  price_unit           TEXT NOT NULL DEFAULT '',
  region               INTEGER NOT NULL,
  section              INTEGER NOT NULL DEFAULT 0,
  kind                 INTEGER NOT NULL DEFAULT 0,
  kind_name            TEXT NOT NULL DEFAULT '',
  address              TEXT NOT NULL DEFAULT '',
  floor                INTEGER,
  floor_str            TEXT NOT NULL DEFAULT '',
  total_floor          INTEGER,
  is_rooftop           INTEGER NOT NULL DEFAULT 0 CHECK (is_rooftop IN (0,1)),
  layout               INTEGER,
  layout_str           TEXT NOT NULL DEFAULT '',
  bathroom             INTEGER,
  area                 REAL,
  shape                INTEGER,
  fitment              INTEGER,
  gender               TEXT NOT NULL DEFAULT '',
  pet_allowed          INTEGER CHECK (pet_allowed IN (0,1)),
  options              TEXT NOT NULL DEFAULT '[]',
  other                TEXT NOT NULL DEFAULT '[]',
  tags                 TEXT NOT NULL DEFAULT '[]',
  surrounding_type     TEXT NOT NULL DEFAULT '',
  surrounding_desc     TEXT NOT NULL DEFAULT '',
  surrounding_distance INTEGER,
  has_detail           INTEGER NOT NULL DEFAULT 0 CHECK (has_detail IN (0,1)),
  first_seen_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_listings_region ON listings(region);
CREATE TABLE IF NOT EXISTS subscriptions (
  id              INTEGER PRIMARY KEY,
  user_id         INTEGER NOT NULL,
  name            TEXT NOT NULL DEFAULT '',
  region          INTEGER NOT NULL,
  section         TEXT NOT NULL DEFAULT '[]',
  kind            TEXT NOT NULL DEFAULT '[]',
  shape           TEXT NOT NULL DEFAULT '[]',
  fitment         TEXT NOT NULL DEFAULT '[]',
  layout          TEXT NOT NULL DEFAULT '[]',
  bathroom        TEXT NOT NULL DEFAULT '[]',
  price_min       INTEGER,
  price_max       INTEGER,
  area_min        REAL,
  area_max        REAL,
  floor_min       INTEGER,
  floor_max       INTEGER,
  exclude_rooftop INTEGER NOT NULL DEFAULT 0 CHECK (exclude_rooftop IN (0,1)),
  gender          TEXT NOT NULL DEFAULT '',
  pet_required    INTEGER NOT NULL DEFAULT 0 CHECK (pet_required IN (0,1)),
  other           TEXT NOT NULL DEFAULT '[]',
  options         TEXT NOT NULL DEFAULT '[]',
  enabled         INTEGER NOT NULL DEFAULT 1 CHECK (enabled IN (0,1)),
  target          TEXT NOT NULL DEFAULT '',
  updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_region ON subscriptions(region, enabled);
CREATE TABLE IF NOT EXISTS notified (
  id              INTEGER PRIMARY KEY,
  subscription_id INTEGER NOT NULL REFERENCES subscriptions(id),
  listing_id      INTEGER NOT NULL,
  notified_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(subscription_id, listing_id)
);
CREATE TABLE IF NOT EXISTS crawler_runs (
  id             INTEGER PRIMARY KEY,
  region         INTEGER NOT NULL,
  status         TEXT NOT NULL CHECK (status IN ('running','success','failed')),
  started_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  finished_at    DATETIME,
  fetched_count  INTEGER NOT NULL DEFAULT 0,
  new_count      INTEGER NOT NULL DEFAULT 0,
  notified_count INTEGER NOT NULL DEFAULT 0,
  error          TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_region ON crawler_runs(region, started_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullBoolToInt(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func toJSONInts(v []int) string {
	if v == nil {
		v = []int{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func toJSONStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func fromJSONInts(s string) []int {
	if s == "" {
		return nil
	}
	var v []int
	if err := json.Unmarshal([]byte(s), &v); err != nil || len(v) == 0 {
		return nil
	}
	return v
}

func fromJSONStrings(s string) []string {
	if s == "" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil || len(v) == 0 {
		return nil
	}
	return v
}
