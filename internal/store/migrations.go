package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// migration is one schema step. Versions are applied in ascending order and
// never edited once released.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    analysis TEXT NOT NULL,
    domain TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    rows_read INTEGER,
    rows_kept INTEGER,
    rows_dropped INTEGER,
    rows_rejected INTEGER,
    tidy_rows INTEGER,
    countries_excluded INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_analysis ON runs(analysis, started_at);

CREATE TABLE IF NOT EXISTS tidy_records (
    run_id TEXT NOT NULL REFERENCES runs(id),
    country TEXT NOT NULL,
    year INTEGER NOT NULL,
    age_group TEXT NOT NULL,
    numerator REAL NOT NULL,
    population REAL NOT NULL,
    PRIMARY KEY (run_id, country, year, age_group)
);
`,
	},
	{
		Version:     2,
		Description: "Add series",
		SQL: `
CREATE TABLE IF NOT EXISTS series (
    run_id TEXT NOT NULL REFERENCES runs(id),
    country TEXT NOT NULL,
    year INTEGER NOT NULL,
    observed REAL,
    reference REAL,
    deviation_pct REAL,
    PRIMARY KEY (run_id, country, year)
);
`,
	},
	{
		Version:     3,
		Description: "Add raw payload archive",
		SQL: `
CREATE TABLE IF NOT EXISTS raw_payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fetched_at DATETIME NOT NULL,
    dataset TEXT NOT NULL,
    url TEXT NOT NULL,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE,
    size_bytes INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_payloads_dataset ON raw_payloads(dataset, fetched_at);
`,
	},
}

// Migrate brings the schema up to the latest version. Each step runs in its
// own transaction together with its schema_migrations row.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT,
		applied_at DATETIME
	)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	current, err := s.MigrationVersion()
	if err != nil {
		return fmt.Errorf("migrate: read version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(m); err != nil {
			return fmt.Errorf("migrate: version %d: %w", m.Version, err)
		}
		log.Printf("store: applied migration %d (%s)", m.Version, m.Description)
	}
	return nil
}

func (s *Store) apply(m migration) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err = tx.Exec(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// MigrationVersion returns the highest applied schema version, 0 for an empty database.
func (s *Store) MigrationVersion() (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
