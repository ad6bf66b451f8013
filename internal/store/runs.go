package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lox/eurorates/internal/models"
)

// Run is one execution of an analysis, kept for auditing.
type Run struct {
	ID                string
	Analysis          string
	Domain            models.Domain
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	RowsRead          sql.NullInt64
	RowsKept          sql.NullInt64
	RowsDropped       sql.NullInt64
	RowsRejected      sql.NullInt64
	TidyRows          sql.NullInt64
	CountriesExcluded sql.NullInt64
	Success           bool
	ErrorMessage      sql.NullString
}

// StartRun creates a run record with a fresh id and returns it.
func (s *Store) StartRun(analysis string, domain models.Domain) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Analysis:  analysis,
		Domain:    domain,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, analysis, domain, started_at, success)
		VALUES (?, ?, ?, ?, FALSE)
	`, run.ID, run.Analysis, string(run.Domain), run.StartedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRun records the results of run.
func (s *Store) CompleteRun(run *Run) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE runs SET
			finished_at = ?,
			rows_read = ?,
			rows_kept = ?,
			rows_dropped = ?,
			rows_rejected = ?,
			tidy_rows = ?,
			countries_excluded = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RowsRead, run.RowsKept, run.RowsDropped, run.RowsRejected,
		run.TidyRows, run.CountriesExcluded, run.Success, run.ErrorMessage, run.ID)
	return err
}

const runColumns = `id, analysis, domain, started_at, finished_at, rows_read, rows_kept,
	rows_dropped, rows_rejected, tidy_rows, countries_excluded, success, error_message`

func scanRun(sc interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var domain string
	err := sc.Scan(&r.ID, &r.Analysis, &domain, &r.StartedAt, &r.FinishedAt, &r.RowsRead,
		&r.RowsKept, &r.RowsDropped, &r.RowsRejected, &r.TidyRows, &r.CountriesExcluded,
		&r.Success, &r.ErrorMessage)
	r.Domain = models.Domain(domain)
	return r, err
}

func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestSuccessfulRun returns the newest successful run of an analysis, or nil.
func (s *Store) LatestSuccessfulRun(analysis string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`
		SELECT `+runColumns+`
		FROM runs
		WHERE analysis = ? AND success = TRUE
		ORDER BY started_at DESC
		LIMIT 1
	`, analysis))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRecentRunErrors returns recent failed runs.
func (s *Store) GetRecentRunErrors(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT `+runColumns+`
		FROM runs
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
