package store

import (
	"fmt"

	"github.com/lox/eurorates/internal/models"
)

// SaveTidy stores the tidy dataset of a run in one transaction.
func (s *Store) SaveTidy(runID string, records []models.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tidy_records (run_id, country, year, age_group, numerator, population)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.Country, r.Year, string(r.AgeGroup), r.Numerator, r.Population); err != nil {
			return fmt.Errorf("insert %s: %w", r.Key, err)
		}
	}
	return tx.Commit()
}

// SaveSeries stores the observed, reference and deviation rows of a run.
func (s *Store) SaveSeries(runID string, rows []models.SeriesRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO series (run_id, country, year, observed, reference, deviation_pct)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(runID, r.Country, r.Year, r.Observed, r.Reference, r.Deviation); err != nil {
			return fmt.Errorf("insert %s/%d: %w", r.Country, r.Year, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetTidy(runID string) ([]models.Record, error) {
	rows, err := s.db.Query(`
		SELECT country, year, age_group, numerator, population
		FROM tidy_records
		WHERE run_id = ?
		ORDER BY country, year, age_group
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		var group string
		if err := rows.Scan(&r.Country, &r.Year, &group, &r.Numerator, &r.Population); err != nil {
			return nil, err
		}
		r.AgeGroup = models.AgeGroup(group)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) GetSeries(runID string) ([]models.SeriesRow, error) {
	rows, err := s.db.Query(`
		SELECT country, year, observed, reference, deviation_pct
		FROM series
		WHERE run_id = ?
		ORDER BY country, year
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []models.SeriesRow
	for rows.Next() {
		var r models.SeriesRow
		if err := rows.Scan(&r.Country, &r.Year, &r.Observed, &r.Reference, &r.Deviation); err != nil {
			return nil, err
		}
		series = append(series, r)
	}
	return series, rows.Err()
}
