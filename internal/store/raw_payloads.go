package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// RawPayload is an archived snapshot download.
type RawPayload struct {
	ID                int64
	FetchedAt         time.Time
	Dataset           string
	URL               string
	PayloadCompressed []byte
	PayloadHash       string
	SizeBytes         int64
}

// Payload returns the decompressed snapshot.
func (p *RawPayload) Payload() ([]byte, error) {
	return gunzip(p.PayloadCompressed)
}

// PayloadHash returns the hex sha256 used to deduplicate payloads.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// StoreRawPayload archives a snapshot. An identical snapshot already in the
// archive is not stored again and yields id 0.
func (s *Store) StoreRawPayload(dataset, url string, payload []byte) (int64, error) {
	compressed, err := gzipBytes(payload)
	if err != nil {
		return 0, fmt.Errorf("archive %s: %w", dataset, err)
	}

	res, err := s.db.Exec(`INSERT INTO raw_payloads
		(fetched_at, dataset, url, payload_compressed, payload_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING`,
		time.Now().UTC(), dataset, url, compressed, PayloadHash(payload), len(payload))
	if err != nil {
		return 0, fmt.Errorf("archive %s: %w", dataset, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetRawPayload(id int64) ([]byte, error) {
	var compressed []byte
	if err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).Scan(&compressed); err != nil {
		return nil, err
	}
	return gunzip(compressed)
}

// GetRawPayloadByHash returns the archived payload with the given hash, or nil.
func (s *Store) GetRawPayloadByHash(hash string) (*RawPayload, error) {
	var p RawPayload
	err := s.db.QueryRow(`SELECT id, fetched_at, dataset, url, payload_compressed, payload_hash, size_bytes
		FROM raw_payloads WHERE payload_hash = ?`, hash).
		Scan(&p.ID, &p.FetchedAt, &p.Dataset, &p.URL, &p.PayloadCompressed, &p.PayloadHash, &p.SizeBytes)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &p, nil
}

type RawPayloadStats struct {
	TotalCount      int
	TotalSizeBytes  int64 // uncompressed
	StoredBytes     int64
	OldestFetchedAt time.Time
	NewestFetchedAt time.Time
	CountByDataset  map[string]int
}

func (s *Store) GetRawPayloadStats() (*RawPayloadStats, error) {
	stats := &RawPayloadStats{CountByDataset: make(map[string]int)}
	var oldest, newest sql.NullString
	if err := s.db.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(size_bytes), 0),
		COALESCE(SUM(LENGTH(payload_compressed)), 0),
		MIN(fetched_at), MAX(fetched_at)
		FROM raw_payloads`).
		Scan(&stats.TotalCount, &stats.TotalSizeBytes, &stats.StoredBytes, &oldest, &newest); err != nil {
		return nil, err
	}
	stats.OldestFetchedAt = parseTime(oldest)
	stats.NewestFetchedAt = parseTime(newest)

	rows, err := s.db.Query(`SELECT dataset, COUNT(*) FROM raw_payloads GROUP BY dataset`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ds string
		var n int
		if err := rows.Scan(&ds, &n); err != nil {
			return nil, err
		}
		stats.CountByDataset[ds] = n
	}
	return stats, rows.Err()
}

// parseTime reads aggregate timestamps, which SQLite returns as text.
func parseTime(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999999999 -0700 MST", time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CleanupOldRawPayloads drops payloads fetched more than days ago and reports
// how many were removed.
func (s *Store) CleanupOldRawPayloads(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.db.Exec(`DELETE FROM raw_payloads WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
