package db

import (
	"fmt"
	"time"

	"github.com/aure/fpdash/internal/models"
)

const (
	DefaultPageLimit = 20
	BucketWidth      = 30 * time.Second
	BucketLayout     = "2006-01-02 15:04:05"
)

// InsertFingerprint stores one record and trims the oldest rows beyond the cap.
func (db *DB) InsertFingerprint(input string, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO fingerprints (input, timestamp) VALUES (?, ?)`,
		input, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting fingerprint: %w", err)
	}

	if err := db.enforceMaxRows(); err != nil {
		return fmt.Errorf("enforcing max rows: %w", err)
	}
	return nil
}

func (db *DB) enforceMaxRows() error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM fingerprints`).Scan(&count); err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}
	if count <= db.maxRows {
		return nil
	}

	_, err := db.Exec(
		`DELETE FROM fingerprints WHERE id IN (SELECT id FROM fingerprints ORDER BY timestamp ASC, id ASC LIMIT ?)`,
		count-db.maxRows,
	)
	if err != nil {
		return fmt.Errorf("deleting oldest rows: %w", err)
	}
	return nil
}

// ListFingerprints returns one page, newest first. total_pages is at least 1.
func (db *DB) ListFingerprints(page, limit int) (models.FingerprintPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}

	var totalRows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM fingerprints`).Scan(&totalRows); err != nil {
		return models.FingerprintPage{}, fmt.Errorf("counting rows: %w", err)
	}

	totalPages := (totalRows + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	rows, err := db.Query(
		`SELECT input, timestamp FROM fingerprints ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return models.FingerprintPage{}, fmt.Errorf("querying fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := []models.FingerprintRecord{}
	for rows.Next() {
		var fp models.FingerprintRecord
		if err := rows.Scan(&fp.Input, &fp.Timestamp); err != nil {
			return models.FingerprintPage{}, fmt.Errorf("scanning row: %w", err)
		}
		fingerprints = append(fingerprints, fp)
	}
	if err := rows.Err(); err != nil {
		return models.FingerprintPage{}, err
	}

	return models.FingerprintPage{
		Fingerprints: fingerprints,
		CurrentPage:  page,
		TotalPages:   totalPages,
	}, nil
}

// IntervalCounts buckets every record into BucketWidth windows, oldest first.
func (db *DB) IntervalCounts() ([]models.CountBucket, error) {
	rows, err := db.Query(`SELECT timestamp FROM fingerprints ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying timestamps: %w", err)
	}
	defer rows.Close()

	counts := []models.CountBucket{}
	index := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning timestamp: %w", err)
		}

		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", raw, err)
		}

		key := t.Truncate(BucketWidth).Format(BucketLayout)
		if i, ok := index[key]; ok {
			counts[i].Count++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, models.CountBucket{Timestamp: key, Count: 1})
	}
	return counts, rows.Err()
}
