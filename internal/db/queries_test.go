package db

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aure/fpdash/internal/models"
)

func newTestDB(t *testing.T, maxRows int) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "fingerprints.db"), maxRows)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestListFingerprintsEmpty(t *testing.T) {
	database := newTestDB(t, 0)

	page, err := database.ListFingerprints(1, 20)
	require.NoError(t, err)
	assert.Equal(t, models.FingerprintPage{Fingerprints: []models.FingerprintRecord{}, CurrentPage: 1, TotalPages: 1}, page)
}

func TestListFingerprintsNewestFirstAndPaged(t *testing.T) {
	database := newTestDB(t, 0)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, input := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, database.InsertFingerprint(input, base.Add(time.Duration(i)*time.Second)))
	}

	first, err := database.ListFingerprints(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, 1, first.CurrentPage)
	assert.Equal(t, []models.FingerprintRecord{
		{Input: "E", Timestamp: "2024-05-01T12:00:04Z"},
		{Input: "D", Timestamp: "2024-05-01T12:00:03Z"},
	}, first.Fingerprints)

	last, err := database.ListFingerprints(3, 2)
	require.NoError(t, err)
	require.Len(t, last.Fingerprints, 1)
	assert.Equal(t, "A", last.Fingerprints[0].Input)

	defaults, err := database.ListFingerprints(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.CurrentPage)
	assert.Len(t, defaults.Fingerprints, 5)
}

func TestInsertTrimsOldestRows(t *testing.T) {
	database := newTestDB(t, 3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, input := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, database.InsertFingerprint(input, base.Add(time.Duration(i)*time.Second)))
	}

	page, err := database.ListFingerprints(1, 10)
	require.NoError(t, err)

	inputs := make([]string, len(page.Fingerprints))
	for i, fp := range page.Fingerprints {
		inputs[i] = fp.Input
	}
	assert.Equal(t, []string{"E", "D", "C"}, inputs)
}

func TestIntervalCountsBucketsByThirtySeconds(t *testing.T) {
	database := newTestDB(t, 0)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	offsets := []time.Duration{0, 10 * time.Second, 29 * time.Second, 30 * time.Second, 95 * time.Second}
	for i, off := range offsets {
		require.NoError(t, database.InsertFingerprint(string(rune('A'+i)), base.Add(off)))
	}

	counts, err := database.IntervalCounts()
	require.NoError(t, err)
	assert.Equal(t, []models.CountBucket{
		{Timestamp: "2024-05-01 12:00:00", Count: 3},
		{Timestamp: "2024-05-01 12:00:30", Count: 1},
		{Timestamp: "2024-05-01 12:01:30", Count: 1},
	}, counts)
}

func TestIntervalCountsEmpty(t *testing.T) {
	database := newTestDB(t, 0)

	counts, err := database.IntervalCounts()
	require.NoError(t, err)
	assert.NotNil(t, counts)
	assert.Empty(t, counts)
}

func TestListFingerprintsCountFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM fingerprints")).
		WillReturnError(errors.New("disk I/O error"))

	_, err = Wrap(sqlDB, 0).ListFingerprints(1, 20)
	assert.ErrorContains(t, err, "counting rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntervalCountsRejectsBadTimestamp(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT timestamp FROM fingerprints ORDER BY timestamp ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"timestamp"}).AddRow("yesterday"))

	_, err = Wrap(sqlDB, 0).IntervalCounts()
	assert.ErrorContains(t, err, `parsing timestamp "yesterday"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFingerprintFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fingerprints (input, timestamp) VALUES (?, ?)")).
		WithArgs("HELLO", "2024-05-01T12:00:00Z").
		WillReturnError(errors.New("database is locked"))

	err = Wrap(sqlDB, 0).InsertFingerprint("HELLO", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	assert.ErrorContains(t, err, "inserting fingerprint")
	assert.NoError(t, mock.ExpectationsWereMet())
}
