package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	path    string
	maxRows int
}

// DefaultMaxRows bounds the fingerprints table; older rows are trimmed.
const DefaultMaxRows = 300

func New(dbPath string, maxRows int) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; serialise through a single connection.
	db.SetMaxOpenConns(1)

	wrapper := Wrap(db, maxRows)
	wrapper.path = dbPath
	if err := wrapper.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, 0600); err != nil {
		db.Close()
		return nil, err
	}

	return wrapper, nil
}

// Wrap uses an already open database, e.g. a sqlmock connection in tests.
func Wrap(db *sql.DB, maxRows int) *DB {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &DB{DB: db, maxRows: maxRows}
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Migrate() error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
CREATE TABLE IF NOT EXISTS fingerprints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    input TEXT NOT NULL,
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fingerprints_timestamp ON fingerprints(timestamp);
	`)
	if err != nil {
		return err
	}

	return tx.Commit()
}
