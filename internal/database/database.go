package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// busyTimeout is how long a writer waits for the lock. Runs triggered from
// the dashboard save their snapshots concurrently.
const busyTimeout = 5 * time.Second

// DB is the run snapshot store. Each pipeline run is one row in runs; its
// estimated records live in run_records and its ranked underpaid
// territories in run_underpayment, both keyed by run_id.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the snapshot store at dbPath, creating the parent
// directory, and brings the schema up to the latest version.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// dsn carries the pragmas in the connection string so that every pooled
// connection gets them, not only the first one.
func dsn(dbPath string) string {
	q := url.Values{"_pragma": {
		"journal_mode(WAL)",
		"foreign_keys(1)",
		fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()),
	}}
	return dbPath + "?" + q.Encode()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
