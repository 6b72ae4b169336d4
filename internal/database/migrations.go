package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    artist TEXT NOT NULL,
    period_id TEXT NOT NULL,
    threshold REAL NOT NULL,
    fx_rate REAL NOT NULL,
    currency TEXT NOT NULL DEFAULT 'NGN',
    record_count INTEGER DEFAULT 0,
    total_streams INTEGER DEFAULT 0,
    direct_revenue_ngn REAL DEFAULT 0,
    indirect_revenue_ngn REAL DEFAULT 0,
    cultural_export_value_ngn REAL DEFAULT 0,
    total_economic_impact_ngn REAL DEFAULT 0,
    lost_revenue_ngn REAL DEFAULT 0,
    underpaid_countries INTEGER DEFAULT 0,
    predicted_gdp REAL,
    predicted_jobs REAL,
    confidence REAL,
    prediction_error TEXT,
    report_markdown TEXT NOT NULL DEFAULT '',
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_records (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    platform TEXT NOT NULL,
    artist TEXT NOT NULL,
    track TEXT NOT NULL,
    country TEXT NOT NULL,
    month TEXT NOT NULL,
    streams INTEGER NOT NULL,
    reported_revenue_usd REAL,
    listeners REAL,
    duration_sec REAL,
    skip_rate REAL,
    release_year REAL,
    playlist_adds REAL,
    followers REAL,
    engagement_rate REAL,
    expected_revenue_usd REAL DEFAULT 0,
    expected_revenue_ngn REAL DEFAULT 0,
    actual_revenue_ngn REAL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS run_underpayment (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    rank INTEGER NOT NULL,
    country TEXT NOT NULL,
    underpayment_pct REAL NOT NULL,
    expected_revenue_ngn REAL NOT NULL,
    actual_revenue_ngn REAL NOT NULL,
    streams INTEGER NOT NULL,
    lost_revenue_ngn REAL NOT NULL,
    PRIMARY KEY (run_id, rank)
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "record collection sources per run",
		Up: func(tx *sql.Tx) error {
			// ALTER TABLE ADD COLUMN has no IF NOT EXISTS; check first so a
			// re-run after a crash before the version stamp is harmless.
			var n int
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name = 'sources'",
			).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				if _, err := tx.Exec(`ALTER TABLE runs ADD COLUMN sources TEXT NOT NULL DEFAULT '{}'`); err != nil {
					return err
				}
				if _, err := tx.Exec(`ALTER TABLE runs ADD COLUMN replaced TEXT NOT NULL DEFAULT '[]'`); err != nil {
					return err
				}
			}
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_artist ON runs(artist, created_at)`)
			return err
		},
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
