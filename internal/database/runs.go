package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/TobiSchelling/tuneiq/internal/records"
	"github.com/TobiSchelling/tuneiq/internal/royalty"
)

const runColumns = `id, artist, period_id, threshold, fx_rate, currency, record_count, total_streams,
	direct_revenue_ngn, indirect_revenue_ngn, cultural_export_value_ngn, total_economic_impact_ngn,
	lost_revenue_ngn, underpaid_countries, predicted_gdp, predicted_jobs, confidence, prediction_error,
	report_markdown, sources, replaced, created_at`

// SaveRun stores a run together with its estimated records and underpayment
// rows in one transaction. An empty run.ID is filled with a new UUID.
func (db *DB) SaveRun(run *Run, recs []records.StreamRecord, under []royalty.UnderpaymentSummary) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	sources, err := json.Marshal(nonNilSources(run.Sources))
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	replaced, err := json.Marshal(nonNilStrings(run.Replaced))
	if err != nil {
		return fmt.Errorf("encoding replaced platforms: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, artist, period_id, threshold, fx_rate, currency, record_count, total_streams,
		direct_revenue_ngn, indirect_revenue_ngn, cultural_export_value_ngn, total_economic_impact_ngn,
		lost_revenue_ngn, underpaid_countries, predicted_gdp, predicted_jobs, confidence, prediction_error,
		report_markdown, sources, replaced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Artist, run.PeriodID, run.Threshold, run.FXRate, run.Currency, run.RecordCount, run.TotalStreams,
		run.Impact.DirectRevenueNGN, run.Impact.IndirectRevenueNGN, run.Impact.CulturalExportValueNGN,
		run.Impact.TotalEconomicImpactNGN, run.LostRevenueNGN, run.UnderpaidCountries,
		run.PredictedGDP, run.PredictedJobs, run.Confidence, run.PredictionError,
		run.ReportMarkdown, string(sources), string(replaced),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	recStmt, err := tx.Prepare(
		`INSERT INTO run_records (run_id, seq, platform, artist, track, country, month, streams,
		reported_revenue_usd, listeners, duration_sec, skip_rate, release_year, playlist_adds, followers,
		engagement_rate, expected_revenue_usd, expected_revenue_ngn, actual_revenue_ngn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer recStmt.Close()

	for i, r := range recs {
		if _, err := recStmt.Exec(
			run.ID, i, r.Platform, r.Artist, r.Track, r.Country, r.Month, r.Streams,
			r.ReportedRevenueUSD, r.Listeners, r.DurationSec, r.SkipRate, r.ReleaseYear, r.PlaylistAdds,
			r.Followers, r.EngagementRate, r.ExpectedRevenueUSD, r.ExpectedRevenueNGN, r.ActualRevenueNGN,
		); err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	for i, u := range under {
		if _, err := tx.Exec(
			`INSERT INTO run_underpayment (run_id, rank, country, underpayment_pct, expected_revenue_ngn,
			actual_revenue_ngn, streams, lost_revenue_ngn) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, u.Country, u.UnderpaymentPct, u.ExpectedRevenueNGN, u.ActualRevenueNGN, u.Streams, u.LostRevenueNGN,
		); err != nil {
			return fmt.Errorf("inserting underpayment row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var sources, replaced string
	if err := s.Scan(&r.ID, &r.Artist, &r.PeriodID, &r.Threshold, &r.FXRate, &r.Currency,
		&r.RecordCount, &r.TotalStreams,
		&r.Impact.DirectRevenueNGN, &r.Impact.IndirectRevenueNGN, &r.Impact.CulturalExportValueNGN,
		&r.Impact.TotalEconomicImpactNGN, &r.LostRevenueNGN, &r.UnderpaidCountries,
		&r.PredictedGDP, &r.PredictedJobs, &r.Confidence, &r.PredictionError,
		&r.ReportMarkdown, &sources, &replaced, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		return nil, fmt.Errorf("decoding sources of run %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(replaced), &r.Replaced); err != nil {
		return nil, fmt.Errorf("decoding replaced platforms of run %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetLastRun returns the most recent run, or nil when none exist.
func (db *DB) GetLastRun() (*Run, error) {
	row := db.conn.QueryRow("SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1")
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetAllRuns returns all runs, newest first.
func (db *DB) GetAllRuns() ([]Run, error) {
	return db.queryRuns("SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, rowid DESC")
}

// GetRunsForArtist returns an artist's runs, newest first.
func (db *DB) GetRunsForArtist(artist string) ([]Run, error) {
	return db.queryRuns(
		"SELECT "+runColumns+" FROM runs WHERE artist = ? COLLATE NOCASE ORDER BY created_at DESC, rowid DESC",
		artist,
	)
}

func (db *DB) queryRuns(query string, args ...any) ([]Run, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRunRecords returns the stored records of a run in their original order.
func (db *DB) GetRunRecords(runID string) ([]records.StreamRecord, error) {
	rows, err := db.conn.Query(
		`SELECT platform, artist, track, country, month, streams, reported_revenue_usd, listeners,
		duration_sec, skip_rate, release_year, playlist_adds, followers, engagement_rate,
		expected_revenue_usd, expected_revenue_ngn, actual_revenue_ngn
		FROM run_records WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []records.StreamRecord
	for rows.Next() {
		var r records.StreamRecord
		if err := rows.Scan(&r.Platform, &r.Artist, &r.Track, &r.Country, &r.Month, &r.Streams,
			&r.ReportedRevenueUSD, &r.Listeners, &r.DurationSec, &r.SkipRate, &r.ReleaseYear,
			&r.PlaylistAdds, &r.Followers, &r.EngagementRate,
			&r.ExpectedRevenueUSD, &r.ExpectedRevenueNGN, &r.ActualRevenueNGN); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// GetRunUnderpayment returns the underpayment table of a run, highest lost
// revenue first.
func (db *DB) GetRunUnderpayment(runID string) ([]royalty.UnderpaymentSummary, error) {
	rows, err := db.conn.Query(
		`SELECT country, underpayment_pct, expected_revenue_ngn, actual_revenue_ngn, streams, lost_revenue_ngn
		FROM run_underpayment WHERE run_id = ? ORDER BY rank`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []royalty.UnderpaymentSummary{}
	for rows.Next() {
		var u royalty.UnderpaymentSummary
		if err := rows.Scan(&u.Country, &u.UnderpaymentPct, &u.ExpectedRevenueNGN,
			&u.ActualRevenueNGN, &u.Streams, &u.LostRevenueNGN); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its rows. Deleting a missing run is not an error.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM run_records WHERE run_id = ?",
		"DELETE FROM run_underpayment WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest any
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(DISTINCT artist) FROM runs", &s.Artists},
		{"SELECT COUNT(*) FROM run_records", &s.StoredRecords},
		{"SELECT COUNT(*) FROM run_underpayment", &s.UnderpaidRows},
		{"SELECT COALESCE(SUM(lost_revenue_ngn), 0) FROM runs", &s.TotalLostNGN},
		{"SELECT COUNT(*) FROM runs WHERE predicted_gdp IS NOT NULL", &s.RunsWithPredict},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func nonNilSources(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
