package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/TobiSchelling/tuneiq/internal/records"
	"github.com/TobiSchelling/tuneiq/internal/royalty"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func fptr(f float64) *float64 { return &f }

func sampleRun() (*Run, []records.StreamRecord, []royalty.UnderpaymentSummary) {
	recs := []records.StreamRecord{
		{Platform: "Spotify", Artist: "Burna Boy", Track: "Last Last", Country: "Nigeria", Month: "2024-01",
			Streams: 1000, ReportedRevenueUSD: fptr(2), Listeners: fptr(5e6),
			ExpectedRevenueUSD: 4, ExpectedRevenueNGN: 3400, ActualRevenueNGN: 1700},
		{Platform: "Apple Music", Artist: "Burna Boy", Track: "Unknown", Country: "Ghana", Month: "2024-02",
			Streams: 0},
	}
	under := []royalty.UnderpaymentSummary{
		{Country: "Nigeria", UnderpaymentPct: 0.5, ExpectedRevenueNGN: 3400, ActualRevenueNGN: 1700, Streams: 1000, LostRevenueNGN: 1700},
	}
	run := &Run{
		Artist:             "Burna Boy",
		PeriodID:           PeriodOf(recs),
		Threshold:          0.15,
		FXRate:             850,
		Currency:           "NGN",
		RecordCount:        len(recs),
		TotalStreams:       1000,
		Impact:             royalty.ImpactEstimate{DirectRevenueNGN: 1700, IndirectRevenueNGN: 4250, TotalEconomicImpactNGN: 5950},
		LostRevenueNGN:     1700,
		UnderpaidCountries: 1,
		PredictedGDP:       fptr(1.5e9),
		ReportMarkdown:     "# Report",
		Sources:            map[string]int{"Sample": 2},
		Replaced:           []string{"Spotify"},
	}
	return run, recs, under
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	run, recs, under := sampleRun()

	if err := db.SaveRun(run, recs, under); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run ID to be assigned")
	}

	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected run")
	}
	if got.Artist != "Burna Boy" || got.PeriodID != "2024-01..2024-02" {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Impact.TotalEconomicImpactNGN != 5950 {
		t.Errorf("expected total impact 5950, got %v", got.Impact.TotalEconomicImpactNGN)
	}
	if got.PredictedGDP == nil || *got.PredictedGDP != 1.5e9 {
		t.Errorf("expected predicted gdp, got %v", got.PredictedGDP)
	}
	if got.PredictedJobs != nil || got.PredictionError != nil {
		t.Error("expected nil jobs and prediction error")
	}
	if got.Sources["Sample"] != 2 || len(got.Replaced) != 1 {
		t.Errorf("unexpected sources %v / %v", got.Sources, got.Replaced)
	}
	if got.CreatedAt == nil {
		t.Error("expected created_at to be set")
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetRun("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing run")
	}

	last, err := db.GetLastRun()
	if err != nil || last != nil {
		t.Errorf("expected no last run, got %v / %v", last, err)
	}
}

func TestRunRecordsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run, recs, under := sampleRun()
	if err := db.SaveRun(run, recs, under); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetRunRecords(run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ReportedRevenueUSD == nil || *got[0].ReportedRevenueUSD != 2 {
		t.Errorf("expected reported revenue 2, got %v", got[0].ReportedRevenueUSD)
	}
	if got[0].ExpectedRevenueNGN != 3400 || got[0].Listeners == nil {
		t.Errorf("unexpected first record %+v", got[0])
	}
	if got[1].ReportedRevenueUSD != nil || got[1].DurationSec != nil {
		t.Error("expected missing optional values to stay nil")
	}

	rows, err := db.GetRunUnderpayment(run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0] != under[0] {
		t.Errorf("expected underpayment rows to round-trip, got %+v", rows)
	}
}

func TestGetRunUnderpaymentEmpty(t *testing.T) {
	db := openTestDB(t)
	rows, err := db.GetRunUnderpayment("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", rows)
	}
}

func TestGetAllRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	first, recs, under := sampleRun()
	db.SaveRun(first, recs, under)
	second, _, _ := sampleRun()
	second.Artist = "Tems"
	db.SaveRun(second, nil, nil)

	runs, err := db.GetAllRuns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Errorf("expected newest run first, got %s", runs[0].Artist)
	}

	last, err := db.GetLastRun()
	if err != nil || last == nil || last.ID != second.ID {
		t.Errorf("expected last run %s, got %v (%v)", second.ID, last, err)
	}

	tems, err := db.GetRunsForArtist("tems")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tems) != 1 {
		t.Errorf("expected 1 run for Tems, got %d", len(tems))
	}
}

func TestDeleteRun(t *testing.T) {
	db := openTestDB(t)
	run, recs, under := sampleRun()
	db.SaveRun(run, recs, under)

	if err := db.DeleteRun(run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := db.GetRun(run.ID)
	if got != nil {
		t.Error("expected run to be deleted")
	}
	left, _ := db.GetRunRecords(run.ID)
	if len(left) != 0 {
		t.Errorf("expected records to be deleted, got %d", len(left))
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Runs != 0 || stats.TotalLostNGN != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	run, recs, under := sampleRun()
	db.SaveRun(run, recs, under)

	stats, err = db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Runs != 1 || stats.Artists != 1 || stats.StoredRecords != 2 || stats.UnderpaidRows != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.TotalLostNGN != 1700 || stats.RunsWithPredict != 1 {
		t.Errorf("unexpected totals %+v", stats)
	}
}

func TestPeriodHelpers(t *testing.T) {
	if got := MakePeriodID("2024-01", "2024-01"); got != "2024-01" {
		t.Errorf("expected single month, got %q", got)
	}
	if got := FormatPeriodDisplay("2024-01..2024-02"); got != "Jan 2024 - Feb 2024" {
		t.Errorf("unexpected display %q", got)
	}
	if got := FormatPeriodDisplay("2024-03"); got != "Mar 2024" {
		t.Errorf("unexpected display %q", got)
	}
	if got := FormatPeriodDisplay("unknown"); got != "unknown" {
		t.Errorf("expected passthrough, got %q", got)
	}
	if got := PeriodOf(nil); got != "unknown" {
		t.Errorf("expected unknown period, got %q", got)
	}
}

func TestOpenConfiguresEveryConnection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Holding both forces the pool to hand out two distinct connections.
	var conns []*sql.Conn
	for range 2 {
		c, err := db.conn.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to get connection: %v", err)
		}
		defer c.Close()
		conns = append(conns, c)
	}

	for i, c := range conns {
		var fk, timeout int
		var mode string
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if fk != 1 || timeout != 5000 || mode != "wal" {
			t.Errorf("conn %d: foreign_keys=%d busy_timeout=%d journal_mode=%s", i, fk, timeout, mode)
		}
	}
}

func TestConcurrentSaveRun(t *testing.T) {
	db := openTestDB(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, recs, under := sampleRun()
			errs[i] = db.SaveRun(run, recs, under)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("save %d: %v", i, err)
		}
	}
	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Runs != 4 {
		t.Errorf("expected 4 runs, got %d", stats.Runs)
	}
}
