package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/TobiSchelling/tuneiq/internal/collect"
	"github.com/TobiSchelling/tuneiq/internal/config"
	"github.com/TobiSchelling/tuneiq/internal/database"
	"github.com/TobiSchelling/tuneiq/internal/predict"
	"github.com/TobiSchelling/tuneiq/internal/records"
	"github.com/TobiSchelling/tuneiq/internal/report"
	"github.com/TobiSchelling/tuneiq/internal/royalty"
)

// StepCount is the number of steps in a full run.
const StepCount = 7

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID    string
	Artist   string
	PeriodID string
	Steps    []StepResult
}

// Failed reports whether any step returned an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Analysis is the outcome of running the royalty engine and the predictor
// over one dataset.
type Analysis struct {
	Params       royalty.Params
	Records      []records.StreamRecord
	Underpayment []royalty.UnderpaymentSummary
	DetectErr    error
	Impact       royalty.ImpactEstimate
	Prediction   *predict.Result
}

// Analyze estimates revenue, detects underpayment and aggregates impact.
// A detection error is kept on the Analysis so the impact is still reported.
// The prediction is left nil; callers with a predictor fill it in.
func Analyze(params royalty.Params, recs []records.StreamRecord) *Analysis {
	a := &Analysis{Params: params}
	a.Records = royalty.Estimate(params, recs)
	a.Underpayment, a.DetectErr = royalty.DetectUnderpayment(params, a.Records, params.Threshold)
	a.Impact = royalty.EconomicImpact(params, a.Records)
	return a
}

// Pipeline orchestrates collection, analysis, prediction, reporting and
// snapshot storage for one artist.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	collector *collect.Collector
	predictor *predict.Predictor
}

// New creates a pipeline with the sources and model configured in cfg.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	m := cfg.Model
	loader := predict.Open(m.Kind, m.Path, m.URL, cfg.ModelTimeout())
	return NewWith(cfg, db, collect.NewCollector(cfg), predict.NewPredictor(loader))
}

// NewWith creates a pipeline from explicit collaborators.
func NewWith(cfg *config.Config, db *database.DB, c *collect.Collector, p *predict.Predictor) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, collector: c, predictor: p}
}

// Run executes the full pipeline. An empty artist uses the configured one.
func (p *Pipeline) Run(ctx context.Context, artist string) *Result {
	if artist == "" {
		artist = p.cfg.Artist
	}
	r := &Result{Artist: artist}
	params := p.cfg.RoyaltyParams()

	// Step 1: Collect
	log.Printf("Step 1/%d: Collecting streaming data for %s...", StepCount, artist)
	collected, err := p.collector.Collect(ctx, artist)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r
	}
	r.PeriodID = database.PeriodOf(collected.Records)
	r.Steps = append(r.Steps, StepResult{
		Name: "Collect",
		Summary: fmt.Sprintf("Collected %d records (%d live platforms replaced sample data, %d prediction signals)",
			len(collected.Records), len(collected.Replaced), len(collected.Signals)),
	})

	// Step 2: Estimate
	log.Printf("Step 2/%d: Estimating expected revenue...", StepCount)
	a := &Analysis{Params: params, Records: royalty.Estimate(params, collected.Records)}
	var expected, actual float64
	for _, rec := range a.Records {
		expected += rec.ExpectedRevenueNGN
		actual += rec.ActualRevenueNGN
	}
	r.Steps = append(r.Steps, StepResult{
		Name: "Estimate",
		Summary: fmt.Sprintf("Expected %s vs reported %s across %d records",
			report.FormatAmount(params.Currency, expected), report.FormatAmount(params.Currency, actual), len(a.Records)),
	})

	// Step 3: Detect
	log.Printf("Step 3/%d: Detecting underpayment...", StepCount)
	a.Underpayment, a.DetectErr = royalty.DetectUnderpayment(params, a.Records, params.Threshold)
	if a.DetectErr != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Detect", Err: a.DetectErr})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name: "Detect",
			Summary: fmt.Sprintf("%d underpaid territories, %s lost",
				len(a.Underpayment), report.FormatAmount(params.Currency, royalty.TotalLost(a.Underpayment))),
		})
	}

	// Step 4: Impact
	log.Printf("Step 4/%d: Aggregating economic impact...", StepCount)
	a.Impact = royalty.EconomicImpact(params, a.Records)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Impact",
		Summary: fmt.Sprintf("Total economic impact %s", report.FormatAmount(params.Currency, a.Impact.TotalEconomicImpactNGN)),
	})

	// Step 5: Predict
	log.Printf("Step 5/%d: Predicting GDP and jobs...", StepCount)
	pred := p.predictor.Predict(ctx, collected.FeatureRecords(a.Records))
	a.Prediction = &pred
	summary := fmt.Sprintf("Predicted GDP %s, jobs %s",
		report.FormatCurrencyPtr(pred.PredictedGDP), report.FormatNumberPtr(pred.PredictedJobs))
	if pred.Degraded() {
		summary = "Prediction unavailable: " + pred.Err
	}
	r.Steps = append(r.Steps, StepResult{Name: "Predict", Summary: summary})

	// Step 6: Report
	log.Printf("Step 6/%d: Composing report...", StepCount)
	rep := report.Compose(report.Input{
		Artist:       artist,
		Period:       database.FormatPeriodDisplay(r.PeriodID),
		Params:       params,
		Records:      a.Records,
		Underpayment: a.Underpayment,
		Impact:       a.Impact,
		Prediction:   a.Prediction,
		Sources:      collected.Sources,
		Replaced:     collected.Replaced,
		Signals:      len(collected.Signals),
	})
	md := rep.Markdown()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Report",
		Summary: fmt.Sprintf("Report composed (%d bytes)", len(md)),
	})

	// Step 7: Save
	log.Printf("Step 7/%d: Saving run snapshot...", StepCount)
	run := snapshot(artist, r.PeriodID, a, md, collected)
	if err := p.db.SaveRun(run, a.Records, a.Underpayment); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Save", Err: fmt.Errorf("saving run: %w", err)})
		return r
	}
	r.RunID = run.ID
	r.Steps = append(r.Steps, StepResult{
		Name:    "Save",
		Summary: fmt.Sprintf("Saved run %s", run.ID),
	})

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(artist string) *Result {
	if artist == "" {
		artist = p.cfg.Artist
	}
	r := &Result{Artist: artist}
	src := p.cfg.Sources

	live := 0
	for _, on := range []bool{src.Spotify.Enabled, src.YouTube.Enabled, src.AppleMusic.Enabled, src.Charts.Enabled} {
		if on {
			live++
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] Would load sample data and query %d live sources for %s", live, artist),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Estimate",
		Summary: fmt.Sprintf("[dry-run] %d platform rates, default %g USD/stream, fx %g", len(p.cfg.Royalty.Rates), p.cfg.Royalty.DefaultRate, p.cfg.Royalty.FXRate),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Detect",
		Summary: fmt.Sprintf("[dry-run] Threshold %s", report.FormatPct(p.cfg.Royalty.UnderpaymentThreshold)),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Impact",
		Summary: fmt.Sprintf("[dry-run] Indirect multiplier %g, home country %s", p.cfg.Royalty.IndirectMultiplier, p.cfg.Royalty.HomeCountry),
	})

	model := "[dry-run] No model configured"
	if p.predictor.Available() {
		model = fmt.Sprintf("[dry-run] Would run the %s model", p.cfg.Model.Kind)
	} else if err := p.predictor.LoadErr(); err != nil {
		model = fmt.Sprintf("[dry-run] Model unavailable: %v", err)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Predict", Summary: model})
	r.Steps = append(r.Steps, StepResult{Name: "Report", Summary: "[dry-run] Would compose the markdown report"})

	previous, _ := p.db.GetRunsForArtist(artist)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Save",
		Summary: fmt.Sprintf("[dry-run] Would save a snapshot (%d previous runs for %s)", len(previous), artist),
	})

	return r
}

func snapshot(artist, periodID string, a *Analysis, md string, c *collect.Result) *database.Run {
	run := &database.Run{
		Artist:             artist,
		PeriodID:           periodID,
		Threshold:          a.Params.Threshold,
		FXRate:             a.Params.FXRate,
		Currency:           a.Params.Currency,
		RecordCount:        len(a.Records),
		TotalStreams:       records.TotalStreams(a.Records),
		Impact:             a.Impact,
		LostRevenueNGN:     royalty.TotalLost(a.Underpayment),
		UnderpaidCountries: len(a.Underpayment),
		ReportMarkdown:     md,
		Sources:            c.Sources,
		Replaced:           c.Replaced,
	}
	if pr := a.Prediction; pr != nil {
		run.PredictedGDP = pr.PredictedGDP
		run.PredictedJobs = pr.PredictedJobs
		run.Confidence = pr.Confidence
		if pr.Err != "" {
			msg := pr.Err
			run.PredictionError = &msg
		}
	}
	return run
}
