package royalty

import (
	"errors"
	"fmt"
	"sort"

	"github.com/TobiSchelling/tuneiq/internal/records"
)

var (
	// ErrInvalidThreshold is returned when the threshold is outside [0, 1).
	ErrInvalidThreshold = errors.New("underpayment threshold must be in [0, 1)")
	// ErrNegativeStreams is returned when a record reports negative streams.
	ErrNegativeStreams = errors.New("stream count must not be negative")
)

// UnderpaymentSummary aggregates the flagged records of one country.
type UnderpaymentSummary struct {
	Country            string  `json:"country"`
	UnderpaymentPct    float64 `json:"underpayment_pct"`
	ExpectedRevenueNGN float64 `json:"expected_revenue_ngn"`
	ActualRevenueNGN   float64 `json:"actual_revenue_ngn"`
	Streams            int64   `json:"streams"`
	LostRevenueNGN     float64 `json:"lost_revenue_ngn"`
}

// UnderpaymentPct returns the shortfall of actual below expected revenue as a
// fraction of expected. A record with zero expected revenue has a ratio of 0,
// so it can never exceed a valid threshold.
func UnderpaymentPct(r records.StreamRecord) float64 {
	if r.ExpectedRevenueNGN == 0 {
		return 0
	}
	return (r.ExpectedRevenueNGN - r.ActualRevenueNGN) / r.ExpectedRevenueNGN
}

// Validate checks the detector inputs.
func Validate(recs []records.StreamRecord, threshold float64) error {
	if !(threshold >= 0 && threshold < 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	for i, r := range recs {
		if r.Streams < 0 {
			return fmt.Errorf("%w: record %d (%s/%s) has %d", ErrNegativeStreams, i, r.Platform, r.Country, r.Streams)
		}
	}
	return nil
}

// DetectUnderpayment flags records whose underpayment exceeds threshold and
// aggregates them per country, most lost revenue first. Countries without a
// flagged record are absent. Empty input yields an empty slice.
func DetectUnderpayment(p Params, recs []records.StreamRecord, threshold float64) ([]UnderpaymentSummary, error) {
	if err := Validate(recs, threshold); err != nil {
		return nil, err
	}

	type group struct {
		summary UnderpaymentSummary
		pctSum  float64
		count   int
	}
	groups := make(map[string]*group)

	for _, r := range Estimate(p, recs) {
		pct := UnderpaymentPct(r)
		if !(pct > threshold) {
			continue
		}
		g, ok := groups[r.Country]
		if !ok {
			g = &group{summary: UnderpaymentSummary{Country: r.Country}}
			groups[r.Country] = g
		}
		g.pctSum += pct
		g.count++
		g.summary.ExpectedRevenueNGN += r.ExpectedRevenueNGN
		g.summary.ActualRevenueNGN += r.ActualRevenueNGN
		g.summary.Streams += r.Streams
	}

	out := make([]UnderpaymentSummary, 0, len(groups))
	for _, g := range groups {
		s := g.summary
		s.UnderpaymentPct = g.pctSum / float64(g.count)
		s.LostRevenueNGN = s.ExpectedRevenueNGN - s.ActualRevenueNGN
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LostRevenueNGN != out[j].LostRevenueNGN {
			return out[i].LostRevenueNGN > out[j].LostRevenueNGN
		}
		return out[i].Country < out[j].Country
	})

	return out, nil
}

// TotalLost sums lost revenue over summaries.
func TotalLost(summaries []UnderpaymentSummary) float64 {
	var total float64
	for _, s := range summaries {
		total += s.LostRevenueNGN
	}
	return total
}
