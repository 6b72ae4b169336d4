// Package report renders the markdown analysis for a run: a TL;DR, the
// underpaid territories, the economic impact and the model prediction.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/tuneiq/internal/predict"
	"github.com/TobiSchelling/tuneiq/internal/records"
	"github.com/TobiSchelling/tuneiq/internal/royalty"
)

// Input is everything a report is composed from. Records must already carry
// the estimator's derived fields.
type Input struct {
	Artist       string
	Period       string
	Params       royalty.Params
	Records      []records.StreamRecord
	Underpayment []royalty.UnderpaymentSummary
	Impact       royalty.ImpactEstimate
	Prediction   *predict.Result
	Sources      map[string]int
	Replaced     []string
	// Signals counts rows that fed the prediction but not the revenue figures.
	Signals      int
}

// Report is a composed analysis.
type Report struct {
	TLDR string
	Body string
}

// Markdown returns the full document.
func (r Report) Markdown() string {
	return "## TL;DR\n\n" + r.TLDR + "\n\n---\n\n" + r.Body
}

// Compose builds the report for in.
func Compose(in Input) Report {
	if len(in.Records) == 0 {
		return Report{
			TLDR: "- No streaming data collected.",
			Body: "No analysis available for this run.",
		}
	}
	return Report{TLDR: tldr(in), Body: body(in)}
}

func tldr(in Input) string {
	cur := in.Params.Currency
	total := records.TotalStreams(in.Records)

	bullets := []string{
		fmt.Sprintf("%s streams across %d countries and %d platforms.",
			FormatNumber(total), len(records.Countries(in.Records)), len(platformTotals(in.Records))),
	}

	if len(in.Underpayment) == 0 {
		bullets = append(bullets, fmt.Sprintf("No territory is underpaid by more than %s.", FormatPct(in.Params.Threshold)))
	} else {
		top := in.Underpayment[0]
		bullets = append(bullets, fmt.Sprintf("%d underpaid territories; %s lost in total, led by %s (%s, %s below expected).",
			len(in.Underpayment), FormatAmount(cur, royalty.TotalLost(in.Underpayment)),
			records.DisplayCountry(top.Country), FormatAmount(cur, top.LostRevenueNGN), FormatPct(top.UnderpaymentPct)))
	}

	bullets = append(bullets, fmt.Sprintf("Estimated total economic impact: %s.",
		FormatAmount(cur, in.Impact.TotalEconomicImpactNGN)))

	if p := in.Prediction; p != nil {
		if p.Degraded() {
			bullets = append(bullets, "Model prediction unavailable.")
		} else {
			bullets = append(bullets, fmt.Sprintf("Model predicts %s GDP contribution and %s jobs.",
				FormatCurrencyPtr(p.PredictedGDP), FormatNumberPtr(p.PredictedJobs)))
		}
	}

	lines := make([]string, len(bullets))
	for i, b := range bullets {
		lines[i] = "- " + b
	}
	return strings.Join(lines, "\n")
}

func body(in Input) string {
	cur := in.Params.Currency
	var sections []string

	var b strings.Builder
	b.WriteString("## Underpaid territories\n\n")
	if len(in.Underpayment) == 0 {
		fmt.Fprintf(&b, "No country exceeds the %s underpayment threshold.", FormatPct(in.Params.Threshold))
	} else {
		b.WriteString("| Country | Underpayment | Expected | Actual | Lost | Streams |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|\n")
		for _, u := range in.Underpayment {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				records.DisplayCountry(u.Country), FormatPct(u.UnderpaymentPct),
				FormatAmount(cur, u.ExpectedRevenueNGN), FormatAmount(cur, u.ActualRevenueNGN),
				FormatAmount(cur, u.LostRevenueNGN), FormatNumber(u.Streams))
		}
	}
	sections = append(sections, strings.TrimRight(b.String(), "\n"))

	b.Reset()
	b.WriteString("## Economic impact\n\n")
	fmt.Fprintf(&b, "- **Direct revenue:** %s\n", FormatAmount(cur, in.Impact.DirectRevenueNGN))
	fmt.Fprintf(&b, "- **Indirect revenue** (x%g): %s\n", in.Params.IndirectMultiplier, FormatAmount(cur, in.Impact.IndirectRevenueNGN))
	fmt.Fprintf(&b, "- **Cultural export value** (streams outside %s): %s\n", in.Params.HomeCountry, FormatAmount(cur, in.Impact.CulturalExportValueNGN))
	fmt.Fprintf(&b, "- **Total:** %s", FormatAmount(cur, in.Impact.TotalEconomicImpactNGN))
	sections = append(sections, b.String())

	if p := in.Prediction; p != nil {
		b.Reset()
		b.WriteString("## Predicted impact\n\n")
		if p.Degraded() {
			reason := p.Err
			if reason == "" {
				reason = "no model configured"
			}
			fmt.Fprintf(&b, "Prediction unavailable: %s.", reason)
		} else {
			fmt.Fprintf(&b, "- **GDP contribution:** %s\n", FormatCurrencyPtr(p.PredictedGDP))
			fmt.Fprintf(&b, "- **Jobs created:** %s", FormatNumberPtr(p.PredictedJobs))
			if p.Confidence != nil {
				fmt.Fprintf(&b, "\n- **Confidence:** %s", FormatPct(*p.Confidence))
			}
		}
		sections = append(sections, b.String())
	}

	b.Reset()
	b.WriteString("## Platforms\n\n")
	b.WriteString("| Platform | Streams | Expected | Reported |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, pt := range platformTotals(in.Records) {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", pt.name, FormatNumber(pt.streams),
			FormatAmount(cur, pt.expected), FormatAmount(cur, pt.actual))
	}
	sections = append(sections, strings.TrimRight(b.String(), "\n"))

	if len(in.Sources) > 0 {
		b.Reset()
		b.WriteString("## Data sources\n\n")
		names := make([]string, 0, len(in.Sources))
		for n := range in.Sources {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(&b, "- %s: %d records\n", n, in.Sources[n])
		}
		if len(in.Replaced) > 0 {
			fmt.Fprintf(&b, "\nLive data replaced the sample rows for: %s.", strings.Join(in.Replaced, ", "))
		} else {
			b.WriteString("\nAll figures come from the sample dataset.")
		}
		if in.Signals > 0 {
			fmt.Fprintf(&b, "\n\n%d chart rows informed the prediction only; they carry no revenue and are left out of the royalty figures.", in.Signals)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(sections, "\n\n---\n\n")
}

type platformTotal struct {
	name     string
	streams  int64
	expected float64
	actual   float64
}

// platformTotals sums streams and revenue per platform, largest first.
func platformTotals(recs []records.StreamRecord) []platformTotal {
	idx := make(map[string]int)
	var out []platformTotal
	for _, r := range recs {
		i, ok := idx[r.Platform]
		if !ok {
			i = len(out)
			idx[r.Platform] = i
			out = append(out, platformTotal{name: r.Platform})
		}
		out[i].streams += r.Streams
		out[i].expected += r.ExpectedRevenueNGN
		out[i].actual += r.ActualRevenueNGN
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].streams > out[b].streams })
	return out
}
