package royalty

import "github.com/TobiSchelling/tuneiq/internal/records"

// ImpactEstimate is an approximation of an artist's contribution to the
// national creative economy, in the target currency.
type ImpactEstimate struct {
	DirectRevenueNGN       float64 `json:"direct_revenue_ngn"`
	IndirectRevenueNGN     float64 `json:"indirect_revenue_ngn"`
	CulturalExportValueNGN float64 `json:"cultural_export_value_ngn"`
	TotalEconomicImpactNGN float64 `json:"total_economic_impact_ngn"`
}

// EconomicImpact derives direct, indirect and cultural-export value from recs.
// Direct revenue is the actual (reported) revenue; indirect is a fixed
// multiple of it; streams outside the home country count as exports.
func EconomicImpact(p Params, recs []records.StreamRecord) ImpactEstimate {
	var direct float64
	var foreignStreams int64
	for _, r := range Estimate(p, recs) {
		direct += r.ActualRevenueNGN
		if r.Country != p.HomeCountry {
			foreignStreams += r.Streams
		}
	}

	indirect := direct * p.IndirectMultiplier
	export := float64(foreignStreams) * p.ExportRateUSD * p.FXRate

	return ImpactEstimate{
		DirectRevenueNGN:       direct,
		IndirectRevenueNGN:     indirect,
		CulturalExportValueNGN: export,
		TotalEconomicImpactNGN: direct + indirect + export,
	}
}
