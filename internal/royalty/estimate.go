package royalty

import "github.com/TobiSchelling/tuneiq/internal/records"

// Estimate returns a copy of recs with the derived revenue fields attached.
// No rows are dropped and order is preserved. Derived fields are always
// recomputed from streams, the rate table and the FX rate, so running it on
// already-estimated data gives the same result.
func Estimate(p Params, recs []records.StreamRecord) []records.StreamRecord {
	out := make([]records.StreamRecord, len(recs))
	for i, r := range recs {
		out[i] = estimateOne(p, r)
	}
	return out
}

func estimateOne(p Params, r records.StreamRecord) records.StreamRecord {
	r.ExpectedRevenueUSD = float64(r.Streams) * p.Rate(r.Platform)
	r.ExpectedRevenueNGN = r.ExpectedRevenueUSD * p.FXRate
	r.ActualRevenueNGN = r.Reported() * p.FXRate
	return r
}
