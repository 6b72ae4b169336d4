// Package royalty computes expected vs. actual streaming revenue, flags
// underpaid territories and aggregates an economic-impact proxy.
//
// Everything here is a pure function of its inputs; Params is treated as
// immutable configuration.
package royalty

import "github.com/TobiSchelling/tuneiq/internal/records"

// Documented defaults. All of them can be overridden through Params.
const (
	// DefaultRate is the USD per-stream rate for platforms missing from the rate table.
	DefaultRate = 0.003
	// DefaultFXRate converts USD to NGN.
	DefaultFXRate = 850.0
	// DefaultIndirectMultiplier scales direct revenue into indirect impact
	// (merchandise, shows). Streaming typically drives 2-3x its own revenue.
	DefaultIndirectMultiplier = 2.5
	// DefaultExportRateUSD is the proxy value in USD of one foreign stream.
	DefaultExportRateUSD = 0.01
	// DefaultHomeCountry is the country whose streams do not count as exports.
	DefaultHomeCountry = "Nigeria"
	// DefaultThreshold is the underpayment fraction above which a record is flagged.
	DefaultThreshold = 0.15
	// DefaultCurrency labels the target currency.
	DefaultCurrency = "NGN"
)

// DefaultRates returns the per-platform USD-per-stream table.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		records.PlatformSpotify:    0.004,
		records.PlatformYouTube:    0.00069,
		records.PlatformAppleMusic: 0.01,
	}
}

// Params holds the policy constants used by the estimator, the detector and
// the impact aggregator.
type Params struct {
	Rates              map[string]float64
	DefaultRate        float64
	FXRate             float64
	Currency           string
	IndirectMultiplier float64
	ExportRateUSD      float64
	HomeCountry        string
	Threshold          float64
}

// DefaultParams returns Params populated with the documented defaults.
func DefaultParams() Params {
	return Params{
		Rates:              DefaultRates(),
		DefaultRate:        DefaultRate,
		FXRate:             DefaultFXRate,
		Currency:           DefaultCurrency,
		IndirectMultiplier: DefaultIndirectMultiplier,
		ExportRateUSD:      DefaultExportRateUSD,
		HomeCountry:        DefaultHomeCountry,
		Threshold:          DefaultThreshold,
	}
}

// Rate returns the USD-per-stream rate for platform, or DefaultRate when the
// platform is not in the table.
func (p Params) Rate(platform string) float64 {
	if r, ok := p.Rates[platform]; ok {
		return r
	}
	return p.DefaultRate
}
