package records

// Canonical platform names.
const (
	PlatformSpotify    = "Spotify"
	PlatformYouTube    = "YouTube"
	PlatformAppleMusic = "Apple Music"
)

// UnknownTrack is used when a source cannot resolve a track title.
const UnknownTrack = "Unknown"

// StreamRecord is one observation of one track, on one platform, in one
// country, for one month.
type StreamRecord struct {
	Platform           string
	Artist             string
	Track              string
	Country            string
	Month              string // YYYY-MM
	Streams            int64
	ReportedRevenueUSD *float64

	// Optional engagement fields. Nil when the source does not provide them.
	Listeners      *float64
	DurationSec    *float64
	SkipRate       *float64
	ReleaseYear    *float64
	PlaylistAdds   *float64
	Followers      *float64 // millions
	EngagementRate *float64

	// Derived by the royalty estimator.
	ExpectedRevenueUSD float64
	ExpectedRevenueNGN float64
	ActualRevenueNGN   float64
}

// Reported returns the reported revenue in USD, treating an absent value as 0.
func (r StreamRecord) Reported() float64 {
	if r.ReportedRevenueUSD == nil {
		return 0
	}
	return *r.ReportedRevenueUSD
}

// Float returns a pointer to v. Handy for the optional fields.
func Float(v float64) *float64 { return &v }

// TotalStreams sums streams over recs.
func TotalStreams(recs []StreamRecord) int64 {
	var total int64
	for _, r := range recs {
		total += r.Streams
	}
	return total
}

// Countries returns the distinct countries in recs in first-seen order.
func Countries(recs []StreamRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range recs {
		if _, ok := seen[r.Country]; ok {
			continue
		}
		seen[r.Country] = struct{}{}
		out = append(out, r.Country)
	}
	return out
}

// WithoutPlatform returns the records whose platform differs from platform.
func WithoutPlatform(recs []StreamRecord, platform string) []StreamRecord {
	out := make([]StreamRecord, 0, len(recs))
	for _, r := range recs {
		if r.Platform != platform {
			out = append(out, r)
		}
	}
	return out
}
