package predict

import "github.com/TobiSchelling/tuneiq/internal/records"

// FeatureNames is the external model's input schema, in order. Changing it
// requires retraining the model, not just a code change.
var FeatureNames = [NumFeatures]string{
	"Streams Last 30 Days (Millions)",
	"Monthly Listeners (Millions)",
	"Avg Stream Duration (Min)",
	"Skip Rate (%)",
	"Release Year",
	"Playlist Adds",
	"Followers (Millions)",
	"Engagement Rate (%)",
}

// NumFeatures is the length of the feature vector.
const NumFeatures = 8

// Defaults used when a dataset has no value for a feature.
const (
	DefaultStreamsMillions   = 0.5
	DefaultListenersMillions = 2.0
	DefaultDurationMin       = 3.5
	DefaultSkipRatePct       = 5.0
	DefaultReleaseYear       = 2023
	DefaultPlaylistAdds      = 10.0
	DefaultFollowersMillions = 1.0
	DefaultEngagementRatePct = 20.0
)

// Features is a single-row input for the model, ordered as FeatureNames.
type Features [NumFeatures]float64

// DefaultFeatures returns the vector produced for a dataset with no data.
func DefaultFeatures() Features {
	return Features{
		DefaultStreamsMillions,
		DefaultListenersMillions,
		DefaultDurationMin,
		DefaultSkipRatePct,
		DefaultReleaseYear,
		DefaultPlaylistAdds,
		DefaultFollowersMillions,
		DefaultEngagementRatePct,
	}
}

// Named returns the features keyed by schema name.
func (f Features) Named() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range FeatureNames {
		m[name] = f[i]
	}
	return m
}

// FeaturesFrom maps a dataset onto the model's feature vector. Each feature
// falls back to its documented default when no record carries a value.
func FeaturesFrom(recs []records.StreamRecord) Features {
	f := DefaultFeatures()

	if len(recs) > 0 {
		f[0] = float64(records.TotalStreams(recs)) / 1_000_000
	}
	if m, ok := mean(recs, func(r records.StreamRecord) *float64 { return r.Listeners }); ok {
		f[1] = m / 1_000_000
	}
	if m, ok := mean(recs, func(r records.StreamRecord) *float64 { return r.DurationSec }); ok {
		f[2] = m / 60
	}
	if m, ok := mean(recs, func(r records.StreamRecord) *float64 { return r.SkipRate }); ok {
		f[3] = m
	}
	if m, ok := mean(recs, func(r records.StreamRecord) *float64 { return r.ReleaseYear }); ok {
		f[4] = float64(int(m))
	}
	if m, ok := mean(recs, func(r records.StreamRecord) *float64 { return r.PlaylistAdds }); ok {
		f[5] = m
	}
	if m, ok := mean(recs, func(r records.StreamRecord) *float64 { return r.Followers }); ok {
		f[6] = m
	}
	if m, ok := mean(recs, func(r records.StreamRecord) *float64 { return r.EngagementRate }); ok {
		f[7] = m
	}

	return f
}

// mean averages the non-nil values picked from recs.
func mean(recs []records.StreamRecord, pick func(records.StreamRecord) *float64) (float64, bool) {
	var sum float64
	var n int
	for _, r := range recs {
		if v := pick(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
