package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// canonical header mapping
var headerAliases = map[string]string{
	"platform": "platform",
	"source":   "platform",
	"service":  "platform",

	"artist":      "artist",
	"artist_name": "artist",
	"performer":   "artist",

	"track":       "track",
	"track_title": "track",
	"title":       "track",
	"song":        "track",

	"country":   "country",
	"region":    "country",
	"territory": "country",

	"month":  "month",
	"period": "month",

	"streams": "streams",
	"plays":   "streams",
	"views":   "streams",

	"reported_revenue_usd": "reported_revenue_usd",
	"revenue_usd":          "reported_revenue_usd",
	"revenue":              "reported_revenue_usd",
	"payout_usd":           "reported_revenue_usd",

	"listeners":         "listeners",
	"monthly_listeners": "listeners",
	"duration":          "duration",
	"duration_sec":      "duration",
	"skip_rate":         "skip_rate",
	"release_year":      "release_year",
	"playlist_adds":     "playlist_adds",
	"followers":         "followers",
	"engagement_rate":   "engagement_rate",
}

var platformAliases = map[string]string{
	"spotify":       PlatformSpotify,
	"youtube":       PlatformYouTube,
	"yt":            PlatformYouTube,
	"youtube_music": PlatformYouTube,
	"apple music":   PlatformAppleMusic,
	"apple_music":   PlatformAppleMusic,
	"applemusic":    PlatformAppleMusic,
	"apple":         PlatformAppleMusic,
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}

// CanonicalPlatform maps known platform spellings to their canonical name.
// Unknown platforms are returned trimmed but otherwise untouched.
func CanonicalPlatform(s string) string {
	s = strings.TrimSpace(s)
	if p, ok := platformAliases[strings.ToLower(s)]; ok {
		return p
	}
	return s
}

// CanonicalField maps a column name to its canonical field, or "" when the
// column is not part of the record schema.
func CanonicalField(header string) string {
	return headerAliases[normalizeKey(header)]
}

// Normalize converts one raw row, keyed by column name, into a StreamRecord.
// Unknown columns are ignored. Missing optional values stay nil; a missing
// streams value is 0 and a missing track is UnknownTrack. Columns are read in
// name order, so when two aliases of one field are set the first name wins.
func Normalize(row map[string]string) (StreamRecord, error) {
	keys := slices.Sorted(maps.Keys(row))
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = row[k]
	}
	return normalizeColumns(keys, values)
}

// normalizeColumns is Normalize over parallel header and value slices. The
// first non-empty column for each field wins; later aliases are ignored.
func normalizeColumns(headers, values []string) (StreamRecord, error) {
	rec := StreamRecord{Track: UnknownTrack}
	seen := make(map[string]bool)

	for i, key := range headers {
		if i >= len(values) {
			break
		}
		field := CanonicalField(key)
		val := strings.TrimSpace(values[i])
		if field == "" || val == "" || seen[field] {
			continue
		}
		seen[field] = true

		switch field {
		case "platform":
			rec.Platform = CanonicalPlatform(val)
		case "artist":
			rec.Artist = val
		case "track":
			rec.Track = val
		case "country":
			rec.Country = val
		case "month":
			rec.Month = val
		case "streams":
			n, err := parseCount(val)
			if err != nil {
				return StreamRecord{}, fmt.Errorf("column %q: %w", key, err)
			}
			rec.Streams = n
		default:
			f, err := parseFloat(val)
			if err != nil {
				return StreamRecord{}, fmt.Errorf("column %q: %w", key, err)
			}
			setOptional(&rec, field, f)
		}
	}

	return rec, nil
}

func setOptional(rec *StreamRecord, field string, f float64) {
	v := Float(f)
	switch field {
	case "reported_revenue_usd":
		rec.ReportedRevenueUSD = v
	case "listeners":
		rec.Listeners = v
	case "duration":
		rec.DurationSec = v
	case "skip_rate":
		rec.SkipRate = v
	case "release_year":
		rec.ReleaseYear = v
	case "playlist_adds":
		rec.PlaylistAdds = v
	case "followers":
		rec.Followers = v
	case "engagement_rate":
		rec.EngagementRate = v
	}
}

func parseCount(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// Some exports write counts as floats ("1200.0").
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return int64(f), nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(s, ",", ""), "$")
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

// ReadCSV parses a CSV stream whose header row names record columns.
// Rows that cannot be parsed are skipped and logged; a stream without any
// recognizable column is an error.
func ReadCSV(r io.Reader) ([]StreamRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	known := 0
	for _, h := range headers {
		if CanonicalField(h) != "" {
			known++
		}
	}
	if known == 0 {
		return nil, errors.New("CSV has no recognizable columns")
	}

	var out []StreamRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return out, fmt.Errorf("reading line %d: %w", line, err)
		}

		rec, err := normalizeColumns(headers, row)
		if err != nil {
			log.Printf("Skipping CSV line %d: %v", line, err)
			continue
		}
		// Skip totally empty rows
		if rec.Platform == "" && rec.Artist == "" && rec.Country == "" {
			continue
		}
		out = append(out, rec)
	}

	return out, nil
}
