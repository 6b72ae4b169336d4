package records

import (
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	data := `platform,artist,track,country,month,streams,reported_revenue_usd
Spotify,Burna Boy,Last Last,Nigeria,2024-01,"1,000",3.00
youtube,Burna Boy,Last Last,Ghana,2024-01,2000,
apple_music,Burna Boy,,United Kingdom,2024-02,0,0.5
`
	recs, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	if recs[0].Streams != 1000 {
		t.Errorf("expected 1000 streams, got %d", recs[0].Streams)
	}
	if recs[0].ReportedRevenueUSD == nil || *recs[0].ReportedRevenueUSD != 3.0 {
		t.Errorf("expected reported revenue 3.0, got %v", recs[0].ReportedRevenueUSD)
	}
	if recs[1].Platform != PlatformYouTube {
		t.Errorf("expected platform %q, got %q", PlatformYouTube, recs[1].Platform)
	}
	if recs[1].ReportedRevenueUSD != nil {
		t.Error("expected missing revenue to stay nil")
	}
	if recs[1].Reported() != 0 {
		t.Errorf("expected missing revenue to read as 0, got %v", recs[1].Reported())
	}
	if recs[2].Platform != PlatformAppleMusic {
		t.Errorf("expected platform %q, got %q", PlatformAppleMusic, recs[2].Platform)
	}
	if recs[2].Track != UnknownTrack {
		t.Errorf("expected track %q, got %q", UnknownTrack, recs[2].Track)
	}
	if recs[2].Streams != 0 {
		t.Errorf("expected 0 streams, got %d", recs[2].Streams)
	}
}

func TestReadCSVAliasesAndOptionalColumns(t *testing.T) {
	data := `Service,Performer,Song,Territory,Period,Plays,Revenue,Monthly Listeners,Skip Rate,Followers,Extra
Deezer,Wizkid,Essence,Kenya,2024-03,500,$1.25,1200000,4.5%,2.5,ignored
`
	recs, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.Platform != "Deezer" || r.Artist != "Wizkid" || r.Track != "Essence" || r.Country != "Kenya" {
		t.Errorf("unexpected identity fields: %+v", r)
	}
	if r.Month != "2024-03" || r.Streams != 500 {
		t.Errorf("unexpected month/streams: %s %d", r.Month, r.Streams)
	}
	if r.Reported() != 1.25 {
		t.Errorf("expected revenue 1.25, got %v", r.Reported())
	}
	if r.Listeners == nil || *r.Listeners != 1200000 {
		t.Errorf("expected listeners 1200000, got %v", r.Listeners)
	}
	if r.SkipRate == nil || *r.SkipRate != 4.5 {
		t.Errorf("expected skip rate 4.5, got %v", r.SkipRate)
	}
	if r.Followers == nil || *r.Followers != 2.5 {
		t.Errorf("expected followers 2.5, got %v", r.Followers)
	}
	if r.DurationSec != nil || r.ReleaseYear != nil {
		t.Error("expected absent optional columns to stay nil")
	}
}

func TestReadCSVSkipsBadRows(t *testing.T) {
	data := `platform,country,streams
Spotify,Nigeria,abc
Spotify,Ghana,10
,,
`
	recs, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Country != "Ghana" {
		t.Errorf("expected Ghana, got %q", recs[0].Country)
	}
}

func TestReadCSVFirstAliasWins(t *testing.T) {
	csv := "platform,country,views,streams,revenue_usd,revenue\n" +
		"Spotify,Nigeria,100,999,1.5,9.9\n" +
		"Spotify,Ghana,,250,,2.0\n"
	for i := 0; i < 20; i++ {
		recs, err := ReadCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("expected 2 records, got %d", len(recs))
		}
		if recs[0].Streams != 100 || *recs[0].ReportedRevenueUSD != 1.5 {
			t.Fatalf("expected leftmost columns to win, got %+v", recs[0])
		}
		if recs[1].Streams != 250 || *recs[1].ReportedRevenueUSD != 2.0 {
			t.Fatalf("expected empty aliases to fall through, got %+v", recs[1])
		}
	}
}

func TestNormalizeAliasOrder(t *testing.T) {
	row := map[string]string{"views": "100", "streams": "999", "plays": "5"}
	for i := 0; i < 20; i++ {
		rec, err := Normalize(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// "plays" sorts first.
		if rec.Streams != 5 {
			t.Fatalf("expected streams from plays, got %d", rec.Streams)
		}
	}
}

func TestReadCSVNoRecognizableColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("foo,bar\n1,2\n"))
	if err == nil {
		t.Error("expected error for CSV without known columns")
	}
}

func TestReadCSVEmpty(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestNegativeStreamsPassThrough(t *testing.T) {
	rec, err := Normalize(map[string]string{"platform": "Spotify", "streams": "-5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Streams != -5 {
		t.Errorf("expected -5 to be carried through for validation downstream, got %d", rec.Streams)
	}
}

func TestCanonicalPlatform(t *testing.T) {
	cases := map[string]string{
		"spotify":     PlatformSpotify,
		" YouTube ":   PlatformYouTube,
		"Apple Music": PlatformAppleMusic,
		"applemusic":  PlatformAppleMusic,
		"Audiomack":   "Audiomack",
	}
	for in, want := range cases {
		if got := CanonicalPlatform(in); got != want {
			t.Errorf("CanonicalPlatform(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayCountry(t *testing.T) {
	if got := DisplayCountry("ng"); got != "Nigeria" {
		t.Errorf("expected Nigeria, got %q", got)
	}
	if got := DisplayCountry("XX"); got != "XX" {
		t.Errorf("expected unknown code to pass through, got %q", got)
	}
	if got := DisplayCountry("Atlantis"); got != "Atlantis" {
		t.Errorf("expected names to pass through, got %q", got)
	}
}

func TestHelpers(t *testing.T) {
	recs := []StreamRecord{
		{Platform: PlatformSpotify, Country: "Nigeria", Streams: 10},
		{Platform: PlatformYouTube, Country: "Ghana", Streams: 5},
		{Platform: PlatformSpotify, Country: "Nigeria", Streams: 1},
	}
	if TotalStreams(recs) != 16 {
		t.Errorf("expected 16 total streams, got %d", TotalStreams(recs))
	}
	countries := Countries(recs)
	if len(countries) != 2 || countries[0] != "Nigeria" || countries[1] != "Ghana" {
		t.Errorf("unexpected countries: %v", countries)
	}
	rest := WithoutPlatform(recs, PlatformSpotify)
	if len(rest) != 1 || rest[0].Platform != PlatformYouTube {
		t.Errorf("unexpected filter result: %+v", rest)
	}
}
