package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/TobiSchelling/tuneiq/internal/config"
	"github.com/TobiSchelling/tuneiq/internal/records"
)

// artistMatchThreshold is the minimum Jaro-Winkler similarity for a search
// hit to count as the requested artist.
const artistMatchThreshold = 0.85

// spotifyAPI is the subset of *spotify.Client used here.
type spotifyAPI interface {
	Search(ctx context.Context, query string, t spotify.SearchType, opts ...spotify.RequestOption) (*spotify.SearchResult, error)
	GetArtist(ctx context.Context, id spotify.ID) (*spotify.FullArtist, error)
	GetArtistsTopTracks(ctx context.Context, artistID spotify.ID, country string) ([]spotify.FullTrack, error)
}

// SpotifySource estimates per-country streams from artist popularity.
// The Web API does not expose stream counts, so popularity (0-100) scaled
// by a per-country weight stands in for them.
type SpotifySource struct {
	client          spotifyAPI
	defaultArtistID spotify.ID
	scale           float64
	reportedRate    float64
	weights         map[string]float64
	now             func() time.Time
}

// NewSpotifySource authenticates with the client credentials flow using the
// environment variables named in cfg.
func NewSpotifySource(ctx context.Context, cfg config.SpotifyConfig) (*SpotifySource, error) {
	id := os.Getenv(cfg.ClientIDEnv)
	secret := os.Getenv(cfg.ClientSecretEnv)
	if id == "" || secret == "" {
		return nil, fmt.Errorf("%s/%s not set", cfg.ClientIDEnv, cfg.ClientSecretEnv)
	}

	cc := &clientcredentials.Config{
		ClientID:     id,
		ClientSecret: secret,
		TokenURL:     spotifyauth.TokenURL,
	}
	client := spotify.New(cc.Client(ctx))
	return newSpotifySource(client, cfg), nil
}

func newSpotifySource(client spotifyAPI, cfg config.SpotifyConfig) *SpotifySource {
	return &SpotifySource{
		client:          client,
		defaultArtistID: spotify.ID(cfg.DefaultArtistID),
		scale:           cfg.ScaleFactor,
		reportedRate:    cfg.ReportedRateUSD,
		weights:         cfg.CountryWeights,
		now:             time.Now,
	}
}

func (s *SpotifySource) Name() string { return records.PlatformSpotify }

// Fetch resolves the artist and emits one record per weighted country for
// the current and previous month.
func (s *SpotifySource) Fetch(ctx context.Context, artist string) ([]records.StreamRecord, error) {
	id, err := s.resolveArtist(ctx, artist)
	if err != nil {
		return nil, err
	}

	full, err := s.client.GetArtist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get artist: %w", err)
	}

	base := records.StreamRecord{
		Platform:  records.PlatformSpotify,
		Artist:    full.Name,
		Track:     records.UnknownTrack,
		Followers: records.Float(float64(full.Followers.Count) / 1_000_000),
	}

	tracks, err := s.client.GetArtistsTopTracks(ctx, id, "NG")
	if err != nil {
		log.Printf("Spotify top tracks unavailable for %s: %v", full.Name, err)
	} else if len(tracks) > 0 {
		top := tracks[0]
		base.Track = top.Name
		base.DurationSec = records.Float(float64(top.Duration) / 1000)
		if y, ok := releaseYear(top.Album.ReleaseDate); ok {
			base.ReleaseYear = records.Float(y)
		}
	}

	countries := make([]string, 0, len(s.weights))
	for c := range s.weights {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	popularity := float64(full.Popularity)
	var out []records.StreamRecord
	for _, month := range monthLabels(s.now()) {
		for _, country := range countries {
			streams := int64(popularity * s.scale * s.weights[country])
			rec := base
			rec.Country = country
			rec.Month = month
			rec.Streams = streams
			rec.ReportedRevenueUSD = records.Float(float64(streams) * s.reportedRate)
			out = append(out, rec)
		}
	}
	return out, nil
}

// resolveArtist picks the best fuzzy match from an artist search, falling
// back to the configured default artist.
func (s *SpotifySource) resolveArtist(ctx context.Context, artist string) (spotify.ID, error) {
	if artist != "" {
		for _, q := range []string{"artist:" + artist, artist} {
			res, err := s.client.Search(ctx, q, spotify.SearchTypeArtist, spotify.Limit(5))
			if err != nil {
				return "", fmt.Errorf("search artist: %w", err)
			}
			if res.Artists == nil {
				continue
			}
			if id, ok := bestArtist(artist, res.Artists.Artists); ok {
				return id, nil
			}
		}
		log.Printf("No Spotify match for %q, using default artist", artist)
	}
	if s.defaultArtistID == "" {
		return "", errors.New("artist not found and no default artist configured")
	}
	return s.defaultArtistID, nil
}

func bestArtist(name string, cands []spotify.FullArtist) (spotify.ID, bool) {
	query := strings.ToLower(name)
	var best spotify.ID
	var highest float64
	for _, c := range cands {
		score := strutil.Similarity(query, strings.ToLower(c.Name), metrics.NewJaroWinkler())
		if score > highest && score >= artistMatchThreshold {
			highest = score
			best = c.ID
		}
	}
	return best, best != ""
}

// releaseYear reads the year from a Spotify release date
// ("2022", "2022-07" or "2022-07-08").
func releaseYear(date string) (float64, bool) {
	if len(date) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return float64(y), true
}
