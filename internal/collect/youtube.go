package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/kkdai/youtube/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtubeanalytics/v2"

	"github.com/TobiSchelling/tuneiq/internal/config"
	"github.com/TobiSchelling/tuneiq/internal/records"
)

const analyticsScope = "https://www.googleapis.com/auth/yt-analytics.readonly"

// geoRow is one country line of the analytics report.
type geoRow struct {
	Country     string
	Views       int64
	AvgDuration float64
}

// geoReporter runs the views-by-country report for the authorized channel.
type geoReporter interface {
	GeoReport(ctx context.Context, start, end time.Time) ([]geoRow, error)
}

// videoLookup is the subset of *youtube.Client used for public view counts.
type videoLookup interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
}

// YouTubeSource reads channel-owner analytics by country. When the analytics
// report cannot be used, public view counts of configured videos are
// attributed to a single country.
type YouTubeSource struct {
	cfg    config.YouTubeConfig
	videos videoLookup
	now    func() time.Time

	// reporter is built on first use; runs triggered from the dashboard
	// share one source.
	mu       sync.Mutex
	reporter geoReporter
}

// NewYouTubeSource creates a YouTube source. The OAuth token must already
// exist in cfg.TokenFile; running the consent flow is out of scope here.
func NewYouTubeSource(cfg config.YouTubeConfig) *YouTubeSource {
	s := &YouTubeSource{cfg: cfg, now: time.Now}
	if len(cfg.VideoIDs) > 0 {
		s.videos = &youtube.Client{}
	}
	return s
}

func (s *YouTubeSource) Name() string { return records.PlatformYouTube }

// Fetch splits the last N days of views evenly over two months, with
// revenue estimated at a flat per-view rate.
func (s *YouTubeSource) Fetch(ctx context.Context, artist string) ([]records.StreamRecord, error) {
	recs, err := s.fetchAnalytics(ctx, artist)
	if err == nil && len(recs) > 0 {
		return recs, nil
	}
	if err != nil {
		log.Printf("YouTube analytics unavailable: %v", err)
	}
	if s.videos == nil {
		return nil, err
	}
	return s.fetchVideos(ctx, artist)
}

func (s *YouTubeSource) fetchAnalytics(ctx context.Context, artist string) ([]records.StreamRecord, error) {
	reporter, err := s.analytics(ctx)
	if err != nil {
		return nil, err
	}

	end := s.now()
	start := end.AddDate(0, 0, -s.days())
	rows, err := reporter.GeoReport(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var out []records.StreamRecord
	for _, month := range monthLabels(end) {
		for _, row := range rows {
			views := row.Views / 2
			rec := s.record(artist, records.UnknownTrack, records.DisplayCountry(row.Country), month, views)
			if row.AvgDuration > 0 {
				rec.DurationSec = records.Float(row.AvgDuration)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// analytics returns the shared reporter, building it on first use. A failed
// build is retried on the next fetch so a token written later is picked up.
// The reporter's OAuth client outlives the request that built it, so it
// must not inherit that request's cancellation.
func (s *YouTubeSource) analytics(ctx context.Context) (geoReporter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reporter == nil {
		r, err := newAnalyticsReporter(context.WithoutCancel(ctx), s.cfg.ClientSecretFile, s.cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		s.reporter = r
	}
	return s.reporter, nil
}

func (s *YouTubeSource) fetchVideos(ctx context.Context, artist string) ([]records.StreamRecord, error) {
	months := monthLabels(s.now())
	var out []records.StreamRecord
	for _, id := range s.cfg.VideoIDs {
		v, err := s.videos.GetVideoContext(ctx, id)
		if err != nil {
			log.Printf("YouTube video %s unavailable: %v", id, err)
			continue
		}
		name := artist
		if name == "" {
			name = v.Author
		}
		title := v.Title
		if title == "" {
			title = records.UnknownTrack
		}
		for _, month := range months {
			rec := s.record(name, title, s.cfg.Country, month, int64(v.Views)/2)
			if v.Duration > 0 {
				rec.DurationSec = records.Float(v.Duration.Seconds())
			}
			if !v.PublishDate.IsZero() {
				rec.ReleaseYear = records.Float(float64(v.PublishDate.Year()))
			}
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no configured video could be read")
	}
	return out, nil
}

func (s *YouTubeSource) record(artist, track, country, month string, views int64) records.StreamRecord {
	return records.StreamRecord{
		Platform:           records.PlatformYouTube,
		Artist:             artist,
		Track:              track,
		Country:            country,
		Month:              month,
		Streams:            views,
		ReportedRevenueUSD: records.Float(float64(views) * s.cfg.RevenuePerView),
	}
}

func (s *YouTubeSource) days() int {
	if s.cfg.Days <= 0 {
		return 60
	}
	return s.cfg.Days
}

// analyticsReporter queries the YouTube Analytics API for channel==MINE.
type analyticsReporter struct {
	svc *youtubeanalytics.Service
}

func newAnalyticsReporter(ctx context.Context, secretFile, tokenFile string) (*analyticsReporter, error) {
	secret, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}
	conf, err := google.ConfigFromJSON(secret, analyticsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	svc, err := youtubeanalytics.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("creating analytics service: %w", err)
	}
	return &analyticsReporter{svc: svc}, nil
}

func (a *analyticsReporter) GeoReport(ctx context.Context, start, end time.Time) ([]geoRow, error) {
	resp, err := a.svc.Reports.Query().
		Ids("channel==MINE").
		Metrics("views,averageViewDuration").
		Dimensions("country").
		StartDate(start.Format("2006-01-02")).
		EndDate(end.Format("2006-01-02")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("analytics query: %w", err)
	}

	var rows []geoRow
	for _, r := range resp.Rows {
		if len(r) < 3 {
			continue
		}
		country, _ := r[0].(string)
		views, _ := r[1].(float64)
		dur, _ := r[2].(float64)
		rows = append(rows, geoRow{Country: country, Views: int64(views), AvgDuration: dur})
	}
	return rows, nil
}
