package collect

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/tuneiq/internal/config"
	"github.com/TobiSchelling/tuneiq/internal/records"
)

// Source fetches stream records for an artist from one platform.
// An empty result with a nil error means the source had nothing to add.
type Source interface {
	Name() string
	Fetch(ctx context.Context, artist string) ([]records.StreamRecord, error)
}

// signalSource is implemented by sources whose rows are popularity signals
// rather than royalty statements. Their rows feed the prediction model only;
// they never replace sample rows or enter the revenue analysis.
type signalSource interface {
	SignalOnly() bool
}

// Result holds the results of a collection run. Records is the royalty
// dataset; Signals holds rows that only inform the prediction.
type Result struct {
	Records  []records.StreamRecord
	Signals  []records.StreamRecord
	Sources  map[string]int
	Replaced []string
}

// FeatureRecords returns recs, usually the estimated royalty rows, followed
// by the signal rows.
func (r *Result) FeatureRecords(recs []records.StreamRecord) []records.StreamRecord {
	out := make([]records.StreamRecord, 0, len(recs)+len(r.Signals))
	out = append(out, recs...)
	return append(out, r.Signals...)
}

// Collector merges live platform data over the sample dataset.
type Collector struct {
	sample  *SampleSource
	sources []Source
}

// NewCollector creates a collector with every live source enabled in cfg.
// Sources whose credentials are missing are skipped with a log line.
func NewCollector(cfg *config.Config) *Collector {
	c := &Collector{sample: NewSampleSource(cfg.Sources.Sample.Path)}

	src := cfg.Sources
	if src.Spotify.Enabled {
		if s, err := NewSpotifySource(context.Background(), src.Spotify); err != nil {
			log.Printf("Spotify source disabled: %v", err)
		} else {
			c.sources = append(c.sources, s)
		}
	}
	if src.YouTube.Enabled {
		c.sources = append(c.sources, NewYouTubeSource(src.YouTube))
	}
	if src.AppleMusic.Enabled {
		if s, err := NewAppleMusicSource(src.AppleMusic); err != nil {
			log.Printf("Apple Music source disabled: %v", err)
		} else {
			c.sources = append(c.sources, s)
		}
	}
	if src.Charts.Enabled && len(src.Charts.Feeds) > 0 {
		c.sources = append(c.sources, NewChartSource(src.Charts))
	}

	return c
}

// NewCollectorWith builds a collector from explicit sources.
func NewCollectorWith(sample *SampleSource, sources ...Source) *Collector {
	return &Collector{sample: sample, sources: sources}
}

// Collect loads the sample dataset, fetches every live source concurrently
// and replaces each platform's sample rows with the live rows for that
// platform. A failing source is logged and leaves the sample rows in place.
func (c *Collector) Collect(ctx context.Context, artist string) (*Result, error) {
	r := &Result{Sources: make(map[string]int)}

	base, err := c.sample.Fetch(ctx, artist)
	if err != nil {
		log.Printf("Sample data unavailable: %v", err)
	}
	r.Sources[c.sample.Name()] = len(base)

	live := make([][]records.StreamRecord, len(c.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range c.sources {
		g.Go(func() error {
			start := time.Now()
			recs, err := s.Fetch(gctx, artist)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("%s fetch failed: %v", s.Name(), err)
				return nil
			}
			log.Printf("Fetched %d records from %s in %s", len(recs), s.Name(), time.Since(start).Round(time.Millisecond))
			live[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := base
	for i, s := range c.sources {
		recs := live[i]
		r.Sources[s.Name()] = len(recs)
		if len(recs) == 0 {
			continue
		}
		if ss, ok := s.(signalSource); ok && ss.SignalOnly() {
			r.Signals = append(r.Signals, recs...)
			continue
		}
		for _, p := range platforms(recs) {
			out = records.WithoutPlatform(out, p)
			r.Replaced = append(r.Replaced, p)
		}
		out = append(out, recs...)
	}
	r.Records = out

	log.Printf("Collection complete: %d records and %d prediction signals from %d sources",
		len(out), len(r.Signals), len(c.sources)+1)
	return r, nil
}

// platforms lists the distinct platforms in recs, in first-seen order.
func platforms(recs []records.StreamRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range recs {
		if _, ok := seen[r.Platform]; ok {
			continue
		}
		seen[r.Platform] = struct{}{}
		out = append(out, r.Platform)
	}
	return out
}

// monthLabels returns the YYYY-MM labels for the current and previous month.
func monthLabels(now time.Time) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return []string{
		first.Format("2006-01"),
		first.AddDate(0, -1, 0).Format("2006-01"),
	}
}
