package collect

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/tuneiq/internal/config"
	"github.com/TobiSchelling/tuneiq/internal/records"
)

const maxPerFeed = 20

var countPattern = regexp.MustCompile(`(?i)([\d][\d,]*)\s+(streams|plays|views)`)

// ChartEntry is a feed item that mentions the artist.
type ChartEntry struct {
	URL           string
	Title         string
	Track         string
	Rank          int
	PublishedDate string // YYYY-MM-DD or empty
	Content       string
	Source        string
}

// ChartSource turns chart and music-news feeds into records. Stream counts
// are read from the linked page when it states one, otherwise estimated from
// the entry's position in the feed. The rows carry no revenue, so they are
// prediction signals and stay out of the royalty dataset.
type ChartSource struct {
	feeds   []config.Feed
	unit    int64
	scrape  bool
	limiter *rate.Limiter
	client  *http.Client
	now     func() time.Time
}

// NewChartSource creates a chart source for the configured feeds.
func NewChartSource(cfg config.ChartsConfig) *ChartSource {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	unit := cfg.RankStreamUnit
	if unit <= 0 {
		unit = 10000
	}
	return &ChartSource{
		feeds:   cfg.Feeds,
		unit:    unit,
		scrape:  cfg.ScrapePages,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		now: time.Now,
	}
}

func (s *ChartSource) Name() string { return "Charts" }

// Fetch reads every feed and returns one record per entry that mentions the
// artist. Feeds that fail to parse are logged and skipped.
func (s *ChartSource) Fetch(ctx context.Context, artist string) ([]records.StreamRecord, error) {
	if artist == "" {
		return nil, nil
	}

	parser := gofeed.NewParser()
	parser.Client = s.client

	var out []records.StreamRecord
	for _, fc := range s.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return out, err
		}

		entries, err := parseFeed(ctx, parser, fc.URL, name, artist)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		log.Printf("Found %d entries for %s in %s", len(entries), artist, name)

		for _, e := range entries {
			streams := s.rankStreams(e.Rank)
			if s.scrape {
				if n, ok := s.pageStreams(ctx, e.URL); ok {
					streams = n
				} else if n, ok := streamCount(e.Content); ok {
					streams = n
				}
			}
			out = append(out, s.record(fc, name, artist, e, streams))
		}
	}
	return out, nil
}

func (s *ChartSource) record(fc config.Feed, name, artist string, e ChartEntry, streams int64) records.StreamRecord {
	platform := fc.Platform
	if platform == "" {
		platform = name
	}
	month := s.now().Format("2006-01")
	if len(e.PublishedDate) >= 7 {
		month = e.PublishedDate[:7]
	}
	return records.StreamRecord{
		Platform: records.CanonicalPlatform(platform),
		Artist:   artist,
		Track:    e.Track,
		Country:  fc.Country,
		Month:    month,
		Streams:  streams,
	}
}

// SignalOnly marks chart rows as prediction input only.
func (s *ChartSource) SignalOnly() bool { return true }

// rankStreams estimates streams from a 1-based feed position.
func (s *ChartSource) rankStreams(rank int) int64 {
	if rank < 1 || rank > maxPerFeed {
		return 0
	}
	return s.unit * int64(maxPerFeed+1-rank)
}

func parseFeed(ctx context.Context, parser *gofeed.Parser, feedURL, sourceName, artist string) ([]ChartEntry, error) {
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []ChartEntry
	for i, item := range feed.Items {
		if i >= maxPerFeed {
			break
		}
		entry := parseItem(item, sourceName)
		if entry == nil {
			continue
		}
		track, ok := matchArtist(entry.Title, artist)
		if !ok {
			continue
		}
		entry.Track = track
		entry.Rank = i + 1
		entries = append(entries, *entry)
	}

	return entries, nil
}

func parseItem(item *gofeed.Item, source string) *ChartEntry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var publishedDate string
	if item.PublishedParsed != nil {
		publishedDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		publishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	var content string
	if item.Content != "" {
		content = stripHTML(item.Content)
	} else if item.Description != "" {
		content = stripHTML(item.Description)
	}

	return &ChartEntry{
		URL:           itemURL,
		Title:         title,
		PublishedDate: publishedDate,
		Content:       content,
		Source:        source,
	}
}

// matchArtist reports whether a chart title credits artist and returns the
// track part. Titles look like "Artist - Track", "Track by Artist" or free
// text mentioning the artist.
func matchArtist(title, artist string) (string, bool) {
	lowerArtist := strings.ToLower(artist)

	if a, t, ok := strings.Cut(title, " - "); ok && similar(a, lowerArtist) {
		return strings.TrimSpace(t), true
	}
	if i := strings.LastIndex(strings.ToLower(title), " by "); i > 0 && similar(title[i+4:], lowerArtist) {
		return strings.TrimSpace(title[:i]), true
	}
	if strings.Contains(strings.ToLower(title), lowerArtist) {
		return records.UnknownTrack, true
	}
	return "", false
}

func similar(a, lowerB string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	return strutil.Similarity(a, lowerB, metrics.NewJaroWinkler()) >= artistMatchThreshold
}

// pageStreams fetches the linked page and reads a stream count from its main
// text.
func (s *ChartSource) pageStreams(ctx context.Context, pageURL string) (int64, bool) {
	if pageURL == "" {
		return 0, false
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, false
	}

	text, err := s.fetchPageText(ctx, pageURL)
	if err != nil {
		log.Printf("Failed to fetch %s: %v", pageURL, err)
		return 0, false
	}
	return streamCount(text)
}

func (s *ChartSource) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "TuneIQ/1.0 (royalty research)")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}

// streamCount returns the largest "N streams/plays/views" figure in text.
func streamCount(text string) (int64, bool) {
	var best int64
	for _, m := range countPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err == nil && n > best {
			best = n
		}
	}
	return best, best > 0
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			result.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	s := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(result.String())

	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
