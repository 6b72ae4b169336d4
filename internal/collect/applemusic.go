package collect

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TobiSchelling/tuneiq/internal/config"
	"github.com/TobiSchelling/tuneiq/internal/records"
)

const (
	appleTokenTTL     = time.Hour
	// A signed token is replaced once it is this close to expiry.
	appleTokenRefresh = 5 * time.Minute
)

// AppleMusicSource searches the Apple Music catalog. The catalog has no
// stream counts, so songs become zero-stream records that still show up in
// the catalog view and the feature vector.
type AppleMusicSource struct {
	storefront string
	baseURL    string
	limit      int
	client     *http.Client
	now        func() time.Time

	// Key material; nil key means token is a static developer token.
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAppleMusicSource uses a ready developer token from the environment, or
// keeps the team ID, key ID and private key so tokens can be signed as
// they are needed.
func NewAppleMusicSource(cfg config.AppleMusicConfig) (*AppleMusicSource, error) {
	s := &AppleMusicSource{
		storefront: strings.ToLower(cfg.Storefront),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		limit:      cfg.Limit,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		token:      os.Getenv(cfg.DeveloperTokenEnv),
	}
	if s.token != "" {
		return s, nil
	}

	s.teamID = os.Getenv(cfg.TeamIDEnv)
	s.keyID = os.Getenv(cfg.KeyIDEnv)
	if s.teamID == "" || s.keyID == "" || cfg.PrivateKeyFile == "" {
		return nil, errors.New("no developer token and no key material configured")
	}
	pem, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	s.key, err = jwt.ParseECPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return s, nil
}

// DeveloperToken signs a MusicKit developer token (ES256, kid header).
func DeveloperToken(teamID, keyID string, privateKeyPEM []byte, now time.Time) (string, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	return signDeveloperToken(teamID, keyID, key, now)
}

func signDeveloperToken(teamID, keyID string, key *ecdsa.PrivateKey, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": teamID,
		"iat": now.Unix(),
		"exp": now.Add(appleTokenTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = keyID
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing developer token: %w", err)
	}
	return signed, nil
}

// bearer returns the token for the next request, re-signing it when the
// current one is missing or about to expire.
func (s *AppleMusicSource) bearer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return s.token, nil
	}
	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-appleTokenRefresh)) {
		return s.token, nil
	}
	tok, err := signDeveloperToken(s.teamID, s.keyID, s.key, now)
	if err != nil {
		return "", err
	}
	s.token, s.expires = tok, now.Add(appleTokenTTL)
	return tok, nil
}

func (s *AppleMusicSource) Name() string { return records.PlatformAppleMusic }

// Fetch searches the storefront catalog for the artist's songs.
func (s *AppleMusicSource) Fetch(ctx context.Context, artist string) ([]records.StreamRecord, error) {
	if artist == "" {
		return nil, nil
	}

	limit := s.limit
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"term":  {artist},
		"types": {"artists,songs"},
		"limit": {strconv.Itoa(limit)},
	}
	endpoint := fmt.Sprintf("%s/v1/catalog/%s/search?%s", s.baseURL, s.storefront, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Apple Music API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Apple Music API returned %d", resp.StatusCode)
	}

	var result struct {
		Results struct {
			Songs struct {
				Data []struct {
					Attributes struct {
						Name             string `json:"name"`
						ArtistName       string `json:"artistName"`
						ReleaseDate      string `json:"releaseDate"`
						DurationInMillis int64  `json:"durationInMillis"`
					} `json:"attributes"`
				} `json:"data"`
			} `json:"songs"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding Apple Music response: %w", err)
	}

	country := records.DisplayCountry(strings.ToUpper(s.storefront))
	month := s.now().Format("2006-01")

	var out []records.StreamRecord
	for _, song := range result.Results.Songs.Data {
		a := song.Attributes
		if a.Name == "" {
			continue
		}
		name := a.ArtistName
		if name == "" {
			name = artist
		}
		rec := records.StreamRecord{
			Platform: records.PlatformAppleMusic,
			Artist:   name,
			Track:    a.Name,
			Country:  country,
			Month:    month,
		}
		if a.DurationInMillis > 0 {
			rec.DurationSec = records.Float(float64(a.DurationInMillis) / 1000)
		}
		if y, ok := releaseYear(a.ReleaseDate); ok {
			rec.ReleaseYear = records.Float(y)
		}
		out = append(out, rec)
	}
	return out, nil
}
