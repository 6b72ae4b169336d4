package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/tuneiq/internal/royalty"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Artist  string  `yaml:"artist"`
	Royalty Royalty `yaml:"royalty"`
	Sources Sources `yaml:"sources"`
	Model   Model   `yaml:"model"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Royalty struct {
	Rates                 map[string]float64 `yaml:"rates"`
	DefaultRate           float64            `yaml:"default_rate"`
	FXRate                float64            `yaml:"fx_rate"`
	Currency              string             `yaml:"currency"`
	IndirectMultiplier    float64            `yaml:"indirect_multiplier"`
	ExportRateUSD         float64            `yaml:"export_rate_usd"`
	HomeCountry           string             `yaml:"home_country"`
	UnderpaymentThreshold float64            `yaml:"underpayment_threshold"`
}

type Sources struct {
	Sample     SampleConfig     `yaml:"sample"`
	Spotify    SpotifyConfig    `yaml:"spotify"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	AppleMusic AppleMusicConfig `yaml:"apple_music"`
	Charts     ChartsConfig     `yaml:"charts"`
}

// SampleConfig points at the fallback dataset. An empty path uses the
// dataset embedded in the binary.
type SampleConfig struct {
	Path string `yaml:"path"`
}

type SpotifyConfig struct {
	Enabled         bool               `yaml:"enabled"`
	ClientIDEnv     string             `yaml:"client_id_env"`
	ClientSecretEnv string             `yaml:"client_secret_env"`
	DefaultArtistID string             `yaml:"default_artist_id"`
	ScaleFactor     float64            `yaml:"scale_factor"`
	ReportedRateUSD float64            `yaml:"reported_rate_usd"`
	CountryWeights  map[string]float64 `yaml:"country_weights"`
}

type YouTubeConfig struct {
	Enabled          bool     `yaml:"enabled"`
	ClientSecretFile string   `yaml:"client_secret_file"`
	TokenFile        string   `yaml:"token_file"`
	Days             int      `yaml:"days"`
	RevenuePerView   float64  `yaml:"revenue_per_view"`
	VideoIDs         []string `yaml:"video_ids"`
	Country          string   `yaml:"country"`
}

type AppleMusicConfig struct {
	Enabled           bool   `yaml:"enabled"`
	DeveloperTokenEnv string `yaml:"developer_token_env"`
	TeamIDEnv         string `yaml:"team_id_env"`
	KeyIDEnv          string `yaml:"key_id_env"`
	PrivateKeyFile    string `yaml:"private_key_file"`
	Storefront        string `yaml:"storefront"`
	BaseURL           string `yaml:"base_url"`
	Limit             int    `yaml:"limit"`
}

type ChartsConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Feeds             []Feed  `yaml:"feeds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RankStreamUnit    int64   `yaml:"rank_stream_unit"`
	ScrapePages       bool    `yaml:"scrape_pages"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	Country  string `yaml:"country"`
}

type Model struct {
	Kind           string `yaml:"kind"`
	Path           string `yaml:"path"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for tuneiq.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "tuneiq")
}

// DataDir returns the XDG data directory for tuneiq.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "tuneiq")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/tuneiq/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'tuneiq init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults. Map sections
// (rates, country weights) are merged key by key into the defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Artist: "Burna Boy",
		Royalty: Royalty{
			Rates:                 royalty.DefaultRates(),
			DefaultRate:           royalty.DefaultRate,
			FXRate:                royalty.DefaultFXRate,
			Currency:              royalty.DefaultCurrency,
			IndirectMultiplier:    royalty.DefaultIndirectMultiplier,
			ExportRateUSD:         royalty.DefaultExportRateUSD,
			HomeCountry:           royalty.DefaultHomeCountry,
			UnderpaymentThreshold: royalty.DefaultThreshold,
		},
		Sources: Sources{
			Spotify: SpotifyConfig{
				ClientIDEnv:     "SPOTIFY_CLIENT_ID",
				ClientSecretEnv: "SPOTIFY_CLIENT_SECRET",
				ScaleFactor:     1000,
				ReportedRateUSD: 0.004,
				CountryWeights: map[string]float64{
					"Nigeria":        1.5,
					"United States":  1.2,
					"United Kingdom": 0.8,
					"Ghana":          0.4,
					"South Africa":   0.3,
				},
			},
			YouTube: YouTubeConfig{
				ClientSecretFile: "client_secret.json",
				TokenFile:        "youtube_token.json",
				Days:             60,
				RevenuePerView:   0.00069,
				Country:          "Nigeria",
			},
			AppleMusic: AppleMusicConfig{
				DeveloperTokenEnv: "APPLE_MUSIC_DEVELOPER_TOKEN",
				TeamIDEnv:         "APPLE_MUSIC_TEAM_ID",
				KeyIDEnv:          "APPLE_MUSIC_KEY_ID",
				Storefront:        "ng",
				BaseURL:           "https://api.music.apple.com",
				Limit:             10,
			},
			Charts: ChartsConfig{
				RequestsPerSecond: 1,
				RankStreamUnit:    10000,
			},
		},
		Model: Model{
			Kind:           "none",
			TimeoutSeconds: 30,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	t := cfg.Royalty.UnderpaymentThreshold
	if !(t >= 0 && t < 1) {
		return nil, fmt.Errorf("royalty.underpayment_threshold must be in [0, 1), got %v", t)
	}

	return cfg, nil
}

// RoyaltyParams converts the royalty section into estimator parameters.
func (c *Config) RoyaltyParams() royalty.Params {
	rates := make(map[string]float64, len(c.Royalty.Rates))
	for k, v := range c.Royalty.Rates {
		rates[k] = v
	}
	return royalty.Params{
		Rates:              rates,
		DefaultRate:        c.Royalty.DefaultRate,
		FXRate:             c.Royalty.FXRate,
		Currency:           c.Royalty.Currency,
		IndirectMultiplier: c.Royalty.IndirectMultiplier,
		ExportRateUSD:      c.Royalty.ExportRateUSD,
		HomeCountry:        c.Royalty.HomeCountry,
		Threshold:          c.Royalty.UnderpaymentThreshold,
	}
}

// ModelTimeout returns the inference request timeout.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the snapshot database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "tuneiq.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
