package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Sources   SourcesConfig   `yaml:"sources"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures how often the scheduler triggers the pipeline
// stages. Stages stay independently invocable over HTTP regardless.
type ScheduleConfig struct {
	SyncInterval string `yaml:"sync_interval"`
	RankInterval string `yaml:"rank_interval"`
}

// ParseSyncInterval returns the sync interval as time.Duration.
func (s ScheduleConfig) ParseSyncInterval() time.Duration {
	d, err := time.ParseDuration(s.SyncInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// ParseRankInterval returns the rank interval as time.Duration.
func (s ScheduleConfig) ParseRankInterval() time.Duration {
	d, err := time.ParseDuration(s.RankInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// SourcesConfig holds configuration for all signal fetchers.
type SourcesConfig struct {
	GitHub      GitHubConfig      `yaml:"github"`
	ProductHunt ProductHuntConfig `yaml:"producthunt"`
	Arena       ArenaConfig       `yaml:"arena"`
	Benchmarks  BenchmarksConfig  `yaml:"benchmarks"`
	CustomBench CustomBenchConfig `yaml:"custombench"`
	Authority   AuthorityConfig   `yaml:"authority"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Reviews     ReviewsConfig     `yaml:"reviews"`
}

// GitHubConfig for the code-host stats fetcher.
type GitHubConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// ProductHuntConfig for the launch-votes fetcher.
type ProductHuntConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// ArenaConfig for the crowd-voted leaderboard fetcher.
type ArenaConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	FallbackURL string `yaml:"fallback_url"`
}

// BenchmarksConfig for the benchmark dataset API fetcher.
type BenchmarksConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
}

// CustomBenchConfig for the operator-configured benchmark URL.
type CustomBenchConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// AuthorityConfig for the domain-authority fetcher.
type AuthorityConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
}

// PricingConfig for the model-pricing fetcher.
type PricingConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
}

// ReviewsConfig for the review-site rating scraper.
type ReviewsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// DiscoveryConfig configures candidate discovery feeds.
type DiscoveryConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single discovery feed entry.
type FeedItem struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// ServerConfig configures the HTTP trigger surface. SyncSecret is the static
// bearer credential every stage endpoint requires.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	SyncSecret string `yaml:"sync_secret"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./toolrank.db"},
		Schedule: ScheduleConfig{
			SyncInterval: "6h",
			RankInterval: "24h",
		},
		Sources: SourcesConfig{
			GitHub:      GitHubConfig{Enabled: true},
			ProductHunt: ProductHuntConfig{Enabled: false},
			Arena:       ArenaConfig{Enabled: true},
			Benchmarks:  BenchmarksConfig{Enabled: false},
			CustomBench: CustomBenchConfig{Enabled: false},
			Authority:   AuthorityConfig{Enabled: false},
			Pricing:     PricingConfig{Enabled: false},
			Reviews:     ReviewsConfig{Enabled: true},
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Feeds: []FeedItem{
				{Name: "Product Hunt AI", URL: "https://www.producthunt.com/topics/artificial-intelligence/feed", Category: "assistants"},
				{Name: "There's An AI For That", URL: "https://theresanaiforthat.com/rss/", Category: ""},
			},
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TOOLRANK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TOOLRANK_SYNC_SECRET"); v != "" {
		cfg.Server.SyncSecret = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Sources.GitHub.Token = v
	}
	if v := os.Getenv("PRODUCTHUNT_TOKEN"); v != "" {
		cfg.Sources.ProductHunt.Token = v
		cfg.Sources.ProductHunt.Enabled = true
	}
	if v := os.Getenv("BENCHMARK_API_KEY"); v != "" {
		cfg.Sources.Benchmarks.APIKey = v
		cfg.Sources.Benchmarks.Enabled = true
	}
	if v := os.Getenv("AUTHORITY_API_KEY"); v != "" {
		cfg.Sources.Authority.APIKey = v
		cfg.Sources.Authority.Enabled = true
	}
	if v := os.Getenv("PRICING_API_KEY"); v != "" {
		cfg.Sources.Pricing.APIKey = v
		cfg.Sources.Pricing.Enabled = true
	}
}
