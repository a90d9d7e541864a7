package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config/config.yaml"

	defaultLLMEndpoint = "https://models.inference.ai.azure.com/chat/completions"
	defaultModel       = "openai/gpt-4o-mini"
	defaultUserAgent   = "Mozilla/5.0 (compatible; BeaconBot/1.0)"
)

// Config holds all settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Discord   DiscordConfig   `yaml:"discord"`
	Filtering FilteringConfig `yaml:"filtering"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Sources   []SourceConfig  `yaml:"sources"`
	Web       WebConfig       `yaml:"web"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig locates the SQLite seen-articles store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig describes the OpenAI-compatible scoring endpoint.
type LLMConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Model           string `yaml:"model"`
	APIToken        string `yaml:"api_token"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxParseRetries int    `yaml:"max_parse_retries"`
}

// Timeout resolves the configured request timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DiscordConfig wires the notification webhook.
type DiscordConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
}

// Timeout resolves the configured request timeout.
func (c DiscordConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FilteringConfig controls relevance filtering.
type FilteringConfig struct {
	PreferencesFile   string `yaml:"preferences_file"`
	MinRelevanceScore int    `yaml:"min_relevance_score"`
}

// ScraperConfig controls source listing and content fetching.
type ScraperConfig struct {
	UserAgent            string `yaml:"user_agent"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	MaxArticlesPerSource int    `yaml:"max_articles_per_source"`
	FetchAttempts        int    `yaml:"fetch_attempts"`
	FetchBackoffSeconds  int    `yaml:"fetch_backoff_seconds"`
}

// Timeout resolves the configured request timeout.
func (c ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SelectorConfig holds the CSS selectors for one html source.
type SelectorConfig struct {
	ArticleList string `yaml:"article_list"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
}

// SourceConfig describes one configured news source.
type SourceConfig struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	URL       string         `yaml:"url"`
	Selectors SelectorConfig `yaml:"selectors"`
}

// WebConfig configures the read-only dashboard process.
type WebConfig struct {
	Addr       string `yaml:"addr"`
	RecentDays int    `yaml:"recent_days"`
}

var envPlaceholder = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Load reads the YAML file at path, substitutes ${VAR} placeholders from the
// environment (.env is loaded first when present) and validates the result.
// Any failure here is fatal for the run.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.substituteEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) substituteEnv() {
	expand := func(v *string) {
		if m := envPlaceholder.FindStringSubmatch(*v); m != nil {
			if resolved, ok := os.LookupEnv(m[1]); ok {
				*v = resolved
			}
		}
	}

	expand(&c.Database.Path)
	expand(&c.LLM.APIToken)
	expand(&c.LLM.Endpoint)
	expand(&c.LLM.Model)
	expand(&c.Discord.WebhookURL)
	expand(&c.Filtering.PreferencesFile)
	for i := range c.Sources {
		expand(&c.Sources[i].URL)
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for _, src := range c.Sources {
		if src.Name == "" || src.URL == "" {
			return fmt.Errorf("source needs both name and url: %+v", src)
		}
		switch src.Type {
		case "", "html":
			if src.Selectors.ArticleList == "" {
				return fmt.Errorf("source %s: selectors.article_list is required for html sources", src.Name)
			}
		case "rss":
		default:
			return fmt.Errorf("source %s: unknown type %q", src.Name, src.Type)
		}
	}
	if c.Filtering.PreferencesFile == "" {
		return fmt.Errorf("filtering.preferences_file is required")
	}
	if c.Filtering.MinRelevanceScore < 1 || c.Filtering.MinRelevanceScore > 10 {
		return fmt.Errorf("filtering.min_relevance_score must be within 1-10, got %d", c.Filtering.MinRelevanceScore)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "./data/seen_articles.db"},
		LLM: LLMConfig{
			Endpoint:        defaultLLMEndpoint,
			Model:           defaultModel,
			TimeoutSeconds:  60,
			MaxParseRetries: 2,
		},
		Discord: DiscordConfig{
			TimeoutSeconds: 30,
			MaxAttempts:    3,
		},
		Filtering: FilteringConfig{
			PreferencesFile:   "./preferences.md",
			MinRelevanceScore: 7,
		},
		Scraper: ScraperConfig{
			UserAgent:            defaultUserAgent,
			TimeoutSeconds:       30,
			MaxArticlesPerSource: 20,
			FetchAttempts:        3,
			FetchBackoffSeconds:  2,
		},
		Web: WebConfig{
			Addr:       ":8080",
			RecentDays: 3,
		},
	}
}
