package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"beacon/internal/config"
	"beacon/internal/domain"
	"beacon/internal/infrastructure/discord"
	"beacon/internal/infrastructure/fetch"
	"beacon/internal/infrastructure/llm"
	"beacon/internal/infrastructure/parser"
	"beacon/internal/infrastructure/storage"
	"beacon/internal/scanner"
	"beacon/internal/scorer"
	"beacon/internal/usecase"
)

// Application wires configuration to the pipeline and its collaborators.
// Construction failures (store unopenable, preferences missing) are run-fatal.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.SQLiteStore
	registry *scanner.Registry
	source   *parser.StrategySource
	pipeline *usecase.Pipeline
	llm      *llm.Client
	notifier *discord.Notifier
	scorer   *scorer.Scorer
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger, dryRun bool) (*Application, error) {
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open seen store: %w", err)
	}

	preferences, err := os.ReadFile(cfg.Filtering.PreferencesFile)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Scraper.Timeout()}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewSiteScanner(httpClient, cfg.Scraper.UserAgent))
	registry.Register(parser.NewRSSScanner(httpClient, cfg.Scraper.UserAgent))

	source := parser.NewStrategySource(registry, cfg.Sources, cfg.Scraper.MaxArticlesPerSource,
		baseLogger.With("component", "source"))

	fetcher := fetch.New(httpClient, cfg.Scraper.UserAgent,
		cfg.Scraper.FetchAttempts,
		time.Duration(cfg.Scraper.FetchBackoffSeconds)*time.Second,
		baseLogger.With("component", "fetcher"))

	llmClient := llm.New(cfg.LLM)
	relevance := scorer.New(llmClient, string(preferences), cfg.LLM.MaxParseRetries,
		baseLogger.With("component", "scorer"))

	notifier := discord.New(cfg.Discord, baseLogger.With("component", "discord"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Store:     store,
		Fetcher:   fetcher,
		Scorer:    relevance,
		Notifier:  notifier,
		Sources:   source.Len(),
		Threshold: cfg.Filtering.MinRelevanceScore,
		DryRun:    dryRun,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		registry: registry,
		source:   source,
		pipeline: pipeline,
		llm:      llmClient,
		notifier: notifier,
		scorer:   relevance,
	}, nil
}

// Close releases the store handle.
func (a *Application) Close() error {
	return a.store.Close()
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) domain.RunSummary {
	return a.pipeline.Run(ctx)
}

// TestScraper lists the first configured source and logs what it finds.
func (a *Application) TestScraper(ctx context.Context) error {
	src := a.cfg.Sources[0]
	kind := src.Type
	if kind == "" {
		kind = "html"
	}

	strategy, err := a.registry.Resolve(kind)
	if err != nil {
		return err
	}

	a.logger.Info("testing scraper", "source", src.Name, "type", kind)
	articles, err := strategy.Scan(ctx, scanner.Request{
		SourceName:  src.Name,
		URL:         src.URL,
		MaxArticles: 50,
		Selectors: scanner.Selectors{
			ArticleList: src.Selectors.ArticleList,
			Title:       src.Selectors.Title,
			Link:        src.Selectors.Link,
			Description: src.Selectors.Description,
		},
	})
	if err != nil {
		return fmt.Errorf("scrape %s: %w", src.Name, err)
	}

	a.logger.Info("scraper test successful", "articles", len(articles))
	for i, article := range articles {
		a.logger.Info("scraped article", "n", i+1, "title", article.Title, "url", article.URL)
	}
	return nil
}

// TestLLM verifies connectivity and runs one scoring call on a canned article.
func (a *Application) TestLLM(ctx context.Context) error {
	a.logger.Info("testing llm connectivity")
	if err := a.llm.Ping(ctx); err != nil {
		return fmt.Errorf("llm connectivity: %w", err)
	}

	result, err := a.scorer.Score(ctx, domain.Article{
		URL:     "https://example.com/test",
		Title:   "Test Article About Technology",
		Content: "This is a test article about new technology developments.",
		Source:  "test",
	})
	if err != nil {
		return fmt.Errorf("llm analysis: %w", err)
	}

	a.logger.Info("llm test successful", "score", result.Score, "reason", result.Reason)
	return nil
}

// TestDiscord sends a connectivity message through the webhook.
func (a *Application) TestDiscord(ctx context.Context) error {
	a.logger.Info("testing discord webhook")
	if err := a.notifier.Test(ctx); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	a.logger.Info("discord test successful")
	return nil
}
