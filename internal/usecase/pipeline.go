package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source    ports.ArticleSource
	Store     ports.SeenStore
	Fetcher   ports.ContentFetcher
	Scorer    ports.RelevanceScorer
	Notifier  ports.Notifier
	Sources   int
	Threshold int
	DryRun    bool
	Logger    *slog.Logger
}

// Pipeline implements the ingestion-dedup-scoring-notification workflow.
// Processing is strictly sequential: one source, one candidate, one blocking
// external call at a time.
type Pipeline struct {
	source    ports.ArticleSource
	store     ports.SeenStore
	fetcher   ports.ContentFetcher
	scorer    ports.RelevanceScorer
	notifier  ports.Notifier
	sources   int
	threshold int
	dryRun    bool
	logger    *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:    deps.Source,
		store:     deps.Store,
		fetcher:   deps.Fetcher,
		scorer:    deps.Scorer,
		notifier:  deps.Notifier,
		sources:   deps.Sources,
		threshold: deps.Threshold,
		dryRun:    deps.DryRun,
		logger:    logger,
	}
}

// NotifyDecision is the threshold gate: equality qualifies, a missing score
// never does.
func NotifyDecision(score *int, threshold int) bool {
	return score != nil && *score >= threshold
}

// Run executes one full pipeline pass and returns its summary. Per-source and
// per-candidate failures are contained and counted; only the caller-level
// setup (config, store opening) can abort a run.
func (p *Pipeline) Run(ctx context.Context) domain.RunSummary {
	summary := domain.RunSummary{StartedAt: time.Now().UTC(), Sources: p.sources}

	candidates, sourceErrs := p.source.Fetch(ctx)
	summary.SourceErrors = len(sourceErrs)
	for _, err := range sourceErrs {
		p.logger.Error("source listing failed", "error", err)
	}

	summary.Candidates = len(candidates)
	p.logger.Info("run started",
		"sources", summary.Sources, "candidates", len(candidates), "source_errors", len(sourceErrs))

	for _, article := range candidates {
		p.processCandidate(ctx, &summary, article)
	}

	summary.FinishedAt = time.Now().UTC()
	p.logger.Info("run complete",
		"sources", summary.Sources,
		"candidates", summary.Candidates,
		"new", summary.New,
		"fetched", summary.Fetched,
		"scored", summary.Scored,
		"suppressed", summary.Suppressed,
		"notified", summary.Notified,
		"source_errors", summary.SourceErrors,
		"fetch_errors", summary.FetchErrors,
		"notify_errors", summary.NotifyErrors,
		"skipped_on_check", summary.SkippedOnCheck,
		"lost_finalizations", summary.LostFinalizations,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)

	p.sendSummary(ctx, summary)
	return summary
}

func (p *Pipeline) processCandidate(ctx context.Context, summary *domain.RunSummary, article domain.Article) {
	// The exists check runs exactly once per candidate, before any language
	// model work. A storage failure here skips the candidate for this run:
	// processing without the check risks a duplicate notification.
	exists, err := p.store.Exists(ctx, article.URL)
	if err != nil {
		summary.SkippedOnCheck++
		p.logger.Error("seen check failed, skipping candidate",
			"url", article.URL, "source", article.Source, "error", err)
		return
	}
	if exists {
		p.logger.Debug("skipping seen article", "url", article.URL, "title", article.Title)
		return
	}
	summary.New++

	content, err := p.fetcher.Fetch(ctx, article)
	if err != nil {
		// Not finalized: the candidate reappears next run.
		summary.FetchErrors++
		p.logger.Warn("content fetch failed, will retry next run",
			"url", article.URL, "source", article.Source, "error", err)
		return
	}
	article.Content = content
	summary.Fetched++

	var score *int
	var result domain.ScoreResult
	result, err = p.scorer.Score(ctx, article)
	switch {
	case err == nil:
		summary.Scored++
		score = domain.Score(result.Score)
		p.logger.Info("article scored", "url", article.URL, "score", result.Score, "title", article.Title)
	default:
		// Finalized with a null score: the article is permanently suppressed
		// rather than re-billed against the model on every future run.
		summary.Suppressed++
		p.logger.Error("scoring exhausted, suppressing article",
			"url", article.URL, "source", article.Source, "error", err)
	}

	rec := domain.SeenRecord{
		URL:            article.URL,
		Title:          article.Title,
		ScrapedAt:      article.ScrapedAt,
		RelevanceScore: score,
	}
	if err := p.store.Record(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			summary.Duplicates++
			p.logger.Warn("candidate finalized concurrently, dropping", "url", article.URL)
			return
		}
		// Lost finalization: the article may be re-scored next run. Do not
		// notify without a durable record.
		summary.LostFinalizations++
		p.logger.Error("finalize failed, notification skipped",
			"url", article.URL, "source", article.Source, "error", err)
		return
	}

	if !NotifyDecision(score, p.threshold) {
		if score != nil {
			p.logger.Debug("filtered out below threshold", "url", article.URL, "score", *score)
		}
		return
	}

	if p.dryRun {
		summary.Notified++
		p.logger.Info("[dry-run] would send notification", "url", article.URL, "score", *score)
		return
	}

	if err := p.notifier.SendArticle(ctx, article, result); err != nil {
		// The record stays notified=false and is never re-attempted.
		summary.NotifyErrors++
		p.logger.Error("notification failed after retries",
			"url", article.URL, "source", article.Source, "error", err)
		return
	}
	summary.Notified++

	if err := p.store.MarkNotified(ctx, article.URL); err != nil {
		summary.LostFinalizations++
		p.logger.Error("delivered but could not mark notified",
			"url", article.URL, "error", err)
	}
}

func (p *Pipeline) sendSummary(ctx context.Context, summary domain.RunSummary) {
	if summary.Notified == 0 {
		p.logger.Info("no relevant articles found, skipping summary notification")
		return
	}
	if p.dryRun {
		p.logger.Info("[dry-run] would send run summary")
		return
	}
	if err := p.notifier.SendSummary(ctx, summary); err != nil {
		p.logger.Error("summary notification failed", "error", err)
	}
}
