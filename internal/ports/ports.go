package ports

import (
	"context"

	"beacon/internal/domain"
)

// SeenStore is the durable record of every finalized article URL. It is the
// sole cross-run source of truth for "already processed".
type SeenStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Record(ctx context.Context, rec domain.SeenRecord) error
	MarkNotified(ctx context.Context, url string) error
	Recent(ctx context.Context, days int) ([]domain.SeenRecord, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// ArticleSource yields candidate stubs from every configured source. Failures
// listing one source are returned alongside the stubs of the others.
type ArticleSource interface {
	Fetch(ctx context.Context) ([]domain.Article, []error)
}

// ContentFetcher resolves the full text for one candidate.
type ContentFetcher interface {
	Fetch(ctx context.Context, article domain.Article) (string, error)
}

// RelevanceScorer rates one article against the user's preference profile.
type RelevanceScorer interface {
	Score(ctx context.Context, article domain.Article) (domain.ScoreResult, error)
}

// Notifier delivers qualifying articles and the end-of-run summary.
type Notifier interface {
	SendArticle(ctx context.Context, article domain.Article, result domain.ScoreResult) error
	SendSummary(ctx context.Context, summary domain.RunSummary) error
	Test(ctx context.Context) error
}
