package domain

import "time"

// Article is a candidate discovered from a configured source during one run.
// It lives only for the duration of the run; the durable trace is a SeenRecord.
type Article struct {
	URL       string
	Title     string
	Excerpt   string
	Content   string
	Source    string
	ScrapedAt time.Time
}

// ScoreResult is the parsed reply of one relevance-scoring call.
type ScoreResult struct {
	Score  int
	Reason string
}

// SeenRecord is the one-per-URL finalization row in seen_articles.
// RelevanceScore is nil when scoring never completed for the article.
type SeenRecord struct {
	ID             int64
	URL            string
	Title          string
	ScrapedAt      time.Time
	RelevanceScore *int
	Notified       bool
}

// RunSummary aggregates counters for a single pipeline run.
type RunSummary struct {
	Sources           int
	SourceErrors      int
	Candidates        int
	New               int
	Fetched           int
	FetchErrors       int
	Scored            int
	Suppressed        int
	Notified          int
	NotifyErrors      int
	Duplicates        int
	SkippedOnCheck    int
	LostFinalizations int
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Score returns a pointer suitable for SeenRecord.RelevanceScore.
func Score(v int) *int {
	return &v
}
