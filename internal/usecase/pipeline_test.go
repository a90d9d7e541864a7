package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/domain"
)

type fakeSource struct {
	articles []domain.Article
	errs     []error
}

func (f *fakeSource) Fetch(context.Context) ([]domain.Article, []error) {
	return f.articles, f.errs
}

type fakeStore struct {
	records     map[string]*domain.SeenRecord
	existsErr   error
	recordErr   error
	notifiedErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*domain.SeenRecord{}}
}

func (f *fakeStore) Exists(_ context.Context, url string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.records[url]
	return ok, nil
}

func (f *fakeStore) Record(_ context.Context, rec domain.SeenRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	if _, ok := f.records[rec.URL]; ok {
		return domain.ErrDuplicate
	}
	saved := rec
	f.records[rec.URL] = &saved
	return nil
}

func (f *fakeStore) MarkNotified(_ context.Context, url string) error {
	if f.notifiedErr != nil {
		return f.notifiedErr
	}
	rec, ok := f.records[url]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Notified = true
	return nil
}

func (f *fakeStore) Recent(context.Context, int) ([]domain.SeenRecord, error) { return nil, nil }

func (f *fakeStore) Count(context.Context) (int, error) { return len(f.records), nil }

func (f *fakeStore) Close() error { return nil }

type fakeFetcher struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeFetcher) Fetch(_ context.Context, article domain.Article) (string, error) {
	f.calls++
	if f.failFor[article.URL] {
		return "", &domain.FetchError{URL: article.URL, Err: errors.New("unreachable")}
	}
	return "full text of " + article.Title, nil
}

type fakeScorer struct {
	scores  map[string]int
	failFor map[string]bool
	calls   int
}

func (f *fakeScorer) Score(_ context.Context, article domain.Article) (domain.ScoreResult, error) {
	f.calls++
	if f.failFor[article.URL] {
		return domain.ScoreResult{}, &domain.ScoreError{URL: article.URL, Err: errors.New("malformed reply")}
	}
	return domain.ScoreResult{Score: f.scores[article.URL], Reason: "because"}, nil
}

type fakeNotifier struct {
	sent      []string
	summaries int
	failFor   map[string]bool
}

func (f *fakeNotifier) SendArticle(_ context.Context, article domain.Article, _ domain.ScoreResult) error {
	if f.failFor[article.URL] {
		return &domain.NotifyError{URL: article.URL, Err: errors.New("webhook down")}
	}
	f.sent = append(f.sent, article.URL)
	return nil
}

func (f *fakeNotifier) SendSummary(context.Context, domain.RunSummary) error {
	f.summaries++
	return nil
}

func (f *fakeNotifier) Test(context.Context) error { return nil }

func article(url string) domain.Article {
	return domain.Article{URL: url, Title: "title of " + url, Source: "src", Excerpt: "teaser"}
}

type fixture struct {
	source   *fakeSource
	store    *fakeStore
	fetcher  *fakeFetcher
	scorer   *fakeScorer
	notifier *fakeNotifier
}

func newPipeline(fx *fixture, threshold int, dryRun bool) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:    fx.source,
		Store:     fx.store,
		Fetcher:   fx.fetcher,
		Scorer:    fx.scorer,
		Notifier:  fx.notifier,
		Threshold: threshold,
		DryRun:    dryRun,
	})
}

func TestNotifyDecision(t *testing.T) {
	t.Parallel()

	assert.True(t, NotifyDecision(domain.Score(7), 7), "equality qualifies")
	assert.True(t, NotifyDecision(domain.Score(10), 7))
	assert.False(t, NotifyDecision(domain.Score(6), 7))
	assert.False(t, NotifyDecision(nil, 7), "a null score never qualifies")
	assert.False(t, NotifyDecision(nil, 1))
}

func TestRunThresholdBoundary(t *testing.T) {
	t.Parallel()

	// At threshold 7, a score of 6 stays quiet and a score of 7 notifies.
	fx := &fixture{
		source:  &fakeSource{articles: []domain.Article{article("https://n.ews/x"), article("https://n.ews/y")}},
		store:   newFakeStore(),
		fetcher: &fakeFetcher{},
		scorer: &fakeScorer{scores: map[string]int{
			"https://n.ews/x": 6,
			"https://n.ews/y": 7,
		}},
		notifier: &fakeNotifier{},
	}

	summary := newPipeline(fx, 7, false).Run(context.Background())

	assert.Equal(t, 2, summary.Scored)
	assert.Equal(t, 1, summary.Notified)
	assert.Equal(t, []string{"https://n.ews/y"}, fx.notifier.sent)

	x := fx.store.records["https://n.ews/x"]
	require.NotNil(t, x)
	require.NotNil(t, x.RelevanceScore)
	assert.Equal(t, 6, *x.RelevanceScore)
	assert.False(t, x.Notified)

	y := fx.store.records["https://n.ews/y"]
	require.NotNil(t, y)
	require.NotNil(t, y.RelevanceScore)
	assert.Equal(t, 7, *y.RelevanceScore)
	assert.True(t, y.Notified)
}

func TestRunSuppressesUnscorableArticle(t *testing.T) {
	t.Parallel()

	// Scoring exhausted: article finalized with a null score and
	// the run continues to the next candidate.
	fx := &fixture{
		source: &fakeSource{articles: []domain.Article{article("https://n.ews/bad"), article("https://n.ews/good")}},
		store:  newFakeStore(),
		fetcher: &fakeFetcher{},
		scorer: &fakeScorer{
			scores:  map[string]int{"https://n.ews/good": 9},
			failFor: map[string]bool{"https://n.ews/bad": true},
		},
		notifier: &fakeNotifier{},
	}

	summary := newPipeline(fx, 7, false).Run(context.Background())

	assert.Equal(t, 1, summary.Suppressed)
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.Notified)

	bad := fx.store.records["https://n.ews/bad"]
	require.NotNil(t, bad, "suppressed article must still be finalized")
	assert.Nil(t, bad.RelevanceScore)
	assert.False(t, bad.Notified)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	t.Parallel()

	// Source A errored at listing time; source B's candidates are
	// still processed and notified.
	fx := &fixture{
		source: &fakeSource{
			articles: []domain.Article{article("https://b.site/1"), article("https://b.site/2")},
			errs:     []error{&domain.SourceError{Source: "site-a", Err: errors.New("network")}},
		},
		store:   newFakeStore(),
		fetcher: &fakeFetcher{},
		scorer: &fakeScorer{scores: map[string]int{
			"https://b.site/1": 8,
			"https://b.site/2": 9,
		}},
		notifier: &fakeNotifier{},
	}

	summary := newPipeline(fx, 7, false).Run(context.Background())

	assert.Equal(t, 1, summary.SourceErrors)
	assert.Equal(t, 2, summary.Notified)
	assert.ElementsMatch(t, []string{"https://b.site/1", "https://b.site/2"}, fx.notifier.sent)
}

func TestRunNotifyFailureKeepsRecordSeen(t *testing.T) {
	t.Parallel()

	// Webhook exhausted: the record stays with notified=false and
	// a rerun neither re-scores nor re-sends.
	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/z")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/z": 9}},
		notifier: &fakeNotifier{failFor: map[string]bool{"https://n.ews/z": true}},
	}

	summary := newPipeline(fx, 7, false).Run(context.Background())
	assert.Equal(t, 1, summary.NotifyErrors)
	assert.Equal(t, 0, summary.Notified)

	rec := fx.store.records["https://n.ews/z"]
	require.NotNil(t, rec)
	require.NotNil(t, rec.RelevanceScore)
	assert.False(t, rec.Notified)

	// Second run: no further scoring or notification attempts.
	fx.notifier.failFor = nil
	summary = newPipeline(fx, 7, false).Run(context.Background())
	assert.Equal(t, 0, summary.New)
	assert.Equal(t, 1, fx.scorer.calls)
	assert.Empty(t, fx.notifier.sent)
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/a"), article("https://n.ews/b")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/a": 9, "https://n.ews/b": 2}},
		notifier: &fakeNotifier{},
	}

	first := newPipeline(fx, 7, false).Run(context.Background())
	assert.Equal(t, 2, first.New)
	assert.Equal(t, 1, first.Notified)
	scorerCalls := fx.scorer.calls

	second := newPipeline(fx, 7, false).Run(context.Background())
	assert.Equal(t, 0, second.New)
	assert.Equal(t, 0, second.Notified)
	assert.Equal(t, scorerCalls, fx.scorer.calls, "no additional language-model calls on rerun")
	assert.Len(t, fx.notifier.sent, 1, "no additional notifications on rerun")
}

func TestRunFetchFailureIsNotFinalized(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/slow")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{failFor: map[string]bool{"https://n.ews/slow": true}},
		scorer:   &fakeScorer{},
		notifier: &fakeNotifier{},
	}

	summary := newPipeline(fx, 7, false).Run(context.Background())
	assert.Equal(t, 1, summary.FetchErrors)
	assert.Equal(t, 0, fx.scorer.calls, "no scoring without content")
	assert.Empty(t, fx.store.records, "fetch failures are retried next run, not finalized")

	// Next run the fetch succeeds and the candidate completes.
	fx.fetcher.failFor = nil
	fx.scorer.scores = map[string]int{"https://n.ews/slow": 8}
	summary = newPipeline(fx, 7, false).Run(context.Background())
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.Notified)
}

func TestRunDryRunSkipsDispatchButPersists(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/d")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/d": 10}},
		notifier: &fakeNotifier{},
	}

	summary := newPipeline(fx, 7, true).Run(context.Background())

	assert.Equal(t, 1, summary.Notified, "dry-run still counts the would-be send")
	assert.Empty(t, fx.notifier.sent, "no webhook call in dry-run")
	assert.Zero(t, fx.notifier.summaries, "no summary webhook call in dry-run")

	rec := fx.store.records["https://n.ews/d"]
	require.NotNil(t, rec, "scoring and persistence still happen in dry-run")
	assert.False(t, rec.Notified, "no dispatch happened, flag stays false")
}

func TestRunExistsCheckFailureSkipsCandidate(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/e")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/e": 9}},
		notifier: &fakeNotifier{},
	}
	fx.store.existsErr = errors.New("disk io")

	summary := newPipeline(fx, 7, false).Run(context.Background())

	assert.Equal(t, 1, summary.SkippedOnCheck)
	assert.Equal(t, 0, fx.scorer.calls, "no scoring when the dedup check cannot run")
	assert.Empty(t, fx.notifier.sent)
}

func TestRunRecordFailureSkipsNotification(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/f")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/f": 9}},
		notifier: &fakeNotifier{},
	}
	fx.store.recordErr = errors.New("disk full")

	summary := newPipeline(fx, 7, false).Run(context.Background())

	assert.Equal(t, 1, summary.LostFinalizations)
	assert.Empty(t, fx.notifier.sent, "no notification without a durable record")
}

func TestRunReportsConfiguredSourceCount(t *testing.T) {
	t.Parallel()

	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/s")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/s": 9}},
		notifier: &fakeNotifier{},
	}
	pipeline := NewPipeline(PipelineDeps{
		Source:    fx.source,
		Store:     fx.store,
		Fetcher:   fx.fetcher,
		Scorer:    fx.scorer,
		Notifier:  fx.notifier,
		Sources:   3,
		Threshold: 7,
	})

	summary := pipeline.Run(context.Background())
	assert.Equal(t, 3, summary.Sources)
}

func TestRunConcurrentFinalizeDropsCandidate(t *testing.T) {
	t.Parallel()

	// Record reports a duplicate: another writer finalized the URL between the
	// exists check and the insert. The candidate is dropped without notifying.
	fx := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/race")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/race": 9}},
		notifier: &fakeNotifier{},
	}
	fx.store.recordErr = domain.ErrDuplicate

	summary := newPipeline(fx, 7, false).Run(context.Background())

	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 0, summary.LostFinalizations, "a duplicate is not a storage failure")
	assert.Empty(t, fx.notifier.sent, "the concurrent writer owns the notification")
}

func TestRunSummaryNotificationOnlyWhenSent(t *testing.T) {
	t.Parallel()

	quiet := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/low")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/low": 2}},
		notifier: &fakeNotifier{},
	}
	newPipeline(quiet, 7, false).Run(context.Background())
	assert.Zero(t, quiet.notifier.summaries)

	loud := &fixture{
		source:   &fakeSource{articles: []domain.Article{article("https://n.ews/high")}},
		store:    newFakeStore(),
		fetcher:  &fakeFetcher{},
		scorer:   &fakeScorer{scores: map[string]int{"https://n.ews/high": 9}},
		notifier: &fakeNotifier{},
	}
	newPipeline(loud, 7, false).Run(context.Background())
	assert.Equal(t, 1, loud.notifier.summaries)
}
