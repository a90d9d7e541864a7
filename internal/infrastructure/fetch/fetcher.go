package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cixtor/readability"

	"beacon/internal/domain"
	"beacon/internal/ports"
	"beacon/internal/retry"
)

const minContentChars = 50

// Fetcher resolves full article text with bounded retries. The page body is
// run through readability to drop navigation, scripts and boilerplate.
type Fetcher struct {
	client    *http.Client
	userAgent string
	retryCfg  retry.Config
	logger    *slog.Logger
}

var _ ports.ContentFetcher = (*Fetcher)(nil)

// New wires a fetcher; a nil client gets a 30s timeout default.
func New(client *http.Client, userAgent string, attempts int, backoff time.Duration, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if attempts < 1 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		retryCfg:  retry.Config{MaxAttempts: attempts, Delay: backoff},
		logger:    log,
	}
}

// Fetch downloads the article page and extracts its main text. A transport
// failure after all attempts yields a FetchError so the orchestrator skips the
// candidate without finalizing it. A page that loads but yields no meaningful
// text falls back to the stub excerpt.
func (f *Fetcher) Fetch(ctx context.Context, article domain.Article) (string, error) {
	var content string

	err := retry.Do(ctx, f.retryCfg, func() error {
		text, err := f.fetchOnce(ctx, article.URL)
		if err != nil {
			if f.logger != nil {
				f.logger.Debug("content fetch attempt failed", "url", article.URL, "error", err)
			}
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return "", &domain.FetchError{URL: article.URL, Err: err}
	}

	if len(content) < minContentChars {
		if f.logger != nil {
			f.logger.Debug("no meaningful content extracted, using excerpt", "url", article.URL)
		}
		return article.Excerpt, nil
	}

	return content, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", &retry.Permanent{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article returned %s", resp.Status)
	}

	parsed, err := readability.New().Parse(resp.Body, articleURL)
	if err != nil {
		// The page itself loaded; an unparseable document falls back to the
		// stub excerpt instead of burning retry attempts.
		return "", nil
	}

	return strings.TrimSpace(parsed.TextContent), nil
}
