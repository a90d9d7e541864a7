package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"beacon/internal/domain"
	"beacon/internal/scanner"
)

// RSSScanner lists articles from an RSS or Atom feed.
type RSSScanner struct {
	parser *gofeed.Parser
}

// NewRSSScanner wires a feed parser reusing the shared HTTP client.
func NewRSSScanner(client *http.Client, userAgent string) *RSSScanner {
	fp := gofeed.NewParser()
	if client != nil {
		fp.Client = client
	}
	if userAgent != "" {
		fp.UserAgent = userAgent
	}
	return &RSSScanner{parser: fp}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan parses the feed and returns up to MaxArticles stubs.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	feed, err := s.parser.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now().UTC()
	seen := map[string]struct{}{}
	var results []domain.Article

	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "Untitled"
		}

		results = append(results, domain.Article{
			URL:       link,
			Title:     title,
			Excerpt:   strings.TrimSpace(item.Description),
			Source:    req.SourceName,
			ScrapedAt: now,
		})

		if req.MaxArticles > 0 && len(results) >= req.MaxArticles {
			break
		}
	}

	return results, nil
}
