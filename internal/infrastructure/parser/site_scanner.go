package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"beacon/internal/domain"
	"beacon/internal/scanner"
)

// SiteScanner lists articles from an html page using configured CSS selectors.
type SiteScanner struct {
	client    *http.Client
	userAgent string
}

// NewSiteScanner wires an HTTP client; a nil client gets a 30s timeout default.
func NewSiteScanner(client *http.Client, userAgent string) *SiteScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; BeaconBot/1.0)"
	}
	return &SiteScanner{client: client, userAgent: userAgent}
}

// Name identifies the strategy inside the registry.
func (s *SiteScanner) Name() string {
	return "html"
}

// Scan fetches the listing page and extracts up to MaxArticles stubs.
func (s *SiteScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if req.Selectors.ArticleList == "" {
		return nil, fmt.Errorf("source %s: article_list selector is empty", req.SourceName)
	}

	doc, err := s.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", req.URL, err)
	}

	now := time.Now().UTC()
	seen := map[string]struct{}{}
	var results []domain.Article

	doc.Find(req.Selectors.ArticleList).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		article, ok := extractStub(sel, base, req.Selectors)
		if !ok {
			return true
		}

		if _, dup := seen[article.URL]; dup {
			return true
		}
		seen[article.URL] = struct{}{}

		article.Source = req.SourceName
		article.ScrapedAt = now
		results = append(results, article)

		return req.MaxArticles <= 0 || len(results) < req.MaxArticles
	})

	return results, nil
}

func (s *SiteScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	return doc, nil
}

func extractStub(sel *goquery.Selection, base *url.URL, selectors scanner.Selectors) (domain.Article, bool) {
	var article domain.Article

	href := findHref(sel, selectors.Link)
	if href == "" {
		return article, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return article, false
	}
	article.URL = base.ResolveReference(ref).String()

	article.Title = findTitle(sel, selectors.Title)
	if article.Title == "" {
		article.Title = "Untitled"
	}

	if selectors.Description != "" {
		article.Excerpt = strings.TrimSpace(sel.Find(selectors.Description).First().Text())
	}

	return article, true
}

func findHref(sel *goquery.Selection, linkSelector string) string {
	if linkSelector != "" {
		if href, ok := sel.Find(linkSelector).First().Attr("href"); ok {
			return strings.TrimSpace(href)
		}
	}
	if sel.Is("a") {
		href, _ := sel.Attr("href")
		return strings.TrimSpace(href)
	}
	href, _ := sel.Find("a").First().Attr("href")
	return strings.TrimSpace(href)
}

// findTitle tries the configured selector first, then falls back to image alt
// text, the anchor title attribute, and finally the element's own text.
func findTitle(sel *goquery.Selection, titleSelector string) string {
	if titleSelector != "" {
		if title := strings.TrimSpace(sel.Find(titleSelector).First().Text()); title != "" {
			return title
		}
	}

	if alt, ok := sel.Find("img").First().Attr("alt"); ok {
		if title := strings.TrimSpace(alt); title != "" {
			return title
		}
	}

	if attr, ok := sel.Attr("title"); ok {
		if title := strings.TrimSpace(attr); title != "" {
			return title
		}
	}

	return strings.TrimSpace(sel.Text())
}
