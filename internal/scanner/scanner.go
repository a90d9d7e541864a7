package scanner

import (
	"context"
	"fmt"

	"beacon/internal/domain"
)

// Selectors carries the CSS selectors configured for an html source.
type Selectors struct {
	ArticleList string
	Title       string
	Link        string
	Description string
}

// Request carries all parameters required to list one source.
type Request struct {
	SourceName  string
	URL         string
	Selectors   Selectors
	MaxArticles int
}

// Scanner captures a single listing strategy (selector-driven html, rss).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Article, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
