package parser

import (
	"context"
	"fmt"
	"log/slog"

	"beacon/internal/config"
	"beacon/internal/domain"
	"beacon/internal/ports"
	"beacon/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
// A failure listing one source is collected and the remaining sources are
// still processed.
type StrategySource struct {
	registry    *scanner.Registry
	sources     []config.SourceConfig
	maxArticles int
	logger      *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, maxArticles int, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:    reg,
		sources:     sources,
		maxArticles: maxArticles,
		logger:      log,
	}
}

// Fetch iterates over configured sources sequentially and aggregates their
// candidate stubs together with per-source listing errors.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Article, []error) {
	var (
		aggregated []domain.Article
		failures   []error
	)

	for _, src := range s.sources {
		kind := src.Type
		if kind == "" {
			kind = "html"
		}

		strategy, err := s.registry.Resolve(kind)
		if err != nil {
			failures = append(failures, &domain.SourceError{Source: src.Name, Err: err})
			s.warn("unknown source type", "source", src.Name, "type", kind)
			continue
		}

		req := scanner.Request{
			SourceName:  src.Name,
			URL:         src.URL,
			MaxArticles: s.maxArticles,
			Selectors: scanner.Selectors{
				ArticleList: src.Selectors.ArticleList,
				Title:       src.Selectors.Title,
				Link:        src.Selectors.Link,
				Description: src.Selectors.Description,
			},
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			failures = append(failures, &domain.SourceError{Source: src.Name, Err: fmt.Errorf("scan: %w", err)})
			s.warn("source listing failed", "source", src.Name, "error", err)
			continue
		}

		s.debug("source produced articles", "source", src.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	return aggregated, failures
}

// Len reports how many sources are configured.
func (s *StrategySource) Len() int {
	return len(s.sources)
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
