package web

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

// Stats summarizes recent records against the configured threshold.
type Stats struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Pending  int `json:"pending"`
}

// articleView is the JSON shape of one seen record.
type articleView struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	ScrapedAt      string `json:"scraped_at"`
	RelevanceScore *int   `json:"relevance_score"`
	Notified       bool   `json:"notified"`
}

// Server is the read-only dashboard over the seen-articles store. It runs as
// a separate process from the pipeline and never mutates the database.
type Server struct {
	store      ports.SeenStore
	threshold  int
	recentDays int
}

// NewServer wires the dashboard against a store handle.
func NewServer(store ports.SeenStore, threshold, recentDays int) *Server {
	if recentDays <= 0 {
		recentDays = 3
	}
	return &Server{store: store, threshold: threshold, recentDays: recentDays}
}

// App builds the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "beacon dashboard",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", s.handleHealth)
	app.Get("/api/articles", s.handleArticles)
	app.Get("/api/stats", s.handleStats)

	return app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if _, err := s.store.Count(c.Context()); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleArticles(c *fiber.Ctx) error {
	days := s.recentDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "days must be a positive integer")
		}
		days = parsed
	}

	records, err := s.store.Recent(c.Context(), days)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	views := make([]articleView, 0, len(records))
	for _, rec := range records {
		views = append(views, articleView{
			URL:            rec.URL,
			Title:          rec.Title,
			ScrapedAt:      rec.ScrapedAt.UTC().Format(time.RFC3339),
			RelevanceScore: rec.RelevanceScore,
			Notified:       rec.Notified,
		})
	}

	return c.JSON(fiber.Map{
		"days":     days,
		"articles": views,
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	records, err := s.store.Recent(c.Context(), s.recentDays)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"days":      s.recentDays,
		"threshold": s.threshold,
		"stats":     ComputeStats(records, s.threshold),
	})
}

// ComputeStats buckets records into accepted, rejected and pending against the
// threshold. Records without a score count as pending.
func ComputeStats(records []domain.SeenRecord, threshold int) Stats {
	stats := Stats{Total: len(records)}
	for _, rec := range records {
		switch {
		case rec.RelevanceScore == nil:
			stats.Pending++
		case *rec.RelevanceScore >= threshold:
			stats.Accepted++
		default:
			stats.Rejected++
		}
	}
	return stats
}
