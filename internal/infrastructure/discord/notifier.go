package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"beacon/internal/config"
	"beacon/internal/domain"
	"beacon/internal/ports"
	"beacon/internal/retry"
)

const maxDescriptionChars = 300

// Embed colors keyed by relevance band.
const (
	colorGreen   = 0x57F287
	colorYellow  = 0xFEE75C
	colorRed     = 0xED4245
	colorBlurple = 0x5865F2
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

// Notifier delivers article and summary embeds to a Discord webhook. HTTP 429
// and 5xx responses are retried with exponential backoff; other 4xx responses
// fail immediately.
type Notifier struct {
	webhookURL string
	client     *http.Client
	retryCfg   retry.Config
	logger     *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// New wires the notifier from configuration.
func New(cfg config.DiscordConfig, log *slog.Logger) *Notifier {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: cfg.Timeout()},
		retryCfg:   retry.Config{MaxAttempts: attempts, Delay: time.Second, Exponential: true},
		logger:     log,
	}
}

// SendArticle posts one qualifying article as an embed.
func (n *Notifier) SendArticle(ctx context.Context, article domain.Article, result domain.ScoreResult) error {
	description := article.Excerpt
	if len(description) > maxDescriptionChars {
		description = description[:maxDescriptionChars] + "..."
	}

	reason := result.Reason
	if reason == "" {
		reason = "No reason provided"
	}

	payload := webhookPayload{
		Embeds: []embed{{
			Title:       article.Title,
			URL:         article.URL,
			Description: description,
			Color:       scoreColor(result.Score),
			Fields: []embedField{
				{Name: "Source", Value: article.Source, Inline: true},
				{Name: "Relevance Score", Value: fmt.Sprintf("%d/10", result.Score), Inline: true},
				{Name: "Why this article?", Value: reason},
			},
		}},
	}

	if err := n.send(ctx, payload); err != nil {
		return &domain.NotifyError{URL: article.URL, Err: err}
	}
	return nil
}

// SendSummary posts the end-of-run counters.
func (n *Notifier) SendSummary(ctx context.Context, summary domain.RunSummary) error {
	payload := webhookPayload{
		Embeds: []embed{{
			Title: "Beacon Run Summary",
			Color: colorBlurple,
			Fields: []embedField{
				{Name: "Articles Scraped", Value: fmt.Sprintf("%d", summary.Candidates), Inline: true},
				{Name: "New Articles", Value: fmt.Sprintf("%d", summary.New), Inline: true},
				{Name: "Notifications Sent", Value: fmt.Sprintf("%d", summary.Notified), Inline: true},
			},
		}},
	}
	return n.send(ctx, payload)
}

// Test posts a plain connectivity message.
func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, webhookPayload{Content: "Beacon Discord connection test successful"})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if n.webhookURL == "" {
		return fmt.Errorf("discord webhook url is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	return retry.Do(ctx, n.retryCfg, func() error {
		err := n.sendOnce(ctx, body)
		if err != nil && n.logger != nil {
			n.logger.Warn("discord send attempt failed", "error", err)
		}
		return err
	})
}

func (n *Notifier) sendOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &retry.Permanent{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	err = fmt.Errorf("discord returned %s", resp.Status)
	if !retryable(resp.StatusCode) {
		return &retry.Permanent{Err: err}
	}
	return err
}

// retryable classifies transient webhook failures by status class.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func scoreColor(score int) int {
	switch {
	case score >= 8:
		return colorGreen
	case score >= 6:
		return colorYellow
	default:
		return colorRed
	}
}
