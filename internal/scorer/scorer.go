package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

const (
	systemPrompt = "You are a strict news filter. You reply only in the requested format."

	maxContentChars = 4000

	reformatInstruction = "\n\nIMPORTANT: your previous reply did not match the required format. " +
		"Reply with exactly two lines: `SCORE: <integer 1-10>` and `REASON: <brief explanation>`. No other text."
)

var (
	scoreExpr  = regexp.MustCompile(`(?mi)^\s*SCORE:\s*(\d+)\s*$`)
	reasonExpr = regexp.MustCompile(`(?mi)^\s*REASON:\s*(.+)$`)
)

// Completer is the language-model collaborator boundary.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Scorer rates articles against a free-text preference profile. Transport
// failures and malformed replies share one bounded retry budget; exhaustion
// yields a ScoreError and the caller suppresses the article permanently.
type Scorer struct {
	completer   Completer
	preferences string
	maxRetries  int
	logger      *slog.Logger
}

var _ ports.RelevanceScorer = (*Scorer)(nil)

// New wires the scorer. maxRetries counts re-issues after the first attempt.
func New(completer Completer, preferences string, maxRetries int, log *slog.Logger) *Scorer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Scorer{
		completer:   completer,
		preferences: preferences,
		maxRetries:  maxRetries,
		logger:      log,
	}
}

// Score invokes the language model and parses its reply. On parse or transport
// failure the same request is re-issued, with a reformatting instruction
// appended, up to the retry budget.
func (s *Scorer) Score(ctx context.Context, article domain.Article) (domain.ScoreResult, error) {
	prompt := s.buildPrompt(article)

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		userPrompt := prompt
		if attempt > 0 {
			userPrompt += reformatInstruction
		}

		reply, err := s.completer.Complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			s.debug("scoring call failed", "url", article.URL, "attempt", attempt+1, "error", err)
			continue
		}

		result, err := ParseReply(reply)
		if err != nil {
			lastErr = err
			s.debug("scoring reply malformed", "url", article.URL, "attempt", attempt+1, "error", err)
			continue
		}

		return result, nil
	}

	return domain.ScoreResult{}, &domain.ScoreError{URL: article.URL, Err: lastErr}
}

func (s *Scorer) buildPrompt(article domain.Article) string {
	content := article.Content
	if content == "" {
		content = article.Excerpt
	}
	content = truncate(content, maxContentChars)

	var b strings.Builder
	b.WriteString("Analyze whether this article matches the user's interests.\n\n")
	b.WriteString("USER INTERESTS:\n")
	b.WriteString(s.preferences)
	b.WriteString("\n\nARTICLE:\n")
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	fmt.Fprintf(&b, "Source: %s\n", article.Source)
	fmt.Fprintf(&b, "Content: %s\n", content)
	b.WriteString(`
RULES:
1. Check whether the article directly matches any HIGH priority topic (score 8-10).
2. Then check MEDIUM priority topics (score 6-7).
3. If it matches a "Topics to Ignore" entry, score 1-2.
4. Otherwise score by relevance; when in doubt, score conservatively but fairly.

Respond with exactly two lines in this format and nothing else:
SCORE: <integer 1-10>
REASON: <brief explanation of which topic it matches, or why it does not>
`)
	return b.String()
}

// ParseReply validates a reply against the SCORE/REASON grammar.
func ParseReply(reply string) (domain.ScoreResult, error) {
	scoreMatch := scoreExpr.FindStringSubmatch(reply)
	if scoreMatch == nil {
		return domain.ScoreResult{}, fmt.Errorf("no SCORE line in reply %q", truncate(reply, 200))
	}

	score, err := strconv.Atoi(scoreMatch[1])
	if err != nil || score < 1 || score > 10 {
		return domain.ScoreResult{}, fmt.Errorf("score %q out of range 1-10", scoreMatch[1])
	}

	reasonMatch := reasonExpr.FindStringSubmatch(reply)
	if reasonMatch == nil {
		return domain.ScoreResult{}, fmt.Errorf("no REASON line in reply %q", truncate(reply, 200))
	}

	return domain.ScoreResult{
		Score:  score,
		Reason: strings.TrimSpace(reasonMatch[1]),
	}, nil
}

// truncate cuts s to at most limit bytes without splitting a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}

func (s *Scorer) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
