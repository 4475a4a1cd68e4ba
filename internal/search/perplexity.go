// Package search queries a web research API for market context.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

const researcherPrompt = "You are a web researcher. Answer concisely with citations. " +
	"Prefer authoritative sources and include current pricing context when asked."

// Searcher returns web findings for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.WebFinding, error)
}

// Perplexity calls the chat/completions endpoint and turns the answer and
// its citations into findings.
type Perplexity struct {
	cfg    config.Perplexity
	client *http.Client
	retry  func() backoff.BackOff
	logger *slog.Logger
}

type Option func(*Perplexity)

func WithHTTPClient(c *http.Client) Option { return func(p *Perplexity) { p.client = c } }

// WithBackOff replaces the retry policy; tests use it to avoid sleeping.
func WithBackOff(f func() backoff.BackOff) Option { return func(p *Perplexity) { p.retry = f } }

func WithLogger(l *slog.Logger) Option { return func(p *Perplexity) { p.logger = l } }

func NewPerplexity(cfg config.Perplexity, opts ...Option) *Perplexity {
	p := &Perplexity{
		cfg:    cfg,
		client: &http.Client{Timeout: 45 * time.Second},
		retry:  defaultBackOff,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Three attempts in total, waiting between one and six seconds.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 6 * time.Second
	return backoff.WithMaxRetries(b, 2)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations []any `json:"citations"`
}

// Search returns no findings and no error when no API key is configured.
func (p *Perplexity) Search(ctx context.Context, query string) ([]models.WebFinding, error) {
	key := strings.TrimSpace(p.cfg.APIKey)
	if key == "" {
		return nil, nil
	}
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: researcherPrompt},
			{Role: "user", Content: query},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"

	var resp chatResponse
	attempt := 0
	op := func() error {
		attempt++
		err := p.post(ctx, endpoint, key, body, &resp)
		if err != nil {
			p.logger.Warn("Web search attempt failed.", "attempt", attempt, "error", err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(p.retry(), ctx)); err != nil {
		return nil, fmt.Errorf("web search failed after %d attempt(s): %w", attempt, err)
	}
	return p.findings(resp), nil
}

func (p *Perplexity) post(ctx context.Context, endpoint, key string, body []byte, out *chatResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		statusErr := fmt.Errorf("perplexity returned %d: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return backoff.Permanent(fmt.Errorf("%w: %v", models.ErrAuth, statusErr))
		}
		return statusErr
	}
	*out = chatResponse{}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode search response: %w", err)
	}
	return nil
}

func (p *Perplexity) findings(resp chatResponse) []models.WebFinding {
	var out []models.WebFinding
	if len(resp.Choices) > 0 {
		if text := strings.TrimSpace(resp.Choices[0].Message.Content); text != "" {
			out = append(out, models.WebFinding{Title: "Web summary", Snippet: truncate(text, 5000)})
		}
	}
	n := 0
	for _, c := range resp.Citations {
		if n >= p.cfg.MaxResults {
			break
		}
		n++
		s, ok := c.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, models.WebFinding{Title: "Source", URL: strings.TrimSpace(s)})
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
