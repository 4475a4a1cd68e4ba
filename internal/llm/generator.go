// Package llm wraps the text-generation and vision models behind the small
// interfaces the pipeline needs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Generator produces text from a system and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// ModelFactory opens a chat model by name.
type ModelFactory func(name string) (llms.Model, error)

// FallbackGenerator tries each model in order and returns the first usable
// answer.
type FallbackGenerator struct {
	models      []string
	open        ModelFactory
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewFallbackGenerator builds a generator over the given model names.
func NewFallbackGenerator(names []string, open ModelFactory, maxTokens int, temperature float64, logger *slog.Logger) *FallbackGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackGenerator{models: names, open: open, maxTokens: maxTokens, temperature: temperature, logger: logger}
}

// AnthropicFactory opens Anthropic chat models with one API key.
func AnthropicFactory(apiKey string) ModelFactory {
	return func(name string) (llms.Model, error) {
		m, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(name))
		if err != nil {
			return nil, fmt.Errorf("create anthropic model %s: %w", name, err)
		}
		return m, nil
	}
}

// NewAnthropic builds the production generator from settings.
func NewAnthropic(cfg config.Anthropic, logger *slog.Logger) (*FallbackGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", models.ErrAuth)
	}
	return NewFallbackGenerator(cfg.Models(), AnthropicFactory(cfg.APIKey), cfg.MaxTokens, cfg.Temperature, logger), nil
}

func (g *FallbackGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	if len(g.models) == 0 {
		return "", fmt.Errorf("%w: no models configured", models.ErrProviderExhausted)
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	var lastErr error
	for _, name := range g.models {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := g.try(ctx, name, messages)
		if err == nil {
			return text, nil
		}
		g.logger.Warn("Model failed, trying next.", "model", name, "error", err)
		lastErr = err
	}
	return "", fmt.Errorf("%w: %d model(s) tried, last error: %v", models.ErrProviderExhausted, len(g.models), lastErr)
}

func (g *FallbackGenerator) try(ctx context.Context, name string, messages []llms.MessageContent) (string, error) {
	model, err := g.open(name)
	if err != nil {
		return "", err
	}
	resp, err := model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(g.maxTokens),
		llms.WithTemperature(g.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", name)
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("%s returned empty content", name)
	}
	if IsRefusal(text) {
		return "", fmt.Errorf("%s: %w", name, ErrRefusal)
	}
	return text, nil
}

// ErrRefusal marks an answer in which the model declined the task.
var ErrRefusal = errors.New("model response indicates refusal")

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// IsRefusal reports whether text opens with a refusal. Only the first 400
// characters are checked so that quoted phrases in long answers do not count.
func IsRefusal(text string) bool {
	head := strings.ToLower(text)
	if len(head) > 400 {
		head = head[:400]
	}
	for _, phrase := range refusalPhrases {
		if strings.Contains(head, phrase) {
			return true
		}
	}
	return false
}
