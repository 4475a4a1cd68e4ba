package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Vision describes images with a multimodal chat model.
type Vision struct {
	model     llms.Model
	maxTokens int
}

func NewVision(model llms.Model, maxTokens int) *Vision {
	return &Vision{model: model, maxTokens: maxTokens}
}

// NewAnthropicVision uses the primary Anthropic model for image questions.
func NewAnthropicVision(cfg config.Anthropic) (*Vision, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", models.ErrAuth)
	}
	names := cfg.Models()
	if len(names) == 0 {
		return nil, fmt.Errorf("no anthropic model configured")
	}
	m, err := AnthropicFactory(cfg.APIKey)(names[0])
	if err != nil {
		return nil, err
	}
	return NewVision(m, cfg.VisionMaxTokens), nil
}

func (v *Vision) Describe(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	messages := []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart(mimeType, image),
			llms.TextPart(instruction),
		},
	}}
	resp, err := v.model.GenerateContent(ctx, messages, llms.WithMaxTokens(v.maxTokens), llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision request returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
