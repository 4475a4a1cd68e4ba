package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/llm"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// VertexClient generates text and image descriptions with a Gemini model.
type VertexClient struct {
	baseClient  *genai.Client
	modelName   string
	maxTokens   int32
	temperature float32
}

// NewVertexClient creates a client bound to one Gemini model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string, maxTokens int, temperature float64) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{
		baseClient:  baseClient,
		modelName:   modelName,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
	}, nil
}

func (c *VertexClient) model(system string, temperature float32) *genai.GenerativeModel {
	m := c.baseClient.GenerativeModel(c.modelName)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: genai.Ptr(c.maxTokens),
	}
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return m
}

// Generate implements llm.Generator.
func (c *VertexClient) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := c.model(system, c.temperature).GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate content from gemini: %v", models.ErrProviderExhausted, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", models.ErrProviderExhausted)
	}
	if llm.IsRefusal(text) {
		slog.Warn("Gemini response indicates refusal.", "model", c.modelName)
		return "", fmt.Errorf("%w: %w", models.ErrProviderExhausted, llm.ErrRefusal)
	}
	return text, nil
}

// Describe implements extract.Describer.
func (c *VertexClient) Describe(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	blob := genai.Blob{MIMEType: mimeType, Data: image}
	resp, err := c.model("", 0).GenerateContent(ctx, blob, genai.Text(instruction))
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}
	return responseText(resp), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimPrefix(out, "```markdown")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
