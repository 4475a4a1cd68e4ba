package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/logging"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

type fakeModel struct {
	reply    string
	err      error
	opts     llms.CallOptions
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return f.reply, f.err
}

func factory(byName map[string]*fakeModel, opened *[]string) ModelFactory {
	return func(name string) (llms.Model, error) {
		*opened = append(*opened, name)
		m, ok := byName[name]
		if !ok {
			return nil, errors.New("unknown model " + name)
		}
		return m, nil
	}
}

func TestFallbackGeneratorUsesFirstWorkingModel(t *testing.T) {
	var opened []string
	primary := &fakeModel{err: errors.New("529 overloaded")}
	second := &fakeModel{reply: "  === OUTPUT 1 ===\nINR 100  "}
	g := NewFallbackGenerator([]string{"a", "b", "c"}, factory(map[string]*fakeModel{"a": primary, "b": second}, &opened), 2700, 0.2, logging.Discard())

	out, err := g.Generate(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "=== OUTPUT 1 ===\nINR 100", out)
	assert.Equal(t, []string{"a", "b"}, opened)

	assert.Equal(t, 2700, second.opts.MaxTokens)
	assert.Equal(t, 0.2, second.opts.Temperature)
	require.Len(t, second.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, second.messages[0].Role)
	assert.Equal(t, llms.TextContent{Text: "user"}, second.messages[1].Parts[0])
}

func TestFallbackGeneratorExhausted(t *testing.T) {
	var opened []string
	g := NewFallbackGenerator([]string{"a", "b"}, factory(map[string]*fakeModel{
		"a": {reply: "I am unable to help with pricing."},
		"b": {reply: "   "},
	}, &opened), 100, 0, logging.Discard())

	_, err := g.Generate(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProviderExhausted)
	assert.Contains(t, err.Error(), "empty content")
	assert.Equal(t, []string{"a", "b"}, opened)

	_, err = NewFallbackGenerator(nil, nil, 1, 0, nil).Generate(context.Background(), "s", "u")
	assert.ErrorIs(t, err, models.ErrProviderExhausted)
}

func TestFallbackGeneratorStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var opened []string
	g := NewFallbackGenerator([]string{"a"}, factory(map[string]*fakeModel{"a": {reply: "x"}}, &opened), 1, 0, logging.Discard())

	_, err := g.Generate(ctx, "s", "u")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, opened)
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	_, err := NewAnthropic(config.Anthropic{Model: "m"}, nil)
	assert.ErrorIs(t, err, models.ErrAuth)

	_, err = NewAnthropicVision(config.Anthropic{})
	assert.ErrorIs(t, err, models.ErrAuth)
}

func TestIsRefusal(t *testing.T) {
	assert.True(t, IsRefusal("As a large language model, I ..."))
	assert.True(t, IsRefusal("Sorry, I cannot provide that."))
	assert.False(t, IsRefusal("OUTPUT 1: INR 120 per piece"))
}

func TestVisionSendsImageAndInstruction(t *testing.T) {
	m := &fakeModel{reply: " - Hole dia 8mm \n"}
	v := NewVision(m, 1200)

	out, err := v.Describe(context.Background(), []byte{1, 2, 3}, "image/png", "list specs")
	require.NoError(t, err)
	assert.Equal(t, "- Hole dia 8mm", out)
	assert.Equal(t, 1200, m.opts.MaxTokens)

	require.Len(t, m.messages, 1)
	parts := m.messages[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, llms.BinaryContent{MIMEType: "image/png", Data: []byte{1, 2, 3}}, parts[0])
	assert.Equal(t, llms.TextContent{Text: "list specs"}, parts[1])

	m.err = errors.New("bad request")
	_, err = v.Describe(context.Background(), nil, "image/png", "x")
	assert.Error(t, err)
}
