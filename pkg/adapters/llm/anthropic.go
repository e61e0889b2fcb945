package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic generates replies with the messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic generator. An empty model selects DefaultAnthropicModel.
func NewAnthropic(apiKey, model string, opts ...Option) *Anthropic {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if model == "" {
		model = DefaultAnthropicModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.timeout))
	}

	return &Anthropic{
		client:    anthropic.NewClient(reqOpts...),
		model:     anthropic.Model(model),
		maxTokens: o.maxTokens,
	}
}

func (g *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	var sb strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic message: no text content")
	}
	return strings.TrimSpace(sb.String()), nil
}
