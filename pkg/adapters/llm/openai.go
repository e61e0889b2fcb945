package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates replies with the chat completions API.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI creates an OpenAI generator. An empty model selects DefaultOpenAIModel.
func NewOpenAI(apiKey, model string, opts ...Option) *OpenAI {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if model == "" {
		model = DefaultOpenAIModel
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

	return &OpenAI{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		maxTokens: o.maxTokens,
	}
}

func (g *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(g.model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxCompletionTokens: openai.Int(g.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
