// Package llm provides TextGenerator adapters: OpenAI, Anthropic, an offline
// stand-in and a rate-limiting wrapper.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"golang.org/x/time/rate"
)

const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"

	defaultMaxTokens = 256
)

// New builds the generator selected by cfg.Provider, rate limited when
// cfg.RPS > 0. Provider "none" yields Offline.
func New(cfg config.LLMConfig) (ports.TextGenerator, error) {
	var gen ports.TextGenerator
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return Offline{}, nil
	case "openai":
		gen = NewOpenAI(cfg.APIKey, cfg.Model, WithBaseURL(cfg.BaseURL), WithTimeout(cfg.Timeout))
	case "anthropic":
		gen = NewAnthropic(cfg.APIKey, cfg.Model, WithBaseURL(cfg.BaseURL), WithTimeout(cfg.Timeout))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	if cfg.RPS > 0 {
		gen = NewRateLimited(gen, rate.Limit(cfg.RPS), cfg.Burst)
	}
	return gen, nil
}

// Option configures a provider client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	maxTokens  int64
	maxRetries int
}

func defaultClientOptions() clientOptions {
	return clientOptions{maxTokens: defaultMaxTokens, maxRetries: 2}
}

// WithBaseURL overrides the API endpoint. Empty keeps the SDK default.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithTimeout bounds each request. Zero keeps the SDK default.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int64) Option {
	return func(o *clientOptions) { o.maxTokens = n }
}

// WithMaxRetries sets the SDK retry count.
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) { o.maxRetries = n }
}

// Offline is a generator that is never available. Engagement nodes fall
// back to their templated alert when it is used.
type Offline struct{}

func (Offline) Generate(context.Context, string) (string, error) {
	return "", domain.ErrGeneratorUnavailable
}

// RateLimited throttles calls to the wrapped generator.
type RateLimited struct {
	next    ports.TextGenerator
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
func NewRateLimited(next ports.TextGenerator, rps rate.Limit, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rps, burst)}
}

// Generate waits for a token, then delegates. Waiting honors ctx.
func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Generate(ctx, prompt)
}
