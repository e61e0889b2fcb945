package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/adapters/llm"
	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestOpenAI_Generate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Please book a service. [SHOW_BOOKING_UI] "}}]
		}`))
	}))
	defer srv.Close()

	gen := llm.NewOpenAI("sk-test", "", llm.WithBaseURL(srv.URL+"/"), llm.WithMaxRetries(0))
	out, err := gen.Generate(context.Background(), "battery is hot")
	require.NoError(t, err)

	assert.Equal(t, "Please book a service. [SHOW_BOOKING_UI]", out)
	assert.Equal(t, llm.DefaultOpenAIModel, gotBody["model"])
}

func TestOpenAI_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gen := llm.NewOpenAI("sk-test", "gpt-4o", llm.WithBaseURL(srv.URL+"/"), llm.WithMaxRetries(0))
	_, err := gen.Generate(context.Background(), "hi")
	assert.Error(t, err)
}

func TestAnthropic_Generate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Your battery "}, {"type": "text", "text": "needs attention."}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 3, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	gen := llm.NewAnthropic("sk-ant", "", llm.WithBaseURL(srv.URL+"/"), llm.WithMaxRetries(0), llm.WithMaxTokens(64))
	out, err := gen.Generate(context.Background(), "battery is hot")
	require.NoError(t, err)

	assert.Equal(t, "Your battery needs attention.", out)
	assert.Equal(t, llm.DefaultAnthropicModel, gotBody["model"])
	assert.EqualValues(t, 64, gotBody["max_tokens"])
}

func TestOffline(t *testing.T) {
	_, err := llm.Offline{}.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, domain.ErrGeneratorUnavailable)
}

type countingGenerator struct{ calls atomic.Int32 }

func (c *countingGenerator) Generate(context.Context, string) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestRateLimited(t *testing.T) {
	next := &countingGenerator{}
	gen := llm.NewRateLimited(next, rate.Every(time.Hour), 1)

	out, err := gen.Generate(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = gen.Generate(ctx, "second")
	assert.Error(t, err, "second call should not get a token before the deadline")
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		want    any
		wantErr bool
	}{
		{name: "None", cfg: config.LLMConfig{Provider: "none"}, want: llm.Offline{}},
		{name: "OpenAI", cfg: config.LLMConfig{Provider: "openai", APIKey: "k"}, want: &llm.OpenAI{}},
		{name: "Anthropic Limited", cfg: config.LLMConfig{Provider: "Anthropic", APIKey: "k", RPS: 1}, want: &llm.RateLimited{}},
		{name: "Unknown", cfg: config.LLMConfig{Provider: "gemini"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := llm.New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, gen)
		})
	}
}
