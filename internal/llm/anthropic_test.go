package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	return &AnthropicProvider{client: &client, model: "claude-haiku-4-5-20251001"}
}

func anthropicError(status int, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": kind, "message": kind},
		})
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	var body map[string]any
	p := anthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_test",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"hint":"Find a common denominator first."}`},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 12},
		})
	})

	resp, err := p.Generate(context.Background(), Request{
		System:    "You are a patient tutor.",
		Messages:  UserMessage("Give me a hint about adding fractions."),
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hint":"Find a common denominator first."}`, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 50, OutputTokens: 12, TotalTokens: 62}, resp.Usage)
	assert.Equal(t, "end", resp.StopReason)
	assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
}

func TestAnthropicProvider_MaxTokensStopReason(t *testing.T) {
	p := anthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_test", "type": "message", "role": "assistant",
			"content":     []map[string]any{{"type": "text", "text": `{"hint":"Find a`}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "max_tokens",
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 5},
		})
	})

	resp, err := p.Generate(context.Background(), Request{Messages: UserMessage("x"), MaxTokens: 5})
	require.NoError(t, err)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestAnthropicProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"rate limit", http.StatusTooManyRequests, func(t *testing.T, err error) {
			var rl *ErrRateLimit
			assert.ErrorAs(t, err, &rl)
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var unavail *ErrProviderUnavailable
			assert.ErrorAs(t, err, &unavail)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := anthropicTestProvider(t, anthropicError(tt.status, "api_error"))
			_, err := p.Generate(context.Background(), Request{Messages: UserMessage("x"), MaxTokens: 10})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNewAnthropicProvider(t *testing.T) {
	_, err := NewAnthropicProvider(ProviderConfig{})
	assert.Error(t, err)

	p, err := NewAnthropicProvider(ProviderConfig{APIKey: "k", Model: "claude-sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", p.ModelID())
	assert.Equal(t, ProviderAnthropic, p.Name())
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		aliases map[string]string
		in      string
		want    string
	}{
		{anthropicModels, "claude-haiku", "claude-haiku-4-5-20251001"},
		{anthropicModels, "claude-opus-custom", "claude-opus-custom"},
		{geminiModels, "gemini-flash", "gemini-2.0-flash"},
		{geminiModels, "gemini-2.0-flash", "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveModel(tt.in, tt.aliases), tt.in)
	}
}
