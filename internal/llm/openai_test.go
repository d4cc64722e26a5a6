package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openAITestProvider points a real OpenAIProvider at a local server
// through BaseURL.
func openAITestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	return p
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var got struct {
		Messages       []map[string]any `json:"messages"`
		ResponseFormat map[string]any   `json:"response_format"`
	}
	p := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-test", "object": "chat.completion", "created": 1,
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"hint":"Line up the decimal points."}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
		})
	})

	resp, err := p.Generate(context.Background(), Request{
		System:    "You are a patient tutor.",
		Messages:  UserMessage("Hint for adding decimals?"),
		Schema:    hintTestSchema(),
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hint":"Line up the decimal points."}`, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 40, OutputTokens: 25, TotalTokens: 65}, resp.Usage)
	assert.Equal(t, "end", resp.StopReason)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0]["role"])
	assert.Equal(t, "user", got.Messages[1]["role"])
	assert.Equal(t, "json_schema", got.ResponseFormat["type"])
}

func TestOpenAIProvider_ErrorMapping(t *testing.T) {
	fail := func(status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "error", "message": "failed"},
			})
		}
	}

	_, err := openAITestProvider(t, fail(http.StatusTooManyRequests)).
		Generate(context.Background(), Request{Messages: UserMessage("x")})
	var rl *ErrRateLimit
	assert.ErrorAs(t, err, &rl)

	_, err = openAITestProvider(t, fail(http.StatusBadGateway)).
		Generate(context.Background(), Request{Messages: UserMessage("x")})
	var unavail *ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavail)
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	p := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "model": "gpt-4o-mini", "choices": []any{}})
	})

	_, err := p.Generate(context.Background(), Request{Messages: UserMessage("x")})
	var inv *ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(ProviderConfig{Model: "gpt-4o"})
	assert.Error(t, err)
}
