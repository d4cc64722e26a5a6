package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"hint":"a"}`),
		Usage:   Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	})
	mock.Fail(&ErrRateLimit{})

	resp, err := mock.Generate(ctx, Request{System: "sys", Messages: UserMessage("first")})
	require.NoError(t, err)
	assert.Equal(t, `{"hint":"a"}`, string(resp.Content))
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, "end", resp.StopReason)

	_, err = mock.Generate(ctx, Request{})
	var rl *ErrRateLimit
	assert.ErrorAs(t, err, &rl)

	_, err = mock.Generate(ctx, Request{})
	var unavail *ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavail, "empty queue")

	calls := mock.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "sys", calls[0].System)
	assert.Equal(t, ProviderMock, mock.ModelID())
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", PurposeFrom(ctx))
	assert.Equal(t, "hint", PurposeFrom(WithPurpose(ctx, "hint")))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"none", Config{Provider: ProviderNone}, false},
		{"mock", Config{Provider: ProviderMock}, false},
		{"anthropic without key", Config{Provider: ProviderAnthropic}, true},
		{"anthropic with key", Config{Provider: ProviderAnthropic, Anthropic: ProviderConfig{APIKey: "k"}}, false},
		{"openai without key", Config{Provider: ProviderOpenAI}, true},
		{"gemini with key", Config{Provider: ProviderGemini, Gemini: ProviderConfig{APIKey: "k"}}, false},
		{"unknown", Config{Provider: "llama"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Discover(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-open")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg := DefaultConfig().Discover()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-open", cfg.OpenAI.APIKey)

	explicit := DefaultConfig()
	explicit.Provider = ProviderAnthropic
	explicit.Anthropic.APIKey = "mine"
	assert.Equal(t, explicit, explicit.Discover())
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	_, err := NewProvider(ctx, DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewProvider(ctx, Config{Provider: ProviderOpenAI}, nil)
	assert.Error(t, err)

	p, err := NewProvider(ctx, Config{Provider: ProviderMock, Retry: fastRetry()}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, p.Name())
}

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"hint":"a"}`),
		Usage:   Usage{InputTokens: 7, OutputTokens: 3},
	})
	mock.Fail(errors.New("boom"))
	p := WithLogging(mock, zap.New(core))

	ctx := WithPurpose(context.Background(), "hint")
	_, err := p.Generate(ctx, Request{Schema: hintTestSchema()})
	require.NoError(t, err)
	_, err = p.Generate(ctx, Request{})
	require.Error(t, err)

	ok := logs.FilterMessage("llm request").All()
	require.Len(t, ok, 1)
	fields := ok[0].ContextMap()
	assert.Equal(t, "hint", fields["purpose"])
	assert.Equal(t, "test-hint", fields["schema"])
	assert.Equal(t, int64(7), fields["input_tokens"])
	assert.NotEmpty(t, fields["request_id"])

	assert.Equal(t, 1, logs.FilterMessage("llm exchange").Len())

	failed := logs.FilterMessage("llm request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "boom", failed[0].ContextMap()["error"])
}
