package hints

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/masteryforge/internal/llm"
)

// LLMConfig tunes LLM hint generation.
type LLMConfig struct {
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`

	// Timeout bounds one GenerateHint call. Zero means no extra bound.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultLLMConfig keeps hints to a sentence or two.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{MaxTokens: 120, Temperature: 0.2, Timeout: 30 * time.Second}
}

// LLM asks an llm.Provider for a schema-validated hint. When the call
// fails and a fallback is set, the fallback answers instead.
type LLM struct {
	provider llm.Provider
	fallback Provider
	cfg      LLMConfig
	log      *zap.Logger
}

// Option configures an LLM hint provider.
type Option func(*LLM)

// WithFallback answers with p when the LLM call fails.
func WithFallback(p Provider) Option {
	return func(h *LLM) { h.fallback = p }
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(log *zap.Logger) Option {
	return func(h *LLM) { h.log = log }
}

// NewLLM returns a hint provider that sends each request to provider with
// the token, temperature and timeout limits of cfg.
func NewLLM(provider llm.Provider, cfg LLMConfig, opts ...Option) *LLM {
	h := &LLM{provider: provider, cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type hintOutput struct {
	Hint string `json:"hint"`
}

// GenerateHint asks the model for a hint on conceptID, falling back when
// configured to.
func (h *LLM) GenerateHint(ctx context.Context, conceptID string, lc LearnerContext) (string, error) {
	hint, err := h.generate(ctx, conceptID, lc)
	if err == nil {
		return hint, nil
	}
	if h.fallback == nil {
		return "", err
	}
	h.log.Warn("llm hint failed, using fallback",
		zap.String("concept_id", conceptID),
		zap.String("learner_id", lc.LearnerID),
		zap.Error(err),
	)
	return h.fallback.GenerateHint(ctx, conceptID, lc)
}

func (h *LLM) generate(ctx context.Context, conceptID string, lc LearnerContext) (string, error) {
	if h.provider == nil {
		return "", ErrUnavailable
	}
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, "hint")

	resp, err := h.provider.Generate(ctx, llm.Request{
		System:      hintSystemPrompt,
		Messages:    llm.UserMessage(buildHintUserMessage(conceptID, lc)),
		Schema:      HintSchema,
		MaxTokens:   h.cfg.MaxTokens,
		Temperature: h.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate hint for %s: %w", conceptID, err)
	}

	var out hintOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("decode hint: %w", err)
	}
	hint := strings.TrimSpace(out.Hint)
	if hint == "" {
		return "", fmt.Errorf("generate hint for %s: %w", conceptID, ErrUnavailable)
	}
	return hint, nil
}
