package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrDisabled is returned by NewProvider when no provider is configured.
var ErrDisabled = errors.New("llm provider disabled")

// NewProvider builds the configured provider wrapped as
// retry → logging → validation → vendor SDK.
func NewProvider(ctx context.Context, cfg Config, log *zap.Logger) (Provider, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderMock:
		base = NewMockProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithRetry(WithLogging(WithValidation(base), log), cfg.Retry), nil
}
