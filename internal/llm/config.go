package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config selects and configures the LLM provider.
type Config struct {
	// Provider is one of the Provider* constants. Empty or "none"
	// disables LLM features.
	Provider string `mapstructure:"provider"`

	Anthropic ProviderConfig `mapstructure:"anthropic"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
	Retry     RetryConfig    `mapstructure:"retry"`

	// Timeout bounds one Generate call including retries.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProviderConfig holds the credentials and model of one provider.
type ProviderConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`

	// BaseURL overrides the API endpoint (OpenAI-compatible gateways,
	// test servers).
	BaseURL string `mapstructure:"base_url"`
}

// RetryConfig controls exponential backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// DefaultConfig has LLM features disabled and default models filled in.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderNone,
		Anthropic: ProviderConfig{Model: "claude-haiku"},
		OpenAI:    ProviderConfig{Model: "gpt-4o-mini"},
		Gemini:    ProviderConfig{Model: "gemini-flash"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// Enabled reports whether a provider is selected.
func (c Config) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// Discover fills in the provider from the vendors' standard API key
// variables (GEMINI_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY, in that
// order) when none is configured. It returns c unchanged otherwise.
func (c Config) Discover() Config {
	if c.Enabled() {
		return c
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		c.Provider, c.Gemini.APIKey = ProviderGemini, k
		return c
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		c.Provider, c.OpenAI.APIKey = ProviderOpenAI, k
		return c
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		c.Provider, c.Anthropic.APIKey = ProviderAnthropic, k
	}
	return c
}

// Validate checks that the selected provider has an API key.
func (c Config) Validate() error {
	var pc ProviderConfig
	switch c.Provider {
	case "", ProviderNone, ProviderMock:
		return nil
	case ProviderAnthropic:
		pc = c.Anthropic
	case ProviderOpenAI:
		pc = c.OpenAI
	case ProviderGemini:
		pc = c.Gemini
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if pc.APIKey == "" {
		return fmt.Errorf("llm.%s.api_key is required for the %s provider", c.Provider, c.Provider)
	}
	return nil
}
