// Package config loads masteryforge settings from an optional YAML file,
// a local .env file and MASTERYFORGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/masteryforge/internal/hints"
	"github.com/abhisek/masteryforge/internal/llm"
	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
	"github.com/abhisek/masteryforge/internal/store"
)

// EnvPrefix is prepended to every environment override, e.g.
// MASTERYFORGE_STORE_DRIVER for store.driver.
const EnvPrefix = "MASTERYFORGE"

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env            string `mapstructure:"env"`             // local, development or production
	CurriculumPath string `mapstructure:"curriculum_path"` // YAML concept list

	Store   store.Config   `mapstructure:"store"`
	Engine  mastery.Params `mapstructure:"engine"`
	LLM     llm.Config     `mapstructure:"llm"`
	Hints   Hints          `mapstructure:"hints"`
	Session Session        `mapstructure:"session"`
}

// Session configures learning sessions.
type Session struct {
	// Timeout closes an open session this long after it started.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Hints configures hint generation.
type Hints struct {
	hints.LLMConfig `mapstructure:",squash"`

	// StaticFallback answers with rule-based hints when the LLM fails.
	StaticFallback bool `mapstructure:"static_fallback"`
}

// IsProduction reports whether Env selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks settings that cannot be checked while decoding.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session: timeout must be positive, got %s", c.Session.Timeout)
	}
	return nil
}

// Load reads configuration. configFile, when set, must exist; otherwise
// masteryforge.yaml is looked up in ./config and the working directory
// and may be absent. Variables from .env are loaded first and never
// override the real environment.
func Load(configFile string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("masteryforge")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error loading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.LLM = cfg.LLM.Discover()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the environment. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("curriculum_path", "curriculum.yaml")

	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	p := mastery.DefaultParams()
	v.SetDefault("engine.mastery_threshold", p.MasteryThreshold)
	v.SetDefault("engine.frustration_threshold", p.FrustrationThreshold)
	v.SetDefault("engine.correct_rate", p.CorrectRate)
	v.SetDefault("engine.incorrect_rate", p.IncorrectRate)
	v.SetDefault("engine.frustration_rise_rate", p.FrustrationRiseRate)
	v.SetDefault("engine.frustration_decay_rate", p.FrustrationDecayRate)
	v.SetDefault("engine.confidence_rate", p.ConfidenceRate)

	l := llm.DefaultConfig()
	v.SetDefault("llm.provider", l.Provider)
	v.SetDefault("llm.timeout", l.Timeout)
	for name, pc := range map[string]llm.ProviderConfig{
		llm.ProviderAnthropic: l.Anthropic,
		llm.ProviderOpenAI:    l.OpenAI,
		llm.ProviderGemini:    l.Gemini,
	} {
		v.SetDefault("llm."+name+".api_key", pc.APIKey)
		v.SetDefault("llm."+name+".model", pc.Model)
		v.SetDefault("llm."+name+".base_url", pc.BaseURL)
	}
	v.SetDefault("llm.retry.max_attempts", l.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", l.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", l.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", l.Retry.Multiplier)

	h := hints.DefaultLLMConfig()
	v.SetDefault("hints.max_tokens", h.MaxTokens)
	v.SetDefault("hints.temperature", h.Temperature)
	v.SetDefault("hints.timeout", h.Timeout)
	v.SetDefault("hints.static_fallback", true)

	v.SetDefault("session.timeout", session.DefaultTimeout)
}
