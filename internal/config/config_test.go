package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/masteryforge/internal/llm"
	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
	"github.com/abhisek/masteryforge/internal/store"
)

// clearKeys keeps provider discovery from picking up the developer's keys.
func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearKeys(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "curriculum.yaml", cfg.CurriculumPath)
	assert.Equal(t, store.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, mastery.DefaultParams(), cfg.Engine)
	assert.Equal(t, llm.DefaultConfig(), cfg.LLM)
	assert.Equal(t, 120, cfg.Hints.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Hints.Timeout)
	assert.True(t, cfg.Hints.StaticFallback)
	assert.Equal(t, session.DefaultTimeout, cfg.Session.Timeout)
}

func TestLoad_File(t *testing.T) {
	clearKeys(t)
	path := writeFile(t, "masteryforge.yaml", `
env: production
curriculum_path: /srv/curriculum.yaml
store:
  driver: sqlite
  sqlite_path: /var/lib/masteryforge.db
engine:
  mastery_threshold: 0.85
llm:
  provider: openai
  timeout: 5s
  openai:
    api_key: sk-file
    model: gpt-4.1-mini
hints:
  max_tokens: 80
  static_fallback: false
session:
  timeout: 45m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/srv/curriculum.yaml", cfg.CurriculumPath)
	assert.Equal(t, store.Config{Driver: "sqlite", SQLitePath: "/var/lib/masteryforge.db"}, cfg.Store)
	assert.InDelta(t, 0.85, cfg.Engine.MasteryThreshold, 1e-12)
	assert.InDelta(t, 0.3, cfg.Engine.CorrectRate, 1e-12, "unset keys keep defaults")
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "sk-file", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.OpenAI.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 80, cfg.Hints.MaxTokens)
	assert.False(t, cfg.Hints.StaticFallback)
	assert.Equal(t, 45*time.Minute, cfg.Session.Timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearKeys(t)
	path := writeFile(t, "masteryforge.yaml", "store:\n  driver: sqlite\n")
	t.Setenv("MASTERYFORGE_STORE_DRIVER", "redis")
	t.Setenv("MASTERYFORGE_STORE_REDIS_ADDR", "localhost:6379")
	t.Setenv("MASTERYFORGE_ENGINE_FRUSTRATION_THRESHOLD", "0.9")
	t.Setenv("MASTERYFORGE_LLM_RETRY_INITIAL_WAIT", "250ms")
	t.Setenv("MASTERYFORGE_SESSION_TIMEOUT", "2h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.InDelta(t, 0.9, cfg.Engine.FrustrationThreshold, 1e-12)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.Retry.InitialWait)
	assert.Equal(t, 2*time.Hour, cfg.Session.Timeout)
}

func TestLoad_DiscoversProviderKey(t *testing.T) {
	clearKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.Anthropic.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	clearKeys(t)

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid engine params", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "engine:\n  correct_rate: 0\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "correct_rate")
	})

	t.Run("non-positive session timeout", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "session:\n  timeout: 0s\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session")
	})

	t.Run("provider without key", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "llm:\n  provider: gemini\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")), "missing file is fine")

	t.Setenv("MASTERYFORGE_DOTENV_SET", "from-env")
	os.Unsetenv("MASTERYFORGE_DOTENV_NEW")
	t.Cleanup(func() { os.Unsetenv("MASTERYFORGE_DOTENV_NEW") })

	path := writeFile(t, ".env", "MASTERYFORGE_DOTENV_NEW=from-file\nMASTERYFORGE_DOTENV_SET=from-file\n")
	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("MASTERYFORGE_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("MASTERYFORGE_DOTENV_SET"))
}
