package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DongHyun925/MediGraph/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	s := config.Defaults()

	assert.Equal(t, "openai", s.LLM.Provider)
	assert.Equal(t, "gpt-4o", s.LLM.Model)
	assert.Zero(t, s.LLM.Temperature)
	assert.Equal(t, 100, s.Cache.Capacity)
	assert.Equal(t, time.Hour, s.Cache.TTL)
	assert.Equal(t, 5, s.Search.MaxResults)
	assert.Nil(t, s.Search.ExcludeDomains)
	assert.Equal(t, 60*time.Second, s.Engine.StageTimeout)
	assert.Zero(t, s.Engine.MaxIterations)
	assert.Equal(t, "memory", s.Checkpoint.Backend)
	assert.Equal(t, "unverified", s.VerificationPolicy)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "text", s.Log.Format)
	assert.False(t, s.Metrics)
	assert.False(t, s.Tracing)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
llm:
  provider: claude_cli
  model: sonnet
  temperature: 0.2
  max_attempts: 5
search:
  max_results: 3
  exclude_domains: [example.com]
cache:
  capacity: 10
  ttl: 120
engine:
  stage_timeout: 15s
  max_iterations: 50
checkpoint:
  backend: sqlite
  dsn: /tmp/medigraph.db
verification_policy: assume_valid
log:
  level: debug
  format: json
metrics: true
tracing: true
`))
	require.NoError(t, err)

	s := config.FromConfig(cfg)

	assert.Equal(t, "claude_cli", s.LLM.Provider)
	assert.Equal(t, "sonnet", s.LLM.Model)
	assert.InDelta(t, 0.2, s.LLM.Temperature, 1e-9)
	assert.Equal(t, 5, s.LLM.MaxAttempts)
	assert.Equal(t, "https://api.openai.com/v1", s.LLM.BaseURL, "unset keys keep defaults")
	assert.Equal(t, 3, s.Search.MaxResults)
	assert.Equal(t, []string{"example.com"}, s.Search.ExcludeDomains)
	assert.Equal(t, 10, s.Cache.Capacity)
	assert.Equal(t, 2*time.Minute, s.Cache.TTL)
	assert.Equal(t, 15*time.Second, s.Engine.StageTimeout)
	assert.Equal(t, 50, s.Engine.MaxIterations)
	assert.Equal(t, "sqlite", s.Checkpoint.Backend)
	assert.Equal(t, "/tmp/medigraph.db", s.Checkpoint.DSN)
	assert.Equal(t, "assume_valid", s.VerificationPolicy)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)
	assert.True(t, s.Metrics)
	assert.True(t, s.Tracing)
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		s := config.Defaults()
		err := s.ApplyEnv(envMap(map[string]string{
			config.EnvOpenAIKey:          "sk-test",
			config.EnvTavilyKey:          "tvly-test",
			config.EnvModel:              "gpt-4o-mini",
			config.EnvCheckpointBackend:  "postgres",
			config.EnvCheckpointDSN:      "postgres://localhost/medigraph",
			config.EnvVerificationPolicy: "assume_valid",
			config.EnvStageTimeout:       "5s",
			config.EnvCacheCapacity:      "7",
			config.EnvCacheTTL:           "600",
			config.EnvLogLevel:           "warn",
		}))
		require.NoError(t, err)

		assert.Equal(t, "sk-test", s.LLM.APIKey)
		assert.Equal(t, "tvly-test", s.Search.APIKey)
		assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
		assert.Equal(t, "postgres", s.Checkpoint.Backend)
		assert.Equal(t, "postgres://localhost/medigraph", s.Checkpoint.DSN)
		assert.Equal(t, "assume_valid", s.VerificationPolicy)
		assert.Equal(t, 5*time.Second, s.Engine.StageTimeout)
		assert.Equal(t, 7, s.Cache.Capacity)
		assert.Equal(t, 10*time.Minute, s.Cache.TTL)
		assert.Equal(t, "warn", s.Log.Level)
	})

	t.Run("empty values ignored", func(t *testing.T) {
		s := config.Defaults()
		require.NoError(t, s.ApplyEnv(envMap(map[string]string{config.EnvModel: ""})))
		assert.Equal(t, "gpt-4o", s.LLM.Model)
	})

	t.Run("bad numbers reported together", func(t *testing.T) {
		s := config.Defaults()
		err := s.ApplyEnv(envMap(map[string]string{
			config.EnvStageTimeout:  "later",
			config.EnvCacheCapacity: "many",
			config.EnvCacheTTL:      "forever",
		}))
		require.Error(t, err)
		assert.ErrorContains(t, err, config.EnvStageTimeout)
		assert.ErrorContains(t, err, config.EnvCacheCapacity)
		assert.ErrorContains(t, err, config.EnvCacheTTL)
		assert.Equal(t, 100, s.Cache.Capacity)
	})
}

func TestValidate(t *testing.T) {
	valid := func() config.Settings {
		s := config.Defaults()
		s.LLM.APIKey = "sk"
		s.Search.APIKey = "tvly"
		return s
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Settings)
		want   string
	}{
		{"unknown provider", func(s *config.Settings) { s.LLM.Provider = "gemini" }, "llm.provider"},
		{"missing openai key", func(s *config.Settings) { s.LLM.APIKey = "" }, config.EnvOpenAIKey},
		{"missing search key", func(s *config.Settings) { s.Search.APIKey = "" }, config.EnvTavilyKey},
		{"unknown policy", func(s *config.Settings) { s.VerificationPolicy = "trust" }, "verification_policy"},
		{"durable backend without dsn", func(s *config.Settings) { s.Checkpoint.Backend = "sqlite" }, "checkpoint.dsn"},
		{"unknown backend", func(s *config.Settings) { s.Checkpoint.Backend = "redis" }, "checkpoint.backend"},
		{"zero capacity", func(s *config.Settings) { s.Cache.Capacity = 0 }, "cache.capacity"},
		{"zero ttl", func(s *config.Settings) { s.Cache.TTL = 0 }, "cache.ttl"},
		{"zero results", func(s *config.Settings) { s.Search.MaxResults = 0 }, "search.max_results"},
		{"log format", func(s *config.Settings) { s.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			assert.ErrorContains(t, s.Validate(), tt.want)
		})
	}

	t.Run("claude cli needs no key", func(t *testing.T) {
		s := valid()
		s.LLM.Provider = "claude_cli"
		s.LLM.APIKey = ""
		assert.NoError(t, s.Validate())
	})
}

func TestLoad(t *testing.T) {
	t.Setenv(config.EnvModel, "from-env")

	path := filepath.Join(t.TempDir(), "medigraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: from-file\ncache:\n  capacity: 9\n"), 0o600))

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.LLM.Model, "environment wins over file")
	assert.Equal(t, 9, s.Cache.Capacity)

	s, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, s.Cache.Capacity)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
