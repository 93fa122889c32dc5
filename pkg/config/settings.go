package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvOpenAIKey          = "OPENAI_API_KEY"
	EnvTavilyKey          = "TAVILY_API_KEY"
	EnvProvider           = "MEDIGRAPH_LLM_PROVIDER"
	EnvModel              = "MEDIGRAPH_MODEL"
	EnvCheckpointBackend  = "MEDIGRAPH_CHECKPOINT_BACKEND"
	EnvCheckpointDSN      = "MEDIGRAPH_CHECKPOINT_DSN"
	EnvVerificationPolicy = "MEDIGRAPH_VERIFICATION_POLICY"
	EnvStageTimeout       = "MEDIGRAPH_STAGE_TIMEOUT"
	EnvCacheCapacity      = "MEDIGRAPH_CACHE_CAPACITY"
	EnvCacheTTL           = "MEDIGRAPH_CACHE_TTL"
	EnvLogLevel           = "MEDIGRAPH_LOG_LEVEL"
	EnvLogFormat          = "MEDIGRAPH_LOG_FORMAT"
)

// Recognized enumerated values.
var (
	Providers            = []string{"openai", "claude_cli"}
	CheckpointBackends   = []string{"memory", "sqlite", "postgres"}
	VerificationPolicies = []string{"unverified", "assume_valid"}
	LogLevels            = []string{"debug", "info", "warn", "error"}
	LogFormats           = []string{"text", "json"}
)

// Settings is the typed runtime configuration for the diagnostic service.
type Settings struct {
	LLM                LLMSettings
	Search             SearchSettings
	Cache              CacheSettings
	Engine             EngineSettings
	Checkpoint         CheckpointSettings
	VerificationPolicy string
	Log                LogSettings
	Metrics            bool
	Tracing            bool
}

// LLMSettings configures the reasoning service.
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
	MaxAttempts int
}

// SearchSettings configures the evidence search provider.
type SearchSettings struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	// ExcludeDomains replaces the provider's built-in exclusion list when set.
	ExcludeDomains []string
	Timeout        time.Duration
}

// CacheSettings bounds the evidence cache.
type CacheSettings struct {
	Capacity int
	TTL      time.Duration
}

// EngineSettings tunes the workflow engine.
type EngineSettings struct {
	StageTimeout  time.Duration
	MaxIterations int
}

// CheckpointSettings selects where conversation state is kept.
type CheckpointSettings struct {
	Backend string
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string
}

// LogSettings configures the slog handler built by the command.
type LogSettings struct {
	Level  string
	Format string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		LLM: LLMSettings{
			Provider:    "openai",
			Model:       "gpt-4o",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
		},
		Search: SearchSettings{
			BaseURL:    "https://api.tavily.com",
			MaxResults: 5,
			Timeout:    30 * time.Second,
		},
		Cache: CacheSettings{
			Capacity: 100,
			TTL:      3600 * time.Second,
		},
		Engine: EngineSettings{
			StageTimeout: 60 * time.Second,
		},
		Checkpoint: CheckpointSettings{
			Backend: "memory",
		},
		VerificationPolicy: "unverified",
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// FromConfig overlays a decoded document onto Defaults.
//
//	llm:
//	  provider: openai
//	  model: gpt-4o
//	cache:
//	  capacity: 100
//	  ttl: 3600
//	verification_policy: unverified
func FromConfig(c Config) Settings {
	s := Defaults()

	llm := c.Sub("llm")
	s.LLM.Provider = llm.String("provider", s.LLM.Provider)
	s.LLM.Model = llm.String("model", s.LLM.Model)
	s.LLM.APIKey = llm.String("api_key", s.LLM.APIKey)
	s.LLM.BaseURL = llm.String("base_url", s.LLM.BaseURL)
	s.LLM.Temperature = llm.Float("temperature", s.LLM.Temperature)
	s.LLM.Timeout = llm.Duration("timeout", s.LLM.Timeout)
	s.LLM.MaxAttempts = llm.Int("max_attempts", s.LLM.MaxAttempts)

	search := c.Sub("search")
	s.Search.APIKey = search.String("api_key", s.Search.APIKey)
	s.Search.BaseURL = search.String("base_url", s.Search.BaseURL)
	s.Search.MaxResults = search.Int("max_results", s.Search.MaxResults)
	s.Search.ExcludeDomains = search.StringSlice("exclude_domains", s.Search.ExcludeDomains)
	s.Search.Timeout = search.Duration("timeout", s.Search.Timeout)

	cache := c.Sub("cache")
	s.Cache.Capacity = cache.Int("capacity", s.Cache.Capacity)
	s.Cache.TTL = cache.Duration("ttl", s.Cache.TTL)

	engine := c.Sub("engine")
	s.Engine.StageTimeout = engine.Duration("stage_timeout", s.Engine.StageTimeout)
	s.Engine.MaxIterations = engine.Int("max_iterations", s.Engine.MaxIterations)

	cp := c.Sub("checkpoint")
	s.Checkpoint.Backend = cp.String("backend", s.Checkpoint.Backend)
	s.Checkpoint.DSN = cp.String("dsn", s.Checkpoint.DSN)

	s.VerificationPolicy = c.String("verification_policy", s.VerificationPolicy)

	log := c.Sub("log")
	s.Log.Level = log.String("level", s.Log.Level)
	s.Log.Format = log.String("format", s.Log.Format)

	s.Metrics = c.Bool("metrics", s.Metrics)
	s.Tracing = c.Bool("tracing", s.Tracing)
	return s
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. Unparseable numeric values are reported and leave the
// field unchanged.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvOpenAIKey, &s.LLM.APIKey)
	str(EnvTavilyKey, &s.Search.APIKey)
	str(EnvProvider, &s.LLM.Provider)
	str(EnvModel, &s.LLM.Model)
	str(EnvCheckpointBackend, &s.Checkpoint.Backend)
	str(EnvCheckpointDSN, &s.Checkpoint.DSN)
	str(EnvVerificationPolicy, &s.VerificationPolicy)
	str(EnvLogLevel, &s.Log.Level)
	str(EnvLogFormat, &s.Log.Format)

	if v, ok := lookup(EnvStageTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvStageTimeout, err))
		} else {
			s.Engine.StageTimeout = d
		}
	}
	if v, ok := lookup(EnvCacheCapacity); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvCacheCapacity, err))
		} else {
			s.Cache.Capacity = n
		}
	}
	if v, ok := lookup(EnvCacheTTL); ok && v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvCacheTTL, err))
		} else {
			s.Cache.TTL = d
		}
	}
	return errors.Join(errs...)
}

// parseSeconds accepts a Go duration or a bare number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, value, strings.Join(allowed, ", ")))
		}
	}
	oneOf("llm.provider", s.LLM.Provider, Providers)
	oneOf("checkpoint.backend", s.Checkpoint.Backend, CheckpointBackends)
	oneOf("verification_policy", s.VerificationPolicy, VerificationPolicies)
	oneOf("log.level", s.Log.Level, LogLevels)
	oneOf("log.format", s.Log.Format, LogFormats)

	if s.LLM.Provider == "openai" && s.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.api_key: required for openai (set %s)", EnvOpenAIKey))
	}
	if s.Search.APIKey == "" {
		errs = append(errs, fmt.Errorf("search.api_key: required (set %s)", EnvTavilyKey))
	}
	if s.Checkpoint.Backend != "memory" && s.Checkpoint.DSN == "" {
		errs = append(errs, fmt.Errorf("checkpoint.dsn: required for %s backend", s.Checkpoint.Backend))
	}
	if s.Cache.Capacity <= 0 {
		errs = append(errs, errors.New("cache.capacity: must be positive"))
	}
	if s.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl: must be positive"))
	}
	if s.Search.MaxResults <= 0 {
		errs = append(errs, errors.New("search.max_results: must be positive"))
	}
	return errors.Join(errs...)
}

// Load builds Settings from an optional file plus the process environment.
// An empty path skips the file.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		c, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s = FromConfig(c)
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	return s, nil
}
