package medigraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DongHyun925/MediGraph/pkg/cache"
	"github.com/DongHyun925/MediGraph/pkg/config"
	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/search"
	"github.com/DongHyun925/MediGraph/pkg/stages"
	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
	flowerrors "github.com/DongHyun925/MediGraph/pkg/workflow/errors"
	"github.com/DongHyun925/MediGraph/pkg/workflow/observability"
)

// evidenceCacheName labels evidence cache lookups in metrics.
const evidenceCacheName = "evidence"

// Open builds a Service from settings: the configured model provider,
// the Tavily searcher, the evidence cache and the checkpoint backend.
func Open(ctx context.Context, st config.Settings, logger *slog.Logger) (*Service, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := newLLMClient(st.LLM, logger)
	if err != nil {
		return nil, err
	}
	policy, err := stages.ParseVerificationPolicy(st.VerificationPolicy)
	if err != nil {
		return nil, err
	}

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if st.Metrics {
		metrics = observability.NewMetricsRecorder()
	}
	evidence := cache.New[[]string](st.Cache.Capacity, st.Cache.TTL,
		cache.WithLookupHook(func(hit bool) {
			metrics.RecordCacheLookup(context.Background(), evidenceCacheName, hit)
		}))

	store, err := OpenStore(ctx, st.Checkpoint)
	if err != nil {
		return nil, err
	}

	svc, err := NewService(Dependencies{
		LLM:      client,
		Searcher: newSearcher(st.Search, logger),
		Cache:    evidence,
		Retrieve: stages.RetrieveConfig{
			MaxResults:     st.Search.MaxResults,
			ExcludeDomains: st.Search.ExcludeDomains,
		},
		VerificationPolicy: policy,
	},
		WithStore(store),
		WithLogger(logger),
		WithStageTimeout(st.Engine.StageTimeout),
		WithMaxIterations(st.Engine.MaxIterations),
		WithMetrics(st.Metrics),
		WithTracing(st.Tracing),
	)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	logger.Info("medigraph ready",
		"provider", st.LLM.Provider,
		"model", st.LLM.Model,
		"checkpoint_backend", st.Checkpoint.Backend,
		"verification_policy", string(policy),
	)
	return svc, nil
}

// NewLLMClient returns the client for the configured provider. Retries
// are logged to slog.Default.
func NewLLMClient(st config.LLMSettings) (llm.Client, error) {
	return newLLMClient(st, slog.Default())
}

func newLLMClient(st config.LLMSettings, logger *slog.Logger) (llm.Client, error) {
	retry := flowerrors.CollaboratorRetry
	if st.MaxAttempts > 0 {
		retry.MaxAttempts = st.MaxAttempts
	}
	retry.OnRetry = flowerrors.LogRetries(logger, "openai")

	switch st.Provider {
	case "openai", "":
		return llm.NewOpenAI(st.APIKey,
			llm.WithBaseURL(st.BaseURL),
			llm.WithOpenAIModel(st.Model),
			llm.WithTemperature(st.Temperature),
			llm.WithHTTPClient(&http.Client{Timeout: st.Timeout}),
			llm.WithRetry(retry),
		), nil
	case "claude_cli":
		opts := []llm.ClaudeOption{llm.WithTimeout(st.Timeout)}
		// The default model names an OpenAI model; the CLI picks its own.
		if st.Model != "" && st.Model != config.Defaults().LLM.Model {
			opts = append(opts, llm.WithModel(st.Model))
		}
		return llm.NewClaudeCLI(opts...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", st.Provider)
	}
}

// NewSearcher returns the Tavily searcher for the settings.
func NewSearcher(st config.SearchSettings) search.Searcher {
	return newSearcher(st, slog.Default())
}

func newSearcher(st config.SearchSettings, logger *slog.Logger) search.Searcher {
	retry := flowerrors.CollaboratorRetry
	retry.OnRetry = flowerrors.LogRetries(logger, "tavily")
	return search.NewTavily(st.APIKey,
		search.WithTavilyBaseURL(st.BaseURL),
		search.WithTavilyHTTPClient(&http.Client{Timeout: st.Timeout}),
		search.WithTavilyRetry(retry),
	)
}

// OpenStore opens the configured checkpoint backend.
func OpenStore(ctx context.Context, st config.CheckpointSettings) (checkpoint.Store, error) {
	switch st.Backend {
	case "memory", "":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		store, err := checkpoint.NewSQLiteStore(st.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite checkpoints: %w", err)
		}
		return store, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, st.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres checkpoints: %w", err)
		}
		store := checkpoint.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("prepare postgres checkpoints: %w", err)
		}
		return &pooledStore{PostgresStore: store, pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", st.Backend)
	}
}

// pooledStore closes the pool it was opened with.
type pooledStore struct {
	*checkpoint.PostgresStore
	pool *pgxpool.Pool
}

func (s *pooledStore) Close() error {
	err := s.PostgresStore.Close()
	s.pool.Close()
	return err
}
