package workflow

import (
	"log/slog"
	"time"

	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
	"github.com/DongHyun925/MediGraph/pkg/workflow/observability"
)

// runConfig holds configuration for one turn.
type runConfig struct {
	maxIterations          int
	entry                  string
	stageTimeout           time.Duration
	checkpointStore        checkpoint.Store
	checkpointFailureFatal bool

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets a global limit on stage executions per turn.
// Default: 0, no limit. Cycles are bounded by their decision functions;
// this is an optional safety valve on top of that.
//
// Example:
//
//	result, err := compiled.Run(ctx, convID, input, workflow.WithMaxIterations(50))
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithEntry starts the turn at stage instead of the graph's entry point.
func WithEntry(stage string) RunOption {
	return func(c *runConfig) {
		c.entry = stage
	}
}

// WithStageTimeout bounds every stage that has no WithTimeout of its own.
// Default: 0, no timeout.
func WithStageTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.stageTimeout = d
		}
	}
}

// WithCheckpointing loads the conversation from store at turn start and
// saves the state after every stage.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithCheckpointFailureFatal makes a failed checkpoint save stop the turn.
// Default: false, save failures are logged and the turn continues.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = fatal
	}
}

// WithObservabilityLogger enables engine lifecycle logging.
// Default: nil, no engine logs.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry turn and stage spans.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}
