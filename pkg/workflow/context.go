package workflow

import (
	"context"
	"log/slog"

	"github.com/DongHyun925/MediGraph/pkg/workflow/observability"
	"github.com/google/uuid"
)

// Context provides execution context to stages.
// It extends context.Context with the logger and turn metadata.
//
// Context is immutable after creation. The engine derives a context per
// stage with StageID set and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with conversation and
	// stage context. Never returns nil.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this process-level run.
	// Auto-generated if not configured.
	RunID() string

	// ConversationID returns the conversation the turn belongs to.
	ConversationID() string

	// StageID returns the stage being executed.
	// Empty string outside stage execution.
	StageID() string

	// Turn returns the 1-based turn number within the conversation.
	Turn() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger         *slog.Logger
	runID          string
	conversationID string
	stageID        string
	turn           int
}

func (c *executionContext) Logger() *slog.Logger   { return c.logger }
func (c *executionContext) RunID() string          { return c.runID }
func (c *executionContext) ConversationID() string { return c.conversationID }
func (c *executionContext) StageID() string        { return c.stageID }
func (c *executionContext) Turn() int              { return c.turn }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger is enriched with conversation_id, stage_id and turn during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID is generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := workflow.NewContext(context.Background(),
//	    workflow.WithLogger(myLogger),
//	    workflow.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// turnContext derives the context for one turn. If ctx is already a
// workflow Context its logger and run ID are kept.
func turnContext(ctx context.Context, conversationID string, turn int) *executionContext {
	tc := &executionContext{
		Context:        ctx,
		conversationID: conversationID,
		turn:           turn,
	}
	if wc, ok := ctx.(Context); ok {
		tc.logger = wc.Logger()
		tc.runID = wc.RunID()
	} else {
		tc.logger = slog.Default()
		tc.runID = uuid.New().String()
	}
	return tc
}

// withStage returns a copy of the context for executing stageID, wrapping
// inner so stage spans and deadlines propagate.
func (c *executionContext) withStage(inner context.Context, stageID string) *executionContext {
	return &executionContext{
		Context:        inner,
		logger:         observability.EnrichLogger(c.logger, c.conversationID, stageID, c.turn).With("run_id", c.runID),
		runID:          c.runID,
		conversationID: c.conversationID,
		stageID:        stageID,
		turn:           c.turn,
	}
}
