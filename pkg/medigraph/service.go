package medigraph

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
)

// ErrEmptyMessage is returned for a blank patient message.
var ErrEmptyMessage = errors.New("medigraph: message is empty")

// Service runs diagnostic conversations. Turns on different conversations
// run concurrently; turns on the same conversation are serialized by the
// engine.
type Service struct {
	graph   *Graph
	store   checkpoint.Store
	logger  *slog.Logger
	runOpts []workflow.RunOption
}

type serviceConfig struct {
	store         checkpoint.Store
	logger        *slog.Logger
	stageTimeout  time.Duration
	maxIterations int
	metrics       bool
	tracing       bool
}

// Option configures a Service.
type Option func(*serviceConfig)

// WithStore sets the checkpoint store. Default: a new MemoryStore.
func WithStore(store checkpoint.Store) Option {
	return func(c *serviceConfig) { c.store = store }
}

// WithLogger sets the logger for engine and stage logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

// WithStageTimeout bounds each stage call.
func WithStageTimeout(d time.Duration) Option {
	return func(c *serviceConfig) { c.stageTimeout = d }
}

// WithMaxIterations caps stage executions per turn. Zero means no cap.
func WithMaxIterations(n int) Option {
	return func(c *serviceConfig) { c.maxIterations = n }
}

// WithMetrics enables OpenTelemetry metrics.
func WithMetrics(enabled bool) Option {
	return func(c *serviceConfig) { c.metrics = enabled }
}

// WithTracing enables OpenTelemetry spans.
func WithTracing(enabled bool) Option {
	return func(c *serviceConfig) { c.tracing = enabled }
}

// NewService compiles the diagnostic graph over deps.
func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	cfg := serviceConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = checkpoint.NewMemoryStore()
	}

	graph, err := NewGraph(deps)
	if err != nil {
		return nil, err
	}

	runOpts := []workflow.RunOption{
		workflow.WithCheckpointing(cfg.store),
		workflow.WithObservabilityLogger(cfg.logger),
		workflow.WithMetrics(cfg.metrics),
		workflow.WithTracing(cfg.tracing),
	}
	if cfg.stageTimeout > 0 {
		runOpts = append(runOpts, workflow.WithStageTimeout(cfg.stageTimeout))
	}
	if cfg.maxIterations > 0 {
		runOpts = append(runOpts, workflow.WithMaxIterations(cfg.maxIterations))
	}

	return &Service{graph: graph, store: cfg.store, logger: cfg.logger, runOpts: runOpts}, nil
}

// Graph returns the compiled workflow.
func (s *Service) Graph() *Graph {
	return s.graph
}

// Chat runs one turn with message appended to the conversation. An empty
// conversationID starts a new conversation; its ID is in the reply.
func (s *Service) Chat(ctx context.Context, conversationID, message string) (*Reply, error) {
	input, err := userInput(message)
	if err != nil {
		return nil, err
	}
	res, err := s.graph.Run(s.turnContext(ctx), conversationID, input, s.runOpts...)
	if err != nil {
		return nil, err
	}
	return NewReply(res), nil
}

// Stream prepares the same turn as Chat, delivering each step as it
// completes.
func (s *Service) Stream(ctx context.Context, conversationID, message string) (*Turn, error) {
	input, err := userInput(message)
	if err != nil {
		return nil, err
	}
	return &Turn{stream: s.graph.Stream(s.turnContext(ctx), conversationID, input, s.runOpts...)}, nil
}

// Conversation returns the stored state of a conversation.
func (s *Service) Conversation(ctx context.Context, conversationID string) (session.State, bool, error) {
	state, _, found, err := s.graph.LoadState(ctx, s.store, conversationID)
	return state, found, err
}

// Forget deletes a conversation.
func (s *Service) Forget(ctx context.Context, conversationID string) error {
	if err := s.store.Delete(ctx, conversationID); err != nil {
		return err
	}
	s.logger.Info("conversation forgotten", "conversation_id", conversationID)
	return nil
}

// Close releases the checkpoint store.
func (s *Service) Close() error {
	return s.store.Close()
}

// turnContext hands the service logger to stages unless the caller
// already supplied a workflow context.
func (s *Service) turnContext(ctx context.Context) context.Context {
	if _, ok := ctx.(workflow.Context); ok {
		return ctx
	}
	return workflow.NewContext(ctx, workflow.WithLogger(s.logger))
}

func userInput(message string) (session.Update, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return session.Update{}, ErrEmptyMessage
	}
	return session.Update{History: []session.Message{session.UserMessage(message)}}, nil
}

// Turn is a streaming conversation turn. It runs when Steps is iterated
// and can be consumed once.
type Turn struct {
	stream *workflow.TurnStream[session.State, session.Update]
	steps  []Step
}

// ConversationID returns the conversation the turn runs in.
func (t *Turn) ConversationID() string {
	return t.stream.ConversationID()
}

// Steps runs the turn, yielding each completed stage. A turn failure is
// yielded last.
func (t *Turn) Steps() iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		for ev, err := range t.stream.Events() {
			if err != nil {
				yield(Step{}, err)
				return
			}
			step := NewStep(ev)
			t.steps = append(t.steps, step)
			if !yield(step, nil) {
				return
			}
		}
	}
}

// Reply returns the turn's reply. Valid after Steps has been iterated.
func (t *Turn) Reply() (*Reply, error) {
	if err := t.stream.Err(); err != nil {
		return nil, err
	}
	return buildReply(t.stream.ConversationID(), t.stream.Turn(), t.stream.State(), t.steps), nil
}
