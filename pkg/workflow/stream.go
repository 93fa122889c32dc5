package workflow

import (
	"context"
	"iter"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event records one completed stage. Events are emitted in the order stages
// complete, after the stage's update has been merged and checkpointed.
type Event[U any] struct {
	ConversationID string
	Turn           int
	Stage          string
	// Update is the partial update the stage (or its fallback) produced.
	Update U
	// Sequence is the 1-based position of the stage within the turn.
	Sequence int
	// Fault is the recovered fault when a fallback produced Update.
	Fault    error
	Duration time.Duration
}

// Result is the outcome of one turn.
type Result[S, U any] struct {
	ConversationID string
	Turn           int
	State          S
	Events         []Event[U]
}

// TurnStream is a lazily executed turn. Nothing runs until Events is
// iterated or Collect is called, and it can be consumed once.
type TurnStream[S, U any] struct {
	graph          *CompiledGraph[S, U]
	ctx            context.Context
	conversationID string
	input          U
	cfg            runConfig

	started atomic.Bool
	state   S
	turn    int
	err     error
}

// Stream prepares one conversation turn. An empty conversationID is
// replaced with a new UUID, available from ConversationID before the turn
// runs.
//
// Example:
//
//	stream := compiled.Stream(ctx, convID, input, workflow.WithCheckpointing(store))
//	for ev, err := range stream.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev.Stage)
//	}
//	final := stream.State()
func (cg *CompiledGraph[S, U]) Stream(ctx context.Context, conversationID string, input U, opts ...RunOption) *TurnStream[S, U] {
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &TurnStream[S, U]{
		graph:          cg,
		ctx:            ctx,
		conversationID: conversationID,
		input:          input,
		cfg:            cfg,
	}
}

// ConversationID returns the conversation the turn runs in.
func (s *TurnStream[S, U]) ConversationID() string {
	return s.conversationID
}

// Events runs the turn, yielding each stage event as it completes. A turn
// failure is yielded last with a zero Event. Breaking out of the loop ends
// the turn after the current stage; its state is already checkpointed.
//
// A second iteration yields ErrStreamConsumed.
func (s *TurnStream[S, U]) Events() iter.Seq2[Event[U], error] {
	return func(yield func(Event[U], error) bool) {
		if !s.started.CompareAndSwap(false, true) {
			yield(Event[U]{}, ErrStreamConsumed)
			return
		}

		s.state, s.turn, s.err = s.graph.runTurn(s.ctx, s.conversationID, s.input, &s.cfg, func(ev Event[U]) bool {
			return yield(ev, nil)
		})

		if s.err != nil {
			yield(Event[U]{ConversationID: s.conversationID, Turn: s.turn}, s.err)
		}
	}
}

// State returns the state at the end of the turn. Valid after Events has
// been fully iterated.
func (s *TurnStream[S, U]) State() S {
	return s.state
}

// Turn returns the turn number. Valid after Events has been iterated.
func (s *TurnStream[S, U]) Turn() int {
	return s.turn
}

// Err returns the turn error, if any. Valid after Events has been iterated.
func (s *TurnStream[S, U]) Err() error {
	return s.err
}

// Collect runs the turn to completion and returns every event.
func (s *TurnStream[S, U]) Collect() (*Result[S, U], error) {
	result := &Result[S, U]{ConversationID: s.conversationID}

	var turnErr error
	for ev, err := range s.Events() {
		if err != nil {
			turnErr = err
			break
		}
		result.Events = append(result.Events, ev)
	}

	result.Turn = s.turn
	result.State = s.state
	return result, turnErr
}
