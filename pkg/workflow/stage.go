package workflow

import "time"

// END is the terminal stage identifier.
// Use it as an edge or route target to finish the turn.
const END = "__end__"

// StageFunc is the signature for all stage functions.
// Stages receive the execution context and a read-only view of the session
// state, and return a sparse partial update for the engine to merge.
//
// A stage should recover its own collaborator failures and return a usable
// update. Returned errors and panics are stage faults and are handled by the
// stage's fallback, if it has one.
//
// Example:
//
//	func count(ctx workflow.Context, s Counter) (CounterUpdate, error) {
//	    return CounterUpdate{Delta: 1}, nil
//	}
type StageFunc[S, U any] func(ctx Context, state S) (U, error)

// DecisionFunc maps the post-merge state to an edge label.
// It must be pure: no side effects, the same state always yields the same
// label. Every label it can return must appear in the route table passed to
// AddConditionalEdge.
type DecisionFunc[S any] func(state S) string

// MergeFunc folds a partial update into the state and returns the new state.
// It must not mutate the input state.
type MergeFunc[S, U any] func(state S, update U) S

// FallbackFunc builds the partial update used when a stage faults.
// fault is the StageError, PanicError or StageTimeoutError that occurred.
type FallbackFunc[S, U any] func(state S, fault error) U

// stageSpec is a registered stage with its fault policy.
type stageSpec[S, U any] struct {
	id       string
	fn       StageFunc[S, U]
	fallback FallbackFunc[S, U]
	fatal    bool
	timeout  time.Duration
}

// StageOption configures a stage's fault policy.
type StageOption[S, U any] func(*stageSpec[S, U])

// WithFallback sets the update produced when the stage faults.
// Stages without a fallback abort the turn on fault.
func WithFallback[S, U any](fn FallbackFunc[S, U]) StageOption[S, U] {
	return func(s *stageSpec[S, U]) {
		s.fallback = fn
	}
}

// FatalOnFault makes any fault abort the turn, even when a fallback is set.
func FatalOnFault[S, U any]() StageOption[S, U] {
	return func(s *stageSpec[S, U]) {
		s.fatal = true
	}
}

// WithTimeout bounds a single invocation of the stage. A stage that exceeds
// it faults with StageTimeoutError. Overrides WithStageTimeout for this stage.
func WithTimeout[S, U any](d time.Duration) StageOption[S, U] {
	return func(s *stageSpec[S, U]) {
		if d > 0 {
			s.timeout = d
		}
	}
}
