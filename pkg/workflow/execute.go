package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
	"github.com/DongHyun925/MediGraph/pkg/workflow/observability"
)

// Run executes one conversation turn and collects its events.
// It is equivalent to Stream(...).Collect().
//
// An empty conversationID starts a new conversation; the minted ID is
// returned in Result.ConversationID. On error, the returned Result holds the
// state at the point of failure and the events emitted before it.
//
// Example:
//
//	result, err := compiled.Run(ctx, "", Update{Message: "hello"},
//	    workflow.WithCheckpointing(store))
//	// reuse result.ConversationID for the next turn
func (cg *CompiledGraph[S, U]) Run(ctx context.Context, conversationID string, input U, opts ...RunOption) (*Result[S, U], error) {
	return cg.Stream(ctx, conversationID, input, opts...).Collect()
}

// runTurn executes one turn:
//  1. Acquire the conversation's turn lock
//  2. Load the checkpoint, or start from the initial state
//  3. Merge the input
//  4. Loop: invoke stage, merge, checkpoint, emit, transition
//
// emit returning false ends the turn early without error.
func (cg *CompiledGraph[S, U]) runTurn(ctx context.Context, conversationID string, input U, cfg *runConfig, emit func(Event[U]) bool) (result S, turn int, turnErr error) {
	if ctx == nil {
		return cg.InitialState(), 0, ErrNilContext
	}

	if err := ctx.Err(); err != nil {
		return cg.InitialState(), 0, &CancellationError{Cause: err}
	}

	startTime := time.Now()

	unlock, err := cg.lockConversation(ctx, conversationID)
	if err != nil {
		return cg.InitialState(), 0, &CancellationError{Cause: err}
	}
	defer unlock()

	state := cg.InitialState()
	if cfg.checkpointStore != nil {
		loaded, prevTurn, _, err := cg.LoadState(ctx, cfg.checkpointStore, conversationID)
		if err != nil {
			observability.LogCheckpointError(cfg.logger, "", "load", err)
			return loaded, 0, err
		}
		state, turn = loaded, prevTurn
	}
	turn++

	state = cg.merge(state, input)

	observability.LogTurnStart(cfg.logger, conversationID, turn)
	traceCtx, span := cfg.spans.StartTurnSpan(ctx, cg.name, conversationID, turn)

	tc := turnContext(ctx, conversationID, turn)
	result, stageCount, turnErr := cg.runStages(traceCtx, tc, state, cfg, emit)

	cfg.spans.EndSpanWithError(span, turnErr)

	duration := time.Since(startTime)
	cfg.metrics.RecordTurn(ctx, turnErr == nil, duration)
	if turnErr != nil {
		observability.LogTurnError(cfg.logger, conversationID, turnErr, observability.Milliseconds(duration), lastStage(turnErr))
	} else {
		observability.LogTurnComplete(cfg.logger, conversationID, observability.Milliseconds(duration), stageCount)
	}

	return result, turn, turnErr
}

// runStages is the stage loop. traceCtx carries the turn span; tc is the
// turn's workflow Context. Returns the final state and stage count.
func (cg *CompiledGraph[S, U]) runStages(traceCtx context.Context, tc *executionContext, state S, cfg *runConfig, emit func(Event[U]) bool) (S, int, error) {
	current := cg.entryPoint
	if cfg.entry != "" {
		current = cfg.entry
	}
	stageCount := 0

	for current != END {
		if cfg.maxIterations > 0 && stageCount >= cfg.maxIterations {
			return state, stageCount, &MaxIterationsError{
				Max:         cfg.maxIterations,
				LastStageID: current,
				State:       state,
			}
		}

		if err := tc.Err(); err != nil {
			return state, stageCount, &CancellationError{
				StageID: current,
				State:   state,
				Cause:   err,
			}
		}

		spec, ok := cg.stage(current)
		if !ok {
			return state, stageCount, &StageError{
				StageID: current,
				Op:      "lookup",
				Err:     fmt.Errorf("%w: %s", ErrStageNotFound, current),
			}
		}

		observability.LogStageStart(cfg.logger, current)
		stageTraceCtx, stageSpan := cfg.spans.StartStageSpan(traceCtx, current)

		timeout := spec.timeout
		if timeout == 0 {
			timeout = cfg.stageTimeout
		}

		stageStart := time.Now()
		update, fault := cg.invoke(stageTraceCtx, tc, spec, state, timeout)
		elapsed := time.Since(stageStart)

		cfg.metrics.RecordStageExecution(stageTraceCtx, current, elapsed, fault)

		if fault != nil {
			// Parent cancellation is never a stage fault.
			if cause := tc.Err(); cause != nil {
				cfg.spans.EndSpanWithError(stageSpan, cause)
				return state, stageCount, &CancellationError{
					StageID:      current,
					State:        state,
					Cause:        cause,
					WasExecuting: true,
				}
			}

			recovered := spec.fallback != nil && !spec.fatal
			observability.LogStageFault(cfg.logger, current, fault, recovered)
			cfg.metrics.RecordStageFault(stageTraceCtx, current, recovered)

			if !recovered {
				cfg.spans.EndSpanWithError(stageSpan, fault)
				return state, stageCount, &StageError{StageID: current, Op: "execute", Err: fault}
			}

			var err error
			update, err = applyFallback(spec, state, fault)
			if err != nil {
				cfg.spans.EndSpanWithError(stageSpan, err)
				return state, stageCount, err
			}
		}

		cfg.spans.EndSpanWithError(stageSpan, fault)
		observability.LogStageComplete(cfg.logger, current, observability.Milliseconds(elapsed))

		state = cg.merge(state, update)
		stageCount++

		if cfg.checkpointStore != nil {
			if err := cg.saveCheckpoint(tc, cfg, current, stageCount, state); err != nil {
				return state, stageCount, err
			}
		}

		if !emit(Event[U]{
			ConversationID: tc.conversationID,
			Turn:           tc.turn,
			Stage:          current,
			Update:         update,
			Sequence:       stageCount,
			Fault:          fault,
			Duration:       elapsed,
		}) {
			return state, stageCount, nil
		}

		if cg.stop != nil && cg.stop(state) {
			return state, stageCount, nil
		}

		next, label, err := cg.nextStage(current, state)
		if err != nil {
			return state, stageCount, err
		}
		observability.LogTransition(cfg.logger, current, label, next)
		current = next
	}

	return state, stageCount, nil
}

// stageOutcome is what a stage goroutine reports back.
type stageOutcome[U any] struct {
	update U
	err    error
}

// invoke runs one stage with panic recovery. With a timeout, the stage gets
// a deadline and the engine stops waiting once it passes; a stage that
// ignores its context is abandoned and its result discarded.
func (cg *CompiledGraph[S, U]) invoke(parent context.Context, tc *executionContext, spec *stageSpec[S, U], state S, timeout time.Duration) (U, error) {
	var zero U

	runCtx, cancel := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(parent, timeout)
	}
	defer cancel()

	stageCtx := tc.withStage(runCtx, spec.id)

	done := make(chan stageOutcome[U], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageOutcome[U]{err: &PanicError{
					StageID: spec.id,
					Value:   r,
					Stack:   string(debug.Stack()),
				}}
			}
		}()
		update, err := spec.fn(stageCtx, state)
		done <- stageOutcome[U]{update: update, err: err}
	}()

	finish := func(out stageOutcome[U]) (U, error) {
		if out.err != nil && timeout > 0 && parent.Err() == nil &&
			errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return zero, &StageTimeoutError{StageID: spec.id, Timeout: timeout}
		}
		return out.update, out.err
	}

	select {
	case out := <-done:
		return finish(out)
	case <-runCtx.Done():
		// A result that raced the deadline still wins.
		select {
		case out := <-done:
			return finish(out)
		default:
		}
		if err := parent.Err(); err != nil {
			return zero, err
		}
		return zero, &StageTimeoutError{StageID: spec.id, Timeout: timeout}
	}
}

// applyFallback builds the fallback update. A panicking fallback stops the turn.
func applyFallback[S, U any](spec *stageSpec[S, U], state S, fault error) (update U, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{
				StageID: spec.id,
				Op:      "fallback",
				Err:     &PanicError{StageID: spec.id, Value: r, Stack: string(debug.Stack())},
			}
		}
	}()
	return spec.fallback(state, fault), nil
}

// nextStage resolves the transition out of current on the post-merge state.
// It returns the target and, for conditional edges, the decided label.
func (cg *CompiledGraph[S, U]) nextStage(current string, state S) (next, label string, err error) {
	c, ok := cg.conditional[current]
	if !ok {
		to, ok := cg.edges[current]
		if !ok {
			return "", "", &TransitionError{From: current, Err: ErrMissingTransition}
		}
		return to, "", nil
	}

	label, err = decide(current, c.decide, state)
	if err != nil {
		return "", label, err
	}
	to, ok := c.routes[label]
	if !ok {
		return "", label, &TransitionError{From: current, Label: label, Err: ErrUnmappedLabel}
	}
	return to, label, nil
}

func decide[S any](from string, fn DecisionFunc[S], state S) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransitionError{
				From: from,
				Err:  &PanicError{StageID: from, Value: r, Stack: string(debug.Stack())},
			}
		}
	}()
	return fn(state), nil
}

// saveCheckpoint persists the state after a stage. Failures are logged and
// ignored unless WithCheckpointFailureFatal is set.
func (cg *CompiledGraph[S, U]) saveCheckpoint(tc *executionContext, cfg *runConfig, stageID string, sequence int, state S) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return checkpointFailure(cfg, stageID, "serialize", err)
	}

	data, err := checkpoint.New(tc.conversationID, stageID, tc.turn, sequence, stateBytes).Marshal()
	if err != nil {
		return checkpointFailure(cfg, stageID, "marshal", err)
	}

	if err := cfg.checkpointStore.Save(tc, tc.conversationID, data); err != nil {
		return checkpointFailure(cfg, stageID, "save", err)
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(cfg.logger, stageID, sizeBytes)
	cfg.metrics.RecordCheckpoint(tc, stageID, int64(sizeBytes))

	return nil
}

func checkpointFailure(cfg *runConfig, stageID, op string, err error) error {
	if cfg.checkpointFailureFatal {
		return &CheckpointError{StageID: stageID, Op: op, Err: err}
	}
	observability.LogCheckpointError(cfg.logger, stageID, op, err)
	return nil
}
