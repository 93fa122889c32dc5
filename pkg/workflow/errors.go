package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent stage.
	ErrEntryNotFound = errors.New("entry point stage not found")

	// ErrStageNotFound indicates a transition or lookup references a
	// non-existent stage.
	ErrStageNotFound = errors.New("stage not found")

	// ErrMissingTransition indicates a stage has no outgoing transition.
	ErrMissingTransition = errors.New("stage has no transition")

	// ErrConflictingTransition indicates a stage has more than one transition.
	ErrConflictingTransition = errors.New("stage has conflicting transitions")

	// ErrEmptyRoutes indicates a conditional edge with no usable labels.
	ErrEmptyRoutes = errors.New("route table is empty")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")
)

// Sentinel errors for execution.
var (
	// ErrUnmappedLabel indicates a decision function returned a label that
	// is not in its route table.
	ErrUnmappedLabel = errors.New("decision label has no route")

	// ErrMaxIterations indicates the turn exceeded the configured stage limit.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrStageTimeout indicates a stage exceeded its time budget.
	ErrStageTimeout = errors.New("stage timed out")

	// ErrStreamConsumed indicates Events() was iterated more than once.
	ErrStreamConsumed = errors.New("turn stream already consumed")
)

// Sentinel errors for checkpointing.
var (
	// ErrDeserializeState indicates stored state could not be decoded.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = checkpoint.ErrVersionMismatch
)

// StageError wraps a fault that stopped the turn at a stage.
type StageError struct {
	// StageID is the identifier of the stage that failed.
	StageID string
	// Op is the operation that failed ("lookup", "execute", "fallback").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.StageID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from stage execution.
type PanicError struct {
	// StageID is the identifier of the stage that panicked.
	StageID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.StageID, e.Value)
}

// StageTimeoutError reports a stage that did not return within its budget.
type StageTimeoutError struct {
	StageID string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("stage %s timed out after %s", e.StageID, e.Timeout)
}

// Unwrap returns ErrStageTimeout for errors.Is support.
func (e *StageTimeoutError) Unwrap() error {
	return ErrStageTimeout
}

// TransitionError is a configuration fault found while choosing the next stage.
type TransitionError struct {
	// From is the stage whose transition failed.
	From string
	// Label is the label the decision function returned.
	Label string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition from %s on %q: %v", e.From, e.Label, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TransitionError) Unwrap() error {
	return e.Err
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// StageID is the stage where checkpointing failed. Empty for loads.
	StageID string
	// Op is the operation that failed ("save", "load", "serialize", ...).
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	if e.StageID == "" {
		return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("checkpoint %s at stage %s: %v", e.Op, e.StageID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// CancellationError captures the state when a turn was cancelled.
type CancellationError struct {
	// StageID is the stage that was about to execute or was executing.
	StageID string
	// State is the state at cancellation (can type-assert to the actual type).
	State any
	// Cause is the underlying cancellation cause (context.Canceled or context.DeadlineExceeded).
	Cause error
	// WasExecuting is true if cancellation occurred during stage execution.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.StageID == "" {
		return fmt.Sprintf("cancelled before turn start: %v", e.Cause)
	}
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during stage %s: %v", e.StageID, e.Cause)
	}
	return fmt.Sprintf("cancelled before stage %s: %v", e.StageID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// MaxIterationsError provides context when the stage limit is exceeded.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// LastStageID is the stage that would have executed next.
	LastStageID string
	// State is the state at termination (can type-assert to the actual type).
	State any
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at stage %s", e.Max, e.LastStageID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// lastStage extracts the stage a turn error is attributed to.
func lastStage(err error) string {
	var (
		stageErr   *StageError
		transErr   *TransitionError
		cpErr      *CheckpointError
		cancelErr  *CancellationError
		maxIterErr *MaxIterationsError
	)
	switch {
	case errors.As(err, &stageErr):
		return stageErr.StageID
	case errors.As(err, &transErr):
		return transErr.From
	case errors.As(err, &cpErr):
		return cpErr.StageID
	case errors.As(err, &cancelErr):
		return cancelErr.StageID
	case errors.As(err, &maxIterErr):
		return maxIterErr.LastStageID
	}
	return ""
}
