package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
	"github.com/DongHyun925/MediGraph/pkg/workflow/registry"
)

// CompiledGraph is an immutable, executable stage graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is safe for concurrent use. Turns for different
// conversations run in parallel; turns for the same conversation are
// serialized by a per-conversation lock.
type CompiledGraph[S, U any] struct {
	name        string
	merge       MergeFunc[S, U]
	stages      *registry.Registry[string, *stageSpec[S, U]]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	entryPoint  string
	initial     func() S
	stop        func(S) bool

	// Pre-computed for introspection
	successors   map[string][]string
	predecessors map[string][]string

	turnLocks *registry.Registry[string, *turnLock]
}

// Name returns the graph name.
func (cg *CompiledGraph[S, U]) Name() string {
	return cg.name
}

// EntryPoint returns the entry stage ID.
func (cg *CompiledGraph[S, U]) EntryPoint() string {
	return cg.entryPoint
}

// StageIDs returns all stage identifiers in sorted order.
func (cg *CompiledGraph[S, U]) StageIDs() []string {
	ids := cg.stages.Keys()
	slices.Sort(ids)
	return ids
}

// HasStage checks if a stage exists in the graph.
func (cg *CompiledGraph[S, U]) HasStage(id string) bool {
	return cg.stages.Has(id)
}

// Successors returns every target a transition out of id can reach,
// including route table targets and END.
// Returns nil for END or unknown stages.
func (cg *CompiledGraph[S, U]) Successors(id string) []string {
	if id == END {
		return nil
	}
	return slices.Clone(cg.successors[id])
}

// Predecessors returns the stage IDs that can transition to id.
func (cg *CompiledGraph[S, U]) Predecessors(id string) []string {
	return slices.Clone(cg.predecessors[id])
}

// IsConditional returns true if the stage has a route table.
func (cg *CompiledGraph[S, U]) IsConditional(id string) bool {
	_, ok := cg.conditional[id]
	return ok
}

// Routes returns a copy of a stage's label → target table, or nil if the
// stage has an unconditional edge.
func (cg *CompiledGraph[S, U]) Routes(id string) map[string]string {
	c, ok := cg.conditional[id]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(c.routes))
	for label, to := range c.routes {
		out[label] = to
	}
	return out
}

// ActiveConversations returns the number of conversations with a turn
// running or waiting.
func (cg *CompiledGraph[S, U]) ActiveConversations() int {
	return cg.turnLocks.Len()
}

// InitialState returns the state a new conversation starts from.
func (cg *CompiledGraph[S, U]) InitialState() S {
	if cg.initial != nil {
		return cg.initial()
	}
	var zero S
	return zero
}

// LoadState returns the stored state for a conversation and the turn
// number it was saved at. found is false if the store has no checkpoint.
func (cg *CompiledGraph[S, U]) LoadState(ctx context.Context, store checkpoint.Store, conversationID string) (state S, turn int, found bool, err error) {
	state = cg.InitialState()

	data, err := store.Load(ctx, conversationID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return state, 0, false, nil
	}
	if err != nil {
		return state, 0, false, &CheckpointError{Op: "load", Err: err}
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return state, 0, false, &CheckpointError{Op: "unmarshal", Err: err}
	}

	if err := json.Unmarshal(cp.State, &state); err != nil {
		return cg.InitialState(), 0, false, &CheckpointError{
			StageID: cp.StageID,
			Op:      "deserialize",
			Err:     fmt.Errorf("%w: %v", ErrDeserializeState, err),
		}
	}
	return state, cp.Turn, true, nil
}

// stage returns the registered stage for an ID.
func (cg *CompiledGraph[S, U]) stage(id string) (*stageSpec[S, U], bool) {
	return cg.stages.Get(id)
}
