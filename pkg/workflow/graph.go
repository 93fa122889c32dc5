package workflow

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for stage graphs over state S and partial
// update U. Use NewGraph to create one, chain AddStage, AddEdge,
// AddConditionalEdge and SetEntry, then call Compile.
//
// Graph is NOT thread-safe during building. Build it from one goroutine,
// then share the immutable CompiledGraph.
//
// Example:
//
//	graph := workflow.NewGraph[State, Update](Merge).
//	    AddStage("analyze", analyze, workflow.WithFallback(analyzeFallback)).
//	    AddStage("ask", ask).
//	    AddStage("answer", answer).
//	    AddConditionalEdge("analyze", decide, map[string]string{
//	        "ask":   "ask",
//	        "route": "answer",
//	    }).
//	    AddEdge("ask", workflow.END).
//	    AddEdge("answer", workflow.END).
//	    SetEntry("analyze")
//
//	compiled, err := graph.Compile()
type Graph[S, U any] struct {
	mu          sync.RWMutex
	name        string
	merge       MergeFunc[S, U]
	stages      map[string]*stageSpec[S, U]
	order       []string
	edges       map[string][]string
	conditional map[string]conditionalEdge[S]
	entryPoint  string
	initial     func() S
	stop        func(S) bool
}

// conditionalEdge is a decision function plus its label → target table.
type conditionalEdge[S any] struct {
	decide DecisionFunc[S]
	routes map[string]string
}

// NewGraph creates a graph builder. merge is the single function the engine
// uses to fold every partial update into the state.
//
// Panics if merge is nil.
func NewGraph[S, U any](merge MergeFunc[S, U]) *Graph[S, U] {
	if merge == nil {
		panic("workflow: merge function cannot be nil")
	}
	return &Graph[S, U]{
		name:        "workflow",
		merge:       merge,
		stages:      make(map[string]*stageSpec[S, U]),
		edges:       make(map[string][]string),
		conditional: make(map[string]conditionalEdge[S]),
	}
}

// Named sets the graph name used in turn spans.
func (g *Graph[S, U]) Named(name string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if name != "" {
		g.name = name
	}
	return g
}

// AddStage adds a named stage to the graph.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S, U]) AddStage(id string, fn StageFunc[S, U], opts ...StageOption[S, U]) *Graph[S, U] {
	if id == "" {
		panic("workflow: stage ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END {
		panic("workflow: stage ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("workflow: stage ID cannot contain whitespace")
	}

	if fn == nil {
		panic("workflow: stage function cannot be nil")
	}

	spec := &stageSpec[S, U]{id: id, fn: fn}
	for _, opt := range opts {
		opt(spec)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.stages[id]; exists {
		panic(fmt.Sprintf("workflow: duplicate stage ID: %s", id))
	}

	g.stages[id] = spec
	g.order = append(g.order, id)
	return g
}

// AddEdge adds an unconditional transition. The target can be a stage ID
// or END. Validation happens at Compile time, so edges may be added in any
// order.
func (g *Graph[S, U]) AddEdge(from, to string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds a declared transition table for from. After the
// stage's update is merged, decide is called on the new state and the
// returned label is looked up in routes. An unmapped label stops the turn
// with a TransitionError.
//
// Panics if decide is nil. Routes are validated at Compile time.
func (g *Graph[S, U]) AddConditionalEdge(from string, decide DecisionFunc[S], routes map[string]string) *Graph[S, U] {
	if decide == nil {
		panic("workflow: decision function cannot be nil")
	}

	table := make(map[string]string, len(routes))
	for label, to := range routes {
		table[label] = to
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.conditional[from]; exists {
		panic(fmt.Sprintf("workflow: duplicate conditional edge from: %s", from))
	}
	g.conditional[from] = conditionalEdge[S]{decide: decide, routes: table}
	return g
}

// SetEntry designates the stage every turn starts from.
func (g *Graph[S, U]) SetEntry(id string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// SetInitialState sets the constructor for a conversation that has no
// checkpoint yet. Without it the zero value of S is used.
func (g *Graph[S, U]) SetInitialState(fn func() S) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.initial = fn
	return g
}

// StopWhen registers a predicate checked after every stage's update is
// merged, saved and emitted. When it returns true the turn ends without
// consulting the stage's transition.
func (g *Graph[S, U]) StopWhen(fn func(S) bool) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stop = fn
	return g
}
