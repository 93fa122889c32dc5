package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/DongHyun925/MediGraph/pkg/workflow/registry"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Every problem found is reported; multiple errors are joined together.
//
// Validation checks:
//  1. Entry point must be set and reference an existing stage
//  2. Edge and route sources must reference existing stages
//  3. Edge and route targets must reference existing stages or END
//  4. Every stage has exactly one transition: one edge or one route table
//  5. Route tables are non-empty and have non-empty labels
//  6. A path to END exists from the entry
//
// Unreachable stages are logged as warnings but do not fail compilation.
func (g *Graph[S, U]) Compile() (*CompiledGraph[S, U], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.stages[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for _, from := range sortedKeys(g.edges) {
		if _, exists := g.stages[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrStageNotFound, from))
		}
		for _, to := range g.edges[from] {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrStageNotFound, to))
			}
		}
	}

	for _, from := range sortedKeys(g.conditional) {
		if _, exists := g.stages[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrStageNotFound, from))
		}
		routes := g.conditional[from].routes
		if len(routes) == 0 {
			errs = append(errs, fmt.Errorf("%w: stage '%s'", ErrEmptyRoutes, from))
		}
		for _, label := range sortedKeys(routes) {
			if label == "" {
				errs = append(errs, fmt.Errorf("%w: stage '%s' has an empty label", ErrEmptyRoutes, from))
			}
			if to := routes[label]; !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: route '%s' from '%s' targets '%s'", ErrStageNotFound, label, from, to))
			}
		}
	}

	for _, id := range g.order {
		edges := len(g.edges[id])
		_, conditional := g.conditional[id]
		switch {
		case edges == 0 && !conditional:
			errs = append(errs, fmt.Errorf("%w: stage '%s'", ErrMissingTransition, id))
		case edges > 0 && conditional:
			errs = append(errs, fmt.Errorf("%w: stage '%s' has both an edge and a route table", ErrConflictingTransition, id))
		case edges > 1:
			errs = append(errs, fmt.Errorf("%w: stage '%s' has %d edges", ErrConflictingTransition, id, edges))
		}
	}

	if _, exists := g.stages[g.entryPoint]; exists && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	g.warnUnreachableStages()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

// isTarget reports whether id is a valid transition target.
func (g *Graph[S, U]) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, exists := g.stages[id]
	return exists
}

// targets returns every stage a transition out of id can reach.
func (g *Graph[S, U]) targets(id string) []string {
	out := slices.Clone(g.edges[id])
	if c, ok := g.conditional[id]; ok {
		for _, label := range sortedKeys(c.routes) {
			out = append(out, c.routes[label])
		}
	}
	return out
}

// hasPathToEnd propagates "can reach END" backwards until nothing changes.
// Route tables are declared, so only their mapped targets count.
func (g *Graph[S, U]) hasPathToEnd() bool {
	canReachEnd := map[string]bool{END: true}

	changed := true
	for changed {
		changed = false
		for _, id := range g.order {
			if canReachEnd[id] {
				continue
			}
			for _, to := range g.targets(id) {
				if canReachEnd[to] {
					canReachEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd[g.entryPoint]
}

// warnUnreachableStages logs warnings for stages not reachable from entry.
func (g *Graph[S, U]) warnUnreachableStages() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableStages()
	for _, id := range g.order {
		if !reachable[id] {
			slog.Warn("stage is unreachable from entry", "stage_id", id)
		}
	}
}

// findReachableStages returns the set of stages reachable from the entry.
func (g *Graph[S, U]) findReachableStages() map[string]bool {
	reachable := map[string]bool{g.entryPoint: true}

	queue := []string{g.entryPoint}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.targets(current) {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph[S, U]) buildCompiledGraph() *CompiledGraph[S, U] {
	stages := registry.New[string, *stageSpec[S, U]]()
	for id, spec := range g.stages {
		clone := *spec
		stages.Register(id, &clone)
	}

	edges := make(map[string]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = targets[0]
	}

	conditional := make(map[string]conditionalEdge[S], len(g.conditional))
	for from, c := range g.conditional {
		routes := make(map[string]string, len(c.routes))
		for label, to := range c.routes {
			routes[label] = to
		}
		conditional[from] = conditionalEdge[S]{decide: c.decide, routes: routes}
	}

	successors := make(map[string][]string)
	predecessors := make(map[string][]string)
	for _, from := range g.order {
		for _, to := range g.targets(from) {
			if slices.Contains(successors[from], to) {
				continue
			}
			successors[from] = append(successors[from], to)
			if to != END {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}

	return &CompiledGraph[S, U]{
		name:         g.name,
		merge:        g.merge,
		stages:       stages,
		edges:        edges,
		conditional:  conditional,
		entryPoint:   g.entryPoint,
		initial:      g.initial,
		stop:         g.stop,
		successors:   successors,
		predecessors: predecessors,
		turnLocks:    registry.New[string, *turnLock](),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
