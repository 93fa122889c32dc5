package workflow

import (
	"context"
	"slices"
)

// Test state types used across tests

// Counter is a simple state for testing merges and routing.
type Counter struct {
	Value  int      `json:"value"`
	Visits []string `json:"visits,omitempty"`
	Next   string   `json:"next,omitempty"`
}

// Delta is the sparse update for Counter.
type Delta struct {
	Add   int
	Visit string
	Next  *string
}

// mergeCounter adds Add, appends Visit and replaces Next when set.
func mergeCounter(s Counter, u Delta) Counter {
	s.Value += u.Add
	if u.Visit != "" {
		s.Visits = append(slices.Clone(s.Visits), u.Visit)
	}
	if u.Next != nil {
		s.Next = *u.Next
	}
	return s
}

func newCounterGraph() *Graph[Counter, Delta] {
	return NewGraph[Counter, Delta](mergeCounter)
}

// Helper stage functions

// increment adds one to the counter.
func increment(ctx Context, s Counter) (Delta, error) {
	return Delta{Add: 1}, nil
}

// visit records the stage name in Visits.
func visit(name string) StageFunc[Counter, Delta] {
	return func(ctx Context, s Counter) (Delta, error) {
		return Delta{Visit: name}, nil
	}
}

// failing returns the given error.
func failing(err error) StageFunc[Counter, Delta] {
	return func(ctx Context, s Counter) (Delta, error) {
		return Delta{}, err
	}
}

// panicking panics with the given value.
func panicking(value any) StageFunc[Counter, Delta] {
	return func(ctx Context, s Counter) (Delta, error) {
		panic(value)
	}
}

// byNext routes on the Next field.
func byNext(s Counter) string {
	return s.Next
}

func strPtr(s string) *string {
	return &s
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
