package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Linear(t *testing.T) {
	compiled, err := newCounterGraph().
		AddStage("a", increment).
		AddStage("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, "a", compiled.EntryPoint())
	assert.Equal(t, []string{"a", "b"}, compiled.StageIDs())
	assert.True(t, compiled.HasStage("a"))
	assert.False(t, compiled.HasStage("missing"))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Graph[Counter, Delta]
		want  error
	}{
		{
			name: "no entry point",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddEdge("a", END)
			},
			want: ErrNoEntryPoint,
		},
		{
			name: "entry not found",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddEdge("a", END).SetEntry("missing")
			},
			want: ErrEntryNotFound,
		},
		{
			name: "edge source not found",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddEdge("a", END).
					AddEdge("ghost", END).SetEntry("a")
			},
			want: ErrStageNotFound,
		},
		{
			name: "edge target not found",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddEdge("a", "ghost").SetEntry("a")
			},
			want: ErrStageNotFound,
		},
		{
			name: "route target not found",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).
					AddConditionalEdge("a", byNext, map[string]string{"done": END, "more": "ghost"}).
					SetEntry("a")
			},
			want: ErrStageNotFound,
		},
		{
			name: "conditional source not found",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddEdge("a", END).
					AddConditionalEdge("ghost", byNext, map[string]string{"x": END}).
					SetEntry("a")
			},
			want: ErrStageNotFound,
		},
		{
			name: "missing transition",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddStage("b", increment).
					AddEdge("a", END).SetEntry("a")
			},
			want: ErrMissingTransition,
		},
		{
			name: "edge and route table",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddEdge("a", END).
					AddConditionalEdge("a", byNext, map[string]string{"x": END}).
					SetEntry("a")
			},
			want: ErrConflictingTransition,
		},
		{
			name: "two edges",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddStage("b", increment).
					AddEdge("a", "b").AddEdge("a", END).AddEdge("b", END).SetEntry("a")
			},
			want: ErrConflictingTransition,
		},
		{
			name: "empty route table",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).
					AddConditionalEdge("a", byNext, map[string]string{}).SetEntry("a")
			},
			want: ErrEmptyRoutes,
		},
		{
			name: "empty label",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).
					AddConditionalEdge("a", byNext, map[string]string{"": END}).SetEntry("a")
			},
			want: ErrEmptyRoutes,
		},
		{
			name: "no path to end",
			build: func() *Graph[Counter, Delta] {
				return newCounterGraph().AddStage("a", increment).AddStage("b", increment).
					AddEdge("a", "b").AddEdge("b", "a").SetEntry("a")
			},
			want: ErrNoPathToEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.build().Compile()
			assert.Nil(t, compiled)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_JoinsAllErrors(t *testing.T) {
	_, err := newCounterGraph().
		AddStage("a", increment).
		AddStage("b", increment).
		AddEdge("a", "ghost").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.ErrorIs(t, err, ErrStageNotFound)
	assert.ErrorIs(t, err, ErrMissingTransition)
}

func TestCompile_LoopWithExit(t *testing.T) {
	_, err := newCounterGraph().
		AddStage("retry", increment).
		AddConditionalEdge("retry", byNext, map[string]string{"again": "retry", "done": END}).
		SetEntry("retry").
		Compile()

	assert.NoError(t, err)
}

func TestCompile_UnreachableIsNotAnError(t *testing.T) {
	compiled, err := newCounterGraph().
		AddStage("a", increment).
		AddStage("orphan", increment).
		AddEdge("a", END).
		AddEdge("orphan", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.True(t, compiled.HasStage("orphan"))
}

func TestCompiledGraph_Introspection(t *testing.T) {
	compiled, err := newCounterGraph().
		Named("triage").
		AddStage("start", increment).
		AddStage("left", increment).
		AddStage("right", increment).
		AddConditionalEdge("start", byNext, map[string]string{"l": "left", "r": "right", "stop": END}).
		AddEdge("left", "right").
		AddEdge("right", END).
		SetEntry("start").
		Compile()
	require.NoError(t, err)

	assert.Equal(t, "triage", compiled.Name())
	assert.ElementsMatch(t, []string{"left", "right", END}, compiled.Successors("start"))
	assert.Equal(t, []string{"right"}, compiled.Successors("left"))
	assert.Nil(t, compiled.Successors(END))
	assert.ElementsMatch(t, []string{"start", "left"}, compiled.Predecessors("right"))
	assert.Empty(t, compiled.Predecessors("start"))

	assert.True(t, compiled.IsConditional("start"))
	assert.False(t, compiled.IsConditional("left"))

	routes := compiled.Routes("start")
	assert.Equal(t, map[string]string{"l": "left", "r": "right", "stop": END}, routes)
	routes["l"] = "mutated"
	assert.Equal(t, "left", compiled.Routes("start")["l"])
	assert.Nil(t, compiled.Routes("left"))
}

func TestCompile_IsolatedFromBuilder(t *testing.T) {
	g := newCounterGraph().
		AddStage("a", increment).
		AddEdge("a", END).
		SetEntry("a")

	compiled, err := g.Compile()
	require.NoError(t, err)

	g.AddStage("b", increment)

	assert.False(t, compiled.HasStage("b"))
	assert.Equal(t, []string{"a"}, compiled.StageIDs())
}

func TestCompiledGraph_InitialState(t *testing.T) {
	compiled, err := newCounterGraph().
		AddStage("a", increment).
		AddEdge("a", END).
		SetEntry("a").
		SetInitialState(func() Counter { return Counter{Value: 7} }).
		Compile()
	require.NoError(t, err)

	assert.Equal(t, 7, compiled.InitialState().Value)
}
