/*
Package workflow runs multi-turn conversations through a graph of stages.

# Overview

A graph is a set of named stages over a state type S. Each stage reads the
state and returns a sparse partial update of type U; the engine folds every
update into the state with one central merge function, persists the result
keyed by conversation ID, and streams one event per completed stage.

	type State struct {
	    Asked int
	    Reply string
	}

	type Update struct {
	    Asked *int
	    Reply *string
	}

	func merge(s State, u Update) State {
	    if u.Asked != nil {
	        s.Asked = *u.Asked
	    }
	    if u.Reply != nil {
	        s.Reply = *u.Reply
	    }
	    return s
	}

	graph := workflow.NewGraph[State, Update](merge).
	    AddStage("answer", answer).
	    AddEdge("answer", workflow.END).
	    SetEntry("answer")

	compiled, err := graph.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	result, err := compiled.Run(ctx, "", Update{})
	fmt.Println(result.ConversationID, result.State.Reply)

# Declared Transitions

A conditional edge pairs a pure decision function with a route table.
Compile checks that every route target exists, so a bad target is a
startup error; a label missing from the table stops the turn with
ErrUnmappedLabel.

	graph.AddConditionalEdge("evaluate", decideEvidence, map[string]string{
	    "insufficient": "retrieve",
	    "sufficient":   "diagnose",
	})

# Bounded Loops

There is no structural step limit by default. A cycle is bounded by data:
the looping stage increments a counter in its update, and the decision
function forces the exit label once the counter reaches its ceiling.
WithMaxIterations adds an optional global limit on top.

# Faults

Errors, panics and timeouts inside a stage are faults. A stage registered
WithFallback recovers: its fallback builds the update, the event carries the
fault, and the turn continues. A stage without a fallback, or marked
FatalOnFault, stops the turn with StageError. Cancelling the caller's
context stops the turn with CancellationError and is never treated as a
fault.

# Conversations

With WithCheckpointing, a turn loads the conversation's last checkpoint,
merges the input, and saves after every stage. Turns for one conversation
are serialized; turns for different conversations run concurrently.

	stream := compiled.Stream(ctx, convID, input, workflow.WithCheckpointing(store))
	for ev, err := range stream.Events() {
	    if err != nil {
	        return err
	    }
	    render(ev.Stage, ev.Update)
	}

# Observability

WithObservabilityLogger, WithMetrics and WithTracing enable slog lifecycle
logs, OpenTelemetry metrics and OpenTelemetry spans. All are off by default.
*/
package workflow
