// Package benchmarks measures engine, checkpoint and cache overhead.
package benchmarks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/medigraph"
	"github.com/DongHyun925/MediGraph/pkg/search"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

// scripted answers each stage prompt by a phrase from its system prompt.
func scripted(answers map[string]string) llm.Client {
	return llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		for phrase, answer := range answers {
			if strings.Contains(req.SystemPrompt, phrase) {
				return &llm.CompletionResponse{Content: answer}, nil
			}
		}
		return nil, fmt.Errorf("unscripted prompt")
	})
}

var askingScript = map[string]string{
	"clinical intake":          `{"symptoms":["headache"],"missing_info":["onset"],"is_sufficient":false}`,
	"taking a patient history": "When did the headache start?",
}

var diagnosisScript = map[string]string{
	"clinical intake":               `{"symptoms":["fever","cough","sore throat"],"missing_info":[],"is_sufficient":true}`,
	"triage nurse":                  "general_advice",
	"review medical search results": "SUFFICIENT",
	"experienced internist": `{"diagnosis":"Influenza","confidence":85,"explanation":"Fever with cough.",
		"differential_diagnosis":["Common cold"],"recommendations":["Rest"],
		"doctor_pass":"Fever and cough for 3 days.","recommended_department":"Family Medicine"}`,
	"fact checker": `{"critique":"valid","confidence":90,"sources":["CDC"]}`,
}

var staticEvidence = search.Func(func(context.Context, search.Request) ([]search.Result, error) {
	return []search.Result{
		{Content: "Influenza presents with fever, cough and sore throat."},
		{Content: "Most cases resolve with rest and fluids."},
	}, nil
})

func newService(b *testing.B, answers map[string]string, opts ...medigraph.Option) *medigraph.Service {
	b.Helper()
	opts = append([]medigraph.Option{medigraph.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	svc, err := medigraph.NewService(medigraph.Dependencies{LLM: scripted(answers), Searcher: staticEvidence}, opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = svc.Close() })
	return svc
}

// noopStage does minimal work to measure engine overhead.
func noopStage(workflow.Context, session.State) (session.Update, error) {
	return session.Update{}, nil
}

func buildLinearGraph(n int) *workflow.Graph[session.State, session.Update] {
	g := workflow.NewGraph[session.State, session.Update](session.Merge).
		SetInitialState(session.New)
	for i := range n {
		g.AddStage(fmt.Sprintf("stage-%d", i), noopStage)
	}
	for i := range n - 1 {
		g.AddEdge(fmt.Sprintf("stage-%d", i), fmt.Sprintf("stage-%d", i+1))
	}
	return g.AddEdge(fmt.Sprintf("stage-%d", n-1), workflow.END).SetEntry("stage-0")
}

func mustCompile(b *testing.B, g *workflow.Graph[session.State, session.Update]) *workflow.CompiledGraph[session.State, session.Update] {
	b.Helper()
	compiled, err := g.Compile()
	if err != nil {
		b.Fatal(err)
	}
	return compiled
}

// conversationState returns a session after several turns of history.
func conversationState(turns int) session.State {
	s := session.New()
	for i := range turns {
		s.History = append(s.History,
			session.UserMessage(fmt.Sprintf("symptom report %d: fever and cough", i)),
			session.AssistantMessage(fmt.Sprintf("follow-up question %d", i)))
	}
	s.Symptoms = []string{"fever", "cough", "sore throat"}
	s.Evidence = []string{"Influenza presents with fever.", "Rest and fluids help."}
	s.Hypothesis = "## Report\n\nInfluenza"
	s.NextStep = session.StepEnd
	return s
}
