// Package medigraph assembles the diagnostic stages into a workflow graph
// and exposes it as a multi-turn conversation service.
package medigraph

import (
	"errors"

	"github.com/DongHyun925/MediGraph/pkg/cache"
	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/search"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/stages"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

// GraphName labels turn spans and logs.
const GraphName = "medigraph"

// Graph is the compiled diagnostic workflow.
type Graph = workflow.CompiledGraph[session.State, session.Update]

// Dependencies are the collaborators the stages call.
type Dependencies struct {
	LLM      llm.Client
	Searcher search.Searcher
	// Cache memoizes evidence by query. Nil disables memoization.
	Cache              *cache.Cache[[]string]
	Retrieve           stages.RetrieveConfig
	VerificationPolicy stages.VerificationPolicy
}

var (
	// ErrNoLLM is returned when Dependencies has no reasoning client.
	ErrNoLLM = errors.New("medigraph: llm client required")
	// ErrNoSearcher is returned when Dependencies has no searcher.
	ErrNoSearcher = errors.New("medigraph: searcher required")
)

// NewGraph wires the stages into the diagnostic state machine:
//
//	analyze -ask-> ask_question -> END
//	analyze -route-> triage
//	triage -emergency-> emergency_reply -> END
//	triage -research-> retrieve_evidence -> evaluate_evidence
//	evaluate_evidence -insufficient-> retrieve_evidence
//	evaluate_evidence -sufficient-> compose_diagnosis
//	compose_diagnosis -mentions_medication-> extract_medication -> verify_facts
//	compose_diagnosis -otherwise-> verify_facts -> END
func NewGraph(deps Dependencies) (*Graph, error) {
	if deps.LLM == nil {
		return nil, ErrNoLLM
	}
	if deps.Searcher == nil {
		return nil, ErrNoSearcher
	}
	policy := deps.VerificationPolicy
	if policy == "" {
		policy = stages.PolicyUnverified
	}

	g := workflow.NewGraph[session.State, session.Update](session.Merge).Named(GraphName)
	for _, st := range []stages.Stage{
		stages.NewAnalyze(deps.LLM),
		stages.NewAskQuestion(deps.LLM),
		stages.NewTriage(deps.LLM),
		stages.NewEmergencyReply(deps.LLM),
		stages.NewRetrieveEvidence(deps.Searcher, deps.Cache, deps.Retrieve),
		stages.NewEvaluateEvidence(deps.LLM),
		stages.NewComposeDiagnosis(deps.LLM),
		stages.NewExtractMedication(deps.LLM),
		stages.NewVerifyFacts(deps.LLM, policy),
	} {
		g.AddStage(st.ID, st.Run, st.Options()...)
	}

	g.AddConditionalEdge(stages.AnalyzeID, stages.AfterAnalyze, map[string]string{
		stages.LabelAsk:   stages.AskQuestionID,
		stages.LabelRoute: stages.TriageID,
	})
	g.AddEdge(stages.AskQuestionID, workflow.END)

	g.AddConditionalEdge(stages.TriageID, stages.AfterTriage, map[string]string{
		stages.LabelEmergency: stages.EmergencyReplyID,
		stages.LabelResearch:  stages.RetrieveEvidenceID,
	})
	g.AddEdge(stages.EmergencyReplyID, workflow.END)

	g.AddEdge(stages.RetrieveEvidenceID, stages.EvaluateEvidenceID)
	g.AddConditionalEdge(stages.EvaluateEvidenceID, stages.AfterEvaluate, map[string]string{
		stages.LabelInsufficient: stages.RetrieveEvidenceID,
		stages.LabelSufficient:   stages.ComposeDiagnosisID,
	})

	g.AddConditionalEdge(stages.ComposeDiagnosisID, stages.AfterDiagnosis, map[string]string{
		stages.LabelMentionsMedication: stages.ExtractMedicationID,
		stages.LabelOtherwise:          stages.VerifyFactsID,
	})
	g.AddEdge(stages.ExtractMedicationID, stages.VerifyFactsID)
	g.AddEdge(stages.VerifyFactsID, workflow.END)

	g.SetEntry(stages.AnalyzeID).
		SetInitialState(session.New).
		StopWhen(func(s session.State) bool { return s.NextStep == session.StepEnd })

	return g.Compile()
}
