// Package stages implements the diagnostic stages of a MediGraph turn and
// the decision functions that route between them.
//
// Each constructor takes its collaborators explicitly and returns a Stage
// bundling the stage function with the fallback the engine applies when
// the stage faults. Stages never touch the state directly; they return a
// sparse session.Update.
package stages

import (
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

// Stage identifiers.
const (
	AnalyzeID           = "analyze"
	AskQuestionID       = "ask_question"
	TriageID            = "triage"
	EmergencyReplyID    = "emergency_reply"
	RetrieveEvidenceID  = "retrieve_evidence"
	EvaluateEvidenceID  = "evaluate_evidence"
	ComposeDiagnosisID  = "compose_diagnosis"
	ExtractMedicationID = "extract_medication"
	VerifyFactsID       = "verify_facts"
)

// Edge labels returned by the decision functions.
const (
	LabelAsk                = "ask"
	LabelRoute              = "route"
	LabelEmergency          = "emergency"
	LabelResearch           = "research"
	LabelInsufficient       = "insufficient"
	LabelSufficient         = "sufficient"
	LabelMentionsMedication = "mentions_medication"
	LabelOtherwise          = "otherwise"
)

// Func is a diagnostic stage function.
type Func = workflow.StageFunc[session.State, session.Update]

// Fallback builds the update used when a stage faults.
type Fallback = workflow.FallbackFunc[session.State, session.Update]

// Stage is a stage function with its fault fallback.
type Stage struct {
	ID       string
	Run      Func
	Fallback Fallback
}

// Options returns the engine options that attach the fallback.
func (s Stage) Options() []workflow.StageOption[session.State, session.Update] {
	if s.Fallback == nil {
		return nil
	}
	return []workflow.StageOption[session.State, session.Update]{
		workflow.WithFallback(s.Fallback),
	}
}

func endUpdate() session.Update {
	return session.Update{NextStep: session.Set(session.StepEnd)}
}
