package medigraph

import (
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/stages"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

// Response texts used when the turn did not end on a question.
const (
	AnalysisCompleteText = "Analysis complete. Please review the report below."
	EmergencyText        = "⚠️ An emergency is suspected. Call 119 or go to the nearest emergency room now."
	ApologyText          = "Sorry, I could not process that. Could you describe your symptoms again?"
)

// Step summarizes one executed stage for the caller.
type Step struct {
	Stage     string   `json:"stage"`
	Fields    []string `json:"fields,omitempty"`
	Messages  []string `json:"messages,omitempty"`
	Diagnosis string   `json:"diagnosis,omitempty"`
	NextStep  string   `json:"next_step,omitempty"`
	Fault     string   `json:"fault,omitempty"`
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Turn           int    `json:"turn"`
	Steps          []Step `json:"steps"`

	// Diagnosis is the hypothesis produced this turn, if any.
	Diagnosis             string   `json:"diagnosis,omitempty"`
	NextStep              string   `json:"next_step"`
	Critique              string   `json:"critique,omitempty"`
	DoctorSummary         string   `json:"doctor_summary,omitempty"`
	RecommendedDepartment string   `json:"recommended_department,omitempty"`
	MedicationSummary     string   `json:"medication_summary,omitempty"`
	FactCheckConfidence   int      `json:"fact_check_confidence"`
	FactCheckSources      []string `json:"fact_check_sources"`
}

// NewStep converts an engine event.
func NewStep(ev workflow.Event[session.Update]) Step {
	u := ev.Update
	step := Step{Stage: ev.Stage, Fields: u.Fields()}
	for _, m := range u.History {
		if m.Role == session.RoleAssistant {
			step.Messages = append(step.Messages, m.Text)
		}
	}
	if u.Hypothesis != nil {
		step.Diagnosis = stripMarkdownFence(*u.Hypothesis)
	}
	if u.NextStep != nil {
		step.NextStep = *u.NextStep
	}
	if ev.Fault != nil {
		step.Fault = ev.Fault.Error()
	}
	return step
}

// NewReply builds the reply for a finished turn.
func NewReply(res *workflow.Result[session.State, session.Update]) *Reply {
	steps := make([]Step, 0, len(res.Events))
	for _, ev := range res.Events {
		steps = append(steps, NewStep(ev))
	}
	return buildReply(res.ConversationID, res.Turn, res.State, steps)
}

func buildReply(conversationID string, turn int, s session.State, steps []Step) *Reply {
	r := &Reply{
		ConversationID:        conversationID,
		Turn:                  turn,
		Steps:                 steps,
		NextStep:              s.NextStep,
		Critique:              s.Critique,
		DoctorSummary:         s.DoctorSummary,
		RecommendedDepartment: s.RecommendedDepartment,
		MedicationSummary:     s.MedicationSummary,
		FactCheckConfidence:   s.FactCheckConfidence,
		FactCheckSources:      s.FactCheckSources,
	}
	if r.FactCheckSources == nil {
		r.FactCheckSources = []string{}
	}

	diagnosed := false
	var lastMessage string
	for _, st := range steps {
		if st.Diagnosis != "" {
			r.Diagnosis = st.Diagnosis
		}
		if st.Stage == stages.ComposeDiagnosisID {
			diagnosed = true
		}
		if n := len(st.Messages); n > 0 {
			lastMessage = st.Messages[n-1]
		}
	}

	switch {
	case diagnosed:
		r.Response = AnalysisCompleteText
	case s.NextStep == session.StepEmergency:
		r.Response = EmergencyText
	case lastMessage != "":
		r.Response = lastMessage
	default:
		r.Response = ApologyText
	}
	return r
}

// stripMarkdownFence removes a code fence wrapped around a whole report.
func stripMarkdownFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.Contains(t[:nl], " ") {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
