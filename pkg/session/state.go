// Package session defines the record threaded through every diagnostic stage
// and the rules for folding a stage's partial update into it.
package session

// Role identifies who authored a history message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation history.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserMessage returns a message authored by the patient.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantMessage returns a message authored by the assistant.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// Values written to State.NextStep by the stages.
const (
	StepAsk            = "ask"
	StepRoute          = "route"
	StepEmergency      = "emergency"
	StepSpecialist     = "specialist_referral"
	StepGeneralAdvice  = "general_advice"
	StepRetrieve       = "retrieve"
	StepDiagnose       = "diagnose"
	StepVerify         = "verify"
	StepEnd            = "end"
	MaxAsks            = 3
	MaxSearches        = 3
	MaxConfidenceScore = 100
)

// State is the per-conversation record. The zero value is the default state
// for a conversation that has not been seen before; every field reads as
// empty rather than as an error.
type State struct {
	History               []Message `json:"history"`
	Symptoms              []string  `json:"symptoms"`
	Evidence              []string  `json:"evidence"`
	Hypothesis            string    `json:"hypothesis,omitempty"`
	Critique              string    `json:"critique,omitempty"`
	NextStep              string    `json:"next_step,omitempty"`
	DoctorSummary         string    `json:"doctor_summary,omitempty"`
	RecommendedDepartment string    `json:"recommended_department,omitempty"`
	MedicationSummary     string    `json:"medication_summary,omitempty"`
	Medications           []string  `json:"medications,omitempty"`
	SearchCount           int       `json:"search_count"`
	AskCount              int       `json:"ask_count"`
	MissingInfo           []string  `json:"missing_info"`
	FactCheckConfidence   int       `json:"fact_check_confidence"`
	FactCheckSources      []string  `json:"fact_check_sources"`
}

// New returns the default state.
func New() State {
	return State{}
}

// LastUserMessage returns the text of the most recent patient message.
func (s State) LastUserMessage() (string, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Text, true
		}
	}
	return "", false
}

// Recent returns up to n of the most recent history messages, oldest first.
func (s State) Recent(n int) []Message {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	return s.History[len(s.History)-n:]
}

// RecentUserTexts returns up to n of the most recent patient messages,
// newest first.
func (s State) RecentUserTexts(n int) []string {
	var out []string
	for i := len(s.History) - 1; i >= 0 && len(out) < n; i-- {
		if s.History[i].Role == RoleUser {
			out = append(out, s.History[i].Text)
		}
	}
	return out
}
