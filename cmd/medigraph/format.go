package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/medigraph"
	"github.com/DongHyun925/MediGraph/pkg/stages"
)

// chatService is the part of medigraph.Service the clients use.
type chatService interface {
	Stream(ctx context.Context, conversationID, message string) (*medigraph.Turn, error)
	Forget(ctx context.Context, conversationID string) error
}

// Console commands.
const (
	cmdNew    = "/new"
	cmdForget = "/forget"
)

func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "quit", "exit", "q", "/quit":
		return true
	}
	return false
}

// stageLabels are the progress labels shown while a turn runs.
var stageLabels = map[string]string{
	stages.AnalyzeID:           "Analyzing symptoms",
	stages.AskQuestionID:       "Preparing a question",
	stages.TriageID:            "Assessing urgency",
	stages.EmergencyReplyID:    "Writing emergency guidance",
	stages.RetrieveEvidenceID:  "Searching medical sources",
	stages.EvaluateEvidenceID:  "Reviewing evidence",
	stages.ComposeDiagnosisID:  "Composing the analysis",
	stages.ExtractMedicationID: "Checking medications",
	stages.VerifyFactsID:       "Fact-checking",
}

func stageLabel(id string) string {
	if l, ok := stageLabels[id]; ok {
		return l
	}
	return id
}

// formatReply renders a reply as plain text.
func formatReply(r *medigraph.Reply) string {
	var b strings.Builder
	b.WriteString(r.Response)

	if r.Diagnosis != "" {
		b.WriteString("\n\n")
		b.WriteString(r.Diagnosis)
	}
	if r.DoctorSummary != "" {
		fmt.Fprintf(&b, "\n\nFor your doctor: %s", r.DoctorSummary)
	}
	if r.RecommendedDepartment != "" {
		fmt.Fprintf(&b, "\nRecommended department: %s", r.RecommendedDepartment)
	}
	if r.MedicationSummary != "" {
		fmt.Fprintf(&b, "\n%s", r.MedicationSummary)
	}
	if r.Critique != "" && r.Diagnosis != "" && r.NextStep != "emergency" {
		fmt.Fprintf(&b, "\nFact check: %s (%d%%)", r.Critique, r.FactCheckConfidence)
		if len(r.FactCheckSources) > 0 {
			fmt.Fprintf(&b, " · sources: %s", strings.Join(r.FactCheckSources, "; "))
		}
	}
	return b.String()
}
