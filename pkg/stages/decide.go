package stages

import "github.com/DongHyun925/MediGraph/pkg/session"

// medicationHistoryWindow is how many recent messages are scanned for
// medication mentions.
const medicationHistoryWindow = 5

// AfterAnalyze routes to the follow-up question while the ask budget lasts.
func AfterAnalyze(s session.State) string {
	if s.NextStep == session.StepAsk && s.AskCount < session.MaxAsks {
		return LabelAsk
	}
	return LabelRoute
}

// AfterTriage routes emergencies to the warning and everything else to
// research.
func AfterTriage(s session.State) string {
	if s.NextStep == session.StepEmergency {
		return LabelEmergency
	}
	return LabelResearch
}

// AfterEvaluate loops back to retrieval until the evidence is judged
// sufficient or the search budget is spent.
func AfterEvaluate(s session.State) string {
	if s.NextStep == session.StepRetrieve && s.SearchCount < session.MaxSearches {
		return LabelInsufficient
	}
	return LabelSufficient
}

// AfterDiagnosis detours through medication extraction when the report or
// recent conversation mentions a drug.
func AfterDiagnosis(s session.State) string {
	texts := []string{s.Hypothesis, s.DoctorSummary}
	for _, m := range s.Recent(medicationHistoryWindow) {
		texts = append(texts, m.Text)
	}
	if MentionsMedication(texts...) {
		return LabelMentionsMedication
	}
	return LabelOtherwise
}
