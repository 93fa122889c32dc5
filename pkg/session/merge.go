package session

import "slices"

// fieldRule folds one field of an update into the state.
type fieldRule func(dst *State, u Update)

// rules holds exactly one merge rule per State field.
var rules = []fieldRule{
	appendHistory,
	replaceSymptoms,
	replaceEvidence,
	replaceHypothesis,
	replaceCritique,
	replaceNextStep,
	replaceDoctorSummary,
	replaceRecommendedDepartment,
	replaceMedicationSummary,
	replaceMedications,
	replaceSearchCount,
	replaceAskCount,
	replaceMissingInfo,
	replaceFactCheckConfidence,
	replaceFactCheckSources,
}

// Merge returns s with u folded in. The input state is not modified and
// the result shares no slice storage with either argument.
func Merge(s State, u Update) State {
	out := s
	out.Symptoms = slices.Clone(s.Symptoms)
	out.Evidence = slices.Clone(s.Evidence)
	out.Medications = slices.Clone(s.Medications)
	out.MissingInfo = slices.Clone(s.MissingInfo)
	out.FactCheckSources = slices.Clone(s.FactCheckSources)
	out.History = slices.Clone(s.History)
	for _, rule := range rules {
		rule(&out, u)
	}
	return out
}

func appendHistory(dst *State, u Update) {
	if len(u.History) == 0 {
		return
	}
	history := make([]Message, 0, len(dst.History)+len(u.History))
	history = append(history, dst.History...)
	dst.History = append(history, u.History...)
}

func replaceSymptoms(dst *State, u Update) {
	if u.Symptoms != nil {
		dst.Symptoms = slices.Clone(*u.Symptoms)
	}
}

func replaceEvidence(dst *State, u Update) {
	if u.Evidence != nil {
		dst.Evidence = slices.Clone(*u.Evidence)
	}
}

func replaceHypothesis(dst *State, u Update) {
	if u.Hypothesis != nil {
		dst.Hypothesis = *u.Hypothesis
	}
}

func replaceCritique(dst *State, u Update) {
	if u.Critique != nil {
		dst.Critique = *u.Critique
	}
}

func replaceNextStep(dst *State, u Update) {
	if u.NextStep != nil {
		dst.NextStep = *u.NextStep
	}
}

func replaceDoctorSummary(dst *State, u Update) {
	if u.DoctorSummary != nil {
		dst.DoctorSummary = *u.DoctorSummary
	}
}

func replaceRecommendedDepartment(dst *State, u Update) {
	if u.RecommendedDepartment != nil {
		dst.RecommendedDepartment = *u.RecommendedDepartment
	}
}

func replaceMedicationSummary(dst *State, u Update) {
	if u.MedicationSummary != nil {
		dst.MedicationSummary = *u.MedicationSummary
	}
}

func replaceMedications(dst *State, u Update) {
	if u.Medications != nil {
		dst.Medications = slices.Clone(*u.Medications)
	}
}

func replaceSearchCount(dst *State, u Update) {
	if u.SearchCount != nil {
		dst.SearchCount = *u.SearchCount
	}
}

func replaceAskCount(dst *State, u Update) {
	if u.AskCount != nil {
		dst.AskCount = *u.AskCount
	}
}

func replaceMissingInfo(dst *State, u Update) {
	if u.MissingInfo != nil {
		dst.MissingInfo = slices.Clone(*u.MissingInfo)
	}
}

// replaceFactCheckConfidence clamps into 0..MaxConfidenceScore.
func replaceFactCheckConfidence(dst *State, u Update) {
	if u.FactCheckConfidence == nil {
		return
	}
	dst.FactCheckConfidence = min(max(*u.FactCheckConfidence, 0), MaxConfidenceScore)
}

func replaceFactCheckSources(dst *State, u Update) {
	if u.FactCheckSources != nil {
		dst.FactCheckSources = slices.Clone(*u.FactCheckSources)
	}
}
