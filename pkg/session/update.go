package session

// Update is the sparse output of a stage. History entries are appended;
// every other field replaces the state's value when non-nil and is left
// untouched when nil. The zero Update sets nothing.
type Update struct {
	History               []Message `json:"history,omitempty"`
	Symptoms              *[]string `json:"symptoms,omitempty"`
	Evidence              *[]string `json:"evidence,omitempty"`
	Hypothesis            *string   `json:"hypothesis,omitempty"`
	Critique              *string   `json:"critique,omitempty"`
	NextStep              *string   `json:"next_step,omitempty"`
	DoctorSummary         *string   `json:"doctor_summary,omitempty"`
	RecommendedDepartment *string   `json:"recommended_department,omitempty"`
	MedicationSummary     *string   `json:"medication_summary,omitempty"`
	Medications           *[]string `json:"medications,omitempty"`
	SearchCount           *int      `json:"search_count,omitempty"`
	AskCount              *int      `json:"ask_count,omitempty"`
	MissingInfo           *[]string `json:"missing_info,omitempty"`
	FactCheckConfidence   *int      `json:"fact_check_confidence,omitempty"`
	FactCheckSources      *[]string `json:"fact_check_sources,omitempty"`
}

// Set returns a pointer to v for populating Update fields.
//
//	session.Update{NextStep: session.Set(session.StepRoute)}
func Set[T any](v T) *T {
	return &v
}

// Fields returns the JSON names of the fields the update sets, in
// declaration order.
func (u Update) Fields() []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(len(u.History) > 0, "history")
	add(u.Symptoms != nil, "symptoms")
	add(u.Evidence != nil, "evidence")
	add(u.Hypothesis != nil, "hypothesis")
	add(u.Critique != nil, "critique")
	add(u.NextStep != nil, "next_step")
	add(u.DoctorSummary != nil, "doctor_summary")
	add(u.RecommendedDepartment != nil, "recommended_department")
	add(u.MedicationSummary != nil, "medication_summary")
	add(u.Medications != nil, "medications")
	add(u.SearchCount != nil, "search_count")
	add(u.AskCount != nil, "ask_count")
	add(u.MissingInfo != nil, "missing_info")
	add(u.FactCheckConfidence != nil, "fact_check_confidence")
	add(u.FactCheckSources != nil, "fact_check_sources")
	return names
}

// IsEmpty reports whether the update sets no fields.
func (u Update) IsEmpty() bool {
	return len(u.Fields()) == 0
}
