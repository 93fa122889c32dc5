package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMerge_EmptyUpdate tests that an empty update leaves the state unchanged.
func TestMerge_EmptyUpdate(t *testing.T) {
	s := State{
		History:    []Message{UserMessage("hi")},
		Symptoms:   []string{"headache"},
		Hypothesis: "migraine",
		AskCount:   1,
	}

	got := Merge(s, Update{})

	assert.Equal(t, s, got)
}

// TestMerge_HistoryAppends tests that history is concatenated, never replaced.
func TestMerge_HistoryAppends(t *testing.T) {
	s := State{History: []Message{UserMessage("first")}}

	s = Merge(s, Update{History: []Message{AssistantMessage("question?")}})
	s = Merge(s, Update{History: []Message{UserMessage("answer")}})

	require.Len(t, s.History, 3)
	assert.Equal(t, "first", s.History[0].Text)
	assert.Equal(t, RoleAssistant, s.History[1].Role)
	assert.Equal(t, "answer", s.History[2].Text)
}

// TestMerge_DoesNotAliasInput tests that merging never writes into the
// backing arrays of the input state.
func TestMerge_DoesNotAliasInput(t *testing.T) {
	history := make([]Message, 1, 8)
	history[0] = UserMessage("first")
	s := State{History: history, Symptoms: []string{"a"}}

	a := Merge(s, Update{History: []Message{UserMessage("a")}})
	b := Merge(s, Update{History: []Message{UserMessage("b")}})
	a.Symptoms[0] = "changed"

	assert.Equal(t, "a", a.History[1].Text)
	assert.Equal(t, "b", b.History[1].Text)
	assert.Equal(t, "a", s.Symptoms[0])
	assert.Len(t, s.History, 1)
}

// TestMerge_Replacement tests replacement semantics for every replaceable field.
func TestMerge_Replacement(t *testing.T) {
	s := State{
		Symptoms:    []string{"old"},
		Evidence:    []string{"old evidence"},
		NextStep:    StepRoute,
		SearchCount: 1,
		MissingInfo: []string{"duration"},
	}

	got := Merge(s, Update{
		Symptoms:              Set([]string{"fever", "cough"}),
		Evidence:              Set([]string{}),
		Hypothesis:            Set("flu"),
		Critique:              Set("valid"),
		NextStep:              Set(StepEnd),
		DoctorSummary:         Set("- fever for two days"),
		RecommendedDepartment: Set("Internal Medicine"),
		MedicationSummary:     Set("Current medications: aspirin"),
		Medications:           Set([]string{"aspirin"}),
		SearchCount:           Set(2),
		AskCount:              Set(1),
		MissingInfo:           Set([]string{}),
		FactCheckConfidence:   Set(85),
		FactCheckSources:      Set([]string{"WHO"}),
	})

	assert.Equal(t, []string{"fever", "cough"}, got.Symptoms)
	assert.Empty(t, got.Evidence)
	assert.NotNil(t, got.Evidence, "empty replacement is distinct from unset")
	assert.Equal(t, "flu", got.Hypothesis)
	assert.Equal(t, "valid", got.Critique)
	assert.Equal(t, StepEnd, got.NextStep)
	assert.Equal(t, "- fever for two days", got.DoctorSummary)
	assert.Equal(t, "Internal Medicine", got.RecommendedDepartment)
	assert.Equal(t, "Current medications: aspirin", got.MedicationSummary)
	assert.Equal(t, []string{"aspirin"}, got.Medications)
	assert.Equal(t, 2, got.SearchCount)
	assert.Equal(t, 1, got.AskCount)
	assert.Empty(t, got.MissingInfo)
	assert.Equal(t, 85, got.FactCheckConfidence)
	assert.Equal(t, []string{"WHO"}, got.FactCheckSources)
}

// TestMerge_UnsetFieldsUntouched tests that nil fields leave prior values alone.
func TestMerge_UnsetFieldsUntouched(t *testing.T) {
	s := State{Symptoms: []string{"rash"}, Hypothesis: "eczema", AskCount: 2}

	got := Merge(s, Update{NextStep: Set(StepVerify)})

	assert.Equal(t, []string{"rash"}, got.Symptoms)
	assert.Equal(t, "eczema", got.Hypothesis)
	assert.Equal(t, 2, got.AskCount)
	assert.Equal(t, StepVerify, got.NextStep)
}

// TestMerge_ConfidenceClamped tests that fact-check confidence stays in 0..100.
func TestMerge_ConfidenceClamped(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"in range", 42, 42},
		{"above", 250, 100},
		{"below", -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(State{}, Update{FactCheckConfidence: Set(tt.in)})
			assert.Equal(t, tt.want, got.FactCheckConfidence)
		})
	}
}

// TestMerge_HistoryLengthIsSumOfAppends tests the append-only invariant over
// a sequence of turns.
func TestMerge_HistoryLengthIsSumOfAppends(t *testing.T) {
	appends := [][]Message{
		{UserMessage("t1")},
		{AssistantMessage("q1"), UserMessage("t2")},
		{},
		{AssistantMessage("q2")},
	}

	var s State
	total := 0
	for _, msgs := range appends {
		s = Merge(s, Update{History: msgs})
		total += len(msgs)
		assert.Len(t, s.History, total)
	}
}

// TestUpdate_Fields tests field name reporting.
func TestUpdate_Fields(t *testing.T) {
	assert.True(t, Update{}.IsEmpty())

	u := Update{
		History:     []Message{AssistantMessage("q")},
		AskCount:    Set(1),
		NextStep:    Set(StepAsk),
		MissingInfo: Set([]string(nil)),
	}
	assert.Equal(t, []string{"history", "next_step", "ask_count", "missing_info"}, u.Fields())
	assert.False(t, u.IsEmpty())
}

// TestUpdate_JSONOmitsUnset tests that unset fields are absent from the wire form.
func TestUpdate_JSONOmitsUnset(t *testing.T) {
	data, err := json.Marshal(Update{NextStep: Set(StepEnd)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"next_step":"end"}`, string(data))
}

// TestState_Accessors tests the history helpers.
func TestState_Accessors(t *testing.T) {
	s := State{History: []Message{
		UserMessage("u1"),
		AssistantMessage("a1"),
		UserMessage("u2"),
		AssistantMessage("a2"),
	}}

	last, ok := s.LastUserMessage()
	require.True(t, ok)
	assert.Equal(t, "u2", last)

	assert.Equal(t, []Message{UserMessage("u2"), AssistantMessage("a2")}, s.Recent(2))
	assert.Len(t, s.Recent(10), 4)
	assert.Nil(t, s.Recent(0))

	assert.Equal(t, []string{"u2", "u1"}, s.RecentUserTexts(3))

	_, ok = State{}.LastUserMessage()
	assert.False(t, ok)
}
