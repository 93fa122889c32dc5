package stages

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

const (
	// DefaultDepartment is recommended when the model names none.
	DefaultDepartment = "Internal Medicine"

	diagnosisFailure    = "An error occurred while generating the analysis. Please try again in a moment."
	diagnosisDisclaimer = "⚠️ **Important**: This analysis is for reference only and does not replace a physician's diagnosis. If symptoms persist or get worse, visit a medical facility."
)

const diagnoseSystemPrompt = `You are an experienced internist writing a preliminary assessment.

Patient symptoms: %s

Evidence from medical sources:
%s

Recent conversation:
%s

Write in the patient's language, without sympathy phrases. Respond with JSON only:
{
  "diagnosis": "most likely condition",
  "confidence": "0-100%%",
  "explanation": "why, citing the evidence",
  "differential_diagnosis": ["other possible conditions"],
  "recommendations": ["self-care steps"],
  "doctor_pass": "a concise summary the patient can hand to a doctor",
  "recommended_department": "hospital department to visit"
}`

// flexText decodes a JSON string, number or list of strings into text.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexText(textOf(v))
	return nil
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := textOf(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(t)
	}
}

// flexList decodes a JSON list or a single string into a list.
type flexList []string

func (f *flexList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexList(listOf(v))
	return nil
}

func listOf(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(textOf(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := strings.TrimSpace(textOf(t)); s != "" {
			return []string{s}
		}
		return nil
	}
}

type diagnosis struct {
	Diagnosis             flexText `json:"diagnosis"`
	Confidence            flexText `json:"confidence"`
	Explanation           flexText `json:"explanation"`
	Differential          flexList `json:"differential_diagnosis"`
	Recommendations       flexList `json:"recommendations"`
	DoctorPass            flexText `json:"doctor_pass"`
	RecommendedDepartment flexText `json:"recommended_department"`
}

// NewComposeDiagnosis returns the stage that writes the patient-facing
// report and the doctor summary.
func NewComposeDiagnosis(client llm.Client) Stage {
	return Stage{
		ID: ComposeDiagnosisID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			req := llm.UserPrompt(
				fmt.Sprintf(diagnoseSystemPrompt,
					joinOr(s.Symptoms, ", ", "none"),
					joinOr(s.Evidence, "\n---\n", "no evidence was found"),
					renderConversation(s.Recent(analyzeHistoryWindow), "none")),
				"Write the assessment.",
			)
			req.JSON = true

			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("compose diagnosis: %w", err)
			}
			d, err := llm.ParseJSON[diagnosis](text)
			if err != nil {
				return session.Update{}, fmt.Errorf("compose diagnosis: %w", err)
			}

			department := strings.TrimSpace(string(d.RecommendedDepartment))
			if department == "" {
				department = DefaultDepartment
			}
			return session.Update{
				Hypothesis:            session.Set(renderReport(d)),
				DoctorSummary:         session.Set(StripPersonaFluff(string(d.DoctorPass))),
				RecommendedDepartment: session.Set(department),
				NextStep:              session.Set(session.StepVerify),
			}, nil
		},
		Fallback: func(session.State, error) session.Update {
			return session.Update{
				Hypothesis: session.Set(diagnosisFailure),
				NextStep:   session.Set(session.StepVerify),
			}
		},
	}
}

// renderReport formats the patient-facing markdown report.
func renderReport(d diagnosis) string {
	var b strings.Builder
	b.WriteString("## 📋 AI Symptom Analysis\n\n")

	name := strings.TrimSpace(string(d.Diagnosis))
	if name == "" {
		name = "Undetermined"
	}
	fmt.Fprintf(&b, "**🔍 Possible condition:** %s (AI confidence: %s)\n\n", name, confidenceLabel(string(d.Confidence)))

	if explanation := StripPersonaFluff(string(d.Explanation)); explanation != "" {
		b.WriteString(explanation)
		b.WriteString("\n\n")
	}

	b.WriteString("**⚖️ Differential diagnoses:** ")
	b.WriteString(joinOr(d.Differential, ", ", "None"))
	b.WriteString("\n\n")

	var recs []string
	for _, r := range d.Recommendations {
		if r = StripPersonaFluff(r); r != "" {
			recs = append(recs, "- "+strings.TrimLeft(r, "-• "))
		}
	}
	if len(recs) > 0 {
		b.WriteString("**💡 Self-care recommendations**\n")
		b.WriteString(strings.Join(recs, "\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("---\n")
	b.WriteString(diagnosisDisclaimer)
	return b.String()
}

// confidenceLabel renders a model confidence as a percentage.
func confidenceLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "unknown"
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return raw + "%"
	}
	return raw
}
