package stages

import (
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

const medicationUserWindow = 3

// noMedication is the model's answer when nothing is being taken.
const noMedication = "none"

const medicationSystemPrompt = `Extract the names of medications the patient says they are currently taking.

Answer with the names separated by commas, for example: Tylenol, Aspirin
If the patient takes no medication, answer: none`

// NewExtractMedication returns the stage that records the medications the
// patient mentions.
func NewExtractMedication(client llm.Client) Stage {
	return Stage{
		ID: ExtractMedicationID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			texts := s.RecentUserTexts(medicationUserWindow)
			if len(texts) == 0 {
				return session.Update{}, nil
			}
			req := llm.UserPrompt(medicationSystemPrompt, strings.Join(texts, "\n"))
			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("extract medication: %w", err)
			}

			names := parseMedications(text)
			if len(names) == 0 {
				return session.Update{}, nil
			}
			ctx.Logger().Debug("medications extracted", "count", len(names))
			return session.Update{
				Medications:       session.Set(names),
				MedicationSummary: session.Set("Current medications: " + strings.Join(names, ", ")),
			}, nil
		},
		Fallback: func(session.State, error) session.Update {
			return session.Update{}
		},
	}
}

// parseMedications splits a comma-separated answer into names.
func parseMedications(text string) []string {
	text = strings.TrimSpace(text)
	if strings.EqualFold(strings.TrimRight(text, "."), noMedication) {
		return nil
	}
	var names []string
	for _, part := range strings.Split(text, ",") {
		name := strings.TrimSpace(strings.Trim(part, ".\n"))
		if name == "" || strings.EqualFold(name, noMedication) {
			continue
		}
		names = append(names, name)
	}
	return names
}
