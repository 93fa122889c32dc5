package stages

import (
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

const triageSystemPrompt = `You are an emergency department triage nurse.

Classify the patient's symptoms into exactly one category:
- emergency: life-threatening signs (crushing chest pain, difficulty breathing, loss of consciousness,
  stroke signs, severe bleeding, seizure)
- specialist_referral: needs a specialist but is not immediately life-threatening
- general_advice: mild, self-limiting complaints

Answer with the category name only.`

// NewTriage returns the stage that classifies urgency.
func NewTriage(client llm.Client) Stage {
	return Stage{
		ID: TriageID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			if len(s.Symptoms) == 0 {
				return nextStep(session.StepGeneralAdvice), nil
			}
			req := llm.UserPrompt(triageSystemPrompt, "Symptoms: "+strings.Join(s.Symptoms, ", "))
			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("triage: %w", err)
			}
			category := classifyTriage(text)
			ctx.Logger().Debug("triage classified", "category", category)
			return nextStep(category), nil
		},
		Fallback: func(s session.State, _ error) session.Update {
			if hasRedFlag(s.Symptoms) {
				return nextStep(session.StepEmergency)
			}
			return nextStep(session.StepGeneralAdvice)
		},
	}
}

// classifyTriage normalizes free-form classifier output.
func classifyTriage(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "emergency"):
		return session.StepEmergency
	case strings.Contains(lower, "specialist"):
		return session.StepSpecialist
	default:
		return session.StepGeneralAdvice
	}
}

func nextStep(step string) session.Update {
	return session.Update{NextStep: session.Set(step)}
}
