package stages

import (
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

const (
	emergencyBanner  = "🚨 **Call emergency services (119) immediately** 🚨\n\nCRITICAL EMERGENCY\n\n"
	emergencyWarning = "WARNING: severe symptoms detected. Contact emergency services or go to the nearest emergency room right away."
	// emergencyDefaultRationale is used when no rationale can be generated.
	emergencyDefaultRationale = "A serious condition is suspected. Do not move unnecessarily, lie down in a safe position and call 119 now."
)

const emergencySystemPrompt = `You are an emergency physician. The patient has symptoms that require emergency care.

In two or three short sentences, state what dangerous condition the symptoms may indicate and what the
patient must do right now while waiting for help. No sympathy phrases. Reply in the patient's language.`

// NewEmergencyReply returns the stage that writes the emergency warning.
func NewEmergencyReply(client llm.Client) Stage {
	return Stage{
		ID: EmergencyReplyID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			req := llm.UserPrompt(emergencySystemPrompt, "Symptoms: "+joinOr(s.Symptoms, ", ", "unspecified"))
			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("emergency reply: %w", err)
			}
			rationale := StripPersonaFluff(text)
			if rationale == "" {
				rationale = emergencyDefaultRationale
			}
			return emergencyUpdate(rationale), nil
		},
		Fallback: func(session.State, error) session.Update {
			return emergencyUpdate(emergencyDefaultRationale)
		},
	}
}

func emergencyUpdate(rationale string) session.Update {
	return session.Update{
		History:    []session.Message{session.AssistantMessage(emergencyWarning)},
		Hypothesis: session.Set(emergencyBanner + strings.TrimSpace(rationale)),
		Critique:   session.Set(CritiqueValid),
		NextStep:   session.Set(session.StepEmergency),
	}
}
