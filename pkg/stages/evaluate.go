package stages

import (
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

// evaluateEvidenceLimit bounds how many snippets are shown to the evaluator.
const evaluateEvidenceLimit = 5

const evaluateSystemPrompt = `You review medical search results before a diagnosis is written.

Patient symptoms: %s

Search results:
%s

Are these results specific and reliable enough to support a diagnosis of these symptoms?
Start your answer with SUFFICIENT or INSUFFICIENT, followed by one short reason.`

// NewEvaluateEvidence returns the stage that judges whether the retrieved
// evidence supports a diagnosis or another search is needed.
func NewEvaluateEvidence(client llm.Client) Stage {
	return Stage{
		ID: EvaluateEvidenceID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			if s.SearchCount >= session.MaxSearches {
				return nextStep(session.StepDiagnose), nil
			}
			if len(s.Evidence) == 0 {
				return researchUpdate(s), nil
			}

			snippets := s.Evidence[:min(len(s.Evidence), evaluateEvidenceLimit)]
			req := llm.UserPrompt(
				fmt.Sprintf(evaluateSystemPrompt, joinOr(s.Symptoms, ", ", "none"), strings.Join(snippets, "\n---\n")),
				"Evaluate the search results.",
			)
			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("evaluate evidence: %w", err)
			}
			if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "SUFFICIENT") {
				return nextStep(session.StepDiagnose), nil
			}
			return researchUpdate(s), nil
		},
		Fallback: func(s session.State, _ error) session.Update {
			if s.SearchCount >= session.MaxSearches {
				return nextStep(session.StepDiagnose)
			}
			return researchUpdate(s)
		},
	}
}

func researchUpdate(s session.State) session.Update {
	return session.Update{
		SearchCount: session.Set(s.SearchCount + 1),
		NextStep:    session.Set(session.StepRetrieve),
	}
}
