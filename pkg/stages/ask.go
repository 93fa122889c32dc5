package stages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

const askHistoryWindow = 10

// ErrEmptyQuestion is returned when the follow-up question is empty after
// filler removal.
var ErrEmptyQuestion = errors.New("follow-up question is empty")

const askSystemPrompt = `You are an experienced physician taking a patient history.

Known symptoms: %s
Information still needed: %s

Recent conversation:
%s

Ask exactly ONE short, specific question that obtains the most important missing item.
Do not greet the patient, do not express sympathy, do not diagnose.
Reply in the same language the patient uses. Output only the question.`

// NewAskQuestion returns the stage that asks the patient one follow-up
// question about the missing information.
func NewAskQuestion(client llm.Client) Stage {
	return Stage{
		ID: AskQuestionID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			if len(s.MissingInfo) == 0 {
				return endUpdate(), nil
			}

			req := llm.UserPrompt(
				fmt.Sprintf(askSystemPrompt,
					joinOr(s.Symptoms, ", ", "none"),
					strings.Join(s.MissingInfo, ", "),
					renderConversation(s.Recent(askHistoryWindow), "none")),
				"Ask the next question.",
			)
			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("ask question: %w", err)
			}
			question := StripPersonaFluff(text)
			if question == "" {
				return session.Update{}, ErrEmptyQuestion
			}
			return askUpdate(s, question), nil
		},
		Fallback: func(s session.State, _ error) session.Update {
			if len(s.MissingInfo) == 0 {
				return endUpdate()
			}
			return askUpdate(s, fmt.Sprintf("Could you tell me more about your %s?", s.MissingInfo[0]))
		},
	}
}

func askUpdate(s session.State, question string) session.Update {
	return session.Update{
		History:  []session.Message{session.AssistantMessage(question)},
		AskCount: session.Set(s.AskCount + 1),
		NextStep: session.Set(session.StepAsk),
	}
}
