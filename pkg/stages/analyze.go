package stages

import (
	"fmt"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

const (
	analyzeHistoryWindow = 5
	// minSymptomsWithoutAsking is the symptom count below which the first
	// turn always asks at least one follow-up question.
	minSymptomsWithoutAsking = 3
)

// defaultMissingInfo is requested when the model is satisfied too early.
var defaultMissingInfo = []string{"symptom duration", "current medication"}

const analyzeSystemPrompt = `You are a clinical intake assistant extracting structured findings from a patient conversation.

Known symptoms so far: %s

Recent conversation:
%s

Update the symptom list with anything new in the patient's latest message and decide whether enough
information exists to move on to triage. List what is still missing (onset, duration, severity,
location, current medication) in missing_info.

Respond with JSON only:
{"symptoms": ["..."], "missing_info": ["..."], "is_sufficient": true}`

type analysis struct {
	Symptoms     []string `json:"symptoms"`
	MissingInfo  []string `json:"missing_info"`
	IsSufficient bool     `json:"is_sufficient"`
}

// NewAnalyze returns the stage that extracts symptoms from the latest
// patient message and decides between asking and routing.
func NewAnalyze(client llm.Client) Stage {
	return Stage{
		ID: AnalyzeID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			latest, ok := s.LastUserMessage()
			if !ok {
				return endUpdate(), nil
			}

			req := llm.UserPrompt(
				fmt.Sprintf(analyzeSystemPrompt,
					joinOr(s.Symptoms, ", ", "none"),
					renderConversation(s.Recent(analyzeHistoryWindow), "none")),
				latest,
			)
			req.JSON = true

			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("analyze symptoms: %w", err)
			}

			result, err := llm.ParseJSON[analysis](text)
			if err != nil {
				ctx.Logger().Warn("analysis output malformed, keeping known symptoms", "error", err)
				return assess(s, s.Symptoms, nil, true), nil
			}
			symptoms := result.Symptoms
			if symptoms == nil {
				symptoms = s.Symptoms
			}
			return assess(s, symptoms, result.MissingInfo, result.IsSufficient), nil
		},
		Fallback: func(s session.State, _ error) session.Update {
			if _, ok := s.LastUserMessage(); !ok {
				return endUpdate()
			}
			return assess(s, s.Symptoms, nil, true)
		},
	}
}

// assess applies the sufficiency rules to an analysis result.
func assess(s session.State, symptoms, missing []string, sufficient bool) session.Update {
	missing = nonEmpty(missing)
	if len(missing) > 0 {
		sufficient = false
	}
	if sufficient && s.AskCount < 1 && len(symptoms) < minSymptomsWithoutAsking {
		sufficient = false
		missing = append([]string(nil), defaultMissingInfo...)
	}
	if s.AskCount >= session.MaxAsks {
		sufficient = true
	}

	next := session.StepAsk
	if sufficient {
		next = session.StepRoute
	}
	if missing == nil {
		missing = []string{}
	}
	return session.Update{
		Symptoms:    session.Set(nonEmpty(symptoms)),
		MissingInfo: session.Set(missing),
		NextStep:    session.Set(next),
	}
}

func nonEmpty(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
