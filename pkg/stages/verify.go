package stages

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/llm"
	"github.com/DongHyun925/MediGraph/pkg/session"
	"github.com/DongHyun925/MediGraph/pkg/workflow"
)

// Critique values.
const (
	CritiqueValid            = "valid"
	CritiqueNeedsMoreInfo    = "needs_more_info"
	CritiqueInsufficientData = "insufficient_data"
	CritiqueUnverified       = "unverified"
)

const (
	// lowValidConfidence is the threshold below which a "valid" verdict is
	// treated as a mis-scaled score.
	lowValidConfidence = 30
	raisedConfidence   = 80

	assumedConfidence = 70
	assumedSource     = "system self-check"
)

// VerificationPolicy selects what a failed verification records.
type VerificationPolicy string

// Verification policies.
const (
	// PolicyUnverified records the hypothesis as unverified.
	PolicyUnverified VerificationPolicy = "unverified"
	// PolicyAssumeValid records a moderate-confidence self-check.
	PolicyAssumeValid VerificationPolicy = "assume_valid"
)

// ParseVerificationPolicy parses a policy name. Empty selects
// PolicyUnverified.
func ParseVerificationPolicy(s string) (VerificationPolicy, error) {
	switch p := VerificationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyUnverified, nil
	case PolicyUnverified, PolicyAssumeValid:
		return p, nil
	default:
		return "", fmt.Errorf("unknown verification policy %q", s)
	}
}

const verifySystemPrompt = `You are a medical fact checker. Compare the assessment with the evidence.

Assessment:
%s

Evidence:
%s

Respond with JSON only:
{"critique": "valid" or "needs_more_info", "confidence": 0-100, "sources": ["up to 3 supporting sources"]}`

type verdict struct {
	Critique            any `json:"critique"`
	Confidence          any `json:"confidence"`
	FactCheckConfidence any `json:"fact_check_confidence"`
	Score               any `json:"score"`
	Sources             any `json:"sources"`
}

// NewVerifyFacts returns the stage that fact-checks the hypothesis against
// the evidence. policy decides the record left when checking fails.
func NewVerifyFacts(client llm.Client, policy VerificationPolicy) Stage {
	return Stage{
		ID: VerifyFactsID,
		Run: func(ctx workflow.Context, s session.State) (session.Update, error) {
			if s.Hypothesis == "" || len(s.Evidence) == 0 {
				return verifyUpdate(CritiqueInsufficientData, 0, nil), nil
			}
			req := llm.UserPrompt(
				fmt.Sprintf(verifySystemPrompt, s.Hypothesis, strings.Join(s.Evidence, "\n---\n")),
				"Verify the assessment.",
			)
			req.JSON = true

			text, err := llm.Text(ctx, client, req)
			if err != nil {
				return session.Update{}, fmt.Errorf("verify facts: %w", err)
			}
			v, err := llm.ParseJSON[verdict](text)
			if err != nil {
				return session.Update{}, fmt.Errorf("verify facts: %w", err)
			}

			critique := strings.ToLower(strings.TrimSpace(textOf(v.Critique)))
			if critique == "" {
				critique = CritiqueNeedsMoreInfo
			}
			confidence := firstConfidence(v.Confidence, v.FactCheckConfidence, v.Score)
			if critique == CritiqueValid && confidence < lowValidConfidence {
				confidence = raisedConfidence
			}
			return verifyUpdate(critique, confidence, listOf(v.Sources)), nil
		},
		Fallback: func(session.State, error) session.Update {
			if policy == PolicyAssumeValid {
				return verifyUpdate(CritiqueValid, assumedConfidence, []string{assumedSource})
			}
			return verifyUpdate(CritiqueUnverified, 0, nil)
		},
	}
}

func verifyUpdate(critique string, confidence int, sources []string) session.Update {
	if sources == nil {
		sources = []string{}
	}
	return session.Update{
		Critique:            session.Set(critique),
		FactCheckConfidence: session.Set(confidence),
		FactCheckSources:    session.Set(sources),
		NextStep:            session.Set(session.StepEnd),
	}
}

var leadingNumber = regexp.MustCompile(`\d+(\.\d+)?`)

// firstConfidence returns the first parseable score, clamped to 0..100.
func firstConfidence(candidates ...any) int {
	for _, c := range candidates {
		if n, ok := parseConfidence(c); ok {
			return max(0, min(n, session.MaxConfidenceScore))
		}
	}
	return 0
}

func parseConfidence(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		m := leadingNumber.FindString(t)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
