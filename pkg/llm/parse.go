package llm

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	flowerrors "github.com/DongHyun925/MediGraph/pkg/workflow/errors"
)

// StripFences removes markdown code fences a model wraps around its
// output ("```json ... ```").
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseJSON decodes model output into T. Fences are stripped first, and
// output that fails to decode is run through jsonrepair once before
// giving up. Failures are JSONParseErrors, which categorize as malformed.
func ParseJSON[T any](content string) (T, error) {
	var out T

	cleaned := StripFences(content)
	if cleaned == "" {
		return out, &flowerrors.JSONParseError{Input: content, Message: "empty output"}
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil {
		return out, nil
	}

	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return out, &flowerrors.JSONParseError{Input: preview(content), Message: "unrepairable output", Err: err}
	}
	out = *new(T)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return out, &flowerrors.JSONParseError{Input: preview(content), Message: "decode repaired output", Err: err}
	}
	return out, nil
}
