package stages

import (
	"regexp"
	"strings"

	"github.com/DongHyun925/MediGraph/pkg/session"
)

// fluffPatterns match stock sympathy phrases and greetings that the
// prompts forbid but models still produce.
var fluffPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)많이 불편하시겠어요[?.!\s]*`),
	regexp.MustCompile(`(?im)힘드시겠네요[?.!\s]*`),
	regexp.MustCompile(`(?im)걱정이 많으시죠[?.!\s]*`),
	regexp.MustCompile(`(?im)불편함이 크시겠네요[?.!\s]*`),
	regexp.MustCompile(`(?im)속상하시겠어요[?.!\s]*`),
	regexp.MustCompile(`(?im)힘든 시간을 보내고 계시네요[?.!\s]*`),
	regexp.MustCompile(`(?im)마음이 안 좋으시겠어요[?.!\s]*`),
	regexp.MustCompile(`(?im)증상 때문에 많이 고생하고 계시군요[?.!\s]*`),
	regexp.MustCompile(`(?im)고생이 많으십니다[?.!\s]*`),
	regexp.MustCompile(`(?im)얼마나 힘드실지 이해합니다[?.!\s]*`),
	regexp.MustCompile(`(?im)쾌유를 빕니다[?.!\s]*`),
	regexp.MustCompile(`(?im)^(안녕하세요|그렇군요|알겠습니다|네)[?.!\s,]*`),
	regexp.MustCompile(`(?im)환자분의 상태를 들으니.*?(불편|걱정|생각).*?겠어요[?.!\s]*`),
	regexp.MustCompile(`(?im)I'?m (so )?sorry to hear (that|about that)[?.!,\s]*`),
	regexp.MustCompile(`(?im)I understand how (difficult|hard|uncomfortable) this (must be|is)( for you)?[?.!,\s]*`),
}

var extraBlankLines = regexp.MustCompile(`\n{3,}`)

// StripPersonaFluff removes sympathy filler from model text and trims it.
func StripPersonaFluff(text string) string {
	for _, p := range fluffPatterns {
		text = p.ReplaceAllString(text, "")
	}
	text = extraBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// medicationKeywords mark a conversation that mentions a drug. The Korean
// entries cover "medicine", "take/eat", "dose" and common brand names.
var medicationKeywords = []string{
	"약", "먹", "복용", "타이레놀", "아스피린", "알약",
	"medicine", "medication", "pill", "tylenol", "aspirin", "ibuprofen",
}

// MentionsMedication reports whether any text contains a medication keyword.
func MentionsMedication(texts ...string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, kw := range medicationKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// redFlagKeywords mark symptoms that warrant emergency care when the
// triage classifier is unavailable.
var redFlagKeywords = []string{
	"chest pain", "crushing", "difficulty breathing", "shortness of breath", "can't breathe",
	"unconscious", "fainting", "stroke", "paralysis", "slurred speech", "seizure",
	"severe bleeding", "coughing blood", "vomiting blood",
	"흉통", "가슴 통증", "가슴이 조이", "호흡 곤란", "호흡곤란", "숨이 막", "숨을 못",
	"의식", "실신", "뇌졸중", "마비", "경련", "대량 출혈", "피를 토",
}

// hasRedFlag reports whether any symptom contains a red-flag keyword.
func hasRedFlag(symptoms []string) bool {
	for _, s := range symptoms {
		lower := strings.ToLower(s)
		for _, kw := range redFlagKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// renderConversation formats history for a prompt, one line per message.
func renderConversation(msgs []session.Message, empty string) string {
	if len(msgs) == 0 {
		return empty
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case session.RoleUser:
			lines = append(lines, "Patient: "+m.Text)
		case session.RoleAssistant:
			lines = append(lines, "AI: "+m.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// joinOr joins items with sep, or returns empty when there are none.
func joinOr(items []string, sep, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, sep)
}
