package ai

import (
	"fmt"
	"strings"
)

// Tone is the stylistic target for refined text.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneFormal  Tone = "formal"
	ToneCasual  Tone = "casual"
)

// ToneInfo describes a tone for listings and help text.
type ToneInfo struct {
	Tone        Tone
	Label       string
	Description string
}

var tones = []ToneInfo{
	{Tone: ToneNeutral, Label: "Neutral", Description: "Keep original tone"},
	{Tone: ToneFormal, Label: "Formal", Description: "Professional & polished"},
	{Tone: ToneCasual, Label: "Casual", Description: "Friendly & conversational"},
}

var toneDirectives = map[Tone]string{
	ToneNeutral: "Maintain the original tone and style while fixing errors.",
	ToneFormal:  "Make the text more formal, professional, and polished.",
	ToneCasual:  "Make the text more casual, friendly, and conversational.",
}

// Tones returns the supported tones in display order.
func Tones() []ToneInfo {
	out := make([]ToneInfo, len(tones))
	copy(out, tones)
	return out
}

// ParseTone converts a user-supplied name into a Tone. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseTone(s string) (Tone, error) {
	t := Tone(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := toneDirectives[t]; !ok {
		return "", fmt.Errorf("unknown tone %q (want neutral, formal, or casual)", s)
	}
	return t, nil
}

func (t Tone) String() string { return string(t) }

const promptPreamble = `You are an expert editor. Rewrite the user's text so that it is grammatically correct.
Fix grammar, punctuation, spelling, and sentence structure.`

const promptGuidelines = `Guidelines:
- Preserve the original meaning and intent.
- Keep paragraphs, line breaks, and list formatting as they appear in the input.
- Do not add new facts, greetings, or sign-offs that are not in the original.
- Do not explain your changes or wrap the result in quotes or markdown.
- Return only the refined text.`

// BuildSystemPrompt returns the system instruction for the given tone.
// The tone must be one of the declared constants.
func BuildSystemPrompt(tone Tone) string {
	return promptPreamble + "\n\nTone: " + toneDirectives[tone] + "\n\n" + promptGuidelines
}
