package generation

import (
	"strings"

	"github.com/lucafauri/mnemos/internal/store"
)

const basePrompt = "You are a thoughtful personal assistant with a durable memory of prior conversations. " +
	"Use the provided memory context naturally when it is relevant, and never invent memories."

var toneInstructions = map[string]string{
	"warm":    "Speak warmly and personally, like a trusted friend.",
	"formal":  "Keep a professional, precise register.",
	"casual":  "Keep it relaxed and conversational.",
	"playful": "Be light and a little playful when appropriate.",
	"neutral": "Keep a plain, even tone.",
}

var verbosityInstructions = map[string]string{
	"brief":    "Answer in one or two short sentences.",
	"balanced": "Answer in a few sentences, enough to be useful without rambling.",
	"detailed": "Answer thoroughly, with relevant detail and structure.",
}

// systemPrompt builds the system instruction from the base prompt plus
// personality-derived guidance.
func systemPrompt(p store.Personality) string {
	parts := []string{basePrompt}

	if instr, ok := toneInstructions[strings.ToLower(p.Tone)]; ok {
		parts = append(parts, instr)
	}
	if instr, ok := verbosityInstructions[strings.ToLower(p.Verbosity)]; ok {
		parts = append(parts, instr)
	}
	if p.Humor {
		parts = append(parts, "A touch of humor is welcome when the moment allows it.")
	}
	if p.Empathy {
		parts = append(parts, "Acknowledge the user's feelings before advising.")
	}

	return strings.Join(parts, " ")
}
