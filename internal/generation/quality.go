package generation

import (
	"strings"
	"unicode"

	"github.com/lucafauri/mnemos/internal/textutil"
)

const (
	minReplyLength = 10
	maxReplyLength = 4000

	// Minimum share of user-message keywords that must appear in the reply.
	minRelevanceOverlap = 0.10
)

var unsafeKeywords = []string{
	"kill yourself",
	"harm yourself",
	"illegal weapons",
	"how to make a bomb",
}

var memoryClaimPhrases = []string{
	"as i recall",
	"i remember",
	"as you mentioned before",
	"as you told me",
	"from our previous conversation",
	"last time we spoke",
}

// checkQuality applies the gate battery to a candidate reply. The memory
// utilization check is soft and never fails the reply on its own.
func checkQuality(reply, userMessage, memoryBlock string) QualityReport {
	report := QualityReport{Passed: true}

	trimmed := strings.TrimSpace(reply)
	if len(trimmed) < minReplyLength {
		report.Issues = append(report.Issues, "reply too short")
	}
	if len(trimmed) > maxReplyLength {
		report.Issues = append(report.Issues, "reply too long")
	}

	userWords := keywordSet(userMessage)
	replyWords := textutil.WordSet(reply)
	if len(userWords) > 0 && textutil.Overlap(userWords, replyWords) < minRelevanceOverlap {
		report.Issues = append(report.Issues, "reply not relevant to the user message")
	}

	lower := strings.ToLower(reply)
	for _, kw := range unsafeKeywords {
		if strings.Contains(lower, kw) {
			report.Issues = append(report.Issues, "reply contains unsafe content")
			break
		}
	}

	if memoryBlock != "" {
		report.UsedMemory = textutil.Overlap(keywordSet(memoryBlock), replyWords) > 0
	}

	report.Passed = len(report.Issues) == 0
	return report
}

// stripMemoryClaims removes sentences that claim recollection when no memory
// context backed the reply.
func stripMemoryClaims(reply string) string {
	sentences := splitSentences(reply)
	var kept []string
	for _, s := range sentences {
		lower := strings.ToLower(s)
		claim := false
		for _, phrase := range memoryClaimPhrases {
			if strings.Contains(lower, phrase) {
				claim = true
				break
			}
		}
		if !claim {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return reply
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func keywordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range textutil.Keywords(text, 3) {
		set[w] = struct{}{}
	}
	return set
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
