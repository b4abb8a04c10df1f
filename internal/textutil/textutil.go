// Package textutil holds the small deterministic text heuristics shared by
// the retrieval, extraction and analysis agents.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "been": {}, "before": {},
	"being": {}, "between": {}, "both": {}, "could": {}, "does": {}, "doing": {},
	"down": {}, "during": {}, "each": {}, "from": {}, "further": {}, "have": {},
	"having": {}, "here": {}, "into": {}, "just": {}, "like": {}, "more": {},
	"most": {}, "only": {}, "other": {}, "over": {}, "same": {}, "should": {},
	"some": {}, "such": {}, "than": {}, "that": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {},
	"through": {}, "under": {}, "until": {}, "very": {}, "want": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "will": {},
	"with": {}, "would": {}, "your": {}, "really": {}, "think": {}, "know": {},
}

// IsStopword reports whether the lower-cased word carries no topical signal.
func IsStopword(word string) bool {
	_, ok := stopwords[strings.ToLower(word)]
	return ok
}

// Words splits text into lower-cased alphanumeric tokens.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Keywords returns stop-word-filtered tokens of at least minLen runes,
// deduplicated in first-seen order.
func Keywords(text string, minLen int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range Words(text) {
		if len([]rune(w)) < minLen {
			continue
		}
		if IsStopword(w) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// WordSet returns the set of lower-cased tokens in text.
func WordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(text) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard computes |a∩b| / |a∪b| over two word sets. Empty union yields 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Overlap computes |a∩b| / |a| — the share of a's words also present in b.
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a))
}

var quotedSpanPattern = regexp.MustCompile(`"([^"]{2,60})"|'([^']{2,60})'`)

// CapitalizedTokens extracts tokens that start with an upper-case letter,
// skipping sentence-initial words, deduplicated in order.
func CapitalizedTokens(text string) []string {
	fields := strings.Fields(text)
	seen := make(map[string]struct{})
	var out []string
	sentenceStart := true
	for _, f := range fields {
		trimmed := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		endsSentence := strings.HasSuffix(f, ".") || strings.HasSuffix(f, "!") || strings.HasSuffix(f, "?")
		if trimmed == "" {
			sentenceStart = endsSentence || sentenceStart
			continue
		}
		first := []rune(trimmed)[0]
		if unicode.IsUpper(first) && !sentenceStart && len(trimmed) > 1 {
			key := trimmed
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				out = append(out, key)
			}
		}
		sentenceStart = endsSentence
	}
	return out
}

// QuotedSpans extracts short quoted phrases, deduplicated in order.
func QuotedSpans(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range quotedSpanPattern.FindAllStringSubmatch(text, -1) {
		span := m[1]
		if span == "" {
			span = m[2]
		}
		span = strings.TrimSpace(span)
		if span == "" {
			continue
		}
		if _, ok := seen[span]; ok {
			continue
		}
		seen[span] = struct{}{}
		out = append(out, span)
	}
	return out
}
