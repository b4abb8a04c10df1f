package extraction

import (
	"math"
	"strings"

	"github.com/lucafauri/mnemos/internal/store"
	"github.com/lucafauri/mnemos/internal/textutil"
)

var baseImportance = map[store.Category]float64{
	store.CategoryPreference:   0.7,
	store.CategoryFact:         0.6,
	store.CategoryRelationship: 0.8,
	store.CategoryEvent:        0.6,
	store.CategoryOther:        0.5,
}

var strongOpinionMarkers = []string{
	"love", "hate", "favorite", "favourite", "always", "never",
	"prefer", "can't stand", "adore", "best", "worst",
}

var categoryMarkers = []struct {
	category store.Category
	markers  []string
}{
	{store.CategoryPreference, []string{"prefer", "love", "like", "enjoy", "favorite", "favourite", "hate", "can't stand"}},
	{store.CategoryRelationship, []string{"wife", "husband", "partner", "friend", "mother", "father", "mom", "dad", "brother", "sister", "daughter", "son", "colleague", "boss"}},
	{store.CategoryEvent, []string{"yesterday", "today", "tomorrow", "last week", "next week", "went to", "visited", "birthday", "wedding", "meeting", "trip"}},
	{store.CategoryFact, []string{"works at", "works as", "lives in", "moved to", "born in", "studies", "studied", "allergic", "speaks", "owns"}},
}

const longContentThreshold = 80

// enrich fills weak or missing fields on a parsed candidate: category from
// content markers, importance from the category baseline plus content
// signals, tags and entities from the text itself.
func enrich(rec *store.MemoryRecord) {
	lower := strings.ToLower(rec.Content)

	if rec.Category == store.CategoryOther {
		if inferred, ok := inferCategory(lower); ok {
			rec.Category = inferred
		}
	}

	if rec.Importance <= 0 || rec.Importance == 0.5 {
		rec.Importance = scoreImportance(rec.Category, lower, len(rec.Content))
	}
	rec.Importance = clamp01(rec.Importance)

	if len(rec.Tags) == 0 {
		rec.Tags = defaultTags(rec.Content, rec.Category)
	} else if len(rec.Tags) > 5 {
		rec.Tags = rec.Tags[:5]
	}

	if len(rec.Entities) == 0 {
		rec.Entities = extractEntities(rec.Content)
	}
}

func inferCategory(lower string) (store.Category, bool) {
	for _, bucket := range categoryMarkers {
		for _, marker := range bucket.markers {
			if strings.Contains(lower, marker) {
				return bucket.category, true
			}
		}
	}
	return store.CategoryOther, false
}

func scoreImportance(category store.Category, lower string, contentLen int) float64 {
	score := baseImportance[category]
	for _, marker := range strongOpinionMarkers {
		if strings.Contains(lower, marker) {
			score += 0.2
			break
		}
	}
	if contentLen > longContentThreshold {
		score += 0.1
	}
	return score
}

func defaultTags(content string, category store.Category) []string {
	tags := textutil.Keywords(content, 4)
	if len(tags) > 4 {
		tags = tags[:4]
	}
	tags = append(tags, string(category))
	return tags
}

func extractEntities(content string) []string {
	entities := textutil.CapitalizedTokens(content)
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		seen[strings.ToLower(e)] = struct{}{}
	}
	for _, span := range textutil.QuotedSpans(content) {
		if _, dup := seen[strings.ToLower(span)]; !dup {
			entities = append(entities, span)
			seen[strings.ToLower(span)] = struct{}{}
		}
	}
	return entities
}

// Consolidate drops exact duplicates and merges near-duplicates of the same
// category, keeping the longest content, the highest importance and the
// ordered union of tags.
func Consolidate(candidates []store.MemoryRecord) []store.MemoryRecord {
	var out []store.MemoryRecord
	for _, cand := range candidates {
		merged := false
		for i := range out {
			if strings.EqualFold(strings.TrimSpace(out[i].Content), strings.TrimSpace(cand.Content)) {
				merged = true
				break
			}
			if out[i].Category == cand.Category && wordOverlap(out[i].Content, cand.Content) >= 0.5 {
				mergeInto(&out[i], cand)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, cand)
		}
	}
	return out
}

func mergeInto(dst *store.MemoryRecord, src store.MemoryRecord) {
	if len(src.Content) > len(dst.Content) {
		dst.Content = src.Content
	}
	dst.Importance = math.Max(dst.Importance, src.Importance)
	dst.Tags = unionTags(dst.Tags, src.Tags, 10)
	dst.Entities = unionTags(dst.Entities, src.Entities, 10)
}

func wordOverlap(a, b string) float64 {
	return textutil.Jaccard(textutil.WordSet(a), textutil.WordSet(b))
}

func unionTags(a, b []string, limit int) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			key := strings.ToLower(t)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
