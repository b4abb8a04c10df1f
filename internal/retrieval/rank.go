package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lucafauri/mnemos/internal/store"
	"github.com/lucafauri/mnemos/internal/textutil"
)

// Relevance blend weights. They sum to 1 so a perfect record scores 1.0.
const (
	weightSemantic   = 0.4
	weightRecency    = 0.2
	weightImportance = 0.2
	weightMentions   = 0.1
	weightOverlap    = 0.1

	recencyWindow = 30 * 24 * time.Hour
	mentionCap    = 10
)

// mergeSet unions strategy hits keyed by record id. A record reached by
// several strategies accumulates sources instead of duplicating.
type mergeSet struct {
	byID  map[string]*RankedMemory
	order []string
}

func newMergeSet() *mergeSet {
	return &mergeSet{byID: make(map[string]*RankedMemory)}
}

func (m *mergeSet) add(rec store.MemoryRecord, source string, semanticSimilarity float64) {
	existing, ok := m.byID[rec.ID]
	if !ok {
		entry := &RankedMemory{
			MemoryRecord:       rec,
			SearchSources:      []string{source},
			semanticSimilarity: semanticSimilarity,
			mergeOrder:         len(m.order),
		}
		m.byID[rec.ID] = entry
		m.order = append(m.order, rec.ID)
		return
	}
	for _, s := range existing.SearchSources {
		if s == source {
			return
		}
	}
	existing.SearchSources = append(existing.SearchSources, source)
	if semanticSimilarity > existing.semanticSimilarity {
		existing.semanticSimilarity = semanticSimilarity
	}
}

// ranked scores the union and returns the top results, sorted descending and
// stable on ties by original merge order.
func (m *mergeSet) ranked(query string, now time.Time, limit int) []RankedMemory {
	queryWords := textutil.WordSet(query)

	out := make([]RankedMemory, 0, len(m.order))
	for _, id := range m.order {
		entry := *m.byID[id]
		entry.Relevance = Score(entry.MemoryRecord, entry.semanticSimilarity, queryWords, now)
		out = append(out, entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].mergeOrder < out[j].mergeOrder
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Score computes the weighted relevance blend, clamped to [0,1] and rounded
// to 3 decimals. Safe for pathological inputs including zero-length text.
func Score(rec store.MemoryRecord, semanticSimilarity float64, queryWords map[string]struct{}, now time.Time) float64 {
	recency := 0.0
	if !rec.CreatedAt.IsZero() {
		age := now.Sub(rec.CreatedAt)
		if age < 0 {
			age = 0
		}
		recency = 1 - float64(age)/float64(recencyWindow)
		if recency < 0 {
			recency = 0
		}
	}

	mentions := rec.MentionCount
	if mentions > mentionCap {
		mentions = mentionCap
	}
	if mentions < 0 {
		mentions = 0
	}

	overlap := textutil.Jaccard(queryWords, textutil.WordSet(rec.Content))

	importance := rec.Importance
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}

	score := weightSemantic*clamp01(semanticSimilarity) +
		weightRecency*recency +
		weightImportance*importance +
		weightMentions*float64(mentions)/mentionCap +
		weightOverlap*overlap

	return math.Round(clamp01(score)*1000) / 1000
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

// categoryOrder fixes the section order of the assembled context block.
var categoryOrder = []store.Category{
	store.CategoryPreference,
	store.CategoryFact,
	store.CategoryRelationship,
	store.CategoryEvent,
	store.CategoryOther,
}

const maxPerCategory = 3

// BuildContext groups ranked results by category and emits at most three
// lines per category, truncated to the character budget.
func BuildContext(results []RankedMemory, budget int) string {
	if len(results) == 0 {
		return ""
	}

	grouped := make(map[store.Category][]RankedMemory)
	for _, res := range results {
		grouped[res.Category] = append(grouped[res.Category], res)
	}

	var b strings.Builder
	for _, cat := range categoryOrder {
		entries := grouped[cat]
		if len(entries) == 0 {
			continue
		}
		if len(entries) > maxPerCategory {
			entries = entries[:maxPerCategory]
		}
		fmt.Fprintf(&b, "%s:\n", categoryHeading(cat))
		for _, res := range entries {
			line := fmt.Sprintf("- [%.3f] %s", res.Relevance, res.Content)
			if !res.CreatedAt.IsZero() {
				line += fmt.Sprintf(" (%s)", res.CreatedAt.Format("2006-01-02"))
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	block := strings.TrimRight(b.String(), "\n")
	if budget > 0 && len(block) > budget {
		cut := budget - 3
		if cut < 0 {
			cut = 0
		}
		block = block[:cut] + "..."
	}
	return block
}

func categoryHeading(cat store.Category) string {
	switch cat {
	case store.CategoryPreference:
		return "Preferences"
	case store.CategoryFact:
		return "Facts"
	case store.CategoryRelationship:
		return "Relationships"
	case store.CategoryEvent:
		return "Events"
	default:
		return "Other"
	}
}
