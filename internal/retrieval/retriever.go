package retrieval

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/completion"
	"github.com/lucafauri/mnemos/internal/store"
	"github.com/lucafauri/mnemos/internal/vectorindex"
)

// Source names one search strategy, in merge order.
const (
	SourceSemantic = "semantic"
	SourceKeyword  = "keyword"
	SourceTemporal = "temporal"
	SourceEntity   = "entity"
)

// RankedMemory is a memory record view with its relevance score and the
// strategies that produced it.
type RankedMemory struct {
	store.MemoryRecord
	Relevance     float64  `json:"relevance"`
	SearchSources []string `json:"search_sources"`

	semanticSimilarity float64
	mergeOrder         int
}

// Config tunes the retriever.
type Config struct {
	MaxResults    int
	ContextBudget int
	CacheEntries  int
}

// Retriever runs the four-strategy hybrid search over one profile's memories.
type Retriever struct {
	store  store.Store
	index  vectorindex.Index
	intent *intentExtractor
	cfg    Config
	now    func() time.Time
}

func NewRetriever(st store.Store, index vectorindex.Index, client completion.Client, cfg Config) (*Retriever, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 1500
	}
	extractor, err := newIntentExtractor(client, cfg.CacheEntries)
	if err != nil {
		return nil, err
	}
	return &Retriever{
		store:  st,
		index:  index,
		intent: extractor,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (r *Retriever) Name() string { return "memory_retriever" }

// RetrieveInput carries the retriever-specific request fields.
type RetrieveInput struct {
	ProfileID  string
	Query      string
	MaxResults int
}

// RetrieveOutput is the retriever's typed payload.
type RetrieveOutput struct {
	Intent  Intent         `json:"intent"`
	Results []RankedMemory `json:"results"`
	Context string         `json:"context"`
}

// Retrieve merges the four strategies, ranks the union and assembles the
// memory-context block.
func (r *Retriever) Retrieve(ctx context.Context, in RetrieveInput) (RetrieveOutput, agent.Result) {
	started := time.Now()

	if strings.TrimSpace(in.ProfileID) == "" {
		return RetrieveOutput{}, agent.Fail(agent.ErrMissingInput, errors.New("profile id is required"), 0, time.Since(started))
	}

	maxResults := in.MaxResults
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}

	intent, tokens := r.intent.extract(ctx, in.Query)

	merged := newMergeSet()
	r.runSemantic(ctx, in, maxResults, merged)
	r.runKeyword(ctx, in, intent, merged)
	r.runTemporal(ctx, in, intent, maxResults, merged)
	r.runEntity(ctx, in, intent, merged)

	results := merged.ranked(in.Query, r.now(), maxResults)
	r.bumpMentions(ctx, results)

	out := RetrieveOutput{
		Intent:  intent,
		Results: results,
		Context: BuildContext(results, r.cfg.ContextBudget),
	}
	return out, agent.Succeed(tokens, time.Since(started))
}

func (r *Retriever) runSemantic(ctx context.Context, in RetrieveInput, k int, merged *mergeSet) {
	matches, err := r.index.Query(ctx, in.Query, in.ProfileID, k)
	if err != nil {
		log.Printf("retrieval: semantic strategy failed: %v", err)
		return
	}
	for _, m := range matches {
		rec, err := r.store.GetMemory(ctx, m.ID)
		if err != nil {
			log.Printf("retrieval: semantic hit %s not in store: %v", m.ID, err)
			continue
		}
		similarity := 1 - m.Distance
		if similarity < 0 {
			similarity = 0
		}
		if similarity > 1 {
			similarity = 1
		}
		merged.add(rec, SourceSemantic, similarity)
	}
}

func (r *Retriever) runKeyword(ctx context.Context, in RetrieveInput, intent Intent, merged *mergeSet) {
	keywords := intent.Keywords
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	for _, kw := range keywords {
		hits, err := r.store.SearchMemories(ctx, in.ProfileID, kw)
		if err != nil {
			log.Printf("retrieval: keyword strategy failed for %q: %v", kw, err)
			continue
		}
		for _, rec := range hits {
			merged.add(rec, SourceKeyword, 0)
		}
	}
}

func (r *Retriever) runTemporal(ctx context.Context, in RetrieveInput, intent Intent, maxResults int, merged *mergeSet) {
	window, bounded := temporalWindow(intent.TimeReference)
	records, err := r.store.ListMemories(ctx, in.ProfileID)
	if err != nil {
		log.Printf("retrieval: temporal strategy failed: %v", err)
		return
	}
	now := r.now()
	count := 0
	// ListMemories is newest-first, which is ascending by age.
	for _, rec := range records {
		if bounded && now.Sub(rec.CreatedAt) > window {
			continue
		}
		merged.add(rec, SourceTemporal, 0)
		count++
		if count >= maxResults {
			break
		}
	}
}

func (r *Retriever) runEntity(ctx context.Context, in RetrieveInput, intent Intent, merged *mergeSet) {
	if len(intent.Entities) == 0 {
		return
	}
	records, err := r.store.ListMemories(ctx, in.ProfileID)
	if err != nil {
		log.Printf("retrieval: entity strategy failed: %v", err)
		return
	}

	var hits []store.MemoryRecord
	for _, rec := range records {
		if entityMatch(rec, intent.Entities) {
			hits = append(hits, rec)
		}
	}
	// Importance then mention count, both descending.
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].Importance > hits[i].Importance ||
				(hits[j].Importance == hits[i].Importance && hits[j].MentionCount > hits[i].MentionCount) {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	for _, rec := range hits {
		merged.add(rec, SourceEntity, 0)
	}
}

func (r *Retriever) bumpMentions(ctx context.Context, results []RankedMemory) {
	for _, res := range results {
		if err := r.store.IncrementMention(ctx, res.ID); err != nil {
			log.Printf("retrieval: mention bump failed for %s: %v", res.ID, err)
		}
	}
}

func entityMatch(rec store.MemoryRecord, entities []string) bool {
	content := strings.ToLower(rec.Content)
	for _, e := range entities {
		needle := strings.ToLower(e)
		if needle == "" {
			continue
		}
		if strings.Contains(content, needle) {
			return true
		}
		for _, tag := range rec.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				return true
			}
		}
	}
	return false
}

func temporalWindow(ref string) (time.Duration, bool) {
	switch ref {
	case "recent":
		return 48 * time.Hour, true
	case "past_week":
		return 7 * 24 * time.Hour, true
	case "past_month":
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
