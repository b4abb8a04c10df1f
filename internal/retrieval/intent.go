package retrieval

import (
	"context"
	"log"
	"strings"

	"github.com/dgraph-io/ristretto"
	"github.com/tidwall/gjson"

	"github.com/lucafauri/mnemos/internal/completion"
	"github.com/lucafauri/mnemos/internal/textutil"
)

// Intent is the structured reading of a retrieval query.
type Intent struct {
	Intent        string   `json:"intent"`
	Entities      []string `json:"entities"`
	TimeReference string   `json:"time_reference"` // recent | past_week | past_month | any
	Keywords      []string `json:"keywords"`
}

const intentPrompt = `Analyze the user's message for memory retrieval. Respond with only a JSON object:
{"intent": "<one short phrase>", "entities": ["<proper nouns>"], "time_reference": "<recent|past_week|past_month|any>", "keywords": ["<topical words>"]}`

// intentExtractor asks the completion collaborator for a structured intent
// and falls back to deterministic heuristics on any parse failure. Results
// are cached per query text.
type intentExtractor struct {
	client completion.Client
	cache  *ristretto.Cache
}

func newIntentExtractor(client completion.Client, cacheEntries int) (*intentExtractor, error) {
	if cacheEntries <= 0 {
		cacheEntries = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(cacheEntries) * 10,
		MaxCost:     int64(cacheEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &intentExtractor{client: client, cache: cache}, nil
}

// extract returns the intent plus the tokens spent obtaining it.
func (e *intentExtractor) extract(ctx context.Context, query string) (Intent, int) {
	if cached, ok := e.cache.Get(query); ok {
		if intent, ok := cached.(Intent); ok {
			return intent, 0
		}
	}

	intent, tokens := e.fromCompletion(ctx, query)
	e.cache.Set(query, intent, 1)
	return intent, tokens
}

func (e *intentExtractor) fromCompletion(ctx context.Context, query string) (Intent, int) {
	if e.client == nil {
		return heuristicIntent(query), 0
	}

	resp, err := e.client.Complete(ctx, []completion.Message{
		{Role: "system", Content: intentPrompt},
		{Role: "user", Content: query},
	}, completion.Options{Temperature: 0.1, MaxTokens: 300})
	if err != nil {
		log.Printf("retrieval: intent completion failed, fallback=heuristic: %v", err)
		return heuristicIntent(query), 0
	}

	intent, ok := parseIntent(resp.Text)
	if !ok {
		log.Printf("retrieval: intent parse failed, fallback=heuristic")
		return heuristicIntent(query), resp.Usage.Total
	}
	if intent.TimeReference == "" {
		intent.TimeReference = "any"
	}
	if len(intent.Keywords) == 0 {
		intent.Keywords = textutil.Keywords(query, 4)
	}
	return intent, resp.Usage.Total
}

// parseIntent tolerates prose and markdown fencing around the JSON object by
// extracting the first balanced object substring.
func parseIntent(text string) (Intent, bool) {
	obj, ok := textutil.FirstJSONValue(text, '{', '}')
	if !ok || !gjson.Valid(obj) {
		return Intent{}, false
	}

	parsed := gjson.Parse(obj)
	intent := Intent{
		Intent:        parsed.Get("intent").String(),
		TimeReference: normalizeTimeRef(parsed.Get("time_reference").String()),
	}
	for _, v := range parsed.Get("entities").Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			intent.Entities = append(intent.Entities, s)
		}
	}
	for _, v := range parsed.Get("keywords").Array() {
		if s := strings.ToLower(strings.TrimSpace(v.String())); s != "" {
			intent.Keywords = append(intent.Keywords, s)
		}
	}
	return intent, true
}

// heuristicIntent is the deterministic fallback: capitalized-token entities,
// stop-word-filtered 4+-letter keywords and keyword-based time classification.
func heuristicIntent(query string) Intent {
	return Intent{
		Intent:        "general_recall",
		Entities:      textutil.CapitalizedTokens(query),
		Keywords:      textutil.Keywords(query, 4),
		TimeReference: classifyTimeRef(query),
	}
}

func classifyTimeRef(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "today", "just now", "recently", "this morning", "earlier"):
		return "recent"
	case containsAny(q, "last week", "past week", "a week ago"):
		return "past_week"
	case containsAny(q, "last month", "past month", "a month ago"):
		return "past_month"
	default:
		return "any"
	}
}

func normalizeTimeRef(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recent":
		return "recent"
	case "past_week":
		return "past_week"
	case "past_month":
		return "past_month"
	default:
		return "any"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
