package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/completion"
	"github.com/lucafauri/mnemos/internal/store"
	"github.com/lucafauri/mnemos/internal/textutil"
	"github.com/lucafauri/mnemos/internal/vectorindex"
)

const extractionPrompt = `Extract durable facts about the user from this exchange. Respond with only a JSON array:
[{"content": "<one self-contained statement>", "importance_score": <0.0-1.0>, "memory_type": "<fact|preference|event|relationship|other>", "tags": ["<tag>"]}]
Return [] when nothing is worth remembering.`

// Extractor derives candidate memory records from an exchange, consolidates
// them and persists the survivors.
type Extractor struct {
	client completion.Client
	store  store.Store
	index  vectorindex.Index
}

func NewExtractor(client completion.Client, st store.Store, index vectorindex.Index) *Extractor {
	return &Extractor{client: client, store: st, index: index}
}

func (e *Extractor) Name() string { return "memory_extractor" }

// ExtractInput carries the extractor-specific request fields.
type ExtractInput struct {
	SessionID        string
	ProfileID        string
	UserMessage      string
	AssistantMessage string
}

// ExtractOutput is the extractor's typed payload.
type ExtractOutput struct {
	Candidates []store.MemoryRecord `json:"candidates"`
	Stored     int                  `json:"stored"`
}

// Extract asks the completion collaborator for candidates, enriches and
// consolidates them, then persists the result. Malformed model output is
// never an error; it degrades to an empty candidate list.
func (e *Extractor) Extract(ctx context.Context, in ExtractInput) (ExtractOutput, agent.Result) {
	started := time.Now()

	if strings.TrimSpace(in.ProfileID) == "" {
		return ExtractOutput{}, agent.Fail(agent.ErrMissingInput, errors.New("profile id is required"), 0, time.Since(started))
	}
	if strings.TrimSpace(in.UserMessage) == "" {
		return ExtractOutput{}, agent.Fail(agent.ErrMissingInput, errors.New("user message is required"), 0, time.Since(started))
	}

	exchange := fmt.Sprintf("User: %s\nAssistant: %s", in.UserMessage, in.AssistantMessage)
	resp, err := e.client.Complete(ctx, []completion.Message{
		{Role: "system", Content: extractionPrompt},
		{Role: "user", Content: exchange},
	}, completion.Options{Temperature: 0.2, MaxTokens: 800})
	if err != nil {
		return ExtractOutput{}, agent.Fail(agent.ErrCompletionFailed, err, 0, time.Since(started))
	}

	candidates, ok := parseCandidates(resp.Text, in.ProfileID)
	if !ok {
		log.Printf("extraction: candidate parse failed, fallback=empty")
		return ExtractOutput{}, agent.Succeed(resp.Usage.Total, time.Since(started), "model output unparseable, no memories extracted")
	}

	for i := range candidates {
		enrich(&candidates[i])
	}
	consolidated := Consolidate(candidates)

	stored := 0
	var warnings []string
	for i, rec := range consolidated {
		saved, err := e.store.SaveMemory(ctx, rec)
		if err != nil {
			log.Printf("extraction: save failed: %v", err)
			warnings = append(warnings, "memory persistence failed")
			continue
		}
		consolidated[i] = saved
		if err := e.index.Upsert(ctx, saved.ID, saved.ProfileID, saved.Content, map[string]string{
			"category": string(saved.Category),
		}); err != nil {
			log.Printf("extraction: index upsert failed for %s: %v", saved.ID, err)
			warnings = append(warnings, "vector index update failed")
		}
		stored++
	}

	return ExtractOutput{Candidates: consolidated, Stored: stored},
		agent.Succeed(resp.Usage.Total, time.Since(started), warnings...)
}

// parseCandidates tolerates prose and markdown fencing by extracting the
// first well-formed JSON array substring.
func parseCandidates(text, profileID string) ([]store.MemoryRecord, bool) {
	arr, ok := textutil.FirstJSONValue(text, '[', ']')
	if !ok || !gjson.Valid(arr) {
		return nil, false
	}

	parsed := gjson.Parse(arr)
	if !parsed.IsArray() {
		return nil, false
	}

	var out []store.MemoryRecord
	for _, item := range parsed.Array() {
		content := strings.TrimSpace(item.Get("content").String())
		if content == "" {
			continue
		}
		rec := store.MemoryRecord{
			ProfileID:  profileID,
			Content:    content,
			Importance: item.Get("importance_score").Float(),
			Category:   store.ParseCategory(item.Get("memory_type").String()),
		}
		for _, tag := range item.Get("tags").Array() {
			if s := strings.ToLower(strings.TrimSpace(tag.String())); s != "" {
				rec.Tags = append(rec.Tags, s)
			}
		}
		out = append(out, rec)
	}
	return out, true
}
