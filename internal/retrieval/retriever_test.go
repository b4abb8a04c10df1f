package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lucafauri/mnemos/internal/completion"
	"github.com/lucafauri/mnemos/internal/store"
	"github.com/lucafauri/mnemos/internal/textutil"
	"github.com/lucafauri/mnemos/internal/vectorindex"
)

type fakeCompletion struct {
	text string
	err  error
}

func (f *fakeCompletion) Complete(_ context.Context, _ []completion.Message, _ completion.Options) (completion.Completion, error) {
	if f.err != nil {
		return completion.Completion{}, f.err
	}
	return completion.Completion{Text: f.text, Usage: completion.Usage{Total: 10}}, nil
}

func newTestRetriever(t *testing.T, st store.Store, client completion.Client) *Retriever {
	t.Helper()
	idx := vectorindex.NewChromemIndex(vectorindex.NewLocalEmbedder())
	r, err := NewRetriever(st, idx, client, Config{MaxResults: 10, ContextBudget: 1500})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	return r
}

func seedMemory(t *testing.T, st store.Store, r *Retriever, rec store.MemoryRecord) store.MemoryRecord {
	t.Helper()
	saved, err := st.SaveMemory(context.Background(), rec)
	if err != nil {
		t.Fatalf("SaveMemory() error = %v", err)
	}
	if err := r.index.Upsert(context.Background(), saved.ID, saved.ProfileID, saved.Content, nil); err != nil {
		t.Fatalf("index Upsert() error = %v", err)
	}
	return saved
}

func TestRetrieveHybridDedup(t *testing.T) {
	st := store.NewInMemoryStore()
	r := newTestRetriever(t, st, &fakeCompletion{err: context.DeadlineExceeded})

	seedMemory(t, st, r, store.MemoryRecord{
		ProfileID:  "p1",
		Content:    "User prefers Python over Java",
		Importance: 0.8,
		Category:   store.CategoryPreference,
		Tags:       []string{"python"},
	})

	out, res := r.Retrieve(context.Background(), RetrieveInput{
		ProfileID: "p1",
		Query:     "what does the user think about python",
	})
	if !res.OK {
		t.Fatalf("Retrieve() result = %+v, want OK", res)
	}
	if len(out.Results) != 1 {
		t.Fatalf("Retrieve() results = %d, want exactly 1 after merge", len(out.Results))
	}

	sources := out.Results[0].SearchSources
	if len(sources) < 2 || sources[0] != SourceSemantic || sources[1] != SourceKeyword {
		t.Fatalf("SearchSources = %v, want semantic then keyword", sources)
	}
}

func TestRetrieveMissingProfile(t *testing.T) {
	st := store.NewInMemoryStore()
	r := newTestRetriever(t, st, &fakeCompletion{text: "{}"})

	_, res := r.Retrieve(context.Background(), RetrieveInput{Query: "anything"})
	if res.OK {
		t.Fatalf("Retrieve() without profile id succeeded, want failure")
	}
	if res.ErrorCode != "missing_input" {
		t.Fatalf("ErrorCode = %q, want missing_input", res.ErrorCode)
	}
}

func TestRetrieveBumpsMentions(t *testing.T) {
	st := store.NewInMemoryStore()
	r := newTestRetriever(t, st, &fakeCompletion{err: context.DeadlineExceeded})

	saved := seedMemory(t, st, r, store.MemoryRecord{
		ProfileID: "p1",
		Content:   "User prefers Python for data work",
		Category:  store.CategoryPreference,
	})

	r.Retrieve(context.Background(), RetrieveInput{ProfileID: "p1", Query: "python data"})

	got, err := st.GetMemory(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("GetMemory() error = %v", err)
	}
	if got.MentionCount != 2 {
		t.Fatalf("MentionCount = %d, want 2 after retrieval match", got.MentionCount)
	}
}

func TestScoreFreshImportantBeatsAged(t *testing.T) {
	now := time.Now()
	queryWords := textutil.WordSet("What do I like?")

	fresh := store.MemoryRecord{
		Content:      "User prefers Python",
		Importance:   0.8,
		MentionCount: 5,
		CreatedAt:    now,
	}
	aged := fresh
	aged.CreatedAt = now.Add(-60 * 24 * time.Hour)
	aged.MentionCount = 1

	freshScore := Score(fresh, 0, queryWords, now)
	agedScore := Score(aged, 0, queryWords, now)
	if freshScore <= agedScore {
		t.Fatalf("fresh score %v not greater than aged score %v", freshScore, agedScore)
	}
}

func TestScoreClampedForPathologicalInputs(t *testing.T) {
	now := time.Now()
	cases := []store.MemoryRecord{
		{},
		{Content: "", Importance: -5, MentionCount: -3},
		{Content: strings.Repeat("x ", 5000), Importance: 99, MentionCount: 100000, CreatedAt: now.Add(24 * time.Hour)},
	}
	for i, rec := range cases {
		got := Score(rec, 2.5, textutil.WordSet(""), now)
		if got < 0 || got > 1 {
			t.Fatalf("case %d: Score = %v, want within [0,1]", i, got)
		}
	}
}

func TestBuildContextGroupsAndTruncates(t *testing.T) {
	now := time.Now()
	var results []RankedMemory
	for i := 0; i < 5; i++ {
		results = append(results, RankedMemory{
			MemoryRecord: store.MemoryRecord{
				Content:   "User prefers tea over coffee",
				Category:  store.CategoryPreference,
				CreatedAt: now,
			},
			Relevance: 0.9,
		})
	}
	results = append(results, RankedMemory{
		MemoryRecord: store.MemoryRecord{Content: "User lives in Oslo", Category: store.CategoryFact, CreatedAt: now},
		Relevance:    0.7,
	})

	block := BuildContext(results, 10000)
	if strings.Count(block, "User prefers tea") != 3 {
		t.Fatalf("preference lines = %d, want capped at 3:\n%s", strings.Count(block, "User prefers tea"), block)
	}
	if strings.Index(block, "Preferences:") > strings.Index(block, "Facts:") {
		t.Fatalf("category order wrong:\n%s", block)
	}

	small := BuildContext(results, 40)
	if len(small) > 40 {
		t.Fatalf("truncated block length = %d, want <= 40", len(small))
	}
	if !strings.HasSuffix(small, "...") {
		t.Fatalf("truncated block missing ellipsis: %q", small)
	}
}

func TestHeuristicIntentFallback(t *testing.T) {
	intent := heuristicIntent("What did I say about Alice last week?")
	if intent.TimeReference != "past_week" {
		t.Fatalf("TimeReference = %q, want past_week", intent.TimeReference)
	}
	foundAlice := false
	for _, e := range intent.Entities {
		if e == "Alice" {
			foundAlice = true
		}
	}
	if !foundAlice {
		t.Fatalf("Entities = %v, want Alice", intent.Entities)
	}
}

func TestParseIntentToleratesFencing(t *testing.T) {
	text := "Sure! Here is the analysis:\n```json\n{\"intent\": \"recall_preference\", \"entities\": [\"Python\"], \"time_reference\": \"any\", \"keywords\": [\"python\"]}\n```"
	intent, ok := parseIntent(text)
	if !ok {
		t.Fatalf("parseIntent() failed on fenced JSON")
	}
	if intent.Intent != "recall_preference" || len(intent.Entities) != 1 {
		t.Fatalf("parseIntent() = %+v", intent)
	}
}

func TestParseIntentRejectsGarbage(t *testing.T) {
	if _, ok := parseIntent("no json here at all"); ok {
		t.Fatalf("parseIntent() accepted garbage")
	}
}
