package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/completion"
	"github.com/lucafauri/mnemos/internal/store"
)

// scriptedClient returns queued completions in order and records requests.
type scriptedClient struct {
	replies  []completion.Completion
	errs     []error
	requests [][]completion.Message
	opts     []completion.Options
}

func (c *scriptedClient) Complete(_ context.Context, messages []completion.Message, opts completion.Options) (completion.Completion, error) {
	call := len(c.requests)
	c.requests = append(c.requests, messages)
	c.opts = append(c.opts, opts)
	if call < len(c.errs) && c.errs[call] != nil {
		return completion.Completion{}, c.errs[call]
	}
	if call < len(c.replies) {
		return c.replies[call], nil
	}
	return completion.Completion{Text: "fine"}, nil
}

func TestGenerateHappyPath(t *testing.T) {
	client := &scriptedClient{replies: []completion.Completion{
		{Text: "Python is a great choice for scripting and data work.", Usage: completion.Usage{Total: 30}},
	}}
	g := NewGenerator(client, Config{})

	out, res := g.Generate(context.Background(), GenerateInput{
		UserMessage: "Should I use Python for scripting?",
		Personality: store.Personality{Tone: "warm", Verbosity: "balanced"},
	})
	if !res.OK {
		t.Fatalf("Generate() result = %+v, want OK", res)
	}
	if !out.Quality.Passed {
		t.Fatalf("Quality = %+v, want passed", out.Quality)
	}
	if out.Quality.Retried {
		t.Fatalf("Quality.Retried = true, want false on passing first reply")
	}
	if res.TokensUsed != 30 {
		t.Fatalf("TokensUsed = %d, want 30", res.TokensUsed)
	}
	if len(client.requests) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(client.requests))
	}
}

func TestGenerateRetriesOnceOnQualityFailure(t *testing.T) {
	client := &scriptedClient{replies: []completion.Completion{
		{Text: "ok", Usage: completion.Usage{Total: 5}}, // too short
		{Text: "Python suits scripting well, especially for quick automation.", Usage: completion.Usage{Total: 20}},
	}}
	g := NewGenerator(client, Config{BaseTemperature: 0.7})

	out, res := g.Generate(context.Background(), GenerateInput{
		UserMessage: "Is Python good for scripting automation?",
	})
	if !res.OK {
		t.Fatalf("Generate() result = %+v, want OK", res)
	}
	if len(client.requests) != 2 {
		t.Fatalf("completion calls = %d, want exactly 2 (one retry)", len(client.requests))
	}
	if !out.Quality.Retried || !out.Quality.Passed {
		t.Fatalf("Quality = %+v, want retried and passed", out.Quality)
	}
	if got := client.opts[1].Temperature; got != 0.5 {
		t.Fatalf("retry temperature = %v, want 0.5", got)
	}
	// Corrective instruction appears only in the retry prompt.
	if strings.Contains(client.requests[0][0].Content, "previous reply") {
		t.Fatalf("first prompt already contains corrective instruction")
	}
	if !strings.Contains(client.requests[1][0].Content, "previous reply") {
		t.Fatalf("retry prompt missing corrective instruction")
	}
}

func TestGenerateRetryTemperatureFloor(t *testing.T) {
	client := &scriptedClient{replies: []completion.Completion{
		{Text: "no"},
		{Text: "Automation in Python works well for this."},
	}}
	g := NewGenerator(client, Config{BaseTemperature: 0.35})

	g.Generate(context.Background(), GenerateInput{UserMessage: "Python automation?"})
	if len(client.opts) != 2 {
		t.Fatalf("completion calls = %d, want 2", len(client.opts))
	}
	if client.opts[1].Temperature != 0.3 {
		t.Fatalf("retry temperature = %v, want floor 0.3", client.opts[1].Temperature)
	}
}

func TestGenerateFailsWithoutUserMessage(t *testing.T) {
	g := NewGenerator(&scriptedClient{}, Config{})
	_, res := g.Generate(context.Background(), GenerateInput{UserMessage: "   "})
	if res.OK || res.ErrorCode != agent.ErrMissingInput {
		t.Fatalf("Generate(empty) result = %+v, want missing_input failure", res)
	}
}

func TestGenerateSurfacesCompletionFailure(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("upstream down")}}
	g := NewGenerator(client, Config{})
	_, res := g.Generate(context.Background(), GenerateInput{UserMessage: "hello there friend"})
	if res.OK || res.ErrorCode != agent.ErrCompletionFailed {
		t.Fatalf("result = %+v, want completion_failed", res)
	}
}

func TestGenerateStripsMemoryClaimsWithoutContext(t *testing.T) {
	client := &scriptedClient{replies: []completion.Completion{
		{Text: "As I recall, you love sailing. Sailing in Greece sounds like a wonderful plan."},
	}}
	g := NewGenerator(client, Config{})

	out, res := g.Generate(context.Background(), GenerateInput{
		UserMessage: "Any thoughts on sailing in Greece?",
	})
	if !res.OK {
		t.Fatalf("Generate() result = %+v, want OK", res)
	}
	if strings.Contains(strings.ToLower(out.Response), "as i recall") {
		t.Fatalf("memory claim not stripped: %q", out.Response)
	}
	if !strings.Contains(out.Response, "Greece") {
		t.Fatalf("post-processing dropped the substantive sentence: %q", out.Response)
	}
}

func TestGenerateKeepsMemoryClaimsWithContext(t *testing.T) {
	client := &scriptedClient{replies: []completion.Completion{
		{Text: "I remember you love sailing, so Greece is a natural fit for your next sailing trip."},
	}}
	g := NewGenerator(client, Config{})

	out, res := g.Generate(context.Background(), GenerateInput{
		UserMessage:        "Any thoughts on sailing in Greece?",
		MemoryContextLines: []string{"User loves sailing"},
	})
	if !res.OK {
		t.Fatalf("Generate() result = %+v, want OK", res)
	}
	if !strings.Contains(strings.ToLower(out.Response), "i remember") {
		t.Fatalf("memory claim wrongly stripped with context present: %q", out.Response)
	}
	if !out.Quality.UsedMemory {
		t.Fatalf("Quality.UsedMemory = false, want true")
	}
	// Context renders as a bulleted block in the prompt.
	found := false
	for _, m := range client.requests[0] {
		if strings.Contains(m.Content, "- User loves sailing") {
			found = true
		}
	}
	if !found {
		t.Fatalf("memory block missing from prompt: %+v", client.requests[0])
	}
}

func TestSystemPromptPersonalityMapping(t *testing.T) {
	p := systemPrompt(store.Personality{Tone: "formal", Verbosity: "brief", Humor: true, Empathy: true})
	for _, want := range []string{"professional", "one or two short sentences", "humor", "feelings"} {
		if !strings.Contains(strings.ToLower(p), want) {
			t.Fatalf("systemPrompt missing %q: %s", want, p)
		}
	}
	plain := systemPrompt(store.Personality{Tone: "unknown", Verbosity: "unknown"})
	if plain != basePrompt {
		t.Fatalf("unknown vocabulary should map to base prompt only, got %q", plain)
	}
}
