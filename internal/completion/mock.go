package completion

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local completions when no API key is
// configured. Replies echo the last user message so the pipeline stays
// exercisable end to end.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, messages []Message, _ Options) (Completion, error) {
	select {
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	default:
	}

	var lastUser string
	var inputChars int
	for _, m := range messages {
		inputChars += len(m.Content)
		if m.Role == "user" {
			lastUser = m.Content
		}
	}

	text := buildMockReply(lastUser)
	usage := Usage{Input: inputChars / 4, Output: len(text) / 4}
	usage.Total = usage.Input + usage.Output
	return Completion{Text: text, Usage: usage}, nil
}

func buildMockReply(userMessage string) string {
	base := strings.TrimSpace(userMessage)
	if base == "" {
		return "I am listening."
	}
	return fmt.Sprintf("I hear you about %q. Tell me more and I will keep it in mind.", truncate(base, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
