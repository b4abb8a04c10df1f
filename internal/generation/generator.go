package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/completion"
	"github.com/lucafauri/mnemos/internal/store"
)

// Config tunes the generator.
type Config struct {
	HistoryWindow   int
	ContextBudget   int
	BaseTemperature float64
	MaxTokens       int
}

// Generator drives the completion step with quality checks and one bounded
// retry.
type Generator struct {
	client completion.Client
	cfg    Config
}

func NewGenerator(client completion.Client, cfg Config) *Generator {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 1500
	}
	if cfg.BaseTemperature <= 0 {
		cfg.BaseTemperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Generator{client: client, cfg: cfg}
}

func (g *Generator) Name() string { return "response_generator" }

// GenerateInput carries the generator-specific request fields. MemoryContext
// accepts either a preassembled block or raw lines; both normalize to one
// bulleted block.
type GenerateInput struct {
	UserMessage        string
	MemoryContext      string
	MemoryContextLines []string
	History            []agent.Exchange
	Personality        store.Personality
}

// QualityReport describes the gate outcomes for the final reply.
type QualityReport struct {
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues,omitempty"`
	Retried    bool     `json:"retried"`
	UsedMemory bool     `json:"used_memory"`
}

// GenerateOutput is the generator's typed payload.
type GenerateOutput struct {
	Response string        `json:"response"`
	Quality  QualityReport `json:"quality"`
}

const retryTemperatureDelta = 0.2
const minRetryTemperature = 0.3

// Generate assembles the prompt, calls the completion collaborator and
// retries at most once when a quality gate fails.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, agent.Result) {
	started := time.Now()

	if strings.TrimSpace(in.UserMessage) == "" {
		return GenerateOutput{}, agent.Fail(agent.ErrMissingInput, errors.New("user message is required"), 0, time.Since(started))
	}

	memoryBlock := normalizeMemoryContext(in.MemoryContext, in.MemoryContextLines, g.cfg.ContextBudget)
	messages := g.buildMessages(in, memoryBlock, "")

	totalTokens := 0
	temperature := g.cfg.BaseTemperature

	resp, err := g.client.Complete(ctx, messages, completion.Options{
		Temperature: temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return GenerateOutput{}, agent.Fail(agent.ErrCompletionFailed, err, totalTokens, time.Since(started))
	}
	totalTokens += resp.Usage.Total

	quality := checkQuality(resp.Text, in.UserMessage, memoryBlock)
	text := resp.Text

	if !quality.Passed {
		// Single bounded retry with a corrective instruction and a cooler
		// temperature.
		temperature -= retryTemperatureDelta
		if temperature < minRetryTemperature {
			temperature = minRetryTemperature
		}
		corrective := fmt.Sprintf(
			"Your previous reply had these problems: %s. Rewrite the reply, keeping it directly relevant to the user's message.",
			strings.Join(quality.Issues, "; "))

		retryResp, retryErr := g.client.Complete(ctx, g.buildMessages(in, memoryBlock, corrective), completion.Options{
			Temperature: temperature,
			MaxTokens:   g.cfg.MaxTokens,
		})
		if retryErr != nil {
			log.Printf("generation: retry failed, keeping first reply: %v", retryErr)
		} else {
			totalTokens += retryResp.Usage.Total
			retryQuality := checkQuality(retryResp.Text, in.UserMessage, memoryBlock)
			retryQuality.Retried = true
			if retryQuality.Passed || len(retryQuality.Issues) <= len(quality.Issues) {
				text = retryResp.Text
				quality = retryQuality
			} else {
				quality.Retried = true
			}
		}
	}

	if memoryBlock == "" {
		text = stripMemoryClaims(text)
	}

	out := GenerateOutput{Response: strings.TrimSpace(text), Quality: quality}
	if out.Response == "" {
		return out, agent.Fail(agent.ErrCompletionFailed, errors.New("empty reply after post-processing"), totalTokens, time.Since(started))
	}

	var warnings []string
	if !quality.Passed {
		warnings = append(warnings, "reply kept despite failed quality gates: "+strings.Join(quality.Issues, "; "))
	}
	return out, agent.Succeed(totalTokens, time.Since(started), warnings...)
}

func (g *Generator) buildMessages(in GenerateInput, memoryBlock, corrective string) []completion.Message {
	system := systemPrompt(in.Personality)
	if corrective != "" {
		system += " " + corrective
	}

	messages := []completion.Message{{Role: "system", Content: system}}

	if memoryBlock != "" {
		messages = append(messages, completion.Message{
			Role:    "user",
			Content: "Relevant memories about me:\n" + memoryBlock,
		})
		messages = append(messages, completion.Message{
			Role:    "assistant",
			Content: "Understood, I will keep those in mind.",
		})
	}

	history := in.History
	if len(history) > g.cfg.HistoryWindow {
		history = history[len(history)-g.cfg.HistoryWindow:]
	}
	for _, ex := range history {
		role := ex.Role
		if role != "user" && role != "assistant" {
			// System turns render inline in the history text.
			messages = append(messages, completion.Message{
				Role:    "user",
				Content: fmt.Sprintf("%s: %s", capitalize(ex.Role), ex.Content),
			})
			continue
		}
		messages = append(messages, completion.Message{Role: role, Content: ex.Content})
	}

	messages = append(messages, completion.Message{Role: "user", Content: in.UserMessage})
	return messages
}

// normalizeMemoryContext renders either form of memory context into one
// bulleted block inside the character budget.
func normalizeMemoryContext(block string, lines []string, budget int) string {
	if block == "" && len(lines) == 0 {
		return ""
	}
	if block == "" {
		var b strings.Builder
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "-") {
				b.WriteString("- ")
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		block = strings.TrimRight(b.String(), "\n")
	}
	if budget > 0 && len(block) > budget {
		cut := budget - 3
		if cut < 0 {
			cut = 0
		}
		block = block[:cut] + "..."
	}
	return block
}
