package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lucafauri/mnemos/internal/reliability"
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

func NewAnthropicClient(apiKey, model string, timeout time.Duration, maxTokens int) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{client: &client, model: model, timeout: timeout, maxTokens: maxTokens}
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params, err := c.buildParams(messages, opts)
	if err != nil {
		return Completion{}, err
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		status := statusCode(err)
		// One in-call retry for transient upstream errors. Auth and quota
		// failures surface immediately so the caller can distinguish them.
		if reliability.IsTransientStatus(status) {
			time.Sleep(reliability.ExponentialBackoff(0, 200*time.Millisecond, time.Second))
			resp, err = c.client.Messages.New(ctx, params)
		}
		if err != nil {
			return Completion{}, &ServiceError{
				StatusCode: statusCode(err),
				Retryable:  reliability.IsRetryableHTTPStatus(statusCode(err)),
				Err:        err,
			}
		}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	usage := Usage{
		Input:  int(resp.Usage.InputTokens),
		Output: int(resp.Usage.OutputTokens),
	}
	usage.Total = usage.Input + usage.Output

	return Completion{Text: text, Usage: usage}, nil
}

func (c *AnthropicClient) buildParams(messages []Message, opts Options) (anthropic.MessageNewParams, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "user":
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if len(turns) == 0 {
		return anthropic.MessageNewParams{}, errors.New("completion request needs at least one user or assistant message")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  turns,
	}
	if len(system) > 0 {
		params.System = system
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	return params, nil
}

func statusCode(err error) int {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode
	}
	return 0
}
