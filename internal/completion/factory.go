package completion

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Config controls client construction.
type Config struct {
	Mode      string // auto | anthropic | mock
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// NewClient builds a completion client for the configured mode. In auto mode
// the Anthropic client is used when an API key is present, otherwise the
// deterministic mock.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.Timeout, cfg.MaxTokens), nil
		}
		log.Printf("completion: no API key configured, using mock client")
		return NewMockClient(), nil
	case "anthropic":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for anthropic mode")
		}
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.Timeout, cfg.MaxTokens), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported completion mode %q", cfg.Mode)
	}
}
