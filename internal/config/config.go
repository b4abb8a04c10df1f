package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the mnemos conversational core.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	DatabaseURL string

	CompletionMode    string
	AnthropicAPIKey   string
	AnthropicModel    string
	CompletionTimeout time.Duration
	MaxTokens         int

	HistoryWindow       int
	MemoryContextBudget int
	RetrievalMaxResults int
	IntentCacheEntries  int
	AnalysisInterval    int

	// Informational per-agent token budgets. A step exceeding its budget is
	// logged, never aborted.
	RetrievalTokenBudget  int
	GenerationTokenBudget int
	ExtractionTokenBudget int
	AnalysisTokenBudget   int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "mnemos"),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		CompletionMode:        envOrDefault("COMPLETION_MODE", "auto"),
		AnthropicAPIKey:       stringsTrimSpace("ANTHROPIC_API_KEY"),
		AnthropicModel:        envOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		CompletionTimeout:     30 * time.Second,
		MaxTokens:             1024,
		HistoryWindow:         10,
		MemoryContextBudget:   1500,
		RetrievalMaxResults:   10,
		IntentCacheEntries:    1024,
		AnalysisInterval:      5,
		RetrievalTokenBudget:  500,
		GenerationTokenBudget: 2000,
		ExtractionTokenBudget: 800,
		AnalysisTokenBudget:   600,
		ShutdownTimeout:       15 * time.Second,

		SessionInactivityTimeout: 30 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionTimeout, err = durationFromEnv("COMPLETION_TIMEOUT", cfg.CompletionTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("COMPLETION_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("APP_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryContextBudget, err = intFromEnv("APP_MEMORY_CONTEXT_BUDGET", cfg.MemoryContextBudget)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalMaxResults, err = intFromEnv("APP_RETRIEVAL_MAX_RESULTS", cfg.RetrievalMaxResults)
	if err != nil {
		return Config{}, err
	}
	cfg.IntentCacheEntries, err = intFromEnv("APP_INTENT_CACHE_ENTRIES", cfg.IntentCacheEntries)
	if err != nil {
		return Config{}, err
	}
	cfg.AnalysisInterval, err = intFromEnv("APP_ANALYSIS_INTERVAL", cfg.AnalysisInterval)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.CompletionTimeout <= 0 {
		return Config{}, fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	if cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("COMPLETION_MAX_TOKENS must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_WINDOW must be positive")
	}
	if cfg.MemoryContextBudget <= 0 {
		return Config{}, fmt.Errorf("APP_MEMORY_CONTEXT_BUDGET must be positive")
	}
	if cfg.RetrievalMaxResults <= 0 {
		return Config{}, fmt.Errorf("APP_RETRIEVAL_MAX_RESULTS must be positive")
	}
	if cfg.IntentCacheEntries <= 0 {
		return Config{}, fmt.Errorf("APP_INTENT_CACHE_ENTRIES must be positive")
	}
	if cfg.AnalysisInterval <= 0 {
		return Config{}, fmt.Errorf("APP_ANALYSIS_INTERVAL must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.CompletionMode)) {
	case "auto", "anthropic", "mock":
	default:
		return Config{}, fmt.Errorf("COMPLETION_MODE must be auto, anthropic or mock")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
