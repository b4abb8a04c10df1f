package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CompletionMode != "auto" {
		t.Fatalf("CompletionMode = %q, want %q", cfg.CompletionMode, "auto")
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
	if cfg.AnalysisInterval != 5 {
		t.Fatalf("AnalysisInterval = %d, want 5", cfg.AnalysisInterval)
	}
	if cfg.CompletionTimeout != 30*time.Second {
		t.Fatalf("CompletionTimeout = %v, want 30s", cfg.CompletionTimeout)
	}
}

func TestLoadRejectsUnknownCompletionMode(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("COMPLETION_MODE", "oracle")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want completion mode error")
	}
}

func TestLoadUsesExplicitOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_ANALYSIS_INTERVAL", "3")
	t.Setenv("APP_HISTORY_WINDOW", "4")
	t.Setenv("COMPLETION_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AnalysisInterval != 3 {
		t.Fatalf("AnalysisInterval = %d, want 3", cfg.AnalysisInterval)
	}
	if cfg.HistoryWindow != 4 {
		t.Fatalf("HistoryWindow = %d, want 4", cfg.HistoryWindow)
	}
	if cfg.CompletionTimeout != 5*time.Second {
		t.Fatalf("CompletionTimeout = %v, want 5s", cfg.CompletionTimeout)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_HISTORY_WINDOW",
		"APP_MEMORY_CONTEXT_BUDGET",
		"APP_RETRIEVAL_MAX_RESULTS",
		"APP_INTENT_CACHE_ENTRIES",
		"APP_ANALYSIS_INTERVAL",
		"COMPLETION_MODE",
		"COMPLETION_TIMEOUT",
		"COMPLETION_MAX_TOKENS",
		"ANTHROPIC_API_KEY",
		"ANTHROPIC_MODEL",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
