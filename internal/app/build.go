package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/lucafauri/mnemos/internal/analysis"
	"github.com/lucafauri/mnemos/internal/completion"
	"github.com/lucafauri/mnemos/internal/config"
	"github.com/lucafauri/mnemos/internal/extraction"
	"github.com/lucafauri/mnemos/internal/generation"
	"github.com/lucafauri/mnemos/internal/httpapi"
	"github.com/lucafauri/mnemos/internal/observability"
	"github.com/lucafauri/mnemos/internal/pipeline"
	"github.com/lucafauri/mnemos/internal/privacy"
	"github.com/lucafauri/mnemos/internal/retrieval"
	"github.com/lucafauri/mnemos/internal/session"
	"github.com/lucafauri/mnemos/internal/store"
	"github.com/lucafauri/mnemos/internal/vectorindex"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *pipeline.Orchestrator
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB, vector index).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	client, err := completion.NewClient(completion.Config{
		Mode:      cfg.CompletionMode,
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		Timeout:   cfg.CompletionTimeout,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("completion client init failed: %w", err)
	}

	index := vectorindex.NewChromemIndex(vectorindex.NewLocalEmbedder())

	retriever, err := retrieval.NewRetriever(st, index, client, retrieval.Config{
		MaxResults:    cfg.RetrievalMaxResults,
		ContextBudget: cfg.MemoryContextBudget,
		CacheEntries:  cfg.IntentCacheEntries,
	})
	if err != nil {
		_ = index.Close()
		_ = st.Close()
		return nil, fmt.Errorf("retriever init failed: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Params{
		Guardian:  privacy.NewGuardian(st),
		Retriever: retriever,
		Generator: generation.NewGenerator(client, generation.Config{
			HistoryWindow: cfg.HistoryWindow,
			ContextBudget: cfg.MemoryContextBudget,
			MaxTokens:     cfg.MaxTokens,
		}),
		Extractor: extraction.NewExtractor(client, st, index),
		Analyst:   analysis.NewAnalyst(cfg.AnalysisInterval),
		Store:     st,
		Metrics:   metrics,
		Budgets: pipeline.Budgets{
			Retrieval:  cfg.RetrievalTokenBudget,
			Generation: cfg.GenerationTokenBudget,
			Extraction: cfg.ExtractionTokenBudget,
			Analysis:   cfg.AnalysisTokenBudget,
		},
		HistoryWindow: cfg.HistoryWindow,
	})

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
		if err := st.EndSession(context.Background(), s.ID); err != nil {
			metrics.SessionEvents.WithLabelValues("expire_persist_failed").Inc()
		}
	})

	api := httpapi.New(cfg, sessions, orchestrator, st, metrics)

	cleanup := func() error {
		var errs []string
		if err := index.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := st.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}
