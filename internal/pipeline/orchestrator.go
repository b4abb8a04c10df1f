// Package pipeline composes the five agents into one synchronous run per
// incoming message, owning privacy-mode routing, token bookkeeping and
// failure containment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/analysis"
	"github.com/lucafauri/mnemos/internal/extraction"
	"github.com/lucafauri/mnemos/internal/generation"
	"github.com/lucafauri/mnemos/internal/observability"
	"github.com/lucafauri/mnemos/internal/privacy"
	"github.com/lucafauri/mnemos/internal/retrieval"
	"github.com/lucafauri/mnemos/internal/store"
)

// RefusalMessage is the fixed terminal reply for a privacy block. It never
// varies, so it cannot leak anything about the blocked content.
const RefusalMessage = "I can't process that message because it contains sensitive personal information. Please remove it and try again."

// FallbackMessage is the one best-effort reply used when response generation
// itself fails.
const FallbackMessage = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

type inputScreener interface {
	Name() string
	Screen(ctx context.Context, in privacy.ScreenInput) (privacy.ScreenOutput, agent.Result)
}

type memoryRetriever interface {
	Name() string
	Retrieve(ctx context.Context, in retrieval.RetrieveInput) (retrieval.RetrieveOutput, agent.Result)
}

type responseGenerator interface {
	Name() string
	Generate(ctx context.Context, in generation.GenerateInput) (generation.GenerateOutput, agent.Result)
}

type memoryExtractor interface {
	Name() string
	Extract(ctx context.Context, in extraction.ExtractInput) (extraction.ExtractOutput, agent.Result)
}

type conversationAnalyst interface {
	Name() string
	Due(exchanges int) bool
	Analyze(history []agent.Exchange, memories []store.MemoryRecord) (analysis.Report, agent.Result)
}

// Budgets are informational per-agent token ceilings. Exceeding one logs a
// warning, it never aborts the step.
type Budgets struct {
	Retrieval  int
	Generation int
	Extraction int
	Analysis   int
}

// modeSteps is the required-agent lookup per privacy mode. Privacy screening
// and response generation always run.
type modeSteps struct {
	Retrieval  bool
	Extraction bool
	Analysis   bool
}

var stepsForMode = map[agent.PrivacyMode]modeSteps{
	agent.ModeOpen:          {Retrieval: true, Extraction: true, Analysis: true},
	agent.ModeIncognito:     {},
	agent.ModeRetrievalOnly: {Retrieval: true},
}

// Orchestrator runs the fixed agent sequence for one message at a time.
// Instances are safe for concurrent use; all mutable state lives in the
// metrics collector and the stores.
type Orchestrator struct {
	guardian  inputScreener
	retriever memoryRetriever
	generator responseGenerator
	extractor memoryExtractor
	analyst   conversationAnalyst

	store         store.Store
	metrics       *observability.Metrics
	budgets       Budgets
	historyWindow int
}

type Params struct {
	Guardian      inputScreener
	Retriever     memoryRetriever
	Generator     responseGenerator
	Extractor     memoryExtractor
	Analyst       conversationAnalyst
	Store         store.Store
	Metrics       *observability.Metrics
	Budgets       Budgets
	HistoryWindow int
}

func NewOrchestrator(p Params) *Orchestrator {
	hw := p.HistoryWindow
	if hw <= 0 {
		hw = 10
	}
	return &Orchestrator{
		guardian:      p.Guardian,
		retriever:     p.Retriever,
		generator:     p.Generator,
		extractor:     p.Extractor,
		analyst:       p.Analyst,
		store:         p.Store,
		metrics:       p.Metrics,
		budgets:       p.Budgets,
		historyWindow: hw,
	}
}

// Request is one user message routed through the pipeline.
type Request struct {
	SessionID string
	ProfileID string
	Message   string
	Mode      agent.PrivacyMode
}

// StepReport is the per-agent slice of the response metadata.
type StepReport struct {
	Agent      string          `json:"agent"`
	OK         bool            `json:"success"`
	ErrorCode  agent.ErrorCode `json:"error_code,omitempty"`
	TokensUsed int             `json:"tokens_used"`
	DurationMS float64         `json:"execution_time_ms"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// Metadata aggregates every step's outcome for one run.
type Metadata struct {
	Mode           agent.PrivacyMode `json:"mode"`
	AgentsRun      []string          `json:"agents_run"`
	Steps          []StepReport      `json:"steps"`
	TotalTokens    int               `json:"total_tokens"`
	Warnings       []string          `json:"warnings,omitempty"`
	MemoriesUsed   int               `json:"memories_used"`
	MemoriesStored int               `json:"memories_stored"`
	Analysis       *analysis.Report  `json:"analysis,omitempty"`
}

// Response is the aggregated pipeline result.
type Response struct {
	SessionID string   `json:"session_id"`
	Reply     string   `json:"reply"`
	Blocked   bool     `json:"blocked"`
	Sanitized bool     `json:"sanitized"`
	Metadata  Metadata `json:"metadata"`
}

// Handle drives one message through privacy screening, optional retrieval,
// generation, optional extraction and periodic analysis. Optional step
// failures degrade quality and surface only in metadata; a persistence
// failure on the exchange itself is the one error returned to the caller.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, errors.New("pipeline: message is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return Response{}, errors.New("pipeline: session id is required")
	}
	mode, err := agent.ParseMode(string(req.Mode))
	if err != nil {
		return Response{}, fmt.Errorf("pipeline: %w", err)
	}
	steps := stepsForMode[mode]

	resp := Response{
		SessionID: req.SessionID,
		Metadata:  Metadata{Mode: mode},
	}

	history := o.loadHistory(ctx, req.SessionID)

	// Privacy screening always runs first.
	screen, screenRes := o.guardian.Screen(ctx, privacy.ScreenInput{
		SessionID:        req.SessionID,
		Text:             req.Message,
		Mode:             mode,
		ProfileID:        req.ProfileID,
		SessionProfileID: req.ProfileID,
	})
	o.record(&resp.Metadata, o.guardian.Name(), screenRes, 0)
	o.countViolations(screen.Violations)

	if !screen.Allowed {
		resp.Reply = RefusalMessage
		resp.Blocked = true
		o.observeRun(mode, "blocked")
		return resp, nil
	}

	effectiveText := screen.SanitizedText
	resp.Sanitized = screen.Sanitized

	var retrieved retrieval.RetrieveOutput
	if steps.Retrieval {
		var retrRes agent.Result
		retrieved, retrRes = o.retriever.Retrieve(ctx, retrieval.RetrieveInput{
			ProfileID: req.ProfileID,
			Query:     effectiveText,
		})
		o.record(&resp.Metadata, o.retriever.Name(), retrRes, o.budgets.Retrieval)
		if !retrRes.OK {
			retrieved = retrieval.RetrieveOutput{}
			resp.Metadata.Warnings = append(resp.Metadata.Warnings, "memory retrieval unavailable for this reply")
		}
		resp.Metadata.MemoriesUsed = len(retrieved.Results)
	}

	profile := o.loadProfile(ctx, req.ProfileID, &resp.Metadata)

	genOut, genRes := o.generator.Generate(ctx, generation.GenerateInput{
		UserMessage:   effectiveText,
		MemoryContext: retrieved.Context,
		History:       history,
		Personality:   profile.Personality,
	})
	o.record(&resp.Metadata, o.generator.Name(), genRes, o.budgets.Generation)

	outcome := "ok"
	if genRes.OK {
		resp.Reply = genOut.Response
	} else {
		resp.Reply = FallbackMessage
		outcome = "fallback"
		if o.metrics != nil {
			o.metrics.AgentWindow.ObserveIndicator("fallback_reply")
		}
		log.Printf("pipeline: generation failed, serving fallback: %s", genRes.Err)
	}

	// The exchange write is the one mandatory persistence step. Incognito
	// sessions keep nothing.
	if mode != agent.ModeIncognito {
		if err := o.persistExchange(ctx, req, effectiveText, resp.Reply, screen.Sanitized); err != nil {
			o.observeRun(mode, "persist_failed")
			return resp, fmt.Errorf("pipeline: persisting exchange: %w", err)
		}
	}

	if steps.Extraction {
		extOut, extRes := o.extractor.Extract(ctx, extraction.ExtractInput{
			SessionID:        req.SessionID,
			ProfileID:        req.ProfileID,
			UserMessage:      effectiveText,
			AssistantMessage: resp.Reply,
		})
		o.record(&resp.Metadata, o.extractor.Name(), extRes, o.budgets.Extraction)
		if extRes.OK {
			resp.Metadata.MemoriesStored = extOut.Stored
			if o.metrics != nil {
				o.metrics.MemoriesStored.Add(float64(extOut.Stored))
			}
		}
	}

	if steps.Analysis {
		o.maybeAnalyze(ctx, req, history, effectiveText, &resp.Metadata)
	}

	o.observeRun(mode, outcome)
	return resp, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string) []agent.Exchange {
	messages, err := o.store.RecentMessages(ctx, sessionID, o.historyWindow*2)
	if err != nil {
		log.Printf("pipeline: history load failed for session %s: %v", sessionID, err)
		return nil
	}
	history := make([]agent.Exchange, 0, len(messages))
	for _, m := range messages {
		history = append(history, agent.Exchange{Role: m.Role, Content: m.Content})
	}
	return history
}

func (o *Orchestrator) loadProfile(ctx context.Context, profileID string, md *Metadata) store.Profile {
	if profileID == "" {
		return store.Profile{}
	}
	profile, err := o.store.GetProfile(ctx, profileID)
	if err != nil {
		log.Printf("pipeline: profile load failed for %s: %v", profileID, err)
		md.Warnings = append(md.Warnings, "profile unavailable, using default personality")
		return store.Profile{}
	}
	return profile
}

func (o *Orchestrator) persistExchange(ctx context.Context, req Request, userText, reply string, sanitized bool) error {
	if _, err := o.store.SaveMessage(ctx, store.Message{
		SessionID: req.SessionID,
		ProfileID: req.ProfileID,
		Role:      "user",
		Content:   userText,
		Sanitized: sanitized,
	}); err != nil {
		return err
	}
	_, err := o.store.SaveMessage(ctx, store.Message{
		SessionID: req.SessionID,
		ProfileID: req.ProfileID,
		Role:      "assistant",
		Content:   reply,
	})
	return err
}

func (o *Orchestrator) maybeAnalyze(ctx context.Context, req Request, history []agent.Exchange, userText string, md *Metadata) {
	userTurns := 1
	for _, ex := range history {
		if ex.Role == "user" {
			userTurns++
		}
	}
	if !o.analyst.Due(userTurns) {
		return
	}

	memories, err := o.store.ListMemories(ctx, req.ProfileID)
	if err != nil {
		log.Printf("pipeline: memory list failed for analysis: %v", err)
	}
	full := append(append([]agent.Exchange{}, history...), agent.Exchange{Role: "user", Content: userText})
	report, res := o.analyst.Analyze(full, memories)
	o.record(md, o.analyst.Name(), res, o.budgets.Analysis)
	if res.OK {
		md.Analysis = &report
	}
}

// record folds one step result into the metadata and the metrics collector,
// flagging informational budget overruns.
func (o *Orchestrator) record(md *Metadata, name string, res agent.Result, budget int) {
	md.AgentsRun = append(md.AgentsRun, name)
	md.TotalTokens += res.TokensUsed
	md.Steps = append(md.Steps, StepReport{
		Agent:      name,
		OK:         res.OK,
		ErrorCode:  res.ErrorCode,
		TokensUsed: res.TokensUsed,
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
		Warnings:   res.Warnings,
	})
	md.Warnings = append(md.Warnings, res.Warnings...)

	if o.metrics != nil {
		o.metrics.ObserveAgent(name, res.Duration, res.TokensUsed)
		if !res.OK {
			o.metrics.AgentFailures.WithLabelValues(name, string(res.ErrorCode)).Inc()
		}
	}
	if budget > 0 && res.TokensUsed > budget {
		warning := fmt.Sprintf("%s exceeded its token budget (%d > %d)", name, res.TokensUsed, budget)
		md.Warnings = append(md.Warnings, warning)
		log.Printf("pipeline: %s", warning)
	}
}

func (o *Orchestrator) countViolations(violations []privacy.Violation) {
	if o.metrics == nil {
		return
	}
	for _, v := range violations {
		o.metrics.PrivacyViolations.WithLabelValues(v.Category, string(v.Severity)).Inc()
	}
}

func (o *Orchestrator) observeRun(mode agent.PrivacyMode, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.PipelineRuns.WithLabelValues(string(mode), outcome).Inc()
}
