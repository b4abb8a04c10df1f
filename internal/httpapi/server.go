package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/config"
	"github.com/lucafauri/mnemos/internal/observability"
	"github.com/lucafauri/mnemos/internal/pipeline"
	"github.com/lucafauri/mnemos/internal/session"
	"github.com/lucafauri/mnemos/internal/store"
)

type Orchestrator interface {
	Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	store        store.Store
	metrics      *observability.Metrics
}

func New(cfg config.Config, sessions *session.Manager, orchestrator Orchestrator, st store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		store:        st,
		metrics:      metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/profiles", s.handleCreateProfile)
	r.Get("/v1/profiles/{id}", s.handleGetProfile)
	r.Get("/v1/profiles/{id}/memories", s.handleListMemories)

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Put("/v1/sessions/{id}/privacy", s.handleSetPrivacy)

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/perf/agents", s.handleAgentStats)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"completion_mode": s.cfg.CompletionMode,
	})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string            `json:"name"`
		Personality store.Personality `json:"personality"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "profile name is required")
		return
	}

	profile, err := s.store.CreateProfile(r.Context(), store.Profile{
		Name:        req.Name,
		Personality: req.Personality,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "profile_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		memories []store.MemoryRecord
		err      error
	)
	if query != "" {
		memories, err = s.store.SearchMemories(r.Context(), profileID, query)
	} else {
		memories, err = s.store.ListMemories(r.Context(), profileID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if memories == nil {
		memories = []store.MemoryRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"profile_id": profileID,
		"memories":   memories,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ProfileID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "profile_id is required")
		return
	}
	mode, err := agent.ParseMode(req.PrivacyMode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_privacy_mode", err.Error())
		return
	}
	if _, err := s.store.GetProfile(r.Context(), req.ProfileID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "profile_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	sess := s.sessions.Create(req.ProfileID, mode)
	if _, err := s.store.CreateSession(r.Context(), store.SessionRecord{
		ID:          sess.ID,
		ProfileID:   sess.ProfileID,
		PrivacyMode: string(sess.PrivacyMode),
		Status:      string(sess.Status),
		StartedAt:   sess.StartedAt,
	}); err != nil {
		// The in-memory manager owns routing; the record is for history.
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		ProfileID:       sess.ProfileID,
		Status:          sess.Status,
		PrivacyMode:     string(sess.PrivacyMode),
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if err := s.store.EndSession(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSetPrivacy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		PrivacyMode string `json:"privacy_mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mode, err := agent.ParseMode(req.PrivacyMode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_privacy_mode", err.Error())
		return
	}

	sess, err := s.sessions.SetPrivacyMode(id, mode)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
		respondError(w, http.StatusConflict, "session_ended", err.Error())
		return
	}
	if err := s.store.UpdateSessionPrivacy(r.Context(), id, string(mode)); err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.metrics.SessionEvents.WithLabelValues("privacy_changed").Inc()
	respondJSON(w, http.StatusOK, sess)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "pipeline not configured")
		return
	}

	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusConflict, "session_ended", "session is no longer active")
		return
	}

	resp, err := s.orchestrator.Handle(r.Context(), pipeline.Request{
		SessionID: sess.ID,
		ProfileID: sess.ProfileID,
		Message:   req.Message,
		Mode:      sess.PrivacyMode,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "pipeline_error", err.Error())
		return
	}

	if err := s.sessions.Touch(sess.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "session_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgentStats(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"agents":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.AgentWindow.Snapshot())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
