// Package api exposes the diagnosis engine over HTTP for dashboards and
// automation that do not shell out to the CLI.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/store"
)

// Runner executes one diagnosis. Implemented by diagnose.Pipeline.
type Runner interface {
	Run(ctx context.Context, siteID string, typ model.RunType, asOf time.Time) (*model.DiagnosisResult, error)
}

// Server handles the HTTP API over a store and a pipeline.
type Server struct {
	store  store.Store
	runner Runner
}

// NewServer builds an API server.
func NewServer(st store.Store, runner Runner) *Server {
	return &Server{store: st, runner: runner}
}

// Router builds the chi router with middleware and all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/diagnose", s.diagnose)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/tickets", s.listTickets)
		r.Patch("/tickets/{id}", s.updateTicket)
	})

	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type diagnoseRequest struct {
	SiteID string `json:"site_id"`
	Type   string `json:"type,omitempty"`
	AsOf   string `json:"as_of,omitempty"`
}

func (s *Server) diagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "site_id is required")
		return
	}

	typ := model.RunTypeFull
	switch req.Type {
	case "", string(model.RunTypeFull):
	case string(model.RunTypeSmoke):
		typ = model.RunTypeSmoke
	case string(model.RunTypeScheduled):
		typ = model.RunTypeScheduled
	default:
		writeError(w, http.StatusBadRequest, "unknown run type: "+req.Type)
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		t, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = t
	}

	result, err := s.runner.Run(r.Context(), req.SiteID, typ, asOf)
	if err != nil {
		if result != nil {
			// The run failed but was recorded; return it with the error.
			writeJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		SiteID: r.URL.Query().Get("site"),
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := model.DiagnosisResult{Run: *run}
	ctx := r.Context()
	if result.Anomalies, err = s.store.ListAnomalies(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.ClusterLosses, err = s.store.ListClusterLosses(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Hypotheses, err = s.store.ListHypotheses(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Tickets, err = s.store.ListTickets(ctx, store.TicketFilter{RunID: id}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	filter := store.TicketFilter{
		RunID:  r.URL.Query().Get("run_id"),
		Status: model.TicketStatus(r.URL.Query().Get("status")),
		Owner:  model.Owner(r.URL.Query().Get("owner")),
		Limit:  queryInt(r, "limit", 100),
	}

	tickets, err := s.store.ListTickets(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

type ticketPatch struct {
	Status string `json:"status"`
}

func (s *Server) updateTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch ticketPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := model.TicketStatus(patch.Status)
	switch status {
	case model.TicketOpen, model.TicketDismissed, model.TicketDone:
	default:
		writeError(w, http.StatusBadRequest, "unknown ticket status: "+patch.Status)
		return
	}

	if err := s.store.UpdateTicketStatus(r.Context(), id, status); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": patch.Status})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
