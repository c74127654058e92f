package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/buildmaster/internal/scripts"
	"github.com/mattjoyce/buildmaster/internal/storage"
	"github.com/mattjoyce/buildmaster/internal/supervisor"
)

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	names, err := s.registry.KnownNames()
	if err != nil {
		s.logger.Error("failed to list scripts", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list scripts")
		return
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:          "ok",
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
		BuildersRunning: len(s.registry.Running()),
		ScriptsKnown:    len(names),
	})
}

// handleListBuilders handles GET /builders: every known script plus any
// running builder whose script has since disappeared.
func (s *Server) handleListBuilders(w http.ResponseWriter, r *http.Request) {
	known, err := s.registry.KnownNames()
	if err != nil {
		s.logger.Error("failed to list scripts", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list scripts")
		return
	}

	seen := make(map[string]struct{}, len(known))
	names := make([]string, 0, len(known))
	for _, n := range append(known, s.registry.Running()...) {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	sort.Strings(names)

	resp := BuilderListResponse{Builders: make([]BuilderSummary, 0, len(names))}
	for _, name := range names {
		summary := BuilderSummary{Name: name}
		if st, ok := s.registry.Status(name); ok {
			summary.Running = st.Running
			summary.GenerationID = st.ID
			summary.PID = st.PID
		}
		resp.Builders = append(resp.Builders, summary)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleGetBuilder handles GET /builders/{name}. It deploys the builder on
// first request unless create=false; action=redeploy redeploys instead.
func (s *Server) handleGetBuilder(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()

	if q.Get("action") == "redeploy" {
		s.redeploy(w, name)
		return
	}

	if create, err := strconv.ParseBool(q.Get("create")); err == nil && !create {
		v, ok := s.registry.Snapshot(name)
		if !ok {
			s.writeError(w, http.StatusNotFound, "builder not running")
			return
		}
		respondJSON(w, http.StatusOK, builderResponse(v))
		return
	}

	v, err := s.registry.GetOrCreate(name)
	if err != nil {
		s.writeRegistryError(w, name, "get builder", err)
		return
	}
	respondJSON(w, http.StatusOK, builderResponse(v))
}

// handleRedeploy handles POST /builders/{name}/redeploy.
func (s *Server) handleRedeploy(w http.ResponseWriter, r *http.Request) {
	s.redeploy(w, chi.URLParam(r, "name"))
}

func (s *Server) redeploy(w http.ResponseWriter, name string) {
	if err := s.registry.Redeploy(name); err != nil {
		s.writeRegistryError(w, name, "redeploy", err)
		return
	}
	resp := RedeployResponse{Name: name, Status: "redeployed"}
	if v, ok := s.registry.Snapshot(name); ok {
		resp.GenerationID = v.GenerationID
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleTerminate handles POST /builders/{name}/terminate.
func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.registry.Terminate(name); err != nil {
		s.writeRegistryError(w, name, "terminate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory handles GET /builders/{name}/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	name := chi.URLParam(r, "name")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := s.history.List(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("failed to read history", "builder", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if rows == nil {
		rows = []storage.Deployment{}
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Name: name, Deployments: rows})
}

func builderResponse(v supervisor.View) BuilderResponse {
	resp := BuilderResponse{
		Name:            v.Name,
		GenerationID:    v.GenerationID,
		PID:             v.PID,
		StartedAt:       v.StartedAt,
		Running:         v.Running,
		Fingerprint:     v.Fingerprint,
		Stdout:          v.Stdout,
		Stderr:          v.Stderr,
		Summary:         v.Description.Summary,
		DescriptionHTML: v.Description.HTML,
	}
	if v.Exit != nil {
		code, at := v.Exit.Code, v.Exit.At
		resp.ExitCode = &code
		resp.ExitStatus = v.Exit.Status
		resp.ExitedAt = &at
	}
	return resp
}

func (s *Server) writeRegistryError(w http.ResponseWriter, name, op string, err error) {
	switch {
	case errors.Is(err, supervisor.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "builder not found")
	case errors.Is(err, scripts.ErrInvalidName):
		s.writeError(w, http.StatusBadRequest, "invalid builder name")
	case errors.Is(err, supervisor.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		s.logger.Error(op+" failed", "builder", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
