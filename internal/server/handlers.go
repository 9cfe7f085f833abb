package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/simplex/internal/errors"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response","kind":"internal"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	if kind == errors.KindInternal {
		s.logger.Error("Request failed", map[string]interface{}{"error": err.Error()})
	}
	s.writeJSON(w, kind.HTTPStatus(), map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	})
}

// handleOptimize handles POST /api/v1/optimize
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindInvalid, "invalid request body"))
		return
	}

	st, err := s.startJob(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, st)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.jobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// handleSimplices handles GET /api/v1/simplices/{id}
func (s *Server) handleSimplices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	simplices, err := s.jobSimplices(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"simplices": simplices,
	})
}

// handleCancel handles DELETE /api/v1/optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancelJob(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": StatusCancelled,
	})
}

// handleObjectives handles GET /api/v1/objectives
func (s *Server) handleObjectives(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listObjectives())
}

// handleRuns handles GET /api/v1/runs?limit=N
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, errors.Errorf(errors.KindInvalid, "limit must be a positive integer, got %q", v))
			return
		}
		limit = n
	}

	runs, err := s.listRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}
