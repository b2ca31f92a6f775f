// Package api exposes the plant collection and diagnosis engine over a
// local REST API, used by the `plantcare serve` command.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sprouthq/plantcare/internal/diagnosis"
	"github.com/sprouthq/plantcare/internal/store"
)

// Server provides the REST API handlers. All operations run as the single
// configured user.
type Server struct {
	store  store.Store
	engine *diagnosis.Engine
	userID string
	log    *slog.Logger
}

// NewServer creates a new API server.
func NewServer(s store.Store, engine *diagnosis.Engine, userID string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: s, engine: engine, userID: userID, log: log}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/plants", s.listPlants)
	mux.HandleFunc("GET /api/v1/plants/{id}", s.getPlant)
	mux.HandleFunc("DELETE /api/v1/plants/{id}", s.deletePlant)

	mux.HandleFunc("GET /api/v1/plants/{id}/diagnoses", s.listDiagnoses)
	mux.HandleFunc("POST /api/v1/plants/{id}/diagnoses", s.startDiagnosis)

	mux.HandleFunc("GET /api/v1/diagnoses/{id}", s.getDiagnosis)
	mux.HandleFunc("POST /api/v1/diagnoses/{id}/reply", s.replyDiagnosis)
	mux.HandleFunc("POST /api/v1/diagnoses/{id}/cancel", s.cancelDiagnosis)
	mux.HandleFunc("DELETE /api/v1/diagnoses/{id}", s.deleteDiagnosis)

	return s.logMiddleware(mux)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps diagnosis/store errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, diagnosis.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, diagnosis.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, diagnosis.ErrParseFailure),
		errors.Is(err, diagnosis.ErrInvalidAction),
		errors.Is(err, diagnosis.ErrMissingPayload),
		errors.Is(err, diagnosis.ErrInvalidPayload):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Plants ---

func (s *Server) listPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := s.store.ListPlants(r.Context(), s.userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plants)
}

func (s *Server) getPlant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	plant, err := s.store.GetPlant(r.Context(), id, s.userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (s *Server) deletePlant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePlant(r.Context(), id, s.userID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Diagnoses ---

func (s *Server) listDiagnoses(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sessions, err := s.engine.ListByPlant(r.Context(), id, s.userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) startDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Problem string `json:"problem"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Problem == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty 'problem'")
		return
	}

	out, err := s.engine.Start(r.Context(), id, req.Problem, s.userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) getDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.engine.Get(r.Context(), id, s.userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) replyDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty 'message'")
		return
	}

	out, err := s.engine.Update(r.Context(), id, req.Message, s.userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.engine.Cancel(r.Context(), id, s.userID); err != nil {
		writeEngineError(w, err)
		return
	}
	sess, err := s.engine.Get(r.Context(), id, s.userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.engine.Delete(r.Context(), id, s.userID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
