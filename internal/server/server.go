// Package server exposes the refinement engine over HTTP: a JSON control and
// query API, a Prometheus scrape endpoint, and a WebSocket feed of the event
// bus.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refinery/internal/engine"
	"refinery/internal/ledger"
	"refinery/internal/pareto"
)

const defaultRecentLimit = 20

type Server struct {
	engine *engine.Engine
	store  ledger.Ledger
	log    *slog.Logger
}

func New(e *engine.Engine, store ledger.Ledger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: e, store: store, log: log}
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.engine.Metrics().Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/run/start", s.handleStart)
		r.Post("/run/stop", s.handleStop)
		r.Post("/protein", s.handleSetProtein)
		r.Get("/status", s.handleStatus)
		r.Get("/stats/best", s.handleBest)
		r.Get("/stats/recent", s.handleRecent)
		r.Get("/pareto", s.handlePareto)
		r.Get("/ws", s.handleWS)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

type startRequest struct {
	Generations int `json:"generations"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Generations <= 0 {
		writeError(w, http.StatusBadRequest, "generations must be > 0")
		return
	}
	if s.engine.Status().State == engine.StateRunning {
		writeError(w, http.StatusConflict, "a run is already active")
		return
	}
	if err := s.engine.Start(req.Generations); err != nil {
		if errors.Is(err, engine.ErrNoFounder) || errors.Is(err, engine.ErrSeedActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": s.engine.Status().RunID})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

type proteinRequest struct {
	Sequence      string `json:"sequence"`
	StructurePath string `json:"structure_path"`
}

func (s *Server) handleSetProtein(w http.ResponseWriter, r *http.Request) {
	var req proteinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	founder, err := s.engine.SetInitialProtein(r.Context(), req.Sequence, req.StructurePath)
	if err != nil {
		if errors.Is(err, engine.ErrRunActive) || errors.Is(err, engine.ErrSeedActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, founder)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	best, ok, err := s.store.Best(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no candidates recorded")
		return
	}
	writeJSON(w, http.StatusOK, best)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		limit = n
	}
	recent, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recent)
}

func (s *Server) handlePareto(w http.ResponseWriter, r *http.Request) {
	snapshot := s.engine.Tracker().Snapshot()
	if r.URL.Query().Get("front") == "1" {
		snapshot = pareto.NonDominated(snapshot)
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
