package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mindfold/coalesce/internal/engine"
	"github.com/mindfold/coalesce/internal/store"
)

// Server is the coalesce HTTP API server.
type Server struct {
	db      *store.DB
	eng     *engine.Engine
	sched   *engine.Scheduler
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over the database and engine. The scheduler may be
// nil when the server runs without background convergence.
func New(db *store.DB, eng *engine.Engine, sched *engine.Scheduler, version string) *Server {
	s := &Server{
		db:      db,
		eng:     eng,
		sched:   sched,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/concepts", s.handleUpsertConcept)
		r.Get("/concepts", s.handleListConcepts)

		r.Get("/metrics", s.handleMetrics)
		r.Get("/anomalies", s.handleAnomalies)

		r.Post("/convergence/run", s.handleRunConvergence)
		r.Post("/convergence/predictive", s.handleRunPredictive)
		r.Get("/convergence/stats", s.handleConvergenceStats)

		r.Get("/scheduler/status", s.handleSchedulerStatus)
		r.Get("/predictive/state", s.handlePredictiveState)
		r.Get("/forecast", s.handleForecast)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		s.eng.Registry(), promhttp.HandlerOpts{}))

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
