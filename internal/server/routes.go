package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mindfold/coalesce/internal/engine"
	"github.com/mindfold/coalesce/internal/store"
)

func (s *Server) handleUpsertConcept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Density     int    `json:"semanticDensity"`
		UserID      string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	c := store.Concept{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Density:     req.Density,
	}
	reinforced, err := s.db.UpsertConcept(&c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.UserID != "" {
		if err := s.db.LinkUserConcept(req.UserID, c.ID, ""); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	status := http.StatusCreated
	if reinforced {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"concept":    c,
		"reinforced": reinforced,
	})
}

func (s *Server) handleListConcepts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	concepts, err := s.db.TopConceptsByDensity(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"concepts": concepts})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.eng.GetMetrics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	m, err := s.eng.GetMetrics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	warnings := engine.DetectAnomalies(m)
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
}

func (s *Server) handleRunConvergence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold float64 `json:"threshold"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	result, err := s.eng.RunConvergence(r.Context(), req.Threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRunPredictive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Probability float64 `json:"probabilityThreshold"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	result, err := s.eng.RunPredictiveConvergence(r.Context(), req.Probability)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConvergenceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.eng.GetConvergenceStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	status, err := s.sched.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePredictiveState(w http.ResponseWriter, r *http.Request) {
	state, err := s.eng.GetPredictiveState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	fc, err := s.eng.GetDriftForecast()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fc)
}
