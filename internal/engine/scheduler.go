package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// DefaultRunInterval is the minimum gap between scheduled runs.
	DefaultRunInterval = 24 * time.Hour
	// DefaultCheckInterval is the scheduler tick cadence.
	DefaultCheckInterval = time.Hour

	coherenceWindow = 30 // ledger rows
	coherenceRecent = 7  // rows per trend half
	recentRunsKept  = 16
)

// Scheduler gates how often convergence runs. It owns its clock so the
// time-gating logic is testable, and it keeps a bounded in-memory history
// of recent runs for status reporting.
type Scheduler struct {
	eng       *Engine
	clock     func() time.Time
	interval  time.Duration
	check     time.Duration
	threshold float64

	mu       sync.Mutex
	lastRun  time.Time
	running  bool
	inFlight bool
	recent   *ring[RunRecord]
	stopCh   chan struct{}
}

// RunRecord is one scheduled (or manual) convergence run.
type RunRecord struct {
	ID         string `json:"id"`
	StartedAt  int64  `json:"startedAt"`
	DurationMs int64  `json:"durationMs"`
	Before     int    `json:"conceptsBefore"`
	After      int    `json:"conceptsAfter"`
	Merged     int    `json:"merged"`
	Err        string `json:"error,omitempty"`
}

// TemporalCoherence summarizes recent ledger activity.
type TemporalCoherence struct {
	AvgCompressionRate    float64 `json:"avgCompressionRate"`
	Trend                 string  `json:"trend"` // accelerating | stabilizing | stagnant | insufficient_data
	Stability             float64 `json:"stability"`
	TotalConceptReduction int     `json:"totalConceptReduction"`
}

// SchedulerStatus is the externally visible scheduler state.
type SchedulerStatus struct {
	IsRunning         bool               `json:"isRunning"`
	LastRun           int64              `json:"lastRun"` // unix ms, 0 = never
	NextRunInHours    float64            `json:"nextRunIn"`
	Stats             []RunRecord        `json:"stats"`
	TemporalCoherence *TemporalCoherence `json:"temporalCoherence"`
}

// NewScheduler creates a scheduler over the engine. Zero values fall back
// to the defaults.
func NewScheduler(eng *Engine, interval, check time.Duration, threshold float64) *Scheduler {
	if interval <= 0 {
		interval = DefaultRunInterval
	}
	if check <= 0 {
		check = DefaultCheckInterval
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Scheduler{
		eng:       eng,
		clock:     time.Now,
		interval:  interval,
		check:     check,
		threshold: threshold,
		recent:    newRing[RunRecord](recentRunsKept),
		stopCh:    make(chan struct{}),
	}
}

// SetClock injects a clock for tests.
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Start seeds the last-run time from the ledger, runs an immediate check,
// and then ticks on the check cadence until Stop.
func (s *Scheduler) Start() {
	if ts, err := s.eng.DB.LatestMergeTime(); err != nil {
		log.Warn("scheduler: seed last run from ledger", "err", err)
	} else if ts > 0 {
		s.mu.Lock()
		s.lastRun = time.UnixMilli(ts)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.tick()

	go func() {
		ticker := time.NewTicker(s.check)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts future ticks. An in-flight run is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// ShouldRun reports whether enough time has passed since the last run. A
// ledger with no history always runs.
func (s *Scheduler) ShouldRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun.IsZero() {
		return true
	}
	return s.clock().Sub(s.lastRun) >= s.interval
}

// tick runs one scheduler check. Any panic or error during the run is
// contained here; the next tick proceeds independently.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduler: tick panicked", "panic", r)
		}
	}()

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		log.Debug("scheduler: previous run still in flight, skipping tick")
		return
	}
	s.mu.Unlock()

	if !s.ShouldRun() {
		return
	}

	s.mu.Lock()
	s.inFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	s.runOnce()
}

func (s *Scheduler) runOnce() {
	start := s.clock()
	record := RunRecord{
		ID:        uuid.NewString(),
		StartedAt: start.UnixMilli(),
	}

	before, err := s.eng.DB.CountConcepts()
	if err == nil {
		record.Before = before
	}

	result, err := s.eng.RunConvergence(context.Background(), s.threshold)
	if err != nil {
		record.Err = err.Error()
		log.Error("scheduler: convergence run failed", "err", err)
	} else {
		record.After = result.TotalConcepts
		record.Merged = result.MergedCount
	}
	record.DurationMs = s.clock().Sub(start).Milliseconds()

	s.mu.Lock()
	s.lastRun = start
	s.recent.push(record)
	s.mu.Unlock()
}

// Status reports scheduler state, recent runs, and temporal coherence.
func (s *Scheduler) Status() (*SchedulerStatus, error) {
	coherence, err := s.eng.TemporalCoherence()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := &SchedulerStatus{
		IsRunning:         s.running,
		Stats:             s.recent.items(),
		TemporalCoherence: coherence,
	}
	if !s.lastRun.IsZero() {
		status.LastRun = s.lastRun.UnixMilli()
		remaining := s.interval - s.clock().Sub(s.lastRun)
		if remaining < 0 {
			remaining = 0
		}
		status.NextRunInHours = remaining.Hours()
	}
	return status, nil
}

// TemporalCoherence computes rolling trend and stability statistics from
// the most recent ledger rows. Fewer than two rows is insufficient data.
func (e *Engine) TemporalCoherence() (*TemporalCoherence, error) {
	events, err := e.DB.ListMergeEvents(coherenceWindow)
	if err != nil {
		return nil, fmt.Errorf("list merge events: %w", err)
	}

	if len(events) < 2 {
		return &TemporalCoherence{Trend: "insufficient_data"}, nil
	}

	rates := make([]float64, len(events))
	for i, ev := range events {
		rates[i] = ev.CompressionRate()
	}

	// Events are newest-first: the leading rows are the recent window.
	n := coherenceRecent
	if n > len(rates) {
		n = len(rates)
	}
	recent := rates[:n]

	var older []float64
	if len(rates) > n {
		end := 2 * n
		if end > len(rates) {
			end = len(rates)
		}
		older = rates[n:end]
	}

	trend := "stabilizing"
	recentAvg := mean(recent)
	switch {
	case recentAvg < 0.01:
		trend = "stagnant"
	case len(older) > 0 && recentAvg > mean(older)*1.2:
		trend = "accelerating"
	}

	stability := 1 - math.Sqrt(variance(recent))*10
	if stability < 0 {
		stability = 0
	}

	return &TemporalCoherence{
		AvgCompressionRate:    mean(rates),
		Trend:                 trend,
		Stability:             stability,
		TotalConceptReduction: events[len(events)-1].ConceptsBefore - events[0].ConceptsAfter,
	}, nil
}
