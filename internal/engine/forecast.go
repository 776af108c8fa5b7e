package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/mindfold/coalesce/internal/store"
)

const (
	// DefaultProbability is the predictive convergence threshold.
	DefaultProbability = 0.7

	forecastScanLimit    = 50
	forecastHistory      = 10 // ledger rows per concept
	forecastHorizonH     = 24.0
	entropyTrendWindow   = 20 // persisted snapshots
	entropyTrendDeadband = 0.01

	// mergeTargetProbability gates assigning a predicted merge target.
	mergeTargetProbability = 0.5
	// timeToConvergenceProbability gates the informational time estimate.
	timeToConvergenceProbability = 0.3
)

// Trajectory is the forecast for one concept: where its density is heading
// and how likely it is to converge with its nearest same-category neighbor.
type Trajectory struct {
	ConceptID          int64   `json:"conceptId"`
	Name               string  `json:"name"`
	Category           string  `json:"category"`
	Density            int     `json:"density"`
	Velocity           float64 `json:"velocity"`     // density points per hour
	Acceleration       float64 `json:"acceleration"` // change in velocity
	PredictedDensity   float64 `json:"predictedDensity"`
	Stability          float64 `json:"stability"`
	Probability        float64 `json:"convergenceProbability"`
	MergeTarget        string  `json:"predictedMergeTarget,omitempty"`
	HoursToConvergence float64 `json:"timeToConvergence"` // -1 when not applicable
}

// PredictedPair is a forecast merge at or above the target probability.
type PredictedPair struct {
	Concept     string  `json:"concept"`
	Target      string  `json:"target"`
	Probability float64 `json:"probability"`
}

// PredictiveState is the system-level forecast summary.
type PredictiveState struct {
	EntropyTrend          string          `json:"entropyTrend"` // increasing | decreasing | stable
	DriftVelocity         float64         `json:"driftVelocity"`
	SystemStability       float64         `json:"systemStability"`
	PredictedConvergences []PredictedPair `json:"predictedConvergences"`
	Recommendations       []string        `json:"recommendations"`
}

// DriftForecast folds the forecaster outputs into one discrete system state.
type DriftForecast struct {
	CurrentState   string       `json:"currentState"` // fragmenting | drifting | converging | stable
	Forecast       string       `json:"forecast"`
	Confidence     float64      `json:"confidence"`
	Trajectories   []Trajectory `json:"trajectories"`
	ActionRequired bool         `json:"actionRequired"`
}

// PredictiveResult is the outcome of spending the forecaster's predictions.
type PredictiveResult struct {
	MergedCount    int      `json:"mergedCount"`
	Predictions    int      `json:"predictions"`
	EarlyCollapses []string `json:"earlyCollapses"`
}

// GetPredictiveState analyzes the top concepts and reports the system-level
// forecast.
func (e *Engine) GetPredictiveState() (*PredictiveState, error) {
	trajectories, err := e.analyzeTrajectories()
	if err != nil {
		return nil, err
	}
	trend, err := e.entropyTrend()
	if err != nil {
		return nil, err
	}
	return e.buildState(trajectories, trend), nil
}

// GetDriftForecast classifies the current system state from the forecaster
// outputs.
func (e *Engine) GetDriftForecast() (*DriftForecast, error) {
	trajectories, err := e.analyzeTrajectories()
	if err != nil {
		return nil, err
	}
	trend, err := e.entropyTrend()
	if err != nil {
		return nil, err
	}
	state := e.buildState(trajectories, trend)

	current := "stable"
	forecast := "no significant drift detected"
	switch {
	case state.SystemStability < 0.3:
		current = "fragmenting"
		forecast = "concept graph destabilizing; merge activity is erratic"
	case trend == "increasing" && state.DriftVelocity > 0.02:
		current = "drifting"
		forecast = "entropy rising faster than convergence is absorbing it"
	case trend == "decreasing" && len(state.PredictedConvergences) > 0:
		current = "converging"
		forecast = "graph is compressing toward stable invariants"
	}

	return &DriftForecast{
		CurrentState:   current,
		Forecast:       forecast,
		Confidence:     state.SystemStability,
		Trajectories:   trajectories,
		ActionRequired: current == "fragmenting" || len(state.Recommendations) > 2,
	}, nil
}

// RunPredictiveConvergence merges every predicted pair at or above the
// probability threshold without consulting the oracle. Pairs whose concepts
// have gone missing (already merged) are silently skipped.
func (e *Engine) RunPredictiveConvergence(ctx context.Context, probabilityThreshold float64) (*PredictiveResult, error) {
	if probabilityThreshold <= 0 {
		probabilityThreshold = DefaultProbability
	}

	state, err := e.GetPredictiveState()
	if err != nil {
		return nil, err
	}

	result := &PredictiveResult{Predictions: len(state.PredictedConvergences)}
	for _, pair := range state.PredictedConvergences {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if pair.Probability < probabilityThreshold {
			continue
		}

		a, err := e.DB.GetConceptByName(pair.Concept)
		if err != nil {
			return result, fmt.Errorf("resolve %q: %w", pair.Concept, err)
		}
		b, err := e.DB.GetConceptByName(pair.Target)
		if err != nil {
			return result, fmt.Errorf("resolve %q: %w", pair.Target, err)
		}
		if a == nil || b == nil || a.ID == b.ID {
			continue
		}

		kept, removed := keepOrder(a, b)
		reason := fmt.Sprintf("predictive early collapse (p=%.2f)", pair.Probability)
		if _, err := e.merge(kept.ID, removed.ID, pair.Probability, reason); err != nil {
			if errors.Is(err, store.ErrConceptMissing) {
				continue
			}
			return result, fmt.Errorf("predictive merge %d into %d: %w", removed.ID, kept.ID, err)
		}
		result.MergedCount++
		result.EarlyCollapses = append(result.EarlyCollapses,
			fmt.Sprintf("%s → %s", removed.Name, kept.Name))
	}

	if result.MergedCount > 0 {
		log.Info("predictive convergence complete", "merged", result.MergedCount,
			"predictions", result.Predictions)
	}
	return result, nil
}

// analyzeTrajectories forecasts the top concepts by density.
func (e *Engine) analyzeTrajectories() ([]Trajectory, error) {
	top, err := e.DB.TopConceptsByDensity(forecastScanLimit)
	if err != nil {
		return nil, fmt.Errorf("read top concepts: %w", err)
	}

	trajectories := make([]Trajectory, 0, len(top))
	for i := range top {
		c := &top[i]
		events, err := e.DB.EventsForConcept(c.ID, forecastHistory)
		if err != nil {
			return nil, fmt.Errorf("ledger history for %d: %w", c.ID, err)
		}

		velocity, acceleration := densityKinematics(events)

		predicted := float64(c.Density) + velocity*forecastHorizonH +
			0.5*acceleration*forecastHorizonH*forecastHorizonH
		if predicted < 0 {
			predicted = 0
		}
		if predicted > 100 {
			predicted = 100
		}

		stability := clamp01(1 - math.Abs(velocity)/10 - math.Abs(acceleration)/5)

		tr := Trajectory{
			ConceptID:          c.ID,
			Name:               c.Name,
			Category:           c.Category,
			Density:            c.Density,
			Velocity:           velocity,
			Acceleration:       acceleration,
			PredictedDensity:   predicted,
			Stability:          stability,
			HoursToConvergence: -1,
		}

		if neighbor := nearestSameCategory(c, top); neighbor != nil {
			gap := math.Abs(float64(c.Density - neighbor.Density))
			tr.Probability = clamp01((1 - gap/50) * (1 + velocity*0.1))
			if tr.Probability > mergeTargetProbability {
				tr.MergeTarget = neighbor.Name
			}
			if velocity != 0 && tr.Probability > timeToConvergenceProbability {
				tr.HoursToConvergence = math.Abs(100-float64(c.Density)) / velocity
			}
		}

		trajectories = append(trajectories, tr)
	}
	return trajectories, nil
}

// densityKinematics derives density velocity (points/hour) and acceleration
// from a concept's merge history, newest first. Fewer than two points means
// no measurable motion.
func densityKinematics(events []store.MergeEvent) (velocity, acceleration float64) {
	if len(events) < 2 {
		return 0, 0
	}

	// Chronological order for point-to-point rates.
	var rates []float64
	for i := len(events) - 1; i > 0; i-- {
		older, newer := events[i], events[i-1]
		hours := float64(newer.MergedAt-older.MergedAt) / float64(3600*1000)
		if hours <= 0 {
			continue
		}
		rates = append(rates, (newer.Similarity-older.Similarity)/hours)
	}
	if len(rates) == 0 {
		return 0, 0
	}

	velocity = mean(rates)
	if len(rates) >= 2 {
		half := len(rates) / 2
		acceleration = mean(rates[half:]) - mean(rates[:half])
	}
	return velocity, acceleration
}

// nearestSameCategory finds the concept in the scanned set closest in
// density to c within the same category, or nil.
func nearestSameCategory(c *store.Concept, all []store.Concept) *store.Concept {
	var best *store.Concept
	bestGap := math.MaxFloat64
	for i := range all {
		o := &all[i]
		if o.ID == c.ID || o.Category != c.Category {
			continue
		}
		gap := math.Abs(float64(c.Density - o.Density))
		if gap < bestGap {
			bestGap = gap
			best = o
		}
	}
	return best
}

// entropyTrend classifies the recent entropy-change history from persisted
// snapshots: recent-half mean vs. older-half mean with a deadband.
func (e *Engine) entropyTrend() (string, error) {
	snaps, err := e.DB.ListSnapshots(entropyTrendWindow)
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}
	if len(snaps) < 2 {
		return "stable", nil
	}

	deltas := make([]float64, len(snaps))
	for i, s := range snaps {
		deltas[i] = s.EntropyDelta
	}

	// Snapshots are newest-first: the first half is recent.
	half := len(deltas) / 2
	diff := mean(deltas[:half]) - mean(deltas[half:])
	switch {
	case diff > entropyTrendDeadband:
		return "increasing", nil
	case diff < -entropyTrendDeadband:
		return "decreasing", nil
	default:
		return "stable", nil
	}
}

// buildState aggregates trajectories into the system-level forecast.
func (e *Engine) buildState(trajectories []Trajectory, trend string) *PredictiveState {
	state := &PredictiveState{
		EntropyTrend:    trend,
		SystemStability: 1,
	}

	if len(trajectories) > 0 {
		velocities := make([]float64, len(trajectories))
		stabilities := make([]float64, len(trajectories))
		for i, tr := range trajectories {
			velocities[i] = tr.Velocity
			stabilities[i] = tr.Stability
		}
		state.DriftVelocity = mean(velocities)
		state.SystemStability = mean(stabilities)
	}

	for _, tr := range trajectories {
		if tr.MergeTarget == "" {
			continue
		}
		state.PredictedConvergences = append(state.PredictedConvergences, PredictedPair{
			Concept:     tr.Name,
			Target:      tr.MergeTarget,
			Probability: tr.Probability,
		})
	}

	if state.SystemStability < 0.3 {
		state.Recommendations = append(state.Recommendations,
			"system fragmenting: pause concept ingestion or raise the merge threshold")
	}
	if trend == "increasing" && state.DriftVelocity > 0.02 {
		state.Recommendations = append(state.Recommendations,
			"entropy rising: schedule a reactive convergence run")
	}
	for _, pair := range state.PredictedConvergences {
		if pair.Probability >= DefaultProbability {
			state.Recommendations = append(state.Recommendations,
				fmt.Sprintf("early merge candidate: %s → %s (p=%.2f)", pair.Concept, pair.Target, pair.Probability))
		}
	}

	return state
}
