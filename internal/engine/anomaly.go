package engine

import (
	"math"

	"github.com/mindfold/coalesce/internal/store"
)

// Anomaly thresholds. Each rule is independent; several can fire at once.
const (
	runawayDriftMin        = 0.8
	runawayEntropyMin      = 0.6
	stagnationEntropyBand  = 0.1
	stagnationCompression  = 0.1
	stagnationComplexity   = 5.0
	collapseCompressionMin = 0.7
	collapseComplexityLow  = 1.0
	collapseCurvatureMin   = 0.9
	collapseComplexityMax  = 0.3
	overfitAdaptiveMin     = 0.9
	overfitDriftMax        = 0.15
)

// DetectAnomalies evaluates the threshold rules over a metrics snapshot and
// returns the names of every rule that fires.
func DetectAnomalies(m *store.MetricsRecord) []string {
	var warnings []string

	if m.Drift > runawayDriftMin && m.EntropyDelta > runawayEntropyMin {
		warnings = append(warnings, "runaway drift")
	}

	if math.Abs(m.EntropyDelta) < stagnationEntropyBand &&
		m.Compression < stagnationCompression &&
		m.Complexity < stagnationComplexity {
		warnings = append(warnings, "stagnation")
	}

	if (m.Compression > collapseCompressionMin && m.Complexity < collapseComplexityLow) ||
		(m.Curvature > collapseCurvatureMin && m.Complexity < collapseComplexityMax) {
		warnings = append(warnings, "mode collapse")
	}

	if m.AdaptiveMatch > overfitAdaptiveMin && m.Drift < overfitDriftMax {
		warnings = append(warnings, "overfitting")
	}

	return warnings
}
