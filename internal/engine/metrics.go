package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mindfold/coalesce/internal/store"
)

// driftWindow is how far back a concept update counts as "recent" for the
// semantic drift metric.
const driftWindow = time.Hour

// maxLinkStrength normalizes the adaptive match score; link strengths above
// this saturate at 1.0.
const maxLinkStrength = 10.0

// GetMetrics computes the current metrics snapshot, updates the running
// counters (concept high-water mark, previous entropy) and persists the
// snapshot into the rolling history.
//
// If the store is unreadable the snapshot degrades to neutral values (zeros,
// 0.5 adaptive match) and nothing is persisted. Persistence failures are
// returned alongside the computed snapshot.
func (e *Engine) GetMetrics() (*store.MetricsRecord, error) {
	snap := &store.MetricsRecord{AdaptiveMatch: 0.5, CreatedAt: time.Now().UnixMilli()}

	concepts, err := e.DB.CountConcepts()
	if err != nil {
		log.Warn("metrics: store unreadable, returning neutral snapshot", "err", err)
		return snap, nil
	}
	snap.Concepts = concepts

	if snap.Edges, err = e.DB.CountEdges(); err != nil {
		log.Warn("metrics: count edges", "err", err)
	}
	if snap.Invariants, err = e.DB.CountInvariants(); err != nil {
		log.Warn("metrics: count invariants", "err", err)
	}

	hist, err := e.DB.CategoryCounts()
	if err != nil {
		log.Warn("metrics: category counts", "err", err)
		hist = map[string]int{}
	}
	snap.Clusters = len(hist)
	entropy := shannonEntropy(hist)

	// Compression against the monotonic high-water mark.
	maxObserved, err := e.DB.Counter(store.CounterMaxConcepts)
	if err != nil {
		log.Warn("metrics: read max concepts", "err", err)
	}
	if float64(concepts) > maxObserved {
		maxObserved = float64(concepts)
		if err := e.DB.SetCounter(store.CounterMaxConcepts, maxObserved); err != nil {
			return snap, fmt.Errorf("update max concepts: %w", err)
		}
	}
	if maxObserved > 0 {
		snap.Compression = clamp01(1 - float64(concepts)/maxObserved)
	}

	// Entropy change against the single rolling previous-entropy cell.
	prevEntropy, err := e.DB.Counter(store.CounterPrevEntropy)
	if err != nil {
		log.Warn("metrics: read previous entropy", "err", err)
	}
	snap.EntropyDelta = entropy - prevEntropy
	if err := e.DB.SetCounter(store.CounterPrevEntropy, entropy); err != nil {
		return snap, fmt.Errorf("update previous entropy: %w", err)
	}

	// Drift: occurrence-weighted share of concepts updated in the window.
	since := time.Now().Add(-driftWindow).UnixMilli()
	recent, total, err := e.DB.OccurrenceTotals(since)
	if err != nil {
		log.Warn("metrics: occurrence totals", "err", err)
	} else if total > 0 {
		snap.Drift = clamp01(float64(recent) / float64(total))
	}

	snap.Curvature = curvature(hist)

	avg, links, err := e.DB.LinkStrengthStats()
	if err != nil {
		log.Warn("metrics: link strength", "err", err)
	} else if links > 0 {
		snap.AdaptiveMatch = clamp01(avg / maxLinkStrength)
	}

	// Lifeworld complexity is not clamped.
	snap.Complexity = (float64(snap.Invariants) + float64(snap.Clusters) + entropy) *
		math.Log2(float64(snap.Clusters)+1)

	if err := e.DB.AppendSnapshot(snap); err != nil {
		return snap, fmt.Errorf("persist snapshot: %w", err)
	}

	e.prom.update(snap)
	return snap, nil
}

// shannonEntropy computes H = -Σ p·log2(p) over a count histogram.
func shannonEntropy(hist map[string]int) float64 {
	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return 0
	}

	h := 0.0
	for _, n := range hist {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// curvature is the coefficient of variation (stddev/mean) of category
// cluster sizes, clamped to [0,1]. High values mean uneven clustering.
func curvature(hist map[string]int) float64 {
	if len(hist) == 0 {
		return 0
	}

	mean := 0.0
	for _, n := range hist {
		mean += float64(n)
	}
	mean /= float64(len(hist))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, n := range hist {
		d := float64(n) - mean
		variance += d * d
	}
	variance /= float64(len(hist))

	return clamp01(math.Sqrt(variance) / mean)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(vals))
}
