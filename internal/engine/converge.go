package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mindfold/coalesce/internal/oracle"
	"github.com/mindfold/coalesce/internal/store"
)

const (
	// DefaultThreshold is the reactive similarity threshold.
	DefaultThreshold = 0.85

	convergeScanLimit = 100
	convergeBatchSize = 20

	// recentMergeWindow bounds the "recent merges" figure in stats.
	recentMergeWindow = 24 * time.Hour
)

// ConvergenceResult is the aggregate outcome of one reactive run.
type ConvergenceResult struct {
	MergedCount     int     `json:"mergedCount"`
	TotalConcepts   int     `json:"totalConcepts"`
	CompressionRate float64 `json:"compressionRate"`
}

// ConvergenceStats summarizes the graph and recent ledger activity.
type ConvergenceStats struct {
	TotalConcepts  int     `json:"totalConcepts"`
	InvariantCount int     `json:"invariantCount"`
	RecentMerges   int     `json:"recentMerges"`
	AvgCompression float64 `json:"avgCompressionRate"`
	Trend          string  `json:"trend"`
}

// RunConvergence finds and merges semantically similar concepts. The top
// concepts by density are partitioned into batches, each batch is judged by
// the oracle, and every valid pair is merged keeping the higher-density
// concept. A failed batch contributes zero merges; a missing concept skips
// only that pair. Only persistence failures abort the run.
func (e *Engine) RunConvergence(ctx context.Context, threshold float64) (*ConvergenceResult, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	before, err := e.DB.CountConcepts()
	if err != nil {
		return nil, fmt.Errorf("count concepts: %w", err)
	}

	top, err := e.DB.TopConceptsByDensity(convergeScanLimit)
	if err != nil {
		return nil, fmt.Errorf("read top concepts: %w", err)
	}

	merged := 0
	for start := 0; start < len(top); start += convergeBatchSize {
		end := start + convergeBatchSize
		if end > len(top) {
			end = len(top)
		}
		n, err := e.convergeBatch(ctx, top[start:end], threshold)
		if err != nil {
			return nil, err
		}
		merged += n
	}

	after, err := e.DB.CountConcepts()
	if err != nil {
		return nil, fmt.Errorf("count concepts after run: %w", err)
	}

	result := &ConvergenceResult{
		MergedCount:   merged,
		TotalConcepts: after,
	}
	if before > 0 {
		result.CompressionRate = float64(before-after) / float64(before)
	}
	if merged > 0 {
		log.Info("convergence run complete", "merged", merged, "concepts", after,
			"compression", fmt.Sprintf("%.3f", result.CompressionRate))
	}
	return result, nil
}

// convergeBatch asks the oracle about one batch and applies the returned
// pairs. Pair ids are resolved strictly against this batch, never the whole
// table, so a stale cross-batch reference can't merge the wrong concept.
func (e *Engine) convergeBatch(ctx context.Context, batch []store.Concept, threshold float64) (int, error) {
	byID := make(map[int64]*store.Concept, len(batch))
	refs := make([]oracle.ConceptRef, len(batch))
	for i := range batch {
		byID[batch[i].ID] = &batch[i]
		refs[i] = oracle.ConceptRef{ID: batch[i].ID, Name: batch[i].Name, Category: batch[i].Category}
	}

	candidates, err := e.Oracle.Compare(ctx, refs, threshold)
	if err != nil {
		log.Warn("convergence: batch skipped", "err", err, "batch", len(batch))
		return 0, nil
	}

	merged := 0
	for _, c := range candidates {
		if c.Similarity < threshold {
			continue
		}
		a, ok1 := byID[c.ID1]
		b, ok2 := byID[c.ID2]
		if !ok1 || !ok2 {
			continue
		}

		kept, removed := keepOrder(a, b)
		if _, err := e.merge(kept.ID, removed.ID, c.Similarity, c.Reason); err != nil {
			if errors.Is(err, store.ErrConceptMissing) {
				log.Debug("convergence: pair skipped, concept already absorbed",
					"kept", kept.ID, "removed", removed.ID)
				continue
			}
			return merged, fmt.Errorf("merge %d into %d: %w", removed.ID, kept.ID, err)
		}
		delete(byID, removed.ID)
		merged++
	}
	return merged, nil
}

// keepOrder picks the merge survivor: higher density wins, equal density
// keeps the lower id.
func keepOrder(a, b *store.Concept) (kept, removed *store.Concept) {
	if b.Density > a.Density || (b.Density == a.Density && b.ID < a.ID) {
		return b, a
	}
	return a, b
}

// GetConvergenceStats reports graph size, invariants, and ledger-derived
// compression trend.
func (e *Engine) GetConvergenceStats() (*ConvergenceStats, error) {
	total, err := e.DB.CountConcepts()
	if err != nil {
		return nil, fmt.Errorf("count concepts: %w", err)
	}
	invariants, err := e.DB.CountInvariants()
	if err != nil {
		return nil, fmt.Errorf("count invariants: %w", err)
	}
	recent, err := e.DB.CountMergesSince(time.Now().Add(-recentMergeWindow).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("count recent merges: %w", err)
	}

	coherence, err := e.TemporalCoherence()
	if err != nil {
		return nil, err
	}

	return &ConvergenceStats{
		TotalConcepts:  total,
		InvariantCount: invariants,
		RecentMerges:   recent,
		AvgCompression: coherence.AvgCompressionRate,
		Trend:          coherence.Trend,
	}, nil
}
