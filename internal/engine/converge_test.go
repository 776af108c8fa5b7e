package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mindfold/coalesce/internal/oracle"
	"github.com/mindfold/coalesce/internal/store"
)

func TestRunConvergenceMergesSimilarPair(t *testing.T) {
	e := testEngine(t, nil)
	a := seedConcept(t, e.DB, store.Concept{Name: "alpha", Density: 90, Occurrences: 5})
	b := seedConcept(t, e.DB, store.Concept{Name: "alfa", Density: 85, Occurrences: 3})

	e.Oracle = &oracle.StaticClient{Candidates: []oracle.MatchCandidate{
		{ID1: a.ID, ID2: b.ID, Similarity: 0.92, Reason: "spelling variant"},
	}}

	res, err := e.RunConvergence(context.Background(), 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if res.MergedCount != 1 {
		t.Fatalf("merged = %d, want 1", res.MergedCount)
	}
	if res.TotalConcepts != 1 {
		t.Errorf("total = %d, want 1", res.TotalConcepts)
	}
	if math.Abs(res.CompressionRate-0.5) > 1e-9 {
		t.Errorf("compression = %f, want 0.5", res.CompressionRate)
	}

	kept, err := e.DB.GetConcept(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept == nil {
		t.Fatal("kept concept missing")
	}
	// 90 + floor(85 * 0.3) = 115, clamped to 100.
	if kept.Density != 100 {
		t.Errorf("kept density = %d, want 100", kept.Density)
	}
	if kept.Occurrences != 8 {
		t.Errorf("kept occurrences = %d, want 8", kept.Occurrences)
	}
	if gone, _ := e.DB.GetConcept(b.ID); gone != nil {
		t.Error("removed concept still present")
	}

	events, err := e.DB.ListMergeEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(events))
	}
	if events[0].KeptID != a.ID || events[0].RemovedID != b.ID {
		t.Errorf("ledger pair = (%d,%d), want (%d,%d)",
			events[0].KeptID, events[0].RemovedID, a.ID, b.ID)
	}
}

func TestRunConvergenceImpossibleThresholdLeavesGraph(t *testing.T) {
	e := testEngine(t, nil)
	a := seedConcept(t, e.DB, store.Concept{Name: "alpha", Density: 90})
	b := seedConcept(t, e.DB, store.Concept{Name: "beta", Density: 85})

	e.Oracle = &oracle.StaticClient{Candidates: []oracle.MatchCandidate{
		{ID1: a.ID, ID2: b.ID, Similarity: 0.92, Reason: "dup"},
	}}

	// A threshold above any possible similarity performs zero merges.
	res, err := e.RunConvergence(context.Background(), 1.01)
	if err != nil {
		t.Fatal(err)
	}
	if res.MergedCount != 0 {
		t.Errorf("merged = %d, want 0", res.MergedCount)
	}
	if res.TotalConcepts != 2 {
		t.Errorf("total = %d, want 2", res.TotalConcepts)
	}
	if res.CompressionRate != 0 {
		t.Errorf("compression = %f, want 0", res.CompressionRate)
	}
}

func TestRunConvergenceOracleFailureSkipsBatch(t *testing.T) {
	e := testEngine(t, &oracle.StaticClient{Err: errors.New("oracle down")})
	seedConcept(t, e.DB, store.Concept{Name: "alpha", Density: 90})
	seedConcept(t, e.DB, store.Concept{Name: "beta", Density: 85})

	res, err := e.RunConvergence(context.Background(), 0.85)
	if err != nil {
		t.Fatalf("batch failure must not abort the run: %v", err)
	}
	if res.MergedCount != 0 {
		t.Errorf("merged = %d, want 0", res.MergedCount)
	}
	if res.TotalConcepts != 2 {
		t.Errorf("total = %d, want 2", res.TotalConcepts)
	}
}

func TestRunConvergenceSkipsAbsorbedConcept(t *testing.T) {
	e := testEngine(t, nil)
	a := seedConcept(t, e.DB, store.Concept{Name: "alpha", Density: 90, Occurrences: 1})
	b := seedConcept(t, e.DB, store.Concept{Name: "beta", Density: 80, Occurrences: 1})
	c := seedConcept(t, e.DB, store.Concept{Name: "gamma", Density: 70, Occurrences: 1})

	// b is absorbed by the first pair; the second pair references it again.
	e.Oracle = &oracle.StaticClient{Candidates: []oracle.MatchCandidate{
		{ID1: a.ID, ID2: b.ID, Similarity: 0.95, Reason: "dup"},
		{ID1: b.ID, ID2: c.ID, Similarity: 0.95, Reason: "dup"},
	}}

	res, err := e.RunConvergence(context.Background(), 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if res.MergedCount != 1 {
		t.Errorf("merged = %d, want 1", res.MergedCount)
	}
	if res.TotalConcepts != 2 {
		t.Errorf("total = %d, want 2", res.TotalConcepts)
	}
	if survivor, _ := e.DB.GetConcept(c.ID); survivor == nil {
		t.Error("gamma should survive")
	}
}

func TestKeepOrder(t *testing.T) {
	hi := &store.Concept{ID: 2, Density: 90}
	lo := &store.Concept{ID: 1, Density: 50}

	kept, removed := keepOrder(lo, hi)
	if kept != hi || removed != lo {
		t.Error("higher density must win")
	}

	a := &store.Concept{ID: 1, Density: 70}
	b := &store.Concept{ID: 2, Density: 70}
	kept, removed = keepOrder(b, a)
	if kept != a || removed != b {
		t.Error("equal density must keep the lower id")
	}
}

func TestGetConvergenceStats(t *testing.T) {
	e := testEngine(t, nil)
	a := seedConcept(t, e.DB, store.Concept{Name: "alpha", Density: 90, Occurrences: 2})
	b := seedConcept(t, e.DB, store.Concept{Name: "beta", Density: 40, Occurrences: 1})
	seedConcept(t, e.DB, store.Concept{Name: "gamma", Density: 30, Occurrences: 1})

	if _, err := e.DB.MergeConcepts(a.ID, b.ID, 0.9, "dup"); err != nil {
		t.Fatal(err)
	}

	stats, err := e.GetConvergenceStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalConcepts != 2 {
		t.Errorf("total = %d, want 2", stats.TotalConcepts)
	}
	if stats.InvariantCount != 1 {
		t.Errorf("invariants = %d, want 1", stats.InvariantCount)
	}
	if stats.RecentMerges != 1 {
		t.Errorf("recent merges = %d, want 1", stats.RecentMerges)
	}
	if stats.Trend != "insufficient_data" {
		t.Errorf("trend = %q, want insufficient_data with one ledger row", stats.Trend)
	}
}
