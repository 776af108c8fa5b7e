package engine

import (
	"math"
	"testing"

	"github.com/mindfold/coalesce/internal/store"
)

func TestGetMetricsEmptyGraph(t *testing.T) {
	e := testEngine(t, nil)

	m, err := e.GetMetrics()
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if m.Concepts != 0 {
		t.Errorf("concepts = %d, want 0", m.Concepts)
	}
	if m.Compression != 0 {
		t.Errorf("compression = %f, want 0", m.Compression)
	}
	// Neutral adaptive match with zero user links
	if m.AdaptiveMatch != 0.5 {
		t.Errorf("adaptive match = %f, want 0.5", m.AdaptiveMatch)
	}
}

func TestCompressionAgainstHighWaterMark(t *testing.T) {
	e := testEngine(t, nil)

	a := seedConcept(t, e.DB, store.Concept{Name: "a", Density: 60})
	b := seedConcept(t, e.DB, store.Concept{Name: "b", Density: 50})
	seedConcept(t, e.DB, store.Concept{Name: "c", Density: 40})
	seedConcept(t, e.DB, store.Concept{Name: "d", Density: 30})

	m, err := e.GetMetrics()
	if err != nil {
		t.Fatal(err)
	}
	if m.Compression != 0 {
		t.Errorf("compression = %f, want 0 with no reduction", m.Compression)
	}

	if _, err := e.DB.MergeConcepts(a.ID, b.ID, 0.9, ""); err != nil {
		t.Fatal(err)
	}

	m, err = e.GetMetrics()
	if err != nil {
		t.Fatal(err)
	}
	// max observed 4, current 3 → 1 - 3/4
	if math.Abs(m.Compression-0.25) > 1e-9 {
		t.Errorf("compression = %f, want 0.25", m.Compression)
	}
	if m.Compression < 0 || m.Compression > 1 {
		t.Errorf("compression %f out of [0,1]", m.Compression)
	}
}

func TestEntropyDeltaRollingCell(t *testing.T) {
	e := testEngine(t, nil)

	seedConcept(t, e.DB, store.Concept{Name: "a", Category: "x"})
	seedConcept(t, e.DB, store.Concept{Name: "b", Category: "y"})

	// First computation: previous entropy cell is 0, so ΔG = H = 1 bit.
	m, err := e.GetMetrics()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.EntropyDelta-1.0) > 1e-9 {
		t.Errorf("entropy delta = %f, want 1.0", m.EntropyDelta)
	}

	// Unchanged distribution: ΔG = 0.
	m, err = e.GetMetrics()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.EntropyDelta) > 1e-9 {
		t.Errorf("entropy delta = %f, want 0", m.EntropyDelta)
	}
}

func TestAdaptiveMatchFromLinks(t *testing.T) {
	e := testEngine(t, nil)

	c := seedConcept(t, e.DB, store.Concept{Name: "focus"})
	for i := 0; i < 3; i++ {
		if err := e.DB.LinkUserConcept("u1", c.ID, ""); err != nil {
			t.Fatal(err)
		}
	}

	m, err := e.GetMetrics()
	if err != nil {
		t.Fatal(err)
	}
	// One link with strength 3 → 3/10
	if math.Abs(m.AdaptiveMatch-0.3) > 1e-9 {
		t.Errorf("adaptive match = %f, want 0.3", m.AdaptiveMatch)
	}
}

func TestDriftCountsReinforcedConcepts(t *testing.T) {
	e := testEngine(t, nil)

	seedConcept(t, e.DB, store.Concept{Name: "static", Density: 50})
	m, err := e.GetMetrics()
	if err != nil {
		t.Fatal(err)
	}
	// Freshly created concepts have updated == created: no drift.
	if m.Drift != 0 {
		t.Errorf("drift = %f, want 0 for untouched graph", m.Drift)
	}

	// Backdate creation so the reinforcement timestamp is distinguishable.
	if _, err := e.DB.Exec("UPDATE concepts SET created_at = created_at - 60000, updated_at = updated_at - 60000"); err != nil {
		t.Fatal(err)
	}
	moving := store.Concept{Name: "static"}
	if _, err := e.DB.UpsertConcept(&moving); err != nil {
		t.Fatal(err)
	}

	m, err = e.GetMetrics()
	if err != nil {
		t.Fatal(err)
	}
	if m.Drift <= 0 || m.Drift > 1 {
		t.Errorf("drift = %f, want in (0,1] after reinforcement", m.Drift)
	}
}

func TestGetMetricsPersistsSnapshot(t *testing.T) {
	e := testEngine(t, nil)

	if _, err := e.GetMetrics(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetMetrics(); err != nil {
		t.Fatal(err)
	}

	snaps, err := e.DB.ListSnapshots(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Errorf("persisted %d snapshots, want 2", len(snaps))
	}
}

func TestShannonEntropy(t *testing.T) {
	if h := shannonEntropy(map[string]int{}); h != 0 {
		t.Errorf("empty entropy = %f, want 0", h)
	}
	if h := shannonEntropy(map[string]int{"x": 10}); h != 0 {
		t.Errorf("single-category entropy = %f, want 0", h)
	}
	h := shannonEntropy(map[string]int{"x": 5, "y": 5})
	if math.Abs(h-1.0) > 1e-9 {
		t.Errorf("uniform two-category entropy = %f, want 1.0", h)
	}
	h = shannonEntropy(map[string]int{"a": 1, "b": 1, "c": 1, "d": 1})
	if math.Abs(h-2.0) > 1e-9 {
		t.Errorf("uniform four-category entropy = %f, want 2.0", h)
	}
}

func TestCurvature(t *testing.T) {
	if c := curvature(map[string]int{}); c != 0 {
		t.Errorf("empty curvature = %f, want 0", c)
	}
	// Even clusters: stddev 0
	if c := curvature(map[string]int{"x": 5, "y": 5}); c != 0 {
		t.Errorf("even curvature = %f, want 0", c)
	}
	// Extremely uneven clusters clamp at 1
	c := curvature(map[string]int{"x": 1000, "y": 1, "z": 1})
	if c != 1 {
		t.Errorf("uneven curvature = %f, want clamped 1", c)
	}
}
