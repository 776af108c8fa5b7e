package store

import (
	"testing"
)

func TestCreateConcept(t *testing.T) {
	db := testDB(t)

	c := &Concept{
		Name:        "recursion",
		Description: "self-referential process structure",
		Category:    "computation",
		Density:     80,
	}
	if err := db.CreateConcept(c); err != nil {
		t.Fatalf("CreateConcept: %v", err)
	}

	if c.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if c.Occurrences != 1 {
		t.Errorf("occurrences = %d, want 1", c.Occurrences)
	}
	if c.CreatedAt == 0 || c.UpdatedAt == 0 {
		t.Error("expected timestamps to be set")
	}
}

func TestCreateConceptClampsDensity(t *testing.T) {
	db := testDB(t)

	c := &Concept{Name: "everything", Density: 150}
	if err := db.CreateConcept(c); err != nil {
		t.Fatalf("CreateConcept: %v", err)
	}
	if c.Density != 100 {
		t.Errorf("density = %d, want clamped 100", c.Density)
	}

	c2 := &Concept{Name: "nothing", Density: -3}
	if err := db.CreateConcept(c2); err != nil {
		t.Fatalf("CreateConcept: %v", err)
	}
	if c2.Density != 0 {
		t.Errorf("density = %d, want clamped 0", c2.Density)
	}
}

func TestGetConceptByNameCaseInsensitive(t *testing.T) {
	db := testDB(t)

	c := &Concept{Name: "Entropy", Category: "physics", Density: 70}
	if err := db.CreateConcept(c); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetConceptByName("ENTROPY")
	if err != nil {
		t.Fatalf("GetConceptByName: %v", err)
	}
	if got == nil {
		t.Fatal("expected case-insensitive match")
	}
	if got.ID != c.ID {
		t.Errorf("ID = %d, want %d", got.ID, c.ID)
	}

	got, err = db.GetConceptByName("enthalpy")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected nil for unknown name")
	}
}

func TestUpsertConceptReinforces(t *testing.T) {
	db := testDB(t)

	first := &Concept{Name: "emergence", Category: "systems", Density: 60}
	reinforced, err := db.UpsertConcept(first)
	if err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}
	if reinforced {
		t.Error("first upsert should create, not reinforce")
	}

	second := &Concept{Name: "Emergence", Category: "systems", Density: 10}
	reinforced, err = db.UpsertConcept(second)
	if err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}
	if !reinforced {
		t.Fatal("second upsert should reinforce")
	}
	if second.ID != first.ID {
		t.Errorf("reinforced ID = %d, want %d", second.ID, first.ID)
	}
	if second.Occurrences != 2 {
		t.Errorf("occurrences = %d, want 2", second.Occurrences)
	}
	if second.Density <= 60 {
		t.Errorf("density = %d, want a bump above 60", second.Density)
	}

	count, err := db.CountConcepts()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("concept count = %d, want 1", count)
	}
}

func TestTopConceptsByDensityOrder(t *testing.T) {
	db := testDB(t)

	seed := []Concept{
		{Name: "low", Density: 20},
		{Name: "high", Density: 95},
		{Name: "mid-few", Density: 50, Occurrences: 1},
		{Name: "mid-many", Density: 50, Occurrences: 7},
	}
	for i := range seed {
		if err := db.CreateConcept(&seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	top, err := db.TopConceptsByDensity(3)
	if err != nil {
		t.Fatalf("TopConceptsByDensity: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("got %d concepts, want 3", len(top))
	}
	if top[0].Name != "high" {
		t.Errorf("top[0] = %s, want high", top[0].Name)
	}
	// Equal density breaks ties by occurrences desc
	if top[1].Name != "mid-many" {
		t.Errorf("top[1] = %s, want mid-many", top[1].Name)
	}
}

func TestCategoryCounts(t *testing.T) {
	db := testDB(t)

	for _, c := range []Concept{
		{Name: "a", Category: "x"},
		{Name: "b", Category: "x"},
		{Name: "c", Category: "y"},
	} {
		cc := c
		if err := db.CreateConcept(&cc); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := db.CategoryCounts()
	if err != nil {
		t.Fatalf("CategoryCounts: %v", err)
	}
	if counts["x"] != 2 || counts["y"] != 1 {
		t.Errorf("counts = %v, want x:2 y:1", counts)
	}
}

func TestCountInvariants(t *testing.T) {
	db := testDB(t)

	for _, c := range []Concept{
		{Name: "fundamental", Density: 90},
		{Name: "borderline", Density: 70},
		{Name: "ephemeral", Density: 30},
	} {
		cc := c
		if err := db.CreateConcept(&cc); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.CountInvariants()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("invariants = %d, want 2", n)
	}
}

func TestLinkUserConceptReinforces(t *testing.T) {
	db := testDB(t)

	c := &Concept{Name: "flow"}
	if err := db.CreateConcept(c); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := db.LinkUserConcept("u1", c.ID, "conv-1"); err != nil {
			t.Fatalf("LinkUserConcept: %v", err)
		}
	}

	links, err := db.LinksForConcept(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	if links[0].Strength != 3 {
		t.Errorf("strength = %d, want 3", links[0].Strength)
	}
}

func TestCounters(t *testing.T) {
	db := testDB(t)

	v, err := db.Counter(CounterMaxConcepts)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("unset counter = %f, want 0", v)
	}

	if err := db.SetCounter(CounterMaxConcepts, 42); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCounter(CounterMaxConcepts, 57); err != nil {
		t.Fatal(err)
	}

	v, err = db.Counter(CounterMaxConcepts)
	if err != nil {
		t.Fatal(err)
	}
	if v != 57 {
		t.Errorf("counter = %f, want 57", v)
	}
}

// testDB is a helper that creates an in-memory DB for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
