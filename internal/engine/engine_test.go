package engine

import (
	"testing"

	"github.com/mindfold/coalesce/internal/oracle"
	"github.com/mindfold/coalesce/internal/store"
)

// testDB is a helper that creates an in-memory DB for testing.
func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testEngine builds an engine over an in-memory DB and a static oracle.
func testEngine(t *testing.T, client oracle.Client) *Engine {
	t.Helper()
	if client == nil {
		client = &oracle.StaticClient{}
	}
	return New(testDB(t), client)
}

// seedConcept inserts a concept and fails the test on error.
func seedConcept(t *testing.T, db *store.DB, c store.Concept) *store.Concept {
	t.Helper()
	if err := db.CreateConcept(&c); err != nil {
		t.Fatalf("CreateConcept %s: %v", c.Name, err)
	}
	return &c
}
