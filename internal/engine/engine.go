package engine

import (
	"sync"

	"github.com/mindfold/coalesce/internal/oracle"
	"github.com/mindfold/coalesce/internal/store"
)

// Engine orchestrates metrics computation, reactive and predictive
// convergence, and anomaly detection over the concept graph.
//
// Reactive and predictive convergence can run concurrently (scheduler tick
// vs. API call); a single mutex serializes every merge-and-ledger-append so
// no two merges interleave on the same rows.
type Engine struct {
	DB     *store.DB
	Oracle oracle.Client

	mergeMu sync.Mutex
	prom    *promMetrics
}

// New creates a new Engine.
func New(db *store.DB, client oracle.Client) *Engine {
	return &Engine{
		DB:     db,
		Oracle: client,
		prom:   newPromMetrics(),
	}
}

// merge is the single write path for convergence. All merges, reactive or
// predictive, go through here.
func (e *Engine) merge(keptID, removedID int64, similarity float64, reason string) (*store.MergeEvent, error) {
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()
	return e.DB.MergeConcepts(keptID, removedID, similarity, reason)
}
