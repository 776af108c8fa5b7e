package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Counter names. max_concepts is the monotonically increasing high-water
// mark of the concept count; prev_entropy is a single rolling memory cell
// holding the entropy value from the previous metrics computation.
const (
	CounterMaxConcepts = "max_concepts"
	CounterPrevEntropy = "prev_entropy"
)

// MetricsRecord is a persisted metrics snapshot. A rolling history of these
// feeds entropy-trend classification downstream.
type MetricsRecord struct {
	ID            int64   `json:"id"`
	Compression   float64 `json:"compressionRate"`
	EntropyDelta  float64 `json:"entropyChange"`
	Drift         float64 `json:"semanticDrift"`
	Curvature     float64 `json:"curvature"`
	AdaptiveMatch float64 `json:"adaptiveMatchScore"`
	Complexity    float64 `json:"lifeworldComplexity"`
	Concepts      int     `json:"conceptCount"`
	Edges         int     `json:"edgeCount"`
	Invariants    int     `json:"invariantCount"`
	Clusters      int     `json:"clusterCount"`
	CreatedAt     int64   `json:"timestamp"`
}

// AppendSnapshot persists a metrics snapshot.
func (db *DB) AppendSnapshot(s *MetricsRecord) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO metrics_snapshots (compression, entropy_delta, drift, curvature, adaptive_match,
			complexity, concepts, edges, invariants, clusters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Compression, s.EntropyDelta, s.Drift, s.Curvature, s.AdaptiveMatch,
		s.Complexity, s.Concepts, s.Edges, s.Invariants, s.Clusters, now)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	s.ID, _ = result.LastInsertId()
	s.CreatedAt = now
	return nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (db *DB) ListSnapshots(limit int) ([]MetricsRecord, error) {
	rows, err := db.Query(`
		SELECT id, compression, entropy_delta, drift, curvature, adaptive_match,
			complexity, concepts, edges, invariants, clusters, created_at
		FROM metrics_snapshots ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []MetricsRecord
	for rows.Next() {
		var s MetricsRecord
		if err := rows.Scan(&s.ID, &s.Compression, &s.EntropyDelta, &s.Drift, &s.Curvature,
			&s.AdaptiveMatch, &s.Complexity, &s.Concepts, &s.Edges, &s.Invariants,
			&s.Clusters, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// Counter returns the value of a named counter, or 0 when unset.
func (db *DB) Counter(name string) (float64, error) {
	var v float64
	err := db.QueryRow("SELECT value FROM counters WHERE name = ?", name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}
	return v, nil
}

// SetCounter stores a named counter value.
func (db *DB) SetCounter(name string, value float64) error {
	_, err := db.Exec(`
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = ?
	`, name, value, value)
	if err != nil {
		return fmt.Errorf("set counter %s: %w", name, err)
	}
	return nil
}
