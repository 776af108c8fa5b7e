package store

import (
	"database/sql"
	"fmt"
)

// MergeEvent is an immutable ledger row recording one convergence. Rows are
// only ever appended; trend and scheduling logic reads them back in
// merged_at descending order.
type MergeEvent struct {
	ID             int64   `json:"id"`
	RemovedID      int64   `json:"removedId"`
	KeptID         int64   `json:"keptId"`
	RemovedName    string  `json:"removedName"`
	KeptName       string  `json:"keptName"`
	Similarity     float64 `json:"similarity"` // 0-100
	Reason         string  `json:"reason,omitempty"`
	ConceptsBefore int     `json:"conceptsBefore"`
	ConceptsAfter  int     `json:"conceptsAfter"`
	MergedAt       int64   `json:"mergedAt"`
}

// CompressionRate is the fraction of the graph this event removed.
func (e MergeEvent) CompressionRate() float64 {
	if e.ConceptsBefore <= 0 {
		return 0
	}
	return float64(e.ConceptsBefore-e.ConceptsAfter) / float64(e.ConceptsBefore)
}

// ListMergeEvents returns up to limit ledger rows, newest first.
func (db *DB) ListMergeEvents(limit int) ([]MergeEvent, error) {
	rows, err := db.Query(`
		SELECT id, removed_id, kept_id, removed_name, kept_name, similarity, reason,
			concepts_before, concepts_after, merged_at
		FROM merge_events ORDER BY merged_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list merge events: %w", err)
	}
	defer rows.Close()
	return scanMergeEvents(rows)
}

// EventsForConcept returns up to limit ledger rows touching the given
// concept id (as either side of the merge), newest first.
func (db *DB) EventsForConcept(conceptID int64, limit int) ([]MergeEvent, error) {
	rows, err := db.Query(`
		SELECT id, removed_id, kept_id, removed_name, kept_name, similarity, reason,
			concepts_before, concepts_after, merged_at
		FROM merge_events WHERE kept_id = ? OR removed_id = ?
		ORDER BY merged_at DESC, id DESC LIMIT ?
	`, conceptID, conceptID, limit)
	if err != nil {
		return nil, fmt.Errorf("events for concept %d: %w", conceptID, err)
	}
	defer rows.Close()
	return scanMergeEvents(rows)
}

// LatestMergeTime returns the merged_at of the most recent ledger row, or
// zero when the ledger is empty.
func (db *DB) LatestMergeTime() (int64, error) {
	var ts int64
	err := db.QueryRow("SELECT COALESCE(MAX(merged_at), 0) FROM merge_events").Scan(&ts)
	return ts, err
}

// CountMergesSince returns the number of ledger rows at or after the given
// timestamp.
func (db *DB) CountMergesSince(ts int64) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM merge_events WHERE merged_at >= ?", ts).Scan(&count)
	return count, err
}

func scanMergeEvents(rows *sql.Rows) ([]MergeEvent, error) {
	var events []MergeEvent
	for rows.Next() {
		var e MergeEvent
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.RemovedID, &e.KeptID, &e.RemovedName, &e.KeptName,
			&e.Similarity, &reason, &e.ConceptsBefore, &e.ConceptsAfter, &e.MergedAt); err != nil {
			return nil, fmt.Errorf("scan merge event: %w", err)
		}
		e.Reason = reason.String
		events = append(events, e)
	}
	return events, rows.Err()
}
