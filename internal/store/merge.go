package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrConceptMissing is returned when either side of a merge no longer exists
// at merge time (typically a race with an earlier merge in the same run).
var ErrConceptMissing = errors.New("concept missing at merge time")

// MergeConcepts absorbs one concept into another in a single transaction:
// the kept concept gains density and occurrences, every edge and user link
// referencing the removed concept is rewritten to the kept one, the removed
// row is deleted, and a ledger row is appended. Nothing is written if either
// concept is missing or any step fails.
//
// Kept density = min(100, kept + floor(removed * 0.3)).
// Kept occurrences = kept + removed.
//
// similarity is the oracle score in [0,1]; it is recorded on the ledger row
// scaled to [0,100].
func (db *DB) MergeConcepts(keptID, removedID int64, similarity float64, reason string) (*MergeEvent, error) {
	if keptID == removedID {
		return nil, fmt.Errorf("merge concept %d into itself", keptID)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	var kept, removed Concept
	for _, pair := range []struct {
		id   int64
		dest *Concept
	}{{keptID, &kept}, {removedID, &removed}} {
		err := tx.QueryRow(`
			SELECT id, name, semantic_density, occurrences FROM concepts WHERE id = ?
		`, pair.id).Scan(&pair.dest.ID, &pair.dest.Name, &pair.dest.Density, &pair.dest.Occurrences)
		if err != nil {
			return nil, fmt.Errorf("concept %d: %w", pair.id, ErrConceptMissing)
		}
	}

	var before int
	if err := tx.QueryRow("SELECT COUNT(*) FROM concepts").Scan(&before); err != nil {
		return nil, fmt.Errorf("count before merge: %w", err)
	}

	// Rewrite edges to the kept concept, then drop any self-loop the rewrite
	// produced (an edge between the two merged concepts).
	if _, err := tx.Exec("UPDATE concept_edges SET source_id = ? WHERE source_id = ?", keptID, removedID); err != nil {
		return nil, fmt.Errorf("rewrite edge sources: %w", err)
	}
	if _, err := tx.Exec("UPDATE concept_edges SET target_id = ? WHERE target_id = ?", keptID, removedID); err != nil {
		return nil, fmt.Errorf("rewrite edge targets: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM concept_edges WHERE source_id = ? AND target_id = ?", keptID, keptID); err != nil {
		return nil, fmt.Errorf("drop self-loops: %w", err)
	}

	// User links: where a user already links the kept concept, fold the
	// removed link's strength into it; remaining links are rewritten.
	if _, err := tx.Exec(`
		UPDATE user_concepts SET strength = strength + COALESCE(
			(SELECT r.strength FROM user_concepts r
			 WHERE r.concept_id = ? AND r.user_id = user_concepts.user_id), 0)
		WHERE concept_id = ?
	`, removedID, keptID); err != nil {
		return nil, fmt.Errorf("fold link strengths: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM user_concepts WHERE concept_id = ? AND user_id IN
			(SELECT user_id FROM user_concepts WHERE concept_id = ?)
	`, removedID, keptID); err != nil {
		return nil, fmt.Errorf("drop folded links: %w", err)
	}
	if _, err := tx.Exec("UPDATE user_concepts SET concept_id = ? WHERE concept_id = ?", keptID, removedID); err != nil {
		return nil, fmt.Errorf("rewrite user links: %w", err)
	}

	now := time.Now().UnixMilli()
	density := kept.Density + removed.Density*3/10
	if density > 100 {
		density = 100
	}
	if _, err := tx.Exec(`
		UPDATE concepts SET semantic_density = ?, occurrences = ?, updated_at = ? WHERE id = ?
	`, density, kept.Occurrences+removed.Occurrences, now, keptID); err != nil {
		return nil, fmt.Errorf("update kept concept: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM concepts WHERE id = ?", removedID); err != nil {
		return nil, fmt.Errorf("delete removed concept: %w", err)
	}

	event := &MergeEvent{
		RemovedID:      removedID,
		KeptID:         keptID,
		RemovedName:    removed.Name,
		KeptName:       kept.Name,
		Similarity:     similarity * 100,
		Reason:         reason,
		ConceptsBefore: before,
		ConceptsAfter:  before - 1,
		MergedAt:       now,
	}
	result, err := tx.Exec(`
		INSERT INTO merge_events (removed_id, kept_id, removed_name, kept_name, similarity, reason,
			concepts_before, concepts_after, merged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.RemovedID, event.KeptID, event.RemovedName, event.KeptName, event.Similarity,
		event.Reason, event.ConceptsBefore, event.ConceptsAfter, event.MergedAt)
	if err != nil {
		return nil, fmt.Errorf("append merge event: %w", err)
	}
	event.ID, _ = result.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge: %w", err)
	}
	return event, nil
}
