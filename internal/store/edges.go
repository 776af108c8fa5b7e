package store

import (
	"database/sql"
	"fmt"
)

// ConceptEdge is a directed relation between two concepts.
type ConceptEdge struct {
	ID       int64  `json:"id"`
	SourceID int64  `json:"sourceId"`
	TargetID int64  `json:"targetId"`
	Relation string `json:"relation"`
	Weight   int    `json:"weight"`
}

// UserConceptLink associates a user with a concept. At most one live link
// exists per (user, concept) pair; repeated reinforcement increments strength.
type UserConceptLink struct {
	ID             int64  `json:"id"`
	UserID         string `json:"userId"`
	ConceptID      int64  `json:"conceptId"`
	Strength       int    `json:"strength"`
	ConversationID string `json:"conversationId,omitempty"`
}

// CreateEdge inserts a concept edge. Both endpoints must exist.
func (db *DB) CreateEdge(e *ConceptEdge) error {
	if e.Relation == "" {
		e.Relation = "related"
	}
	if e.Weight < 1 {
		e.Weight = 1
	}
	result, err := db.Exec(`
		INSERT INTO concept_edges (source_id, target_id, relation, weight)
		VALUES (?, ?, ?, ?)
	`, e.SourceID, e.TargetID, e.Relation, e.Weight)
	if err != nil {
		return fmt.Errorf("create edge: %w", err)
	}
	e.ID, _ = result.LastInsertId()
	return nil
}

// EdgesTouching returns all edges with the given concept as either endpoint.
func (db *DB) EdgesTouching(conceptID int64) ([]ConceptEdge, error) {
	rows, err := db.Query(`
		SELECT id, source_id, target_id, relation, weight
		FROM concept_edges WHERE source_id = ? OR target_id = ?
	`, conceptID, conceptID)
	if err != nil {
		return nil, fmt.Errorf("edges touching %d: %w", conceptID, err)
	}
	defer rows.Close()

	var edges []ConceptEdge
	for rows.Next() {
		var e ConceptEdge
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CountEdges returns the total number of concept edges.
func (db *DB) CountEdges() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM concept_edges").Scan(&count)
	return count, err
}

// LinkUserConcept records that a user touched a concept. An existing link is
// reinforced (strength increment) rather than duplicated.
func (db *DB) LinkUserConcept(userID string, conceptID int64, conversationID string) error {
	_, err := db.Exec(`
		INSERT INTO user_concepts (user_id, concept_id, strength, conversation_id)
		VALUES (?, ?, 1, NULLIF(?, ''))
		ON CONFLICT(user_id, concept_id) DO UPDATE SET strength = strength + 1
	`, userID, conceptID, conversationID)
	if err != nil {
		return fmt.Errorf("link user concept: %w", err)
	}
	return nil
}

// LinksForConcept returns all user links for a concept.
func (db *DB) LinksForConcept(conceptID int64) ([]UserConceptLink, error) {
	rows, err := db.Query(`
		SELECT id, user_id, concept_id, strength, conversation_id
		FROM user_concepts WHERE concept_id = ?
	`, conceptID)
	if err != nil {
		return nil, fmt.Errorf("links for concept %d: %w", conceptID, err)
	}
	defer rows.Close()

	var links []UserConceptLink
	for rows.Next() {
		var l UserConceptLink
		var conv sql.NullString
		if err := rows.Scan(&l.ID, &l.UserID, &l.ConceptID, &l.Strength, &conv); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.ConversationID = conv.String
		links = append(links, l)
	}
	return links, rows.Err()
}

// LinkStrengthStats returns the mean reinforcement strength across all user
// links and the link count.
func (db *DB) LinkStrengthStats() (avg float64, count int, err error) {
	err = db.QueryRow("SELECT COALESCE(AVG(strength), 0), COUNT(*) FROM user_concepts").Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("link strength stats: %w", err)
	}
	return avg, count, nil
}
