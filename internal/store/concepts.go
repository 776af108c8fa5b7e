package store

import (
	"database/sql"
	"fmt"
	"time"
)

// InvariantDensity is the density at which a concept is treated as a
// semantic invariant (stable/fundamental).
const InvariantDensity = 70

// reinforceDensityBump is added to a concept's density on repeated mention.
const reinforceDensityBump = 2

// Concept is a node in the concept graph.
type Concept struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Density     int    `json:"semanticDensity"`
	Occurrences int    `json:"occurrences"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// CreateConcept inserts a new concept. Density is clamped to [0,100] and
// occurrences floored at 1.
func (db *DB) CreateConcept(c *Concept) error {
	now := time.Now().UnixMilli()
	if c.Category == "" {
		c.Category = "general"
	}
	if c.Density < 0 {
		c.Density = 0
	}
	if c.Density > 100 {
		c.Density = 100
	}
	if c.Occurrences < 1 {
		c.Occurrences = 1
	}

	result, err := db.Exec(`
		INSERT INTO concepts (name, description, category, semantic_density, occurrences, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.Description, c.Category, c.Density, c.Occurrences, now, now)
	if err != nil {
		return fmt.Errorf("create concept: %w", err)
	}

	id, _ := result.LastInsertId()
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetConcept returns a concept by id, or nil if not found.
func (db *DB) GetConcept(id int64) (*Concept, error) {
	return db.scanOneConcept(db.QueryRow(`
		SELECT id, name, description, category, semantic_density, occurrences, created_at, updated_at
		FROM concepts WHERE id = ?
	`, id))
}

// GetConceptByName returns a concept by name (case-insensitive), or nil if
// not found.
func (db *DB) GetConceptByName(name string) (*Concept, error) {
	return db.scanOneConcept(db.QueryRow(`
		SELECT id, name, description, category, semantic_density, occurrences, created_at, updated_at
		FROM concepts WHERE name = ? COLLATE NOCASE
	`, name))
}

// UpsertConcept creates a concept when no case-insensitive name match
// exists, otherwise reinforces the existing one: occurrences increment and a
// small density bump. Returns true when an existing concept was reinforced.
func (db *DB) UpsertConcept(c *Concept) (bool, error) {
	existing, err := db.GetConceptByName(c.Name)
	if err != nil {
		return false, err
	}

	if existing == nil {
		return false, db.CreateConcept(c)
	}

	now := time.Now().UnixMilli()
	density := existing.Density + reinforceDensityBump
	if density > 100 {
		density = 100
	}
	_, err = db.Exec(`
		UPDATE concepts SET semantic_density = ?, occurrences = occurrences + 1, updated_at = ?
		WHERE id = ?
	`, density, now, existing.ID)
	if err != nil {
		return false, fmt.Errorf("reinforce concept %d: %w", existing.ID, err)
	}

	c.ID = existing.ID
	c.Name = existing.Name
	c.Category = existing.Category
	c.Density = density
	c.Occurrences = existing.Occurrences + 1
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = now
	return true, nil
}

// UpdateConcept overwrites a concept's mutable fields.
func (db *DB) UpdateConcept(c *Concept) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE concepts SET description = ?, category = ?, semantic_density = ?, occurrences = ?, updated_at = ?
		WHERE id = ?
	`, c.Description, c.Category, c.Density, c.Occurrences, now, c.ID)
	if err != nil {
		return fmt.Errorf("update concept %d: %w", c.ID, err)
	}
	c.UpdatedAt = now
	return nil
}

// TopConceptsByDensity returns up to limit concepts ordered by density desc,
// occurrences desc, then id asc for a stable order.
func (db *DB) TopConceptsByDensity(limit int) ([]Concept, error) {
	rows, err := db.Query(`
		SELECT id, name, description, category, semantic_density, occurrences, created_at, updated_at
		FROM concepts
		ORDER BY semantic_density DESC, occurrences DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top concepts: %w", err)
	}
	defer rows.Close()
	return scanConcepts(rows)
}

// CountConcepts returns the total number of concepts.
func (db *DB) CountConcepts() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM concepts").Scan(&count)
	return count, err
}

// CountInvariants returns the number of concepts at or above the invariant
// density threshold.
func (db *DB) CountInvariants() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM concepts WHERE semantic_density >= ?", InvariantDensity).Scan(&count)
	return count, err
}

// CategoryCounts returns the category → concept count histogram.
func (db *DB) CategoryCounts() (map[string]int, error) {
	rows, err := db.Query("SELECT category, COUNT(*) FROM concepts GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}

// OccurrenceTotals returns the occurrence sum of concepts updated since the
// given timestamp (excluding freshly created ones) and the occurrence sum of
// all concepts.
func (db *DB) OccurrenceTotals(since int64) (recent, total int, err error) {
	err = db.QueryRow(`
		SELECT COALESCE(SUM(occurrences), 0) FROM concepts
		WHERE updated_at >= ? AND updated_at != created_at
	`, since).Scan(&recent)
	if err != nil {
		return 0, 0, fmt.Errorf("recent occurrences: %w", err)
	}
	err = db.QueryRow("SELECT COALESCE(SUM(occurrences), 0) FROM concepts").Scan(&total)
	if err != nil {
		return 0, 0, fmt.Errorf("total occurrences: %w", err)
	}
	return recent, total, nil
}

func (db *DB) scanOneConcept(row *sql.Row) (*Concept, error) {
	var c Concept
	var desc sql.NullString
	err := row.Scan(&c.ID, &c.Name, &desc, &c.Category, &c.Density, &c.Occurrences, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan concept: %w", err)
	}
	c.Description = desc.String
	return &c, nil
}

func scanConcepts(rows *sql.Rows) ([]Concept, error) {
	var concepts []Concept
	for rows.Next() {
		var c Concept
		var desc sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &desc, &c.Category, &c.Density, &c.Occurrences, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		c.Description = desc.String
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}
