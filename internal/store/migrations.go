package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "concepts: graph nodes with density and reinforcement",
		SQL: `
CREATE TABLE concepts (
    id               INTEGER PRIMARY KEY,
    name             TEXT NOT NULL UNIQUE COLLATE NOCASE,
    description      TEXT,
    category         TEXT NOT NULL DEFAULT 'general',
    semantic_density INTEGER NOT NULL DEFAULT 50 CHECK (semantic_density BETWEEN 0 AND 100),
    occurrences      INTEGER NOT NULL DEFAULT 1 CHECK (occurrences >= 1),
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
);

CREATE INDEX idx_concepts_density  ON concepts(semantic_density DESC);
CREATE INDEX idx_concepts_category ON concepts(category);
CREATE INDEX idx_concepts_updated  ON concepts(updated_at DESC);
`,
	},
	{
		Version:     2,
		Description: "concept_edges + user_concepts: graph relations",
		SQL: `
CREATE TABLE concept_edges (
    id        INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    relation  TEXT NOT NULL DEFAULT 'related',
    weight    INTEGER NOT NULL DEFAULT 1,

    FOREIGN KEY (source_id) REFERENCES concepts(id),
    FOREIGN KEY (target_id) REFERENCES concepts(id)
);

CREATE INDEX idx_edges_source ON concept_edges(source_id);
CREATE INDEX idx_edges_target ON concept_edges(target_id);

CREATE TABLE user_concepts (
    id              INTEGER PRIMARY KEY,
    user_id         TEXT NOT NULL,
    concept_id      INTEGER NOT NULL,
    strength        INTEGER NOT NULL DEFAULT 1,
    conversation_id TEXT,

    UNIQUE (user_id, concept_id),
    FOREIGN KEY (concept_id) REFERENCES concepts(id)
);

CREATE INDEX idx_user_concepts_concept ON user_concepts(concept_id);
`,
	},
	{
		Version:     3,
		Description: "merge_events: append-only convergence ledger",
		SQL: `
CREATE TABLE merge_events (
    id              INTEGER PRIMARY KEY,
    removed_id      INTEGER NOT NULL,
    kept_id         INTEGER NOT NULL,
    removed_name    TEXT NOT NULL,
    kept_name       TEXT NOT NULL,
    similarity      REAL NOT NULL,
    reason          TEXT,
    concepts_before INTEGER NOT NULL,
    concepts_after  INTEGER NOT NULL,
    merged_at       INTEGER NOT NULL
);

CREATE INDEX idx_merges_merged_at ON merge_events(merged_at DESC);
CREATE INDEX idx_merges_kept      ON merge_events(kept_id);
CREATE INDEX idx_merges_removed   ON merge_events(removed_id);
`,
	},
	{
		Version:     4,
		Description: "metrics_snapshots + counters: instrumentation history",
		SQL: `
CREATE TABLE metrics_snapshots (
    id             INTEGER PRIMARY KEY,
    compression    REAL NOT NULL,
    entropy_delta  REAL NOT NULL,
    drift          REAL NOT NULL,
    curvature      REAL NOT NULL,
    adaptive_match REAL NOT NULL,
    complexity     REAL NOT NULL,
    concepts       INTEGER NOT NULL,
    edges          INTEGER NOT NULL,
    invariants     INTEGER NOT NULL,
    clusters       INTEGER NOT NULL,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_snapshots_created ON metrics_snapshots(created_at DESC);

CREATE TABLE counters (
    name  TEXT PRIMARY KEY,
    value REAL NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
