// Package graphstore implements the Graph Writer and Query Service
// components against a SQLite-backed labeled property graph: nodes and
// edges carry the same semantics a Cypher-style store would (MERGE-by-id
// idempotency, forced kg_id, per-graph isolation) without depending on an
// actual graph database driver.
package graphstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/kgraph/kg"
)

// Store wraps the SQLite database backing the graph store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at path and ensures the graph
// schema exists, mirroring the teacher's WAL + busy-timeout connection
// string and pool sizing.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating graph store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening graph store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging graph store: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating graph schema: %w", err)
	}
	if _, err := db.Exec(taskSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating task schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT NOT NULL,
	label TEXT NOT NULL,
	name TEXT NOT NULL,
	kg_id TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (id)
);
CREATE INDEX IF NOT EXISTS idx_nodes_kg_id ON nodes(kg_id);

CREATE TABLE IF NOT EXISTS owns (
	user_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	PRIMARY KEY (user_id, node_id)
);

CREATE TABLE IF NOT EXISTS edges (
	source_id TEXT NOT NULL,
	relation TEXT NOT NULL,
	target_id TEXT NOT NULL,
	kg_id TEXT NOT NULL,
	PRIMARY KEY (source_id, relation, target_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_kg_id ON edges(kg_id);
`

// sanitizeLabel applies the node-label sanitization rule used by Persist:
// illegal characters become "_", the first byte is uppercased, and an
// empty label falls back to "Entity". Relation types go through
// sanitizeRelation instead; Delete matches nodes by kg_id and id, never by
// label, so it needs no sanitization.
func sanitizeLabel(s string) string {
	r := strings.NewReplacer(`\`, "_", "/", "_", ":", "_", `"`, "_", "*", "_", "?", "_", "<", "_", ">", "_", "|", "_")
	s = r.Replace(strings.TrimSpace(s))
	if s == "" {
		return "Entity"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Persist writes a job's aligned entities and triples in a single
// transaction: the User node is merged, then every entity, then every
// triple — entities always precede the triples that reference them.
func (s *Store) Persist(ctx context.Context, userID, kgID string, entities []kg.AlignedEntity, triples []kg.Triple) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("merging user: %w", err)
		}

		for _, e := range entities {
			label := sanitizeLabel(e.Type)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO nodes (id, label, name, kg_id) VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET label = excluded.label, name = excluded.name, kg_id = excluded.kg_id
			`, e.ID, label, e.Name, kgID); err != nil {
				return fmt.Errorf("merging node %s: %w", e.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO owns (user_id, node_id) VALUES (?, ?) ON CONFLICT(user_id, node_id) DO NOTHING
			`, userID, e.ID); err != nil {
				return fmt.Errorf("merging owns edge for %s: %w", e.ID, err)
			}
		}

		for _, t := range triples {
			relation := sanitizeRelation(t.Relation)
			var headExists, tailExists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ? AND kg_id = ?`, t.HeadID, kgID).Scan(&headExists); err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ? AND kg_id = ?`, t.TailID, kgID).Scan(&tailExists); err != nil {
				return err
			}
			if headExists == 0 || tailExists == 0 {
				continue // endpoint not in this graph; drop with no error, matches MATCH-miss semantics
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO edges (source_id, relation, target_id, kg_id) VALUES (?, ?, ?, ?)
				ON CONFLICT(source_id, relation, target_id) DO NOTHING
			`, t.HeadID, relation, t.TailID, kgID); err != nil {
				return fmt.Errorf("merging edge %s-%s->%s: %w", t.HeadID, relation, t.TailID, err)
			}
		}
		return nil
	})
}

// Node is a graph node as returned by the Query Service.
type Node struct {
	ID    string
	Label string
	Name  string
}

// Edge is a graph edge as returned by the Query Service.
type Edge struct {
	SourceID string
	Relation string
	TargetID string
}

// Nodes returns every node belonging to kgID, for visualization or export.
func (s *Store) Nodes(ctx context.Context, kgID string) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, name FROM nodes WHERE kg_id = ? ORDER BY id`, kgID)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Label, &n.Name); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Edges returns every edge whose endpoints both belong to kgID.
func (s *Store) Edges(ctx context.Context, kgID string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_id, relation, target_id FROM edges WHERE kg_id = ? ORDER BY source_id, relation, target_id`, kgID)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceID, &e.Relation, &e.TargetID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Neighbors returns nodes reachable from nodeID by one hop within kgID,
// in either direction, for the Query Service's subgraph lookups.
func (s *Store) Neighbors(ctx context.Context, kgID, nodeID string) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.label, n.name FROM nodes n
		JOIN edges e ON (e.target_id = n.id AND e.source_id = ?) OR (e.source_id = n.id AND e.target_id = ?)
		WHERE n.kg_id = ? AND e.kg_id = ?
		ORDER BY n.id
	`, nodeID, nodeID, kgID, kgID)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Label, &n.Name); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func sanitizeRelation(r string) string {
	rep := strings.NewReplacer(`\`, "_", "/", "_", ":", "_", `"`, "_", "*", "_", "?", "_", "<", "_", ">", "_", "|", "_")
	return strings.ToUpper(rep.Replace(strings.TrimSpace(r)))
}

// Delete implements the two-phase deletion protocol: edges touching any
// node with this kg_id are removed first, then nodes matching kg_id, plus a
// compatibility branch for legacy nodes created within the graph's
// [createdAt, createdAt+10min] window and owned by the same user.
func (s *Store) Delete(ctx context.Context, userID, kgID string, createdAt time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM edges WHERE source_id IN (SELECT id FROM nodes WHERE kg_id = ?)
			   OR target_id IN (SELECT id FROM nodes WHERE kg_id = ?)
		`, kgID, kgID); err != nil {
			return fmt.Errorf("deleting edges for kg_id %s: %w", kgID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE kg_id = ?`, kgID); err != nil {
			return fmt.Errorf("deleting nodes for kg_id %s: %w", kgID, err)
		}

		windowEnd := createdAt.Add(10 * time.Minute)
		rows, err := tx.QueryContext(ctx, `
			SELECT n.id FROM nodes n
			JOIN owns o ON o.node_id = n.id
			WHERE n.kg_id IS NULL AND o.user_id = ? AND n.created_at BETWEEN ? AND ?
		`, userID, createdAt, windowEnd)
		if err != nil {
			return fmt.Errorf("finding legacy nodes: %w", err)
		}
		var legacyIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			legacyIDs = append(legacyIDs, id)
		}
		rows.Close()

		for _, id := range legacyIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
				return fmt.Errorf("deleting legacy edges for %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
				return fmt.Errorf("deleting legacy node %s: %w", id, err)
			}
		}
		return nil
	})
}
