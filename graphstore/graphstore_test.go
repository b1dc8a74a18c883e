package graphstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brunobiangulo/kgraph/kg"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "graph.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSanitizeLabelFallsBackToEntity(t *testing.T) {
	if got := sanitizeLabel(""); got != "Entity" {
		t.Errorf("sanitizeLabel(\"\") = %q, want Entity", got)
	}
	if got := sanitizeLabel("  "); got != "Entity" {
		t.Errorf("sanitizeLabel(whitespace) = %q, want Entity", got)
	}
}

func TestSanitizeLabelReplacesIllegalChars(t *testing.T) {
	got := sanitizeLabel(`weird/label:name`)
	if got != "Weird_label_name" {
		t.Errorf("sanitizeLabel() = %q", got)
	}
}

func TestPersistThenQueryIsolatesByKgID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entitiesA := []kg.AlignedEntity{{ID: "a1", Name: "Baidu", Type: "Organization"}}
	entitiesB := []kg.AlignedEntity{{ID: "b1", Name: "Tencent", Type: "Organization"}}

	if err := s.Persist(ctx, "user1", "kgA", entitiesA, nil); err != nil {
		t.Fatalf("Persist kgA error = %v", err)
	}
	if err := s.Persist(ctx, "user1", "kgB", entitiesB, nil); err != nil {
		t.Fatalf("Persist kgB error = %v", err)
	}

	nodesA, err := s.Nodes(ctx, "kgA")
	if err != nil {
		t.Fatalf("Nodes(kgA) error = %v", err)
	}
	if len(nodesA) != 1 || nodesA[0].Name != "Baidu" {
		t.Errorf("Nodes(kgA) = %+v, want only Baidu", nodesA)
	}

	nodesB, err := s.Nodes(ctx, "kgB")
	if err != nil {
		t.Fatalf("Nodes(kgB) error = %v", err)
	}
	if len(nodesB) != 1 || nodesB[0].Name != "Tencent" {
		t.Errorf("Nodes(kgB) = %+v, want only Tencent", nodesB)
	}
}

func TestPersistDropsTriplesWithMissingEndpoints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entities := []kg.AlignedEntity{{ID: "a1", Name: "Baidu", Type: "Organization"}}
	triples := []kg.Triple{{HeadID: "a1", Relation: "合作", TailID: "missing"}}

	if err := s.Persist(ctx, "user1", "kgA", entities, triples); err != nil {
		t.Fatalf("Persist error = %v", err)
	}
	edges, err := s.Edges(ctx, "kgA")
	if err != nil {
		t.Fatalf("Edges error = %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected dangling triple dropped, got %+v", edges)
	}
}

func TestDeleteRemovesOnlyTargetedGraph(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entitiesA := []kg.AlignedEntity{{ID: "a1", Name: "Baidu", Type: "Organization"}}
	entitiesB := []kg.AlignedEntity{{ID: "b1", Name: "Tencent", Type: "Organization"}}
	if err := s.Persist(ctx, "user1", "kgA", entitiesA, nil); err != nil {
		t.Fatalf("Persist kgA error = %v", err)
	}
	if err := s.Persist(ctx, "user1", "kgB", entitiesB, nil); err != nil {
		t.Fatalf("Persist kgB error = %v", err)
	}

	if err := s.Delete(ctx, "user1", "kgA", time.Now()); err != nil {
		t.Fatalf("Delete error = %v", err)
	}

	nodesA, _ := s.Nodes(ctx, "kgA")
	if len(nodesA) != 0 {
		t.Errorf("expected kgA emptied, got %+v", nodesA)
	}
	nodesB, _ := s.Nodes(ctx, "kgB")
	if len(nodesB) != 1 {
		t.Errorf("expected kgB untouched, got %+v", nodesB)
	}
}

func TestPersistIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entities := []kg.AlignedEntity{{ID: "a1", Name: "Baidu", Type: "Organization"}}
	triples := []kg.Triple{{HeadID: "a1", Relation: "合作", TailID: "a1"}}

	if err := s.Persist(ctx, "user1", "kgA", entities, triples); err != nil {
		t.Fatalf("first Persist error = %v", err)
	}
	if err := s.Persist(ctx, "user1", "kgA", entities, triples); err != nil {
		t.Fatalf("second Persist error = %v", err)
	}

	nodes, _ := s.Nodes(ctx, "kgA")
	if len(nodes) != 1 {
		t.Errorf("expected MERGE idempotency, got %d nodes", len(nodes))
	}
}
