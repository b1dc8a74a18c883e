package graphstore

import (
	"context"
	"testing"
)

func TestCreateTaskStartsAtPendingZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := &Task{TaskID: "t1", UserID: "u1", Kind: "kg_create", FileIDs: []string{"f1"}, Algorithms: map[string]any{"aligner": "fuzzy"}}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask error = %v", err)
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask error = %v", err)
	}
	if got.Status != TaskPending || got.Progress != 0 {
		t.Errorf("GetTask() = %+v, want pending/0", got)
	}
	if len(got.FileIDs) != 1 || got.FileIDs[0] != "f1" {
		t.Errorf("FileIDs not round-tripped: %+v", got.FileIDs)
	}
}

func TestUpdateTaskProgressAndKGIDOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := &Task{TaskID: "t1", UserID: "u1", Kind: "kg_create"}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask error = %v", err)
	}

	if err := s.UpdateTaskProgress(ctx, "t1", TaskProcessing, 90, "Persist", "writing graph"); err != nil {
		t.Fatalf("UpdateTaskProgress error = %v", err)
	}
	if err := s.SetTaskKGID(ctx, "t1", "kg1"); err != nil {
		t.Fatalf("SetTaskKGID error = %v", err)
	}
	if err := s.UpdateTaskProgress(ctx, "t1", TaskCompleted, 100, "Finalize", "done"); err != nil {
		t.Fatalf("UpdateTaskProgress error = %v", err)
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask error = %v", err)
	}
	if got.Status != TaskCompleted || got.Progress != 100 {
		t.Errorf("GetTask() = %+v, want completed/100", got)
	}
	if got.KGID != "kg1" {
		t.Errorf("expected kg_id set before completed, got %q", got.KGID)
	}
}

func TestGetTaskMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetTask(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("GetTask() error = %v, want ErrNotFound", err)
	}
}

func TestKnowledgeGraphLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := &KnowledgeGraph{KGID: "kg1", UserID: "u1", Name: "My Graph", FileIDs: []string{"f1", "f2"}}
	if err := s.CreateKnowledgeGraph(ctx, g); err != nil {
		t.Fatalf("CreateKnowledgeGraph error = %v", err)
	}
	if err := s.FinalizeKnowledgeGraph(ctx, "kg1", GraphCompleted, 5, 3, "ok"); err != nil {
		t.Fatalf("FinalizeKnowledgeGraph error = %v", err)
	}

	got, err := s.GetKnowledgeGraph(ctx, "u1", "kg1")
	if err != nil {
		t.Fatalf("GetKnowledgeGraph error = %v", err)
	}
	if got.Status != GraphCompleted || got.EntityCount != 5 || got.RelationCount != 3 {
		t.Errorf("GetKnowledgeGraph() = %+v", got)
	}

	if _, err := s.GetKnowledgeGraph(ctx, "other-user", "kg1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for wrong user, got %v", err)
	}

	if err := s.DeleteKnowledgeGraph(ctx, "u1", "kg1"); err != nil {
		t.Fatalf("DeleteKnowledgeGraph error = %v", err)
	}
	if _, err := s.GetKnowledgeGraph(ctx, "u1", "kg1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
