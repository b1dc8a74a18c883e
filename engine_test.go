package kgraph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	dir := t.TempDir()
	uploadDir := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		t.Fatalf("MkdirAll error = %v", err)
	}
	// Repeated so the file passes the parser's meaningfulness gate
	// (at least 100 characters and 10 word runs).
	content := strings.Repeat("百度公司于2023年推出文心一言。百度公司是一家人工智能公司，王海峰领导百度研究院。", 4)
	if err := os.WriteFile(filepath.Join(uploadDir, "doc1.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(dir, "graph.db")
	cfg.UploadDir = uploadDir
	cfg.UseLocalExtractionFallback = true // no LLM provider available in tests

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { eng.Shutdown() })
	return eng
}

func waitForCompletion(t *testing.T, eng Engine, taskID string) JobProgress {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := eng.Progress(ctx, taskID)
		if err != nil {
			t.Fatalf("Progress error = %v", err)
		}
		if p.Status == "completed" || p.Status == "failed" {
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for job completion")
	return JobProgress{}
}

func TestSubmitRejectsEmptyFileIDs(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Submit(context.Background(), "u1", SubmitRequest{}); err != ErrNoFiles {
		t.Errorf("Submit() error = %v, want ErrNoFiles", err)
	}
}

func TestSubmitQueryDeleteRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	taskID, err := eng.Submit(ctx, "u1", SubmitRequest{FileIDs: []string{"doc1.txt"}, KGName: "test graph"})
	if err != nil {
		t.Fatalf("Submit error = %v", err)
	}

	p := waitForCompletion(t, eng, taskID)
	if p.Status != "completed" {
		t.Fatalf("expected completed, got %+v", p)
	}
	if p.KGID == "" {
		t.Fatal("expected kg_id on completed task")
	}

	result, err := eng.Query(ctx, "u1", QueryRequest{KGID: p.KGID, IncludeEntities: true})
	if err != nil {
		t.Fatalf("Query error = %v", err)
	}
	if len(result.Entities) == 0 {
		t.Error("expected at least one entity from local fallback extraction")
	}

	if _, err := eng.Query(ctx, "other-user", QueryRequest{KGID: p.KGID, IncludeEntities: true}); err != ErrGraphNotFound {
		t.Errorf("Query() cross-user error = %v, want ErrGraphNotFound", err)
	}

	if err := eng.Delete(ctx, "u1", p.KGID); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if _, err := eng.Query(ctx, "u1", QueryRequest{KGID: p.KGID}); err != ErrGraphNotFound {
		t.Errorf("Query() after delete error = %v, want ErrGraphNotFound", err)
	}
}

func TestProgressUnknownTask(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Progress(context.Background(), "nonexistent"); err != ErrTaskNotFound {
		t.Errorf("Progress() error = %v, want ErrTaskNotFound", err)
	}
}
