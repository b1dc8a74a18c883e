package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a Task or KnowledgeGraph row does not exist.
var ErrNotFound = errors.New("graphstore: not found")

const taskSchemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	stage TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	file_ids TEXT NOT NULL DEFAULT '[]',
	algorithms TEXT NOT NULL DEFAULT '{}',
	kg_id TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS knowledge_graphs (
	kg_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	entity_count INTEGER NOT NULL DEFAULT 0,
	relation_count INTEGER NOT NULL DEFAULT 0,
	file_ids TEXT NOT NULL DEFAULT '[]',
	progress INTEGER NOT NULL DEFAULT 0,
	build_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// TaskStatus enumerates the lifecycle states of a Task row.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is the durable job record the Job Engine dual-writes alongside its
// in-memory progress map.
type Task struct {
	TaskID     string
	UserID     string
	Kind       string
	Status     TaskStatus
	Progress   int
	Stage      string
	Message    string
	FileIDs    []string
	Algorithms map[string]any
	KGID       string // empty until the Persist stage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GraphStatus enumerates KnowledgeGraph lifecycle states.
type GraphStatus string

const (
	GraphProcessing GraphStatus = "processing"
	GraphCompleted  GraphStatus = "completed"
	GraphFailed     GraphStatus = "failed"
)

// KnowledgeGraph is the durable graph header row, created once the pipeline
// enters the Persist stage.
type KnowledgeGraph struct {
	KGID          string
	UserID        string
	Name          string
	Description   string
	Status        GraphStatus
	EntityCount   int
	RelationCount int
	FileIDs       []string
	Progress      int
	BuildMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateTask inserts a new Task row with status=pending, progress=0.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	fileIDs, err := json.Marshal(t.FileIDs)
	if err != nil {
		return fmt.Errorf("marshaling file_ids: %w", err)
	}
	algorithms, err := json.Marshal(t.Algorithms)
	if err != nil {
		return fmt.Errorf("marshaling algorithms: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, user_id, kind, status, progress, stage, message, file_ids, algorithms)
		VALUES (?, ?, ?, ?, 0, '', '', ?, ?)
	`, t.TaskID, t.UserID, t.Kind, TaskPending, string(fileIDs), string(algorithms))
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

// UpdateTaskProgress mirrors an in-memory progress update to the durable
// Task row. progress must be monotonic non-decreasing; callers are
// responsible for enforcing that at the call site.
func (s *Store) UpdateTaskProgress(ctx context.Context, taskID string, status TaskStatus, progress int, stage, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, progress = ?, stage = ?, message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE task_id = ?
	`, status, progress, stage, message, taskID)
	if err != nil {
		return fmt.Errorf("updating task progress: %w", err)
	}
	return nil
}

// SetTaskKGID records the kg_id once the Persist stage has allocated it.
// Must be called strictly before the terminal status=completed transition.
func (s *Store) SetTaskKGID(ctx context.Context, taskID, kgID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET kg_id = ?, updated_at = CURRENT_TIMESTAMP WHERE task_id = ?`, kgID, taskID)
	if err != nil {
		return fmt.Errorf("setting task kg_id: %w", err)
	}
	return nil
}

// GetTask loads a Task row by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, user_id, kind, status, progress, stage, message, file_ids, algorithms, kg_id, created_at, updated_at
		FROM tasks WHERE task_id = ?
	`, taskID)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var fileIDs, algorithms string
	var kgID sql.NullString
	if err := row.Scan(&t.TaskID, &t.UserID, &t.Kind, &t.Status, &t.Progress, &t.Stage, &t.Message, &fileIDs, &algorithms, &kgID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	if err := json.Unmarshal([]byte(fileIDs), &t.FileIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling file_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(algorithms), &t.Algorithms); err != nil {
		return nil, fmt.Errorf("unmarshaling algorithms: %w", err)
	}
	t.KGID = kgID.String
	return &t, nil
}

// CreateKnowledgeGraph inserts the graph header row at the start of the
// Persist stage, before any nodes or edges are written.
func (s *Store) CreateKnowledgeGraph(ctx context.Context, g *KnowledgeGraph) error {
	fileIDs, err := json.Marshal(g.FileIDs)
	if err != nil {
		return fmt.Errorf("marshaling file_ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_graphs (kg_id, user_id, name, description, status, file_ids, progress, build_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, g.KGID, g.UserID, g.Name, g.Description, GraphProcessing, string(fileIDs), g.Progress, g.BuildMessage)
	if err != nil {
		return fmt.Errorf("creating knowledge graph: %w", err)
	}
	return nil
}

// FinalizeKnowledgeGraph records the entity/relation counts and terminal
// status once nodes and edges have been committed.
func (s *Store) FinalizeKnowledgeGraph(ctx context.Context, kgID string, status GraphStatus, entityCount, relationCount int, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_graphs
		SET status = ?, entity_count = ?, relation_count = ?, progress = 100, build_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE kg_id = ?
	`, status, entityCount, relationCount, message, kgID)
	if err != nil {
		return fmt.Errorf("finalizing knowledge graph: %w", err)
	}
	return nil
}

// GetKnowledgeGraph loads a KnowledgeGraph header row, scoped to userID so
// callers cannot read another user's graph by guessing a kg_id.
func (s *Store) GetKnowledgeGraph(ctx context.Context, userID, kgID string) (*KnowledgeGraph, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kg_id, user_id, name, description, status, entity_count, relation_count, file_ids, progress, build_message, created_at, updated_at
		FROM knowledge_graphs WHERE kg_id = ? AND user_id = ?
	`, kgID, userID)

	var g KnowledgeGraph
	var fileIDs string
	if err := row.Scan(&g.KGID, &g.UserID, &g.Name, &g.Description, &g.Status, &g.EntityCount, &g.RelationCount, &fileIDs, &g.Progress, &g.BuildMessage, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning knowledge graph: %w", err)
	}
	if err := json.Unmarshal([]byte(fileIDs), &g.FileIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling file_ids: %w", err)
	}
	return &g, nil
}

// DeleteKnowledgeGraph removes the graph header row. Callers must also
// call Store.Delete to remove the underlying nodes and edges.
func (s *Store) DeleteKnowledgeGraph(ctx context.Context, userID, kgID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_graphs WHERE kg_id = ? AND user_id = ?`, kgID, userID)
	if err != nil {
		return fmt.Errorf("deleting knowledge graph: %w", err)
	}
	return nil
}
