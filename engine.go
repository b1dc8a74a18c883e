// Package kgraph implements the knowledge-graph construction pipeline: an
// asynchronous job engine that turns raw documents into a persisted,
// per-user, per-graph labeled property graph.
package kgraph

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/kgraph/align"
	"github.com/brunobiangulo/kgraph/complete"
	"github.com/brunobiangulo/kgraph/extract"
	"github.com/brunobiangulo/kgraph/graphstore"
	"github.com/brunobiangulo/kgraph/job"
	"github.com/brunobiangulo/kgraph/llm"
	"github.com/brunobiangulo/kgraph/preprocess"
	"github.com/brunobiangulo/kgraph/textmatch"
)

// Engine is the main entry point for the knowledge-graph construction
// pipeline.
type Engine interface {
	// Submit enqueues a knowledge-graph build job and returns its task_id
	// immediately; the pipeline runs asynchronously.
	Submit(ctx context.Context, userID string, req SubmitRequest) (string, error)

	// Progress reports a job's current stage, progress, and status.
	Progress(ctx context.Context, taskID string) (JobProgress, error)

	// Query runs an ownership-checked lookup against a completed graph.
	Query(ctx context.Context, userID string, req QueryRequest) (QueryResult, error)

	// Visualize returns a capped node/edge bundle for UI consumption.
	Visualize(ctx context.Context, userID, kgID string, limit int) (QueryResult, error)

	// Delete removes a knowledge graph and all its nodes and edges.
	Delete(ctx context.Context, userID, kgID string) error

	// Shutdown drains in-flight jobs and closes the graph store.
	Shutdown() error
}

// SubmitRequest is the input to Submit.
type SubmitRequest struct {
	FileIDs             []string          `json:"file_ids"`
	KGName              string            `json:"kg_name"`
	Description         string            `json:"description,omitempty"`
	Algorithms          map[string]string `json:"algorithms,omitempty"`
	EnableCompletion    bool              `json:"enable_completion"`
	EnableVisualization bool              `json:"enable_visualization"`
}

// JobProgress is the polled view of a submitted job.
type JobProgress struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
	KGID     string `json:"kg_id,omitempty"`
}

// QueryRequest selects one of three query shapes against a single graph.
type QueryRequest struct {
	KGID             string `json:"kg_id"`
	Entity           string `json:"entity,omitempty"`   // substring match on node name
	Relation         string `json:"relation,omitempty"` // exact match on edge relation
	TopK             int    `json:"top_k,omitempty"`
	IncludeEntities  bool   `json:"include_entities"`
	IncludeRelations bool   `json:"include_relations"`
}

// QueryResult is the output of Query and Visualize.
type QueryResult struct {
	Entities  []Node `json:"entities,omitempty"`
	Relations []Edge `json:"relations,omitempty"`
	Total     int    `json:"total"`
}

// Node mirrors graphstore.Node for the public API.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Name  string `json:"name"`
}

// Edge mirrors graphstore.Edge for the public API.
type Edge struct {
	SourceID string `json:"source_id"`
	Relation string `json:"relation"`
	TargetID string `json:"target_id"`
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg   Config
	store *graphstore.Store
	jobs  *job.Engine
}

// New creates a new knowledge-graph engine with the given configuration.
func New(cfg Config) (Engine, error) {
	cfg = cfg.withDefaults()
	dbPath := cfg.resolveDBPath()

	s, err := graphstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening graph store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	// Every variant of every pluggable stage is wired into a tag →
	// instance map; a job's "algorithms" selection (job.AlgoPreprocess,
	// etc.) picks among them when the job runs. cfg.UseLocalExtractionFallback
	// only shifts the process-wide default toward the no-LLM variants, for
	// deployments without a configured chat provider.
	defaultEntityTag := "llm"
	defaultRelationTag := "llm"
	if cfg.UseLocalExtractionFallback {
		defaultEntityTag = "rule"
		defaultRelationTag = "rule"
	}

	deps := job.Deps{
		Store:     s,
		UploadDir: cfg.UploadDir,

		Preprocessors: map[string]preprocess.Strategy{
			"simhash": preprocess.NewSimHashDeduper(cfg.SimHashHammingThreshold),
			"minhash": preprocess.NewMinHashDeduper(1, cfg.MinHashJaccardThreshold),
		},
		DefaultPreprocess: "minhash",

		EntityExtractors: map[string]extract.EntityExtractor{
			"llm": &extract.CascadingEntityExtractor{
				Primary:  extract.NewLLMEntityExtractor(chatLLM, cfg.Chat.Model),
				Fallback: extract.NewLocalFallbackEntityExtractor(true),
			},
			"rule": extract.NewLocalFallbackEntityExtractor(true),
		},
		DefaultEntityExtractor: defaultEntityTag,

		RelationExtractors: map[string]extract.RelationExtractor{
			"llm": &extract.CascadingRelationExtractor{
				Primary:  extract.NewLLMRelationExtractor(chatLLM, cfg.Chat.Model),
				Fallback: extract.NewRuleRelationExtractor(),
			},
			"rule": extract.NewRuleRelationExtractor(),
		},
		DefaultRelationExtractor: defaultRelationTag,

		CompletionParams: map[string]complete.Params{
			"transe": cfg.Completion,
		},
		DefaultCompletion: "transe",

		Aligner:          align.New(cfg.AlignThreshold),
		ParseConcurrency: cfg.ParseConcurrency,
	}

	return &engine{
		cfg:   cfg,
		store: s,
		jobs:  job.New(deps, cfg.Workers),
	}, nil
}

func (e *engine) Submit(ctx context.Context, userID string, req SubmitRequest) (string, error) {
	if len(req.FileIDs) == 0 {
		return "", ErrNoFiles
	}
	taskID, err := e.jobs.Submit(ctx, userID, job.Request{
		FileIDs:             req.FileIDs,
		KGName:              req.KGName,
		Description:         req.Description,
		Algorithms:          req.Algorithms,
		EnableCompletion:    req.EnableCompletion || e.cfg.EnableCompletion,
		EnableVisualization: req.EnableVisualization,
	})
	if err != nil {
		return "", err
	}
	return taskID, nil
}

func (e *engine) Progress(ctx context.Context, taskID string) (JobProgress, error) {
	p, err := e.jobs.Progress(ctx, taskID)
	if err != nil {
		return JobProgress{}, ErrTaskNotFound
	}
	return JobProgress{
		TaskID:   p.TaskID,
		Progress: p.Progress,
		Status:   string(p.Status),
		Stage:    p.Stage,
		Message:  p.Message,
		KGID:     p.KGID,
	}, nil
}

func (e *engine) Query(ctx context.Context, userID string, req QueryRequest) (QueryResult, error) {
	if _, err := e.store.GetKnowledgeGraph(ctx, userID, req.KGID); err != nil {
		return QueryResult{}, ErrGraphNotFound
	}

	nodes, err := e.store.Nodes(ctx, req.KGID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("querying nodes: %w", err)
	}
	edges, err := e.store.Edges(ctx, req.KGID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("querying edges: %w", err)
	}

	result := QueryResult{}
	if req.IncludeEntities || (!req.IncludeEntities && !req.IncludeRelations) {
		result.Entities = filterNodes(nodes, req.Entity)
	}
	if req.IncludeRelations || (!req.IncludeEntities && !req.IncludeRelations) {
		result.Relations = filterEdges(edges, req.Relation)
	}
	if req.TopK > 0 {
		if len(result.Entities) > req.TopK {
			result.Entities = result.Entities[:req.TopK]
		}
		if len(result.Relations) > req.TopK {
			result.Relations = result.Relations[:req.TopK]
		}
	}
	result.Total = len(result.Entities) + len(result.Relations)
	return result, nil
}

func (e *engine) Visualize(ctx context.Context, userID, kgID string, limit int) (QueryResult, error) {
	if _, err := e.store.GetKnowledgeGraph(ctx, userID, kgID); err != nil {
		return QueryResult{}, ErrGraphNotFound
	}
	nodes, err := e.store.Nodes(ctx, kgID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("querying nodes: %w", err)
	}
	edges, err := e.store.Edges(ctx, kgID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("querying edges: %w", err)
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	if limit > 0 && len(edges) > limit {
		edges = edges[:limit]
	}
	return QueryResult{
		Entities:  toNodes(nodes),
		Relations: toEdges(edges),
		Total:     len(nodes) + len(edges),
	}, nil
}

func (e *engine) Delete(ctx context.Context, userID, kgID string) error {
	g, err := e.store.GetKnowledgeGraph(ctx, userID, kgID)
	if err != nil {
		return ErrGraphNotFound
	}
	if err := e.store.Delete(ctx, userID, kgID, g.CreatedAt); err != nil {
		return fmt.Errorf("deleting graph data: %w", err)
	}
	return e.store.DeleteKnowledgeGraph(ctx, userID, kgID)
}

func (e *engine) Shutdown() error {
	e.jobs.Shutdown()
	return e.store.Close()
}

func filterNodes(nodes []graphstore.Node, substr string) []Node {
	out := toNodes(nodes)
	if substr == "" {
		return out
	}
	var filtered []Node
	for _, n := range out {
		if textmatch.Contains(n.Name, substr) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

func filterEdges(edges []graphstore.Edge, relation string) []Edge {
	out := toEdges(edges)
	if relation == "" {
		return out
	}
	var filtered []Edge
	for _, e := range out {
		if e.Relation == relation {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func toNodes(nodes []graphstore.Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Node{ID: n.ID, Label: n.Label, Name: n.Name}
	}
	return out
}

func toEdges(edges []graphstore.Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = Edge{SourceID: e.SourceID, Relation: e.Relation, TargetID: e.TargetID}
	}
	return out
}
