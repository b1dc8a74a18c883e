// Package job implements the Job Engine: a bounded worker pool that runs
// the knowledge-graph construction pipeline for each submitted task,
// dual-writing progress to an in-memory map and the durable Task row.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/brunobiangulo/kgraph/align"
	"github.com/brunobiangulo/kgraph/complete"
	"github.com/brunobiangulo/kgraph/extract"
	"github.com/brunobiangulo/kgraph/graphstore"
	"github.com/brunobiangulo/kgraph/kg"
	"github.com/brunobiangulo/kgraph/parser"
	"github.com/brunobiangulo/kgraph/preprocess"
)

// Stage end-progress budget, per the pipeline's stage machine.
const (
	progressInit             = 5
	progressParse            = 15
	progressPreprocess       = 25
	progressExtractEntities  = 40
	progressAlign            = 50
	progressExtractRelations = 65
	progressComplete         = 75
	progressPersist          = 90
	progressVisualize        = 95
	progressFinalize         = 100
)

// selfHealExtensions are probed, in order, when a listed file id is not
// found at its expected path.
var selfHealExtensions = []string{".pdf", ".txt", ".docx", ".xlsx"}

// Algorithm selection keys, matching the "algorithms" field of a submit
// request: {preprocess, entity_extraction, relation_extraction,
// knowledge_completion}.
const (
	AlgoPreprocess          = "preprocess"
	AlgoEntityExtraction    = "entity_extraction"
	AlgoRelationExtraction  = "relation_extraction"
	AlgoKnowledgeCompletion = "knowledge_completion"
)

// Request is the input to Submit: the file set and per-stage algorithm
// selection for one knowledge-graph build. Algorithms maps the keys above
// to a tag understood by the matching Deps factory map; a missing or
// unrecognized tag falls back to that component's configured default.
type Request struct {
	FileIDs             []string
	KGName              string
	Description         string
	Algorithms          map[string]string
	EnableCompletion    bool
	EnableVisualization bool
}

// Progress is the polled view of a task's state.
type Progress struct {
	TaskID   string
	Progress int
	Status   graphstore.TaskStatus
	Stage    string
	Message  string
	KGID     string
}

// Deps are the pluggable components the Engine wires a pipeline run from.
// Each strategy is available as a tag → instance map so a job-level
// "algorithms" selection, not a process-wide flag, picks the variant; a
// job omitting a tag (or naming one this engine doesn't carry) gets that
// component's Default tag.
type Deps struct {
	Store     *graphstore.Store
	UploadDir string

	Preprocessors            map[string]preprocess.Strategy
	DefaultPreprocess        string
	EntityExtractors         map[string]extract.EntityExtractor
	DefaultEntityExtractor   string
	RelationExtractors       map[string]extract.RelationExtractor
	DefaultRelationExtractor string
	CompletionParams         map[string]complete.Params
	DefaultCompletion        string

	Aligner          *align.Aligner
	ParseConcurrency int
}

// selectPreprocessor looks up tag in m, falling back to def when tag is
// empty or unrecognized. The sibling select* functions below do the same
// for the other three pluggable stages.
func selectPreprocessor(m map[string]preprocess.Strategy, def, tag string) preprocess.Strategy {
	if s, ok := m[tag]; ok {
		return s
	}
	return m[def]
}

func selectEntityExtractor(m map[string]extract.EntityExtractor, def, tag string) extract.EntityExtractor {
	if s, ok := m[tag]; ok {
		return s
	}
	return m[def]
}

func selectRelationExtractor(m map[string]extract.RelationExtractor, def, tag string) extract.RelationExtractor {
	if s, ok := m[tag]; ok {
		return s
	}
	return m[def]
}

func selectCompletionParams(m map[string]complete.Params, def, tag string) complete.Params {
	if p, ok := m[tag]; ok {
		return p
	}
	return m[def]
}

// Engine runs submitted jobs on a bounded worker pool.
type Engine struct {
	deps Deps

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	progress map[string]Progress

	shutdownMu sync.Mutex
	shutdown   bool
}

// New constructs an Engine with the given dependencies and worker-pool
// size W (default 5 when non-positive).
func New(deps Deps, workers int) *Engine {
	if workers <= 0 {
		workers = 5
	}
	if deps.ParseConcurrency <= 0 {
		deps.ParseConcurrency = 4
	}
	return &Engine{
		deps:     deps,
		sem:      make(chan struct{}, workers),
		progress: make(map[string]Progress),
	}
}

// Submit enqueues a job and returns its task_id immediately; the pipeline
// runs asynchronously on the worker pool.
func (e *Engine) Submit(ctx context.Context, userID string, req Request) (string, error) {
	e.shutdownMu.Lock()
	if e.shutdown {
		e.shutdownMu.Unlock()
		return "", fmt.Errorf("job engine is shutting down")
	}
	e.shutdownMu.Unlock()

	if len(req.FileIDs) == 0 {
		return "", fmt.Errorf("no files submitted")
	}

	taskID := uuid.NewString()
	algorithms := make(map[string]any, len(req.Algorithms)+2)
	for k, v := range req.Algorithms {
		algorithms[k] = v
	}
	algorithms["enable_completion"] = req.EnableCompletion
	algorithms["enable_visualization"] = req.EnableVisualization

	task := &graphstore.Task{
		TaskID:     taskID,
		UserID:     userID,
		Kind:       "kg_create",
		FileIDs:    req.FileIDs,
		Algorithms: algorithms,
	}
	if err := e.deps.Store.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}

	e.setProgress(Progress{TaskID: taskID, Progress: 0, Status: graphstore.TaskPending, Stage: "Init"})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		e.run(context.Background(), userID, taskID, req)
	}()

	return taskID, nil
}

// Progress returns the in-memory view of a task, falling back to the
// durable Task row when the task is not (or no longer) tracked in memory
// (e.g. after a process restart).
func (e *Engine) Progress(ctx context.Context, taskID string) (Progress, error) {
	e.mu.Lock()
	p, ok := e.progress[taskID]
	e.mu.Unlock()
	if ok {
		return p, nil
	}

	t, err := e.deps.Store.GetTask(ctx, taskID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{TaskID: t.TaskID, Progress: t.Progress, Status: t.Status, Stage: t.Stage, Message: t.Message, KGID: t.KGID}, nil
}

// Shutdown stops accepting new jobs and blocks until in-flight jobs drain.
func (e *Engine) Shutdown() {
	e.shutdownMu.Lock()
	e.shutdown = true
	e.shutdownMu.Unlock()
	e.wg.Wait()
}

func (e *Engine) setProgress(p Progress) {
	e.mu.Lock()
	e.progress[p.TaskID] = p
	e.mu.Unlock()
}

// report dual-writes a progress update: the in-memory map first (always
// succeeds), then the durable Task row (best-effort — failures are logged
// and do not abort the job).
func (e *Engine) report(ctx context.Context, taskID string, status graphstore.TaskStatus, progress int, stage, message string) {
	e.mu.Lock()
	cur := e.progress[taskID]
	e.mu.Unlock()

	p := Progress{TaskID: taskID, Progress: progress, Status: status, Stage: stage, Message: message, KGID: cur.KGID}
	e.setProgress(p)

	if err := e.deps.Store.UpdateTaskProgress(ctx, taskID, status, progress, stage, message); err != nil {
		slog.Warn("job: durable progress write failed, continuing", "task_id", taskID, "error", err)
	}
}

func (e *Engine) fail(ctx context.Context, taskID, stage string, err error) {
	slog.Error("job: stage failed", "task_id", taskID, "stage", stage, "error", err)
	e.report(ctx, taskID, graphstore.TaskFailed, e.lastProgress(taskID), stage, err.Error())
}

func (e *Engine) lastProgress(taskID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress[taskID].Progress
}

// run executes the full stage machine for one task. All stages after Parse
// run sequentially; Parse fans out over req.FileIDs with an inner bound.
func (e *Engine) run(ctx context.Context, userID, taskID string, req Request) {
	e.report(ctx, taskID, graphstore.TaskProcessing, progressInit, "Init", "starting")

	texts, err := e.parseFiles(ctx, req.FileIDs)
	if err != nil {
		e.fail(ctx, taskID, "Parse", err)
		return
	}
	if len(texts) == 0 {
		e.fail(ctx, taskID, "Parse", fmt.Errorf("all submitted files failed parsing"))
		return
	}
	e.report(ctx, taskID, graphstore.TaskProcessing, progressParse, "Parse", fmt.Sprintf("parsed %d/%d files", len(texts), len(req.FileIDs)))

	preprocessor := selectPreprocessor(e.deps.Preprocessors, e.deps.DefaultPreprocess, req.Algorithms[AlgoPreprocess])
	deduped := preprocessor.Dedupe(texts)
	for i, t := range deduped {
		deduped[i] = preprocessor.Process(t)
	}
	e.report(ctx, taskID, graphstore.TaskProcessing, progressPreprocess, "Preprocess", fmt.Sprintf("%d segments after dedup", len(deduped)))

	entityExtractor := selectEntityExtractor(e.deps.EntityExtractors, e.deps.DefaultEntityExtractor, req.Algorithms[AlgoEntityExtraction])
	var allMentions []kg.EntityMention
	for _, text := range deduped {
		mentions, err := entityExtractor.Extract(ctx, text)
		if err != nil {
			slog.Warn("job: entity extraction failed for a segment, skipping", "task_id", taskID, "error", err)
			continue
		}
		allMentions = append(allMentions, mentions...)
	}
	e.report(ctx, taskID, graphstore.TaskProcessing, progressExtractEntities, "Extract entities", fmt.Sprintf("%d mentions", len(allMentions)))

	aligned, mergeMap := e.deps.Aligner.Align(allMentions)
	e.report(ctx, taskID, graphstore.TaskProcessing, progressAlign, "Align", fmt.Sprintf("%d aligned entities", len(aligned)))

	relationExtractor := selectRelationExtractor(e.deps.RelationExtractors, e.deps.DefaultRelationExtractor, req.Algorithms[AlgoRelationExtraction])
	var allTriples []kg.Triple
	for _, text := range deduped {
		triples, err := relationExtractor.Extract(ctx, text, aligned)
		if err != nil {
			slog.Warn("job: relation extraction failed for a segment, skipping", "task_id", taskID, "error", err)
			continue
		}
		allTriples = append(allTriples, triples...)
	}
	allTriples = align.AdjustTriples(allTriples, mergeMap)
	e.report(ctx, taskID, graphstore.TaskProcessing, progressExtractRelations, "Extract relations", fmt.Sprintf("%d triples", len(allTriples)))

	if req.EnableCompletion {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("job: completion stage panicked, carrying observed triples forward", "task_id", taskID, "panic", r)
				}
			}()
			params := selectCompletionParams(e.deps.CompletionParams, e.deps.DefaultCompletion, req.Algorithms[AlgoKnowledgeCompletion])
			model := complete.New(params)
			inferred := model.Complete(aligned, allTriples)
			allTriples = append(allTriples, inferred...)
		}()
	}
	e.report(ctx, taskID, graphstore.TaskProcessing, progressComplete, "Complete", fmt.Sprintf("%d total triples", len(allTriples)))

	kgID := uuid.NewString()
	if err := e.deps.Store.CreateKnowledgeGraph(ctx, &graphstore.KnowledgeGraph{
		KGID:        kgID,
		UserID:      userID,
		Name:        req.KGName,
		Description: req.Description,
		FileIDs:     req.FileIDs,
	}); err != nil {
		e.fail(ctx, taskID, "Persist", fmt.Errorf("creating knowledge graph header: %w", err))
		return
	}
	if err := e.deps.Store.Persist(ctx, userID, kgID, aligned, allTriples); err != nil {
		e.fail(ctx, taskID, "Persist", err)
		return
	}
	// kg_id is written to the Task row strictly before the completed
	// status transition.
	if err := e.deps.Store.SetTaskKGID(ctx, taskID, kgID); err != nil {
		slog.Warn("job: failed to record kg_id on task row", "task_id", taskID, "error", err)
	}
	e.mu.Lock()
	cur := e.progress[taskID]
	cur.KGID = kgID
	e.progress[taskID] = cur
	e.mu.Unlock()

	if err := e.deps.Store.FinalizeKnowledgeGraph(ctx, kgID, graphstore.GraphCompleted, len(aligned), countUniqueRelationEdges(allTriples), "build complete"); err != nil {
		slog.Warn("job: failed to finalize knowledge graph header", "kg_id", kgID, "error", err)
	}
	e.report(ctx, taskID, graphstore.TaskProcessing, progressPersist, "Persist", fmt.Sprintf("persisted %d entities, %d triples", len(aligned), len(allTriples)))

	if req.EnableVisualization {
		if _, err := e.deps.Store.Nodes(ctx, kgID); err != nil {
			slog.Warn("job: visualization precompute failed (non-fatal)", "kg_id", kgID, "error", err)
		}
		e.report(ctx, taskID, graphstore.TaskProcessing, progressVisualize, "Visualize", "visualization ready")
	}

	e.report(ctx, taskID, graphstore.TaskCompleted, progressFinalize, "Finalize", "done")
}

func countUniqueRelationEdges(triples []kg.Triple) int {
	seen := make(map[string]struct{}, len(triples))
	for _, t := range triples {
		seen[t.Key()] = struct{}{}
	}
	return len(seen)
}

// parseFiles parses each requested file, skipping (and logging) files that
// fail parsing entirely. Parsing is parallelized with an inner bound;
// results are reassembled in request order for determinism.
func (e *Engine) parseFiles(ctx context.Context, fileIDs []string) ([]string, error) {
	type result struct {
		index int
		text  string
		ok    bool
	}

	bound := e.deps.ParseConcurrency
	if bound <= 0 {
		bound = 4
	}
	sem := make(chan struct{}, bound)
	results := make([]result, len(fileIDs))
	var wg sync.WaitGroup

	for i, id := range fileIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()

			path, format, err := e.resolveFilePath(id)
			if err != nil {
				slog.Warn("job: file not found, skipping", "file_id", id, "error", err)
				return
			}
			text, err := parser.ParseFile(ctx, path, format)
			if err != nil {
				slog.Warn("job: parsing failed, skipping", "file_id", id, "error", err)
				return
			}
			results[i] = result{index: i, text: text, ok: true}
		}(i, id)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })
	var texts []string
	for _, r := range results {
		if r.ok {
			texts = append(texts, r.text)
		}
	}
	return texts, nil
}

// resolveFilePath locates a submitted file on disk. If the expected path
// (uploadDir/fileID) doesn't exist, it probes selfHealExtensions once each
// and uses the first hit.
func (e *Engine) resolveFilePath(fileID string) (path, format string, err error) {
	expected := filepath.Join(e.deps.UploadDir, fileID)
	if _, statErr := os.Stat(expected); statErr == nil {
		return expected, "", nil
	}

	for _, ext := range selfHealExtensions {
		candidate := expected + ext
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, ext[1:], nil
		}
	}
	return "", "", fmt.Errorf("file %s not found under %s (probed %v)", fileID, e.deps.UploadDir, selfHealExtensions)
}
