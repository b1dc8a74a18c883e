package kgraph

import "errors"

var (
	// ErrTaskNotFound is returned when a task ID does not exist.
	ErrTaskNotFound = errors.New("kg: task not found")

	// ErrGraphNotFound is returned when a kg_id does not exist, or exists
	// but is not owned by the requesting user.
	ErrGraphNotFound = errors.New("kg: knowledge graph not found")

	// ErrUnsupportedFormat names an unrecognized file format. No Engine
	// method returns it: the Parse stage logs and skips such files.
	ErrUnsupportedFormat = errors.New("kg: unsupported document format")

	// ErrNoFiles is returned when a submission names no files.
	ErrNoFiles = errors.New("kg: no files submitted")

	// ErrAllFilesFailed names the case where every file in a submission
	// fails parsing. No Engine method returns it: Submit has already
	// returned, and the task itself ends as failed with a message saying
	// so.
	ErrAllFilesFailed = errors.New("kg: all submitted files failed parsing")

	// ErrLLMUnavailable names an unreachable LLM provider with no local
	// fallback. No Engine method returns it: every extraction strategy
	// wired by New ends in a rule-based fallback.
	ErrLLMUnavailable = errors.New("kg: LLM provider unavailable")

	// ErrInvalidConfig names an invalid configuration value. New does not
	// return it; it replaces zero or negative numeric settings with
	// defaults.
	ErrInvalidConfig = errors.New("kg: invalid configuration")

	// ErrStoreClosed names an operation on a closed engine. No Engine
	// method returns it.
	ErrStoreClosed = errors.New("kg: engine is closed")

	// ErrShuttingDown names a Submit made after Shutdown has begun draining
	// the worker pool. Engine.Submit does not return it; in that case it
	// returns the job package's own shutting-down error.
	ErrShuttingDown = errors.New("kg: engine is shutting down")
)
