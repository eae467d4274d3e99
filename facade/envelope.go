// Package facade implements C10: the uniform agent-facing task
// envelope and the five memory-type facades (Core/Episodic/Semantic/
// Procedural/Working) that validate, dispatch to, and report on the
// memory engine (C5) on an agent's behalf.
package facade

import (
	"time"

	"github.com/google/uuid"
)

// Operation names one verb a facade dispatches to the engine.
type Operation string

const (
	OpInsert Operation = "insert"
	OpGet    Operation = "get"
	OpSearch Operation = "search"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Priority orders a TaskRequest relative to others a caller might batch;
// the engine itself has no priority queue, this is carried through for
// callers that schedule around it.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// TaskRequest is the uniform envelope every facade accepts, matching
// §4.10: task_id, memory_type, operation, parameters, priority,
// optional timeout, retry_count.
type TaskRequest struct {
	TaskID     string
	MemoryType string
	Operation  Operation
	Parameters map[string]any
	Priority   Priority
	Timeout    time.Duration
	RetryCount int
}

// NewTaskRequest builds a TaskRequest, assigning a random task id when
// the caller doesn't already have one to correlate against.
func NewTaskRequest(memoryType string, op Operation, params map[string]any) TaskRequest {
	return TaskRequest{
		TaskID:     uuid.New().String(),
		MemoryType: memoryType,
		Operation:  op,
		Parameters: params,
		Priority:   PriorityNormal,
	}
}

// TaskResponse is the uniform result every facade returns.
type TaskResponse struct {
	TaskID        string
	Success       bool
	Data          any
	Error         string
	ExecutionTime time.Duration
	AgentID       string
}
