package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// TraceEntry is one committed step in a run's history.
type TraceEntry struct {
	Node         string    `json:"node"`
	State        DataState `json:"state"`
	AnomalyCount int       `json:"anomaly_count"`
	DurationMs   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// Run is one execution of a graph against an initial state. It is owned by
// the run store; the engine mutates a working copy and commits it back after
// every step, so readers always observe a consistent snapshot.
type Run struct {
	ID          string       `json:"id"`
	GraphID     string       `json:"graph_id"`
	Status      RunStatus    `json:"status"`
	CurrentNode string       `json:"current_node,omitempty"`
	State       DataState    `json:"state"`
	Trace       []TraceEntry `json:"trace,omitempty"`
	Steps       int          `json:"steps"`
	Error       string       `json:"error,omitempty"`
	ErrorNode   string       `json:"error_node,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of the run via a JSON round-trip; every field of
// a Run is serializable by construction.
func (r *Run) Clone() *Run {
	raw, err := json.Marshal(r)
	if err != nil {
		panic("models: run is not JSON-serializable: " + err.Error())
	}

	var out Run

	if err := json.Unmarshal(raw, &out); err != nil {
		panic("models: run round-trip failed: " + err.Error())
	}

	return &out
}
