// Package events defines the progress events published while a run executes.
package events

import (
	"time"

	"github.com/rectifyd/rectify/pkg/models"
)

type EventType string

const (
	// RunStepCompletedEvent is published after every committed step of a
	// still-running run.
	RunStepCompletedEvent EventType = "run.step.completed"

	// RunCompletedEvent is published once when a run reaches a terminal edge.
	RunCompletedEvent EventType = "run.completed"

	// RunFailedEvent is published once when a run fails, including
	// cancellation, timeouts and the iteration cap.
	RunFailedEvent EventType = "run.failed"
)

const TopicPrefix = "rectify.runs."

const EventTypeMetadataKey = "event_type"
const RunIDMetadataKey = "run_id"

// RunTopic returns the per-run topic progress events are published on.
// Scoping topics by run keeps the ordering guarantee per run without imposing
// any cross-run ordering.
func RunTopic(runID string) string {
	return TopicPrefix + runID
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	GraphID   string    `json:"graph_id"`
}

// RunProgress is the snapshot emitted after each committed step. Terminal
// events carry the final status and, for failures, the error text.
type RunProgress struct {
	BaseEvent

	Node      string           `json:"node"`
	Status    models.RunStatus `json:"status"`
	State     models.DataState `json:"state"`
	StepCount int              `json:"step_count"`
	Error     string           `json:"error,omitempty"`
}

func (e RunProgress) GetType() EventType {
	return e.Type
}

// Terminal reports whether this event closes the run's event sequence.
func (e RunProgress) Terminal() bool {
	return e.Status.Terminal()
}

// NewRunProgress builds the progress event for a committed run snapshot.
func NewRunProgress(id string, run *models.Run) RunProgress {
	eventType := RunStepCompletedEvent

	switch run.Status {
	case models.RunStatusCompleted:
		eventType = RunCompletedEvent
	case models.RunStatusFailed:
		eventType = RunFailedEvent
	}

	return RunProgress{
		BaseEvent: BaseEvent{
			ID:        id,
			Type:      eventType,
			Timestamp: time.Now(),
			RunID:     run.ID,
			GraphID:   run.GraphID,
		},
		Node:      run.CurrentNode,
		Status:    run.Status,
		State:     run.State,
		StepCount: run.Steps,
		Error:     run.Error,
	}
}
