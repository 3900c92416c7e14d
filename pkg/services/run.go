package services

import (
	"context"
	"fmt"

	"github.com/rectifyd/rectify/pkg/engine"
	"github.com/rectifyd/rectify/pkg/eventbus"
	"github.com/rectifyd/rectify/pkg/events"
	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
)

// ErrRunNotFound is returned when a run is not found.
var ErrRunNotFound = persistence.ErrRunNotFound

type Run struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	subscriber  eventbus.Subscriber
}

// NewRun creates a new run service.
func NewRun(persistence persistence.Persistence, eng *engine.Engine, subscriber eventbus.Subscriber) *Run {
	return &Run{
		persistence: persistence,
		engine:      eng,
		subscriber:  subscriber,
	}
}

// Start launches a run of the graph against the initial state and returns
// the committed pending snapshot.
func (r *Run) Start(ctx context.Context, graphID string, initial models.DataState) (*models.Run, error) {
	run, err := r.engine.StartRun(ctx, graphID, initial)
	if err != nil {
		if persistence.IsGraphNotFound(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	return run, nil
}

// FetchByID retrieves the latest committed snapshot of a run.
func (r *Run) FetchByID(ctx context.Context, id string) (*models.Run, error) {
	return r.persistence.RunRepository().GetByID(ctx, id)
}

// ListByGraph retrieves every run of a graph.
func (r *Run) ListByGraph(ctx context.Context, graphID string) ([]*models.Run, error) {
	runs, err := r.persistence.RunRepository().ListByGraph(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// Cancel raises the cancellation flag of an in-flight run.
func (r *Run) Cancel(ctx context.Context, id string) error {
	return r.engine.Cancel(ctx, id)
}

// Subscribe yields the live progress events of a run. There is no replay;
// callers should fetch the current snapshot first and fall back to it when
// the run is already terminal.
func (r *Run) Subscribe(ctx context.Context, id string) (<-chan events.RunProgress, error) {
	return r.subscriber.SubscribeRun(ctx, id)
}
