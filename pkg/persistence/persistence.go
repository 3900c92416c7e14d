// Package persistence defines the storage contracts for graphs and runs.
package persistence

import (
	"context"

	"github.com/rectifyd/rectify/pkg/models"
)

// GraphRepository stores graph definitions.
type GraphRepository interface {
	Save(ctx context.Context, graph *models.Graph) error
	GetByID(ctx context.Context, id string) (*models.Graph, error)
	List(ctx context.Context) ([]*models.Graph, error)
	Delete(ctx context.Context, id string) error
}

// RunRepository is the run state store. A single writer (the engine loop for
// that run) races zero or more readers; Save must publish each run snapshot
// atomically so a reader observes it fully-before or fully-after, never
// partially updated. Runs are never deleted by the engine.
type RunRepository interface {
	Save(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	ListByGraph(ctx context.Context, graphID string) ([]*models.Run, error)
}

// Persistence bundles the repositories behind one backend.
type Persistence interface {
	GraphRepository() GraphRepository
	RunRepository() RunRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
