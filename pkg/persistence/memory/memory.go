// Package memory provides the in-process store used as the default run state
// store and as the test backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
)

// Persistence keeps graphs and runs in process memory. Every Save stores a
// deep copy and every read returns one, so the engine's working copy is never
// aliased by readers and each commit is atomic under the lock.
type Persistence struct {
	graphRepo *graphRepository
	runRepo   *runRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		graphRepo: &graphRepository{graphs: make(map[string]*models.Graph)},
		runRepo:   &runRepository{runs: make(map[string]*models.Run)},
	}
}

func (p *Persistence) GraphRepository() persistence.GraphRepository {
	return p.graphRepo
}

func (p *Persistence) RunRepository() persistence.RunRepository {
	return p.runRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

type graphRepository struct {
	mu     sync.RWMutex
	graphs map[string]*models.Graph
}

func (r *graphRepository) Save(_ context.Context, graph *models.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *graph
	copied.Edges = make(map[string]models.EdgeTarget, len(graph.Edges))

	for node, target := range graph.Edges {
		if target.Condition != nil {
			condition := *target.Condition
			target.Condition = &condition
		}

		copied.Edges[node] = target
	}

	r.graphs[graph.ID] = &copied

	return nil
}

func (r *graphRepository) GetByID(_ context.Context, id string) (*models.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph, ok := r.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrGraphNotFound, id)
	}

	copied := *graph

	return &copied, nil
}

func (r *graphRepository) List(_ context.Context) ([]*models.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graphs := make([]*models.Graph, 0, len(r.graphs))

	for _, graph := range r.graphs {
		copied := *graph
		graphs = append(graphs, &copied)
	}

	sort.Slice(graphs, func(i, j int) bool {
		return graphs[i].CreatedAt.Before(graphs[j].CreatedAt)
	})

	return graphs, nil
}

func (r *graphRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.graphs[id]; !ok {
		return fmt.Errorf("%w: %s", persistence.ErrGraphNotFound, id)
	}

	delete(r.graphs, id)

	return nil
}

type runRepository struct {
	mu   sync.RWMutex
	runs map[string]*models.Run
}

func (r *runRepository) Save(_ context.Context, run *models.Run) error {
	cloned := run.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = cloned

	return nil
}

func (r *runRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	r.mu.RLock()
	run, ok := r.runs[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrRunNotFound, id)
	}

	return run.Clone(), nil
}

func (r *runRepository) ListByGraph(_ context.Context, graphID string) ([]*models.Run, error) {
	r.mu.RLock()
	matched := make([]*models.Run, 0)

	for _, run := range r.runs {
		if run.GraphID == graphID {
			matched = append(matched, run)
		}
	}
	r.mu.RUnlock()

	runs := make([]*models.Run, 0, len(matched))
	for _, run := range matched {
		runs = append(runs, run.Clone())
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	return runs, nil
}
