package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
)

// GraphRepository stores graph definitions as graphs/<id>.json.
type GraphRepository struct {
	root string
}

func NewGraphRepository(root string) *GraphRepository {
	return &GraphRepository{root: root}
}

func (gr *GraphRepository) Save(_ context.Context, graph *models.Graph) error {
	err := os.MkdirAll(path.Join(gr.root, "graphs"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create graphs directory: %w", err)
	}

	now := time.Now().UTC()
	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = now
	}

	graph.UpdatedAt = now

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph %s: %w", graph.ID, err)
	}

	filePath := path.Join(gr.root, "graphs", graph.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

func (gr *GraphRepository) GetByID(_ context.Context, id string) (*models.Graph, error) {
	filePath := filepath.Clean(path.Join(gr.root, "graphs", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrGraphNotFound, id)
		}

		return nil, fmt.Errorf("failed to fetch graph %s: %w", id, err)
	}

	var graph models.Graph

	err = json.Unmarshal(body, &graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph %s: %w", id, err)
	}

	return &graph, nil
}

func (gr *GraphRepository) List(ctx context.Context) ([]*models.Graph, error) {
	root := os.DirFS(path.Join(gr.root, "graphs"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list graph files: %w", err)
	}

	graphs := make([]*models.Graph, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		graphID := file[:len(file)-5] // Remove .json extension

		graph, err := gr.GetByID(ctx, graphID)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph %s: %w", graphID, err)
		}

		graphs = append(graphs, graph)
	}

	sort.Slice(graphs, func(i, j int) bool {
		return graphs[i].CreatedAt.Before(graphs[j].CreatedAt)
	})

	return graphs, nil
}

func (gr *GraphRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(gr.root, "graphs", id+".json")

	err := os.Remove(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", persistence.ErrGraphNotFound, id)
		}

		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}

	return nil
}
