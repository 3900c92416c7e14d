package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
)

// RunRepository stores run snapshots as runs/<id>.json. A mutex serializes
// writes against reads so a poller never observes a half-written snapshot,
// and writes go through a temp file rename for crash safety.
type RunRepository struct {
	root string

	mu sync.RWMutex
}

func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

// validateRunID rejects ids that are unsafe as file names.
func (rr *RunRepository) validateRunID(runID string) error {
	if runID == "" {
		return errors.New("run ID cannot be empty")
	}

	if strings.Contains(runID, "..") || strings.Contains(runID, "/") || strings.Contains(runID, "\\") {
		return errors.New("run ID contains invalid characters")
	}

	return nil
}

func (rr *RunRepository) Save(_ context.Context, run *models.Run) error {
	if err := rr.validateRunID(run.ID); err != nil {
		return err
	}

	runsDir := path.Join(rr.root, "runs")

	err := os.MkdirAll(runsDir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	tmpPath := path.Join(runsDir, run.ID+".json.tmp")
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	if err := os.Rename(tmpPath, path.Join(runsDir, run.ID+".json")); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	return nil
}

func (rr *RunRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	if err := rr.validateRunID(id); err != nil {
		return nil, err
	}

	filePath := filepath.Clean(path.Join(rr.root, "runs", id+".json"))

	rr.mu.RLock()
	body, err := os.ReadFile(filePath)
	rr.mu.RUnlock()

	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrRunNotFound, id)
		}

		return nil, fmt.Errorf("failed to fetch run %s: %w", id, err)
	}

	var run models.Run

	err = json.Unmarshal(body, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}

	return &run, nil
}

func (rr *RunRepository) ListByGraph(ctx context.Context, graphID string) ([]*models.Run, error) {
	root := os.DirFS(path.Join(rr.root, "runs"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}

	runs := make([]*models.Run, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		runID := file[:len(file)-5]

		run, err := rr.GetByID(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
		}

		if run.GraphID == graphID {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	return runs, nil
}
