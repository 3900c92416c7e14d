// Package file provides file-based persistence for graphs and runs.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/rectifyd/rectify/pkg/persistence"
)

// Persistence stores graphs and runs as JSON files under a root directory.
type Persistence struct {
	root      string
	graphRepo *GraphRepository
	runRepo   *RunRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is tolerated for database-url style config.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:      cleanRoot,
		graphRepo: NewGraphRepository(cleanRoot),
		runRepo:   NewRunRepository(cleanRoot),
	}
}

func (fp *Persistence) GraphRepository() persistence.GraphRepository {
	return fp.graphRepo
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
