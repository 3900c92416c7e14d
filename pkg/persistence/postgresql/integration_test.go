package postgresql_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
	"github.com/rectifyd/rectify/pkg/persistence/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a reachable PostgreSQL instance, e.g.
// TEST_DATABASE_URL=postgres://localhost:5432/rectify_test?sslmode=disable
func newTestPersistence(t *testing.T) *postgresql.Persistence {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration tests")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	p, err := postgresql.NewPersistence(context.Background(), logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return p
}

func TestGraphRepository_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).GraphRepository()

	trueBranch := "generate_rules"
	graph := &models.Graph{
		ID:        uuid.New().String(),
		Name:      "quality loop",
		StartNode: "profile_data",
		Edges: map[string]models.EdgeTarget{
			"profile_data": models.DirectEdge("identify_anomalies"),
			"identify_anomalies": models.ConditionalTarget(
				models.Condition{LHS: "anomaly_count", Op: ">", RHS: float64(0)},
				&trueBranch,
				nil,
			),
		},
		Metadata: map[string]any{"owner": "qa"},
	}

	require.NoError(t, repo.Save(ctx, graph))

	got, err := repo.GetByID(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, "profile_data", got.StartNode)
	assert.Equal(t, "identify_anomalies", got.Edges["profile_data"].Next)
	require.NotNil(t, got.Edges["identify_anomalies"].Condition)
	assert.Equal(t, "generate_rules", *got.Edges["identify_anomalies"].Condition.True)

	require.NoError(t, repo.Delete(ctx, graph.ID))

	_, err = repo.GetByID(ctx, graph.ID)
	assert.True(t, persistence.IsGraphNotFound(err))
}

func TestRunRepository_SaveUpsertsSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestPersistence(t).RunRepository()

	now := time.Now().UTC()
	run := &models.Run{
		ID:        uuid.New().String(),
		GraphID:   uuid.New().String(),
		Status:    models.RunStatusPending,
		State:     models.DataState{Records: []map[string]any{{"age": 25.0}}},
		CreatedAt: now,
	}

	require.NoError(t, repo.Save(ctx, run))

	run.Status = models.RunStatusRunning
	run.CurrentNode = "profile_data"
	run.Steps = 1
	run.StartedAt = &now
	run.Trace = []models.TraceEntry{{Node: "profile_data", Timestamp: now}}

	require.NoError(t, repo.Save(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Equal(t, "profile_data", got.CurrentNode)
	assert.Equal(t, 1, got.Steps)
	require.Len(t, got.Trace, 1)

	runs, err := repo.ListByGraph(ctx, run.GraphID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRunRepository_GetByID_NotFound(t *testing.T) {
	repo := newTestPersistence(t).RunRepository()

	_, err := repo.GetByID(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.True(t, persistence.IsRunNotFound(err))
}
