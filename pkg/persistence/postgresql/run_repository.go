package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
)

// RunRepository handles run-related database operations. Each Save upserts
// the full snapshot in a single statement, so readers see whole snapshots.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

func (rr *RunRepository) Save(ctx context.Context, run *models.Run) error {
	state, err := json.Marshal(run.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state for run %s: %w", run.ID, err)
	}

	trace, err := json.Marshal(run.Trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace for run %s: %w", run.ID, err)
	}

	if run.Trace == nil {
		trace = []byte("[]")
	}

	query := `
		INSERT INTO runs (id, graph_id, status, current_node, state, trace, steps,
			error, error_node, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node = EXCLUDED.current_node,
			state = EXCLUDED.state,
			trace = EXCLUDED.trace,
			steps = EXCLUDED.steps,
			error = EXCLUDED.error,
			error_node = EXCLUDED.error_node,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err = rr.db.ExecContext(ctx, query,
		run.ID, run.GraphID, run.Status, nullString(run.CurrentNode),
		state, trace, run.Steps,
		nullString(run.Error), nullString(run.ErrorNode),
		run.CreatedAt, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	return nil
}

func (rr *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, graph_id, status, current_node, state, trace, steps,
			error, error_node, created_at, started_at, finished_at
		FROM runs
		WHERE id = $1
	`

	run, err := rr.scanRun(rr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrRunNotFound, id)
		}

		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	return run, nil
}

func (rr *RunRepository) ListByGraph(ctx context.Context, graphID string) ([]*models.Run, error) {
	query := `
		SELECT id, graph_id, status, current_node, state, trace, steps,
			error, error_node, created_at, started_at, finished_at
		FROM runs
		WHERE graph_id = $1
		ORDER BY created_at
	`

	rows, err := rr.db.QueryContext(ctx, query, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			rr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	runs := make([]*models.Run, 0)

	for rows.Next() {
		run, err := rr.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (rr *RunRepository) scanRun(row rowScanner) (*models.Run, error) {
	var (
		run         models.Run
		currentNode sql.NullString
		errText     sql.NullString
		errNode     sql.NullString
		state       []byte
		trace       []byte
	)

	err := row.Scan(&run.ID, &run.GraphID, &run.Status, &currentNode,
		&state, &trace, &run.Steps, &errText, &errNode,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}

	run.CurrentNode = currentNode.String
	run.Error = errText.String
	run.ErrorNode = errNode.String

	if err := json.Unmarshal(state, &run.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	if err := json.Unmarshal(trace, &run.Trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}

	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
