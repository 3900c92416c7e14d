package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
)

// GraphRepository handles graph-related database operations. Edges and
// metadata are stored as JSONB; the edge wire format round-trips through the
// models.EdgeTarget JSON codec.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewGraphRepository(db *sql.DB, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, logger: logger}
}

func (gr *GraphRepository) Save(ctx context.Context, graph *models.Graph) error {
	now := time.Now().UTC()
	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = now
	}

	graph.UpdatedAt = now

	edges, err := json.Marshal(graph.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges for graph %s: %w", graph.ID, err)
	}

	metadata, err := json.Marshal(graph.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for graph %s: %w", graph.ID, err)
	}

	query := `
		INSERT INTO graphs (id, name, description, start_node, edges, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			start_node = EXCLUDED.start_node,
			edges = EXCLUDED.edges,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = gr.db.ExecContext(ctx, query,
		graph.ID, graph.Name, graph.Description, graph.StartNode,
		edges, metadata, graph.CreatedAt, graph.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save graph %s: %w", graph.ID, err)
	}

	return nil
}

func (gr *GraphRepository) GetByID(ctx context.Context, id string) (*models.Graph, error) {
	query := `
		SELECT id, name, description, start_node, edges, metadata, created_at, updated_at
		FROM graphs
		WHERE id = $1
	`

	graph, err := gr.scanGraph(gr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrGraphNotFound, id)
		}

		return nil, fmt.Errorf("failed to query graph %s: %w", id, err)
	}

	return graph, nil
}

func (gr *GraphRepository) List(ctx context.Context) ([]*models.Graph, error) {
	query := `
		SELECT id, name, description, start_node, edges, metadata, created_at, updated_at
		FROM graphs
		ORDER BY created_at
	`

	rows, err := gr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphs: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			gr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	graphs := make([]*models.Graph, 0)

	for rows.Next() {
		graph, err := gr.scanGraph(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}

		graphs = append(graphs, graph)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating graphs: %w", err)
	}

	return graphs, nil
}

func (gr *GraphRepository) Delete(ctx context.Context, id string) error {
	result, err := gr.db.ExecContext(ctx, "DELETE FROM graphs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for graph %s: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrGraphNotFound, id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (gr *GraphRepository) scanGraph(row rowScanner) (*models.Graph, error) {
	var (
		graph    models.Graph
		name     sql.NullString
		desc     sql.NullString
		edges    []byte
		metadata []byte
	)

	err := row.Scan(&graph.ID, &name, &desc, &graph.StartNode, &edges, &metadata,
		&graph.CreatedAt, &graph.UpdatedAt)
	if err != nil {
		return nil, err
	}

	graph.Name = name.String
	graph.Description = desc.String

	if err := json.Unmarshal(edges, &graph.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &graph.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &graph, nil
}
