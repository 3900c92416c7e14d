package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

// ErrGraphNotFound is returned when a graph is not found.
var ErrGraphNotFound = persistence.ErrGraphNotFound

// graphPayloadSchema validates the shape of a graph definition before it is
// decoded: every edge is either a node name or a condition object whose
// operator is one of the supported comparisons and whose rhs is a JSON
// scalar. Node names are deliberately not checked against the registry.
const graphPayloadSchema = `{
	"type": "object",
	"required": ["start_node", "edges"],
	"properties": {
		"name": {"type": "string"},
		"description": {"type": "string"},
		"start_node": {"type": "string", "minLength": 1},
		"metadata": {"type": "object"},
		"edges": {
			"type": "object",
			"additionalProperties": {
				"oneOf": [
					{"type": "string", "minLength": 1},
					{
						"type": "object",
						"required": ["condition"],
						"additionalProperties": false,
						"properties": {
							"condition": {
								"type": "object",
								"required": ["check"],
								"properties": {
									"check": {
										"type": "object",
										"required": ["lhs", "op"],
										"properties": {
											"lhs": {"type": "string", "minLength": 1},
											"op": {"enum": ["==", "!=", "<", "<=", ">", ">="]},
											"rhs": {"type": ["number", "string", "boolean", "null"]}
										}
									},
									"true": {"type": ["string", "null"]},
									"false": {"type": ["string", "null"]}
								}
							}
						}
					}
				]
			}
		}
	}
}`

type Graph struct {
	persistence persistence.Persistence
	schema      *gojsonschema.Schema
}

// NewGraph creates a new graph service.
func NewGraph(persistence persistence.Persistence) *Graph {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(graphPayloadSchema))
	if err != nil {
		panic("services: graph payload schema is invalid: " + err.Error())
	}

	return &Graph{
		persistence: persistence,
		schema:      schema,
	}
}

// HealthCheck checks the health of the persistence layer.
func (g *Graph) HealthCheck(ctx context.Context) (string, bool) {
	if g.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := g.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates a raw graph definition, assigns it an id and stores it.
func (g *Graph) Create(ctx context.Context, payload []byte) (*models.Graph, error) {
	result, err := g.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_JSON", "payload is not valid JSON", ErrInvalidDefinition)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, NewValidationError("Create", "INVALID_DEFINITION", strings.Join(details, "; "), ErrInvalidDefinition)
	}

	var graph models.Graph
	if err := json.Unmarshal(payload, &graph); err != nil {
		return nil, NewValidationError("Create", "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
	}

	now := time.Now().UTC()
	graph.ID = uuid.New().String()
	graph.CreatedAt = now
	graph.UpdatedAt = now

	if err := g.persistence.GraphRepository().Save(ctx, &graph); err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}

	return &graph, nil
}

// FetchByID retrieves a graph by its ID.
func (g *Graph) FetchByID(ctx context.Context, id string) (*models.Graph, error) {
	return g.persistence.GraphRepository().GetByID(ctx, id)
}

// List retrieves all stored graphs.
func (g *Graph) List(ctx context.Context) ([]*models.Graph, error) {
	graphs, err := g.persistence.GraphRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	return graphs, nil
}

// Delete removes a graph by its ID.
func (g *Graph) Delete(ctx context.Context, id string) error {
	return g.persistence.GraphRepository().Delete(ctx, id)
}
