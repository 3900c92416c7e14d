// Package web provides HTTP request and response types for the pipeline API.
package web

import "github.com/rectifyd/rectify/pkg/models"

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateRunRequest represents the request body for starting a run.
type CreateRunRequest struct {
	GraphID      string           `json:"graph_id"      validate:"required"`
	InitialState models.DataState `json:"initial_state"`
}

// RunResponse trims a run snapshot for list endpoints, where full traces
// would dominate the payload.
type RunResponse struct {
	ID          string           `json:"id"`
	GraphID     string           `json:"graph_id"`
	Status      models.RunStatus `json:"status"`
	CurrentNode string           `json:"current_node,omitempty"`
	Steps       int              `json:"steps"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   string           `json:"created_at"`
}

// TransformRunResponse builds the trimmed list representation of a run.
func TransformRunResponse(run *models.Run) RunResponse {
	return RunResponse{
		ID:          run.ID,
		GraphID:     run.GraphID,
		Status:      run.Status,
		CurrentNode: run.CurrentNode,
		Steps:       run.Steps,
		Error:       run.Error,
		CreatedAt:   run.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
