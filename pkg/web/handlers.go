// Package web provides HTTP handlers and REST API endpoints for graph and
// run management.
package web

import (
	"bufio"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rectifyd/rectify/pkg/events"
	"github.com/rectifyd/rectify/pkg/registry"
	"github.com/rectifyd/rectify/pkg/services"
)

type APIHandlers struct {
	graphService *services.Graph
	runService   *services.Run
	validator    *validator.Validate
	registry     *registry.Registry
}

func NewAPIHandlers(
	graphService *services.Graph,
	runService *services.Run,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		graphService: graphService,
		runService:   runService,
		validator:    validator,
		registry:     registry,
	}
}

func (h *APIHandlers) GetGraphs(c fiber.Ctx) error {
	graphs, err := h.graphService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"graphs":      graphs,
		"total_count": len(graphs),
	})
}

func (h *APIHandlers) CreateGraph(c fiber.Ctx) error {
	graph, err := h.graphService.Create(c.Context(), c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(graph)
}

func (h *APIHandlers) GetGraph(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Graph ID is required")
	}

	graph, err := h.graphService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(graph)
}

func (h *APIHandlers) DeleteGraph(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Graph ID is required")
	}

	if err := h.graphService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetGraphRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Graph ID is required")
	}

	runs, err := h.runService.ListByGraph(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	responses := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, TransformRunResponse(run))
	}

	return c.JSON(fiber.Map{
		"runs":        responses,
		"total_count": len(responses),
	})
}

// CreateRun starts a run and answers 202: execution continues after the
// response, observable through GetRun or the event stream.
func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	var req CreateRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runService.Start(c.Context(), req.GraphID, req.InitialState)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	if err := h.runService.Cancel(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     id,
		"status": "cancelling",
	})
}

func (h *APIHandlers) GetSteps(c fiber.Ctx) error {
	names := h.registry.List()

	return c.JSON(fiber.Map{
		"steps":       names,
		"total_count": len(names),
	})
}

// StreamRunEvents pushes the run's progress as server-sent events. Events
// are live only: a subscription opened after the run finished gets a single
// synthetic event built from the stored snapshot.
func (h *APIHandlers) StreamRunEvents(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	if run.Status.Terminal() {
		snapshot := events.NewRunProgress(uuid.New().String(), run)

		return c.SendStreamWriter(func(w *bufio.Writer) {
			writeSSE(w, snapshot)
		})
	}

	ctx := c.Context()

	stream, err := h.runService.Subscribe(ctx, id)
	if err != nil {
		return internalError(c, err)
	}

	// The run may have finished between the snapshot read and the
	// subscription; there is no replay, so re-check before streaming.
	run, err = h.runService.FetchByID(ctx, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if run.Status.Terminal() {
		snapshot := events.NewRunProgress(uuid.New().String(), run)

		return c.SendStreamWriter(func(w *bufio.Writer) {
			writeSSE(w, snapshot)
		})
	}

	return c.SendStreamWriter(func(w *bufio.Writer) {
		for event := range stream {
			if !writeSSE(w, event) {
				return
			}
		}
	})
}

// writeSSE emits one server-sent event and reports whether the client is
// still connected.
func writeSSE(w *bufio.Writer, event events.RunProgress) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		return false
	}

	if _, err := w.WriteString("event: " + string(event.Type) + "\n"); err != nil {
		return false
	}

	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return false
	}

	return w.Flush() == nil
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.graphService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Rectify API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Rectify API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
