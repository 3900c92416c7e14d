package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rectifyd/rectify/pkg/channels/gochannel"
	"github.com/rectifyd/rectify/pkg/engine"
	"github.com/rectifyd/rectify/pkg/eventbus"
	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence"
	"github.com/rectifyd/rectify/pkg/persistence/memory"
	"github.com/rectifyd/rectify/pkg/registry"
	"github.com/rectifyd/rectify/pkg/services"
	"github.com/rectifyd/rectify/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app      *fiber.App
	store    persistence.Persistence
	registry *registry.Registry
	runs     *services.Run
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	reg := registry.NewRegistry(logger)

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	eng := engine.NewEngine(logger, store, reg, bus)

	graphService := services.NewGraph(store)
	runService := services.NewRun(store, eng, bus)
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(graphService, runService, validate, reg)

	app := fiber.New()

	g := app.Group("/graphs")
	g.Get("/", handlers.GetGraphs)
	g.Post("/", handlers.CreateGraph)
	g.Get("/:id", handlers.GetGraph)
	g.Delete("/:id", handlers.DeleteGraph)
	g.Get("/:id/runs", handlers.GetGraphRuns)

	r := app.Group("/runs")
	r.Post("/", handlers.CreateRun)
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/cancel", handlers.CancelRun)
	r.Get("/:id/events", handlers.StreamRunEvents)

	app.Get("/steps", handlers.GetSteps)
	app.Get("/health", handlers.HealthCheck)

	return &testEnv{app: app, store: store, registry: reg, runs: runService}
}

func postJSON(t *testing.T, app *fiber.App, path string, body []byte) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)

	return resp
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)

	return resp
}

func TestAPIHandlers_CreateGraph(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name: "successful creation",
			body: `{
				"name": "loop",
				"start_node": "profile_data",
				"edges": {
					"profile_data": "identify_anomalies",
					"identify_anomalies": {
						"condition": {
							"check": {"lhs": "anomaly_count", "op": ">", "rhs": 0},
							"true": "generate_rules",
							"false": null
						}
					}
				}
			}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing start node",
			body:           `{"edges": {}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad operator",
			body:           `{"start_node": "a", "edges": {"a": {"condition": {"check": {"lhs": "x", "op": "~", "rhs": 1}}}}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			body:           `not-json`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestApp(t)

			resp := postJSON(t, env.app, "/graphs/", []byte(tt.body))
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var graph models.Graph
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&graph))
				assert.NotEmpty(t, graph.ID)
				assert.Equal(t, "profile_data", graph.StartNode)
			}
		})
	}
}

func TestAPIHandlers_GetGraph(t *testing.T) {
	env := setupTestApp(t)

	created := postJSON(t, env.app, "/graphs/", []byte(`{"start_node": "a", "edges": {}}`))
	defer func() { _ = created.Body.Close() }()

	var graph models.Graph
	require.NoError(t, json.NewDecoder(created.Body).Decode(&graph))

	resp := get(t, env.app, "/graphs/"+graph.ID)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing := get(t, env.app, "/graphs/"+uuid.New().String())
	defer func() { _ = missing.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPIHandlers_DeleteGraph(t *testing.T) {
	env := setupTestApp(t)

	created := postJSON(t, env.app, "/graphs/", []byte(`{"start_node": "a", "edges": {}}`))
	defer func() { _ = created.Body.Close() }()

	var graph models.Graph
	require.NoError(t, json.NewDecoder(created.Body).Decode(&graph))

	req := httptest.NewRequest(http.MethodDelete, "/graphs/"+graph.ID, nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	again, err := env.app.Test(httptest.NewRequest(http.MethodDelete, "/graphs/"+graph.ID, nil))
	require.NoError(t, err)

	defer func() { _ = again.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestAPIHandlers_CreateRun(t *testing.T) {
	env := setupTestApp(t)

	env.registry.RegisterFunc("noop", func(_ context.Context, state models.DataState) (models.DataState, error) {
		return state, nil
	})

	created := postJSON(t, env.app, "/graphs/", []byte(`{"start_node": "noop", "edges": {}}`))
	defer func() { _ = created.Body.Close() }()

	var graph models.Graph
	require.NoError(t, json.NewDecoder(created.Body).Decode(&graph))

	body, err := json.Marshal(web.CreateRunRequest{
		GraphID:      graph.ID,
		InitialState: models.DataState{Records: []map[string]any{{"id": float64(1)}}},
	})
	require.NoError(t, err)

	resp := postJSON(t, env.app, "/runs/", body)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run models.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, graph.ID, run.GraphID)

	require.Eventually(t, func() bool {
		stored, err := env.store.RunRepository().GetByID(context.Background(), run.ID)

		return err == nil && stored.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	snapshot := get(t, env.app, "/runs/"+run.ID)
	defer func() { _ = snapshot.Body.Close() }()
	assert.Equal(t, http.StatusOK, snapshot.StatusCode)

	var stored models.Run
	require.NoError(t, json.NewDecoder(snapshot.Body).Decode(&stored))
	assert.Equal(t, models.RunStatusCompleted, stored.Status)

	listed := get(t, env.app, "/graphs/"+graph.ID+"/runs")
	defer func() { _ = listed.Body.Close() }()
	assert.Equal(t, http.StatusOK, listed.StatusCode)

	var page struct {
		Runs       []web.RunResponse `json:"runs"`
		TotalCount int               `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(listed.Body).Decode(&page))
	assert.Equal(t, 1, page.TotalCount)
}

func TestAPIHandlers_CreateRun_Invalid(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "missing graph id",
			body:           `{"initial_state": {"records": []}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown graph",
			body:           `{"graph_id": "` + uuid.New().String() + `"}`,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid JSON",
			body:           `x`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestApp(t)

			resp := postJSON(t, env.app, "/runs/", []byte(tt.body))
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAPIHandlers_CancelRun(t *testing.T) {
	env := setupTestApp(t)

	env.registry.RegisterFunc("noop", func(_ context.Context, state models.DataState) (models.DataState, error) {
		return state, nil
	})

	graph := &models.Graph{ID: uuid.New().String(), StartNode: "noop"}
	require.NoError(t, env.store.GraphRepository().Save(context.Background(), graph))

	run, err := env.runs.Start(context.Background(), graph.ID, models.DataState{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := env.store.RunRepository().GetByID(context.Background(), run.ID)

		return err == nil && stored.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	// Cancelling a finished run conflicts.
	resp := postJSON(t, env.app, "/runs/"+run.ID+"/cancel", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	missing := postJSON(t, env.app, "/runs/"+uuid.New().String()+"/cancel", nil)
	defer func() { _ = missing.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPIHandlers_GetSteps(t *testing.T) {
	env := setupTestApp(t)

	env.registry.RegisterFunc("profile_data", func(_ context.Context, state models.DataState) (models.DataState, error) {
		return state, nil
	})

	resp := get(t, env.app, "/steps")
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Steps      []string `json:"steps"`
		TotalCount int      `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, []string{"profile_data"}, page.Steps)
}

func TestAPIHandlers_StreamRunEvents_TerminalSnapshot(t *testing.T) {
	env := setupTestApp(t)

	env.registry.RegisterFunc("noop", func(_ context.Context, state models.DataState) (models.DataState, error) {
		return state, nil
	})

	graph := &models.Graph{ID: uuid.New().String(), StartNode: "noop"}
	require.NoError(t, env.store.GraphRepository().Save(context.Background(), graph))

	run, err := env.runs.Start(context.Background(), graph.ID, models.DataState{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := env.store.RunRepository().GetByID(context.Background(), run.ID)

		return err == nil && stored.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	resp := get(t, env.app, "/runs/"+run.ID+"/events")
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "event: run.completed"), "body: %s", text)
	assert.Contains(t, text, "data: ")
}

func TestAPIHandlers_StreamRunEvents_UnknownRun(t *testing.T) {
	env := setupTestApp(t)

	resp := get(t, env.app, "/runs/"+uuid.New().String()+"/events")
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	env := setupTestApp(t)

	resp := get(t, env.app, "/health")
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
