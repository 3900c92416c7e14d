package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rectifyd/rectify/pkg/channels/gochannel"
	"github.com/rectifyd/rectify/pkg/engine"
	"github.com/rectifyd/rectify/pkg/eventbus"
	"github.com/rectifyd/rectify/pkg/events"
	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/persistence/memory"
	"github.com/rectifyd/rectify/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A two-node loop: "double" doubles a metadata value, "check" advances the
// iteration counter, and the conditional edge re-enters the loop while
// iteration stays below three. Three passes commit six steps in total.
func TestEngine_Execute_DoubleCheckLoop(t *testing.T) {
	env := newTestEnv(t)

	env.registry.RegisterFunc("double", func(_ context.Context, state models.DataState) (models.DataState, error) {
		value, _ := state.Metadata["value"].(float64)
		state.Metadata["value"] = value * 2

		return state, nil
	})
	env.registry.RegisterFunc("check", func(_ context.Context, state models.DataState) (models.DataState, error) {
		state.Iteration++

		return state, nil
	})

	double := "double"
	graph := env.saveGraph(t, &models.Graph{
		StartNode: "double",
		Edges: map[string]models.EdgeTarget{
			"double": models.DirectEdge("check"),
			"check": models.ConditionalTarget(
				models.Condition{LHS: "iteration", Op: "<", RHS: float64(3)},
				&double,
				nil,
			),
		},
	})

	run := env.newRun(graph, models.DataState{
		Metadata:  map[string]any{"value": float64(1)},
		Iteration: 0,
	})

	require.NoError(t, env.engine.Execute(context.Background(), graph, run))

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.State.Iteration)
	assert.Equal(t, float64(8), run.State.Metadata["value"])
	require.Len(t, run.Trace, 6)

	for i, entry := range run.Trace {
		if i%2 == 0 {
			assert.Equal(t, "double", entry.Node)
		} else {
			assert.Equal(t, "check", entry.Node)
		}
	}
}

func TestEngine_Execute_PublishesProgressPerStep(t *testing.T) {
	logger := testLogger()
	store := memory.NewPersistence()
	reg := registry.NewRegistry(logger)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	eng := engine.NewEngine(logger, store, reg, bus)

	reg.RegisterFunc("first", annotate("a"))
	reg.RegisterFunc("second", annotate("b"))

	graph := &models.Graph{
		ID:        "g-events",
		StartNode: "first",
		Edges: map[string]models.EdgeTarget{
			"first": models.DirectEdge("second"),
		},
	}
	require.NoError(t, store.GraphRepository().Save(context.Background(), graph))

	run := &models.Run{
		ID:          "r-events",
		GraphID:     graph.ID,
		Status:      models.RunStatusPending,
		CurrentNode: graph.StartNode,
		State:       models.DataState{},
		CreatedAt:   time.Now().UTC(),
	}

	stream, err := bus.SubscribeRun(context.Background(), run.ID)
	require.NoError(t, err)

	go func() { _ = eng.Execute(context.Background(), graph, run) }()

	var received []events.RunProgress
	for event := range stream {
		received = append(received, event)
	}

	require.Len(t, received, 2)

	assert.Equal(t, events.RunStepCompletedEvent, received[0].Type)
	assert.Equal(t, "second", received[0].Node)
	assert.Equal(t, models.RunStatusRunning, received[0].Status)
	assert.Equal(t, 1, received[0].StepCount)

	assert.Equal(t, events.RunCompletedEvent, received[1].Type)
	assert.Equal(t, models.RunStatusCompleted, received[1].Status)
	assert.Equal(t, 2, received[1].StepCount)
	assert.True(t, received[1].Terminal())
}

func TestEngine_Execute_PublishesFailureEvent(t *testing.T) {
	logger := testLogger()
	store := memory.NewPersistence()
	reg := registry.NewRegistry(logger)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	eng := engine.NewEngine(logger, store, reg, bus)

	graph := &models.Graph{ID: "g-fail", StartNode: "ghost"}
	require.NoError(t, store.GraphRepository().Save(context.Background(), graph))

	run := &models.Run{
		ID:          "r-fail",
		GraphID:     graph.ID,
		Status:      models.RunStatusPending,
		CurrentNode: graph.StartNode,
		CreatedAt:   time.Now().UTC(),
	}

	stream, err := bus.SubscribeRun(context.Background(), run.ID)
	require.NoError(t, err)

	go func() { _ = eng.Execute(context.Background(), graph, run) }()

	var received []events.RunProgress
	for event := range stream {
		received = append(received, event)
	}

	require.Len(t, received, 1)
	assert.Equal(t, events.RunFailedEvent, received[0].Type)
	assert.Equal(t, models.RunStatusFailed, received[0].Status)
	assert.Contains(t, received[0].Error, "unknown node")
}
