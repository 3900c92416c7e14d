// Package engine runs graphs: it walks a graph's edges from the start node,
// applies the registered step for each node and commits the run snapshot to
// the run store after every step.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rectifyd/rectify/pkg/eventbus"
	"github.com/rectifyd/rectify/pkg/events"
	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/otelhelper"
	"github.com/rectifyd/rectify/pkg/persistence"
	"github.com/rectifyd/rectify/pkg/protocol"
	"github.com/rectifyd/rectify/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMaxSteps caps the number of committed steps of a single run, so a
// conditional edge that never releases cannot spin forever.
const DefaultMaxSteps = 500

// Engine executes runs. Each run is driven by its own goroutine, which is
// the only writer of that run's snapshot; everyone else reads through the
// run store.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	bus         eventbus.EventBus
	tracer      trace.Tracer
	maxSteps    int
	stepTimeout time.Duration

	mu     sync.Mutex
	active map[string]*runHandle
}

// runHandle carries the cooperative cancellation flag of an in-flight run.
type runHandle struct {
	cancelled atomic.Bool
}

type Option func(*Engine)

// WithMaxSteps overrides the per-run step cap.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithStepTimeout bounds the wall-clock time of every step. Zero disables
// the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stepTimeout = d
	}
}

// WithTracer attaches a tracer so each step is recorded as a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func NewEngine(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	bus eventbus.EventBus,
	opts ...Option,
) *Engine {
	e := &Engine{
		logger:      logger.With("module", "engine"),
		persistence: persistence,
		registry:    registry,
		bus:         bus,
		tracer:      noop.NewTracerProvider().Tracer("engine"),
		maxSteps:    DefaultMaxSteps,
		active:      make(map[string]*runHandle),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// StartRun creates a pending run for the graph, commits it and starts its
// worker goroutine. The returned snapshot is the committed pending run; the
// caller observes progress through the run store or the event bus.
func (e *Engine) StartRun(ctx context.Context, graphID string, initial models.DataState) (*models.Run, error) {
	graph, err := e.persistence.GraphRepository().GetByID(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph %s: %w", graphID, err)
	}

	run := &models.Run{
		ID:          uuid.New().String(),
		GraphID:     graph.ID,
		Status:      models.RunStatusPending,
		CurrentNode: graph.StartNode,
		State:       initial,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.persistence.RunRepository().Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist run %s: %w", run.ID, err)
	}

	handle := &runHandle{}

	e.mu.Lock()
	e.active[run.ID] = handle
	e.mu.Unlock()

	// The worker must outlive the request that started it.
	go e.execute(context.WithoutCancel(ctx), graph, run, handle)

	return run.Clone(), nil
}

// Execute runs the graph synchronously against the given run until it
// reaches a terminal status. StartRun is the asynchronous entry point; this
// one exists for callers that want to block on the result.
func (e *Engine) Execute(ctx context.Context, graph *models.Graph, run *models.Run) error {
	handle := &runHandle{}

	e.mu.Lock()
	e.active[run.ID] = handle
	e.mu.Unlock()

	return e.execute(ctx, graph, run, handle)
}

// Cancel raises the cancellation flag of an in-flight run. The run fails
// before its next step; the in-flight step, if any, is not interrupted.
func (e *Engine) Cancel(ctx context.Context, runID string) error {
	e.mu.Lock()
	handle, ok := e.active[runID]
	e.mu.Unlock()

	if ok {
		handle.cancelled.Store(true)

		return nil
	}

	run, err := e.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return err
	}

	return fmt.Errorf("%w: run %s is %s", ErrRunNotActive, run.ID, run.Status)
}

func (e *Engine) execute(ctx context.Context, graph *models.Graph, run *models.Run, handle *runHandle) error {
	defer func() {
		e.mu.Lock()
		delete(e.active, run.ID)
		e.mu.Unlock()
	}()

	logger := e.logger.With("run_id", run.ID, "graph_id", graph.ID)
	logger.Info("Starting run", "start_node", graph.StartNode)

	now := time.Now().UTC()
	run.Status = models.RunStatusRunning
	run.StartedAt = &now

	if err := e.commit(ctx, run); err != nil {
		return err
	}

	current := run.CurrentNode

	for {
		if handle.cancelled.Load() {
			return e.fail(ctx, run, current, ErrCancelled)
		}

		if run.Steps >= e.maxSteps {
			return e.fail(ctx, run, current, fmt.Errorf("%w after %d steps", ErrIterationLimitExceeded, run.Steps))
		}

		// Resolved per step, so a node registered or replaced after the run
		// started takes effect mid-run.
		step, err := e.registry.Lookup(current)
		if err != nil {
			return e.fail(ctx, run, current, err)
		}

		started := time.Now().UTC()

		if err := e.applyStep(ctx, graph, run, current, step); err != nil {
			return e.fail(ctx, run, current, &NodeExecutionError{Node: current, Cause: err})
		}

		run.Steps++
		run.Trace = append(run.Trace, models.TraceEntry{
			Node:         current,
			State:        run.State,
			AnomalyCount: run.State.AnomalyCount,
			DurationMs:   time.Since(started).Milliseconds(),
			Timestamp:    started,
		})

		// The step committed; a bad edge is a routing failure, not a step
		// failure, so the trace entry above stays and the error is not
		// wrapped in NodeExecutionError.
		next, err := graph.NextNode(current, run.State)
		if err != nil {
			return e.fail(ctx, run, current, err)
		}

		if next == "" {
			finished := time.Now().UTC()
			run.Status = models.RunStatusCompleted
			run.FinishedAt = &finished

			if err := e.commit(ctx, run); err != nil {
				return err
			}

			e.publish(ctx, run)
			logger.Info("Run completed", "steps", run.Steps)

			return nil
		}

		run.CurrentNode = next

		if err := e.commit(ctx, run); err != nil {
			return err
		}

		e.publish(ctx, run)

		current = next
	}
}

// applyStep applies the step for node against a copy of the run state and,
// on success, installs the result. Successor resolution happens in the
// execute loop after the step is traced.
func (e *Engine) applyStep(ctx context.Context, graph *models.Graph, run *models.Run, node string, step protocol.Step) error {
	spanCtx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.step",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.GraphIDKey, graph.ID),
		attribute.String(otelhelper.NodeKey, node),
		attribute.Int(otelhelper.StepCountKey, run.Steps),
	)
	defer span.End()

	state, err := e.callStep(spanCtx, step, run.State.Clone())
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.NodeKey, node))

		return err
	}

	run.State = state

	return nil
}

// callStep invokes the step with panic recovery and, when configured, the
// per-step timeout. A timed-out step is abandoned; its result, if it ever
// produces one, is discarded.
func (e *Engine) callStep(ctx context.Context, step protocol.Step, input models.DataState) (models.DataState, error) {
	if e.stepTimeout <= 0 {
		return e.recoverStep(ctx, step, input)
	}

	ctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	type outcome struct {
		state models.DataState
		err   error
	}

	done := make(chan outcome, 1)

	go func() {
		state, err := e.recoverStep(ctx, step, input)
		done <- outcome{state: state, err: err}
	}()

	select {
	case out := <-done:
		return out.state, out.err
	case <-ctx.Done():
		return models.DataState{}, fmt.Errorf("%w after %s", ErrStepTimeout, e.stepTimeout)
	}
}

func (e *Engine) recoverStep(ctx context.Context, step protocol.Step, input models.DataState) (state models.DataState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	return step.Apply(ctx, input)
}

// fail commits the terminal failed snapshot and publishes the failure event.
// The trace keeps every step committed before the failure.
func (e *Engine) fail(ctx context.Context, run *models.Run, node string, cause error) error {
	finished := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.Error = cause.Error()
	run.ErrorNode = node
	run.FinishedAt = &finished

	e.logger.Error("Run failed",
		"run_id", run.ID,
		"graph_id", run.GraphID,
		"node", node,
		"error", cause)

	if err := e.commit(ctx, run); err != nil {
		return err
	}

	e.publish(ctx, run)

	return cause
}

func (e *Engine) commit(ctx context.Context, run *models.Run) error {
	if err := e.persistence.RunRepository().Save(ctx, run); err != nil {
		e.logger.Error("Failed to commit run snapshot", "run_id", run.ID, "error", err)

		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	return nil
}

func (e *Engine) publish(ctx context.Context, run *models.Run) {
	event := events.NewRunProgress(e.bus.GenerateID(), run)

	if err := e.bus.Publish(ctx, run.ID, event); err != nil {
		e.logger.Warn("Failed to publish run progress", "run_id", run.ID, "error", err)
	}
}
