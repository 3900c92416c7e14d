// Package protocol defines the contracts between the execution engine and
// pluggable pipeline steps.
package protocol

import (
	"context"

	"github.com/rectifyd/rectify/pkg/models"
)

// Step is a named pipeline node: a synchronous transformation from one
// DataState to the next. Implementations must treat the input as immutable
// and return a fully formed state, not a partial patch. Steps that change
// anomalies are responsible for keeping AnomalyCount consistent; the engine
// cannot verify that invariant and relies on it for conditional routing.
type Step interface {
	Apply(ctx context.Context, state models.DataState) (models.DataState, error)
}

// StepFunc adapts a plain function to the Step interface.
type StepFunc func(ctx context.Context, state models.DataState) (models.DataState, error)

func (f StepFunc) Apply(ctx context.Context, state models.DataState) (models.DataState, error) {
	return f(ctx, state)
}
