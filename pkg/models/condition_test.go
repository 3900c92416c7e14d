package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondition_Evaluate_NumericOperators(t *testing.T) {
	state := DataState{AnomalyCount: 3, Iteration: 1}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{name: "greater true", cond: Condition{LHS: "anomaly_count", Op: ">", RHS: 0}, want: true},
		{name: "greater false", cond: Condition{LHS: "anomaly_count", Op: ">", RHS: 3}, want: false},
		{name: "greater or equal boundary", cond: Condition{LHS: "anomaly_count", Op: ">=", RHS: 3}, want: true},
		{name: "less on iteration", cond: Condition{LHS: "iteration", Op: "<", RHS: 3}, want: true},
		{name: "less or equal false", cond: Condition{LHS: "anomaly_count", Op: "<=", RHS: 2}, want: false},
		{name: "equal", cond: Condition{LHS: "anomaly_count", Op: "==", RHS: 3}, want: true},
		{name: "not equal", cond: Condition{LHS: "anomaly_count", Op: "!=", RHS: 3}, want: false},
		{name: "float rhs against int field", cond: Condition{LHS: "anomaly_count", Op: "==", RHS: 3.0}, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cond.Evaluate(state)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCondition_Evaluate_MetadataFallback(t *testing.T) {
	state := DataState{Metadata: map[string]any{
		"threshold": 5.0,
		"source":    "imports",
		"strict":    true,
	}}

	got, err := Condition{LHS: "threshold", Op: ">", RHS: 4}.Evaluate(state)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Condition{LHS: "source", Op: "==", RHS: "imports"}.Evaluate(state)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Condition{LHS: "strict", Op: "!=", RHS: false}.Evaluate(state)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCondition_Evaluate_UnknownField(t *testing.T) {
	_, err := Condition{LHS: "no_such_field", Op: "==", RHS: 1}.Evaluate(DataState{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestCondition_Evaluate_UnsupportedComparisons(t *testing.T) {
	state := DataState{Metadata: map[string]any{"source": "imports"}}

	tests := []struct {
		name string
		cond Condition
	}{
		{name: "ordering on string", cond: Condition{LHS: "source", Op: ">", RHS: "a"}},
		{name: "ordering string against number", cond: Condition{LHS: "source", Op: "<=", RHS: 10}},
		{name: "equality type mismatch", cond: Condition{LHS: "source", Op: "==", RHS: 10}},
		{name: "unknown operator", cond: Condition{LHS: "source", Op: "~=", RHS: "imports"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.cond.Evaluate(state)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedComparison)
		})
	}
}

func TestCondition_Evaluate_NullRHS(t *testing.T) {
	state := DataState{Metadata: map[string]any{"marker": nil}}

	got, err := Condition{LHS: "marker", Op: "==", RHS: nil}.Evaluate(state)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Condition{LHS: "marker", Op: "!=", RHS: nil}.Evaluate(state)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestValidOperator(t *testing.T) {
	for _, op := range []string{"==", "!=", "<", "<=", ">", ">="} {
		assert.True(t, ValidOperator(op), op)
	}

	assert.False(t, ValidOperator("=~"))
	assert.False(t, ValidOperator(""))
}
