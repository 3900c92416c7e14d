package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Graph is an immutable description of a pipeline: a start node and an edge
// map routing control flow between registered node names. A node absent from
// the edge map is terminal. Node names are not validated against the registry
// at creation time; the registry is dynamic and missing nodes surface as a
// run failure instead.
type Graph struct {
	ID          string                `json:"id"`
	Name        string                `json:"name,omitempty"`
	Description string                `json:"description,omitempty"`
	StartNode   string                `json:"start_node" validate:"required"`
	Edges       map[string]EdgeTarget `json:"edges"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// EdgeTarget is the tagged edge variant: either a direct successor node name
// or a conditional branch. Exactly one of Next and Condition is set.
type EdgeTarget struct {
	Next      string
	Condition *ConditionalEdge
}

// ConditionalEdge routes on a predicate. A nil branch terminates the run on
// that outcome.
type ConditionalEdge struct {
	Check Condition `json:"check"`
	True  *string   `json:"true"`
	False *string   `json:"false"`
}

// On the wire a direct edge is a bare string and a conditional edge is an
// object: {"condition": {"check": {...}, "true": ..., "false": ...}}.
type conditionalEnvelope struct {
	Condition *ConditionalEdge `json:"condition"`
}

func (e EdgeTarget) MarshalJSON() ([]byte, error) {
	if e.Condition != nil {
		return json.Marshal(conditionalEnvelope{Condition: e.Condition})
	}

	return json.Marshal(e.Next)
}

func (e *EdgeTarget) UnmarshalJSON(data []byte) error {
	var next string
	if err := json.Unmarshal(data, &next); err == nil {
		e.Next = next
		e.Condition = nil

		return nil
	}

	var envelope conditionalEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("edge target must be a node name or a condition object: %w", err)
	}

	if envelope.Condition == nil {
		return fmt.Errorf("edge target object is missing the condition field")
	}

	e.Next = ""
	e.Condition = envelope.Condition

	return nil
}

// NextNode resolves the successor of current against the committed state.
// It returns "" when the run terminates: either current has no edge, or the
// taken conditional branch is null.
func (g *Graph) NextNode(current string, state DataState) (string, error) {
	target, ok := g.Edges[current]
	if !ok {
		return "", nil
	}

	if target.Condition == nil {
		return target.Next, nil
	}

	result, err := target.Condition.Check.Evaluate(state)
	if err != nil {
		return "", fmt.Errorf("edge %q: %w", current, err)
	}

	branch := target.Condition.False
	if result {
		branch = target.Condition.True
	}

	if branch == nil {
		return "", nil
	}

	return *branch, nil
}

// DirectEdge builds a direct edge target.
func DirectEdge(next string) EdgeTarget {
	return EdgeTarget{Next: next}
}

// ConditionalTarget builds a conditional edge target. Branches may be nil to
// terminate on that outcome.
func ConditionalTarget(check Condition, trueBranch, falseBranch *string) EdgeTarget {
	return EdgeTarget{Condition: &ConditionalEdge{Check: check, True: trueBranch, False: falseBranch}}
}
