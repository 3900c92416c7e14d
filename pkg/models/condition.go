package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnknownField is returned when a condition references a state field
	// that does not exist.
	ErrUnknownField = errors.New("unknown state field")

	// ErrUnsupportedComparison is returned when a condition applies an
	// operator to operands it cannot order or compare. Type mismatches are a
	// hard failure rather than a coercion.
	ErrUnsupportedComparison = errors.New("unsupported comparison")
)

// Comparison operators accepted in condition checks.
const (
	OpEqual          = "=="
	OpNotEqual       = "!="
	OpLess           = "<"
	OpLessOrEqual    = "<="
	OpGreater        = ">"
	OpGreaterOrEqual = ">="
)

// ValidOperator reports whether op is one of the accepted comparison operators.
func ValidOperator(op string) bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return true
	default:
		return false
	}
}

// Condition is a single data-described predicate evaluated against the
// current DataState, e.g. {"lhs": "anomaly_count", "op": ">", "rhs": 0}.
type Condition struct {
	LHS string `json:"lhs" validate:"required"`
	Op  string `json:"op"  validate:"required"`
	RHS any    `json:"rhs"`
}

// Evaluate resolves the LHS field on the state and compares it with RHS.
// Numeric comparison applies when both sides are numeric; otherwise only
// equality operators are supported, and only between values of the same type.
func (c Condition) Evaluate(state DataState) (bool, error) {
	lhs, err := c.resolve(state)
	if err != nil {
		return false, err
	}

	lhsNum, lhsIsNum := numeric(lhs)
	rhsNum, rhsIsNum := numeric(c.RHS)

	if lhsIsNum && rhsIsNum {
		return compareNumeric(c.Op, lhsNum, rhsNum)
	}

	switch c.Op {
	case OpEqual, OpNotEqual:
		if lhs == nil || c.RHS == nil {
			equal := lhs == nil && c.RHS == nil
			return (c.Op == OpEqual) == equal, nil
		}

		if reflect.TypeOf(lhs) != reflect.TypeOf(c.RHS) {
			return false, fmt.Errorf("%w: cannot compare %T with %T", ErrUnsupportedComparison, lhs, c.RHS)
		}

		equal := reflect.DeepEqual(lhs, c.RHS)

		return (c.Op == OpEqual) == equal, nil
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return false, fmt.Errorf("%w: ordering operator %q requires numeric operands, got %T and %T",
			ErrUnsupportedComparison, c.Op, lhs, c.RHS)
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrUnsupportedComparison, c.Op)
	}
}

// resolve maps the LHS field name to a state value. Engine-owned counters are
// addressed directly; everything else falls back to the metadata map.
func (c Condition) resolve(state DataState) (any, error) {
	switch c.LHS {
	case "anomaly_count":
		return state.AnomalyCount, nil
	case "iteration":
		return state.Iteration, nil
	default:
		if value, ok := state.Metadata[c.LHS]; ok {
			return value, nil
		}

		return nil, fmt.Errorf("%w: %q", ErrUnknownField, c.LHS)
	}
}

func compareNumeric(op string, lhs, rhs float64) (bool, error) {
	switch op {
	case OpEqual:
		return lhs == rhs, nil
	case OpNotEqual:
		return lhs != rhs, nil
	case OpLess:
		return lhs < rhs, nil
	case OpLessOrEqual:
		return lhs <= rhs, nil
	case OpGreater:
		return lhs > rhs, nil
	case OpGreaterOrEqual:
		return lhs >= rhs, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrUnsupportedComparison, op)
	}
}

// numeric coerces the numeric shapes JSON decoding and step code produce.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}
