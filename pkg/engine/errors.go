package engine

import (
	"errors"
	"fmt"
)

// ErrIterationLimitExceeded fails a run whose step counter reaches the
// configured cap before the graph terminates.
var ErrIterationLimitExceeded = errors.New("iteration limit exceeded")

// ErrCancelled fails a run whose cancellation flag was raised. The flag is
// checked between steps, so a cancelled run still finishes its in-flight
// step before it stops.
var ErrCancelled = errors.New("run cancelled")

// ErrStepTimeout is the cause of a NodeExecutionError when a step exceeds
// the per-step wall-clock budget.
var ErrStepTimeout = errors.New("step timed out")

// ErrRunNotActive is returned by Cancel when the run already reached a
// terminal status.
var ErrRunNotActive = errors.New("run is not active")

// NodeExecutionError wraps a failure raised while applying a single node,
// including panics and timeouts, with the node that raised it.
type NodeExecutionError struct {
	Node  string
	Cause error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Cause
}
