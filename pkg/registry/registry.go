// Package registry holds the process-wide mapping from node names to step
// implementations.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rectifyd/rectify/pkg/protocol"
)

// ErrUnknownNode is returned by Lookup when no step is registered under the
// requested name.
var ErrUnknownNode = errors.New("unknown node")

// Registry maps node names to steps. It is populated at startup and
// read-mostly afterwards; registration during in-flight runs is allowed and
// takes effect on the next lookup, since the engine resolves names per step.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	steps map[string]protocol.Step
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		steps:  make(map[string]protocol.Step),
	}
}

// Register binds a step under name. Registering an existing name replaces the
// binding; last registration wins, which permits hot-reloading custom steps.
func (r *Registry) Register(name string, step protocol.Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[name]; exists {
		r.logger.Info("Replacing registered step", "name", name)
	}

	r.steps[name] = step
}

// RegisterFunc binds a plain function as a step.
func (r *Registry) RegisterFunc(name string, fn protocol.StepFunc) {
	r.Register(name, fn)
}

// Lookup resolves a node name to its registered step.
func (r *Registry) Lookup(name string) (protocol.Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, ok := r.steps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}

	return step, nil
}

// List returns the registered node names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
