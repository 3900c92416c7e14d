package cmd

import (
	"log/slog"

	"github.com/rectifyd/rectify/pkg/registry"
	"github.com/rectifyd/rectify/pkg/steps"
)

// NewRegistry builds the step registry with every built-in step bound.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	steps.RegisterAll(reg, logger)

	return reg
}
