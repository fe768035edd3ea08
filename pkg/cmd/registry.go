// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/stackconsult/interfaceAgent/pkg/registry"
)

// NewRegistry creates a registry pre-loaded with the built-in agent types.
// Plugin-backed types are loaded lazily when a step first binds them.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	if err := reg.RegisterBuiltinAgents(); err != nil {
		panic(err)
	}

	return reg
}
