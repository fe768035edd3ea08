// Package registry maps agent type names to factories and resolves plugin-backed
// agent implementations.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/stackconsult/interfaceAgent/pkg/protocol"
)

var (
	// ErrDuplicateType indicates a type name is already bound to a different factory.
	ErrDuplicateType = errors.New("agent type already registered")

	// ErrUnknownType indicates no factory is registered under the type name.
	ErrUnknownType = errors.New("agent type not registered")
)

// Registry is a shared, read-mostly mapping of agent type names to factories.
// Registrations are rare writes; resolution happens on every step execution.
type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	factories map[string]protocol.AgentFactory
	plugins   *pluginCache
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]protocol.AgentFactory),
		plugins:   newPluginCache(),
	}
}

// Register binds typeName to factory. Re-registering the identical factory is a
// no-op; binding a different factory under an existing name fails with
// ErrDuplicateType and leaves the original registration intact.
func (r *Registry) Register(typeName string, factory protocol.AgentFactory) error {
	if typeName == "" {
		return errors.New("register: type name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.factories[typeName]; ok {
		if reflect.DeepEqual(existing, factory) {
			return nil
		}

		return fmt.Errorf("register %q: %w", typeName, ErrDuplicateType)
	}

	r.factories[typeName] = factory
	r.logger.Debug("Registered agent type", "type_name", typeName)

	return nil
}

// Create constructs a fresh agent instance bound to config. Instances are never
// cached or shared across calls.
func (r *Registry) Create(typeName string, config map[string]any) (protocol.Agent, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("create %q: %w", typeName, ErrUnknownType)
	}

	return factory.Create(config)
}

// Types returns a snapshot of all registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for typeName := range r.factories {
		types = append(types, typeName)
	}

	return types
}

// HealthCheck reports whether the registry can serve step resolutions.
func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.factories) == 0 {
		return "No agent types registered", false
	}

	return fmt.Sprintf("%d agent types registered", len(r.factories)), true
}

// IsRegistered reports whether a factory is bound under typeName.
func (r *Registry) IsRegistered(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[typeName]

	return ok
}
