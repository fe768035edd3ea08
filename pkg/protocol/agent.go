// Package protocol defines the contracts every agent implementation must satisfy.
package protocol

import (
	"context"
	"log/slog"
)

// Agent is a constructed processing unit bound to one configuration. Instances
// are owned by the orchestration call that created them and must not be shared
// across concurrent executions.
type Agent interface {
	// ValidateInput is a pure precondition check. It must not mutate the input
	// or any external state. A false return short-circuits the step with a
	// validation-failed outcome rather than an error.
	ValidateInput(ctx context.Context, data map[string]any) bool

	// Execute performs the transform. Implementations should be idempotent
	// under retry; this is a convention, not enforced by the engine.
	Execute(ctx context.Context, data map[string]any, logger *slog.Logger) (map[string]any, error)

	// OnError is a best-effort recovery hook invoked after a failed Execute.
	// An error return marks the step unrecovered; it is logged, never propagated.
	OnError(ctx context.Context, execErr error, data map[string]any) error
}

// AgentFactory constructs agent instances and identifies the agent type.
// Plugin shared objects export a symbol of this type.
type AgentFactory interface {
	// Create builds a fresh instance bound to config.
	Create(config map[string]any) (Agent, error)

	// ID returns the registry type name for this agent variant.
	ID() string
}
