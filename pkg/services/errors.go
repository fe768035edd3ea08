// Package services implements the application operations exposed over the API:
// agent and pipeline configuration management and execution control.
package services

import (
	"errors"
	"fmt"

	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrTypeNameImmutable    = errors.New("agent type name cannot be changed")
	ErrAgentTypeUnbound     = errors.New("agent type has no registered implementation")
	ErrInvalidMergeStrategy = errors.New("invalid merge strategy")

	// Not-found errors (404 Not Found), re-exported from persistence so
	// callers depend on one package.
	ErrAgentNotFound     = persistence.ErrAgentNotFound
	ErrPipelineNotFound  = persistence.ErrPipelineNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound

	// Business logic conflicts (409 Conflict).
	ErrAgentTypeExists         = errors.New("agent type name already exists")
	ErrAgentInUse              = errors.New("agent is referenced by pipeline steps")
	ErrPipelineNameExists      = errors.New("pipeline name already exists")
	ErrPipelineArchived        = errors.New("archived pipelines are immutable")
	ErrPipelineActive          = errors.New("active pipelines cannot be deleted")
	ErrStepOrderTaken          = errors.New("step order already taken")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrPipelineNotActive       = errors.New("pipeline is not active")
	ErrPipelineHasNoSteps      = errors.New("pipeline has no steps")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrTypeNameImmutable) ||
		errors.Is(err, ErrAgentTypeUnbound) ||
		errors.Is(err, ErrInvalidMergeStrategy) ||
		errors.Is(err, ErrPipelineHasNoSteps)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrPipelineNotFound) ||
		errors.Is(err, ErrExecutionNotFound)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAgentTypeExists) ||
		errors.Is(err, ErrAgentInUse) ||
		errors.Is(err, ErrPipelineNameExists) ||
		errors.Is(err, ErrPipelineArchived) ||
		errors.Is(err, ErrPipelineActive) ||
		errors.Is(err, ErrStepOrderTaken) ||
		errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrPipelineNotActive)
}
