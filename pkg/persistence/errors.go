package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAgentNotFound indicates an agent definition was not found.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentAlreadyExists indicates an agent with the same type name exists.
	ErrAgentAlreadyExists = errors.New("agent already exists")

	// ErrPipelineNotFound indicates a pipeline was not found.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrPipelineAlreadyExists indicates a pipeline with the same name exists.
	ErrPipelineAlreadyExists = errors.New("pipeline already exists")

	// ErrExecutionNotFound indicates a pipeline execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")
)

// RepositoryError wraps persistence failures with operation context.
type RepositoryError struct {
	Op       string // Operation being performed (e.g. "SaveAgent", "PipelineByID")
	Resource string // Resource identifier if applicable
	Err      error
}

func (e *RepositoryError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Resource, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func (e *RepositoryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRepositoryError creates a repository error with context.
func NewRepositoryError(op, resource string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Resource: resource, Err: err}
}

// IsAgentNotFound checks if an error indicates a missing agent definition.
func IsAgentNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound)
}

// IsPipelineNotFound checks if an error indicates a missing pipeline.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsAlreadyExists checks if an error indicates a uniqueness conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAgentAlreadyExists) || errors.Is(err, ErrPipelineAlreadyExists)
}
