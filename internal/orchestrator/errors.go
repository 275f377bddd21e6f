package orchestrator

import (
	"errors"
	"fmt"
)

// ForbiddenError is a policy-level hard stop. The tool is never executed and
// the call is never retried.
type ForbiddenError struct {
	Tool   string
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s is forbidden: %s", e.Tool, e.Reason)
}

// IsForbidden checks if an error is a policy-level hard stop.
func IsForbidden(err error) bool {
	var forbidden *ForbiddenError
	return errors.As(err, &forbidden)
}

// ExecutionError wraps a tool or sandbox runtime failure. Eligible for the
// single escalation retry when the tool opts in.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError checks if an error is a runtime execution failure.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}
