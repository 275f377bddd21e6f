package tool

import (
	"errors"
	"fmt"
)

// InvalidInputError marks malformed tool arguments. Local and non-retryable.
type InvalidInputError struct {
	Tool string
	Err  error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %v", e.Tool, e.Err)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// IsInvalidInput checks if an error is an invalid-input failure.
func IsInvalidInput(err error) bool {
	var invalid *InvalidInputError
	return errors.As(err, &invalid)
}

func invalidInput(tool string, err error) error {
	return &InvalidInputError{Tool: tool, Err: err}
}

func invalidInputf(tool, format string, args ...any) error {
	return &InvalidInputError{Tool: tool, Err: fmt.Errorf(format, args...)}
}
