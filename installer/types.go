package installer

import (
	"context"
	"errors"
)

// ErrCancelled is returned when an operation was cancelled by the user.
var ErrCancelled = errors.New("operation cancelled")

// StepResult represents the outcome of a step execution.
type StepResult struct {
	// Skip indicates the step was not needed. Skipped steps count as successful.
	Skip bool

	// Info contains a success or informational message.
	// For skipped steps, this explains why it was skipped.
	Info string

	// Err contains the error if the step failed.
	Err error
}

// Success creates a successful StepResult with an optional info message.
func Success(info string) StepResult {
	return StepResult{Info: info}
}

// Skipped creates a StepResult indicating the step was skipped.
func Skipped(reason string) StepResult {
	return StepResult{Skip: true, Info: reason}
}

// Failed creates a StepResult with an error.
func Failed(err error) StepResult {
	return StepResult{Err: err}
}

// Step is a named action executed as part of a deploy or uninstall sequence.
type Step struct {
	// Name is the display name reported while the step runs.
	Name string

	// Action executes the step. Long-running actions should honor ctx.
	Action func(ctx context.Context) StepResult
}

// SimpleStep creates a Step from a function that only reports failure.
//
// Example:
//
//	installer.SimpleStep("Write configuration", func() error {
//	    return doc.Save()
//	})
func SimpleStep(name string, action func() error) Step {
	return Step{
		Name: name,
		Action: func(context.Context) StepResult {
			if err := action(); err != nil {
				return Failed(err)
			}
			return Success("")
		},
	}
}
