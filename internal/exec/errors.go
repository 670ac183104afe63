package exec

import (
	"errors"
	"fmt"

	"github.com/vk/blockflow/internal/validate"
)

var (
	// ErrNotInitialized is returned when an operation requires a
	// successfully initialized context.
	ErrNotInitialized = errors.New("context not initialized")
	// ErrFaulted is returned by Step on a faulted context; the context
	// must be Reset or reconstructed first.
	ErrFaulted = errors.New("context is faulted")
	// ErrStepInProgress is returned when Step is re-entered while an
	// evaluation is already running on the same context.
	ErrStepInProgress = errors.New("step already in progress on this context")
)

// ValidationError wraps the validator's report when initialization is
// refused. The report lists every problem, not just the first.
type ValidationError struct {
	Report *validate.Report
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model validation failed:\n%s", e.Report.Summary())
}

// evalError decorates a runtime evaluation failure with the instance path
// and the step on which it occurred, leaving the original error reachable
// through errors.Is/As.
func evalError(step uint64, path string, err error) error {
	if path == "" {
		path = "<root>"
	}
	return fmt.Errorf("step %d: instance %s: %w", step, path, err)
}
