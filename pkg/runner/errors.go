package runner

import "fmt"

// StepError is returned when a step fails. Later steps are not run.
type StepError struct {
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.StepID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
