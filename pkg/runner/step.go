// Package runner applies provisioning steps one after another, in dependency
// order, and stops at the first failure.
package runner

import "context"

// Status is what a step's guard reports before anything is changed.
type Status int

const (
	// StatusNeedsApply indicates the step has work to do.
	StatusNeedsApply Status = iota
	// StatusSatisfied indicates the step's effect is already present.
	StatusSatisfied
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNeedsApply:
		return "needs-apply"
	case StatusSatisfied:
		return "satisfied"
	default:
		return "unknown"
	}
}

// Step is one idempotent provisioning operation.
type Step interface {
	// ID returns the unique identifier for this step, e.g. "file:/etc/ntp.conf".
	ID() string

	// Requires returns the IDs of steps that must complete before this one.
	Requires() []string

	// Describe returns a human-readable summary of the step.
	Describe() string

	// Check reports whether the step's effect is already present.
	// It must not change the host.
	Check(ctx context.Context) (Status, error)

	// Apply makes the change. Running it again produces the same result.
	Apply(ctx context.Context) error
}

// Adopter is implemented by steps that record something when their guard
// finds the effect already present (for example, stamping an install made
// before state was tracked). Adopt is only called on real runs.
type Adopter interface {
	Adopt(ctx context.Context) error
}

// Outcome is what happened to a step during a run.
type Outcome string

const (
	OutcomeSatisfied  Outcome = "satisfied"
	OutcomeApplied    Outcome = "applied"
	OutcomeWouldApply Outcome = "would-apply" // Dry runs only
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped" // Not reached because an earlier step failed
)
