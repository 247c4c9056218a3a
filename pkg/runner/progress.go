package runner

import "time"

// Stage represents the phase a step is in.
type Stage string

const (
	StageChecking  Stage = "checking"
	StageApplying  Stage = "applying"
	StageSatisfied Stage = "satisfied"
	StageApplied   Stage = "applied"
	StageSkipped   Stage = "skipped"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the stage.
func (s Stage) DisplayName() string {
	switch s {
	case StageChecking:
		return "Checking"
	case StageApplying:
		return "Applying"
	case StageSatisfied:
		return "Up to date"
	case StageApplied:
		return "Applied"
	case StageSkipped:
		return "Skipped"
	case StageComplete:
		return "Complete"
	case StageError:
		return "Error"
	default:
		return string(s)
	}
}

// ProgressEvent represents a run progress update.
type ProgressEvent struct {
	Stage     Stage     // Current stage
	StepID    string    // Step the event is about ("" for run-level events)
	Message   string    // Human-readable message
	Percent   int       // 0-100
	IsError   bool      // True if this is an error message
	Timestamp time.Time // When this event occurred
}

// NewProgressEvent creates a new progress event.
func NewProgressEvent(stage Stage, stepID, message string, percent int) ProgressEvent {
	return ProgressEvent{
		Stage:     stage,
		StepID:    stepID,
		Message:   message,
		Percent:   percent,
		Timestamp: time.Now(),
	}
}

// NewErrorEvent creates a new error progress event.
func NewErrorEvent(stepID, message string, percent int) ProgressEvent {
	return ProgressEvent{
		Stage:     StageError,
		StepID:    stepID,
		Message:   message,
		Percent:   percent,
		IsError:   true,
		Timestamp: time.Now(),
	}
}

// ProgressCallback is called with progress updates during a run.
type ProgressCallback func(ProgressEvent)

// NoOpProgress is a progress callback that does nothing.
func NoOpProgress(_ ProgressEvent) {}

// ProgressTracker collects progress events for later review.
type ProgressTracker struct {
	events []ProgressEvent
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		events: make([]ProgressEvent, 0),
	}
}

// Callback returns a ProgressCallback that records events.
func (t *ProgressTracker) Callback() ProgressCallback {
	return func(e ProgressEvent) {
		t.events = append(t.events, e)
	}
}

// Events returns all recorded events.
func (t *ProgressTracker) Events() []ProgressEvent {
	return t.events
}

// LastEvent returns the most recent event, or nil if none.
func (t *ProgressTracker) LastEvent() *ProgressEvent {
	if len(t.events) == 0 {
		return nil
	}
	return &t.events[len(t.events)-1]
}

// HasErrors returns true if any error events were recorded.
func (t *ProgressTracker) HasErrors() bool {
	for _, e := range t.events {
		if e.IsError {
			return true
		}
	}
	return false
}
