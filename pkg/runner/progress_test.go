package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStage_DisplayName(t *testing.T) {
	tests := []struct {
		stage    Stage
		expected string
	}{
		{StageChecking, "Checking"},
		{StageApplying, "Applying"},
		{StageSatisfied, "Up to date"},
		{StageApplied, "Applied"},
		{StageSkipped, "Skipped"},
		{StageComplete, "Complete"},
		{StageError, "Error"},
		{Stage("custom"), "custom"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.stage.DisplayName())
		})
	}
}

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker()
	assert.Nil(t, tracker.LastEvent())
	assert.False(t, tracker.HasErrors())

	cb := tracker.Callback()
	cb(NewProgressEvent(StageChecking, "packages", "Checking packages", 0))
	cb(NewErrorEvent("packages", "apt-get failed", 0))

	assert.Len(t, tracker.Events(), 2)
	assert.True(t, tracker.HasErrors())
	assert.Equal(t, StageError, tracker.LastEvent().Stage)
	assert.Equal(t, "packages", tracker.LastEvent().StepID)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "needs-apply", StatusNeedsApply.String())
	assert.Equal(t, "satisfied", StatusSatisfied.String())
	assert.Equal(t, "unknown", Status(42).String())
}
