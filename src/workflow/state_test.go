package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    Step
		to      Step
		allowed bool
	}{
		{StepIdle, StepUploading, true},
		{StepIdle, StepCompleted, false},
		{StepUploading, StepExtracting, true},
		{StepUploading, StepError, true},
		{StepUploading, StepCompleted, false},
		{StepExtracting, StepCompleted, true},
		{StepExtracting, StepManualEntry, true},
		{StepExtracting, StepError, false},
		{StepManualEntry, StepAnalyzing, true},
		{StepManualEntry, StepCompleted, false},
		{StepAnalyzing, StepCompleted, true},
		{StepCompleted, StepManualEntry, true},
		{StepCompleted, StepError, true},
		{StepCompleted, StepUploading, false},
		{StepError, StepManualEntry, true},
		{StepError, StepIdle, true},
		{StepError, StepUploading, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestInFlight(t *testing.T) {
	assert.True(t, StepUploading.InFlight())
	assert.True(t, StepExtracting.InFlight())
	assert.True(t, StepAnalyzing.InFlight())

	assert.False(t, StepIdle.InFlight())
	assert.False(t, StepManualEntry.InFlight())
	assert.False(t, StepCompleted.InFlight())
	assert.False(t, StepError.InFlight())
}
