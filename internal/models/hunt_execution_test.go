package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecution(statuses ...StepStatus) *HuntExecution {
	def := &HuntDefinition{ID: "def-1", Name: "Test"}
	for i := range statuses {
		def.Steps = append(def.Steps, StepDefinition{ID: string(rune('a' + i)), Plugin: "noop"})
	}
	exec := NewHuntExecution("exec-1", def, "case-1", "analyst", nil)
	for i, status := range statuses {
		exec.Steps[i].Status = status
	}
	return exec
}

func TestNewHuntExecution(t *testing.T) {
	def := &HuntDefinition{
		ID:   "def-1",
		Name: "Test",
		Steps: []StepDefinition{
			{ID: "first", Plugin: "dns_lookup"},
			{ID: "second", Plugin: "http_meta", DependsOn: []string{"first"}},
		},
	}
	exec := NewHuntExecution("exec-1", def, "case-9", "analyst", map[string]interface{}{"domain": "example.com"})

	assert.Equal(t, ExecutionStatusPending, exec.Status)
	assert.Equal(t, "case-9", exec.CaseID)
	require.Len(t, exec.Steps, 2)
	assert.Equal(t, "first", exec.Steps[0].ID)
	assert.Equal(t, StepStatusPending, exec.Steps[0].Status)
	assert.Equal(t, StepStatusPending, exec.Steps[1].Status)
	assert.NotNil(t, exec.ContextData)
}

func TestRecomputeProgress(t *testing.T) {
	exec := newTestExecution(StepStatusCompleted, StepStatusFailed, StepStatusRunning, StepStatusPending)
	exec.RecomputeProgress()
	assert.InDelta(t, 0.5, exec.Progress, 0.001)

	// All terminal outcomes count toward progress, not only successes.
	exec.Steps[2].Status = StepStatusSkipped
	exec.RecomputeProgress()
	assert.InDelta(t, 0.75, exec.Progress, 0.001)
}

func TestRecomputeProgressMonotonic(t *testing.T) {
	exec := newTestExecution(StepStatusCompleted, StepStatusCompleted)
	exec.RecomputeProgress()
	assert.InDelta(t, 1.0, exec.Progress, 0.001)

	// A recompute never moves progress backwards.
	exec.Steps[0].Status = StepStatusPending
	exec.RecomputeProgress()
	assert.InDelta(t, 1.0, exec.Progress, 0.001)
}

func TestComputeTerminalStatus(t *testing.T) {
	tests := []struct {
		name            string
		statuses        []StepStatus
		cancelRequested bool
		expected        ExecutionStatus
	}{
		{
			name:     "all completed",
			statuses: []StepStatus{StepStatusCompleted, StepStatusCompleted},
			expected: ExecutionStatusCompleted,
		},
		{
			name:     "all failed",
			statuses: []StepStatus{StepStatusFailed, StepStatusFailed},
			expected: ExecutionStatusFailed,
		},
		{
			name:     "failure plus cascade skip with no successes",
			statuses: []StepStatus{StepStatusFailed, StepStatusSkipped, StepStatusSkipped},
			expected: ExecutionStatusFailed,
		},
		{
			name:     "mixed success and failure",
			statuses: []StepStatus{StepStatusCompleted, StepStatusFailed},
			expected: ExecutionStatusPartial,
		},
		{
			name:     "success plus skip counts as partial",
			statuses: []StepStatus{StepStatusCompleted, StepStatusFailed, StepStatusSkipped},
			expected: ExecutionStatusPartial,
		},
		{
			name:            "cancel with a cancelled step wins over partial",
			statuses:        []StepStatus{StepStatusCompleted, StepStatusCancelled, StepStatusFailed},
			cancelRequested: true,
			expected:        ExecutionStatusCancelled,
		},
		{
			name:            "cancel requested after everything finished is not cancelled",
			statuses:        []StepStatus{StepStatusCompleted, StepStatusCompleted},
			cancelRequested: true,
			expected:        ExecutionStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecution(tt.statuses...)
			exec.CancelRequested = tt.cancelRequested
			assert.Equal(t, tt.expected, exec.ComputeTerminalStatus())
		})
	}
}

func TestExecutionClone(t *testing.T) {
	exec := newTestExecution(StepStatusCompleted)
	exec.ContextData["a.ip"] = "10.0.0.1"
	exec.Steps[0].Output = []map[string]interface{}{{"ip": "10.0.0.1"}}

	clone := exec.Clone()
	clone.ContextData["a.ip"] = "changed"
	clone.Steps[0].Status = StepStatusFailed
	clone.Steps[0].Output[0]["ip"] = "changed"

	assert.Equal(t, "10.0.0.1", exec.ContextData["a.ip"])
	assert.Equal(t, StepStatusCompleted, exec.Steps[0].Status)
	assert.Equal(t, "10.0.0.1", exec.Steps[0].Output[0]["ip"])
}

func TestStatusTerminality(t *testing.T) {
	assert.True(t, ExecutionStatusPartial.IsTerminal())
	assert.True(t, ExecutionStatusCancelled.IsTerminal())
	assert.False(t, ExecutionStatusRunning.IsTerminal())
	assert.False(t, ExecutionStatusPending.IsTerminal())

	assert.True(t, StepStatusSkipped.IsTerminal())
	assert.True(t, StepStatusCancelled.IsTerminal())
	assert.False(t, StepStatusRunning.IsTerminal())
}
