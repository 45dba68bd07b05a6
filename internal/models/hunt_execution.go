// -----------------------------------------------------------------------
// Hunt Execution - One run of a hunt definition against a case
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// ExecutionStatus is the aggregate status of a hunt execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusPartial   ExecutionStatus = "partial"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal returns true once the execution can no longer change state.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusPartial, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// StepStatus is the runtime status of a single hunt step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusCancelled StepStatus = "cancelled"
)

// IsTerminal returns true for any status a step cannot leave.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled:
		return true
	default:
		return false
	}
}

// HuntStep is one step's runtime record within an execution. It is created
// pending alongside its execution and destroyed only with it.
type HuntStep struct {
	ID           string                   `json:"id"`
	Plugin       string                   `json:"plugin"`
	Status       StepStatus               `json:"status"`
	StartedAt    *time.Time               `json:"started_at,omitempty"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
	Params       map[string]interface{}   `json:"params,omitempty"` // resolved at dispatch time
	Output       []map[string]interface{} `json:"output,omitempty"` // data-event payloads, order preserved
	ErrorDetails string                   `json:"error_details,omitempty"`
}

// Clone returns a deep copy of the step.
func (s *HuntStep) Clone() *HuntStep {
	clone := &HuntStep{
		ID:           s.ID,
		Plugin:       s.Plugin,
		Status:       s.Status,
		ErrorDetails: s.ErrorDetails,
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		clone.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		clone.CompletedAt = &t
	}
	if s.Params != nil {
		clone.Params = make(map[string]interface{}, len(s.Params))
		for k, v := range s.Params {
			clone.Params[k] = v
		}
	}
	if s.Output != nil {
		clone.Output = make([]map[string]interface{}, len(s.Output))
		for i, payload := range s.Output {
			copied := make(map[string]interface{}, len(payload))
			for k, v := range payload {
				copied[k] = v
			}
			clone.Output[i] = copied
		}
	}
	return clone
}

// HuntExecution is one run of a HuntDefinition against one case. It is owned
// by the context store and mutated only through the engine; observers always
// receive deep-copied snapshots.
type HuntExecution struct {
	ID           string `json:"id" badgerhold:"key"`
	DefinitionID string `json:"definition_id"`
	CaseID       string `json:"case_id"`
	UserID       string `json:"user_id"`

	InitialParams map[string]interface{} `json:"initial_params,omitempty"`
	ContextData   map[string]interface{} `json:"context_data,omitempty"`

	Status          ExecutionStatus `json:"status"`
	Progress        float64         `json:"progress"` // 0.0 - 1.0
	CancelRequested bool            `json:"cancel_requested"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Steps []*HuntStep `json:"steps"`
}

// NewHuntExecution creates a pending execution with one pending step per
// step definition, in definition order.
func NewHuntExecution(id string, def *HuntDefinition, caseID, userID string, initialParams map[string]interface{}) *HuntExecution {
	if initialParams == nil {
		initialParams = make(map[string]interface{})
	}
	exec := &HuntExecution{
		ID:            id,
		DefinitionID:  def.ID,
		CaseID:        caseID,
		UserID:        userID,
		InitialParams: initialParams,
		ContextData:   make(map[string]interface{}),
		Status:        ExecutionStatusPending,
		CreatedAt:     time.Now(),
		Steps:         make([]*HuntStep, 0, len(def.Steps)),
	}
	for _, stepDef := range def.Steps {
		exec.Steps = append(exec.Steps, &HuntStep{
			ID:     stepDef.ID,
			Plugin: stepDef.Plugin,
			Status: StepStatusPending,
		})
	}
	return exec
}

// Step returns the runtime step with the given ID, or nil.
func (e *HuntExecution) Step(id string) *HuntStep {
	for _, s := range e.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// MarkStarted transitions the execution to running.
func (e *HuntExecution) MarkStarted() {
	e.Status = ExecutionStatusRunning
	now := time.Now()
	e.StartedAt = &now
}

// RecomputeProgress sets progress to terminal steps / total steps. All
// terminal outcomes count as "done" for progress purposes; progress is a
// completion fraction, not a success metric.
func (e *HuntExecution) RecomputeProgress() {
	if len(e.Steps) == 0 {
		e.Progress = 1.0
		return
	}
	terminal := 0
	for _, s := range e.Steps {
		if s.Status.IsTerminal() {
			terminal++
		}
	}
	progress := float64(terminal) / float64(len(e.Steps))
	// progress never decreases while running
	if progress > e.Progress {
		e.Progress = progress
	}
}

// ComputeTerminalStatus derives the aggregate terminal status from step
// outcomes. Callers must only invoke this once no step is pending or running.
func (e *HuntExecution) ComputeTerminalStatus() ExecutionStatus {
	var completed, failed, skipped, cancelled int
	for _, s := range e.Steps {
		switch s.Status {
		case StepStatusCompleted:
			completed++
		case StepStatusFailed:
			failed++
		case StepStatusSkipped:
			skipped++
		case StepStatusCancelled:
			cancelled++
		}
	}

	if e.CancelRequested && cancelled > 0 {
		return ExecutionStatusCancelled
	}
	if completed == 0 && failed+skipped == len(e.Steps) {
		return ExecutionStatusFailed
	}
	if completed > 0 && failed+skipped > 0 {
		return ExecutionStatusPartial
	}
	return ExecutionStatusCompleted
}

// Clone returns a deep copy safe to hand to observers.
func (e *HuntExecution) Clone() *HuntExecution {
	clone := &HuntExecution{
		ID:              e.ID,
		DefinitionID:    e.DefinitionID,
		CaseID:          e.CaseID,
		UserID:          e.UserID,
		Status:          e.Status,
		Progress:        e.Progress,
		CancelRequested: e.CancelRequested,
		CreatedAt:       e.CreatedAt,
	}
	if e.StartedAt != nil {
		t := *e.StartedAt
		clone.StartedAt = &t
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		clone.CompletedAt = &t
	}
	if e.InitialParams != nil {
		clone.InitialParams = make(map[string]interface{}, len(e.InitialParams))
		for k, v := range e.InitialParams {
			clone.InitialParams[k] = v
		}
	}
	if e.ContextData != nil {
		clone.ContextData = make(map[string]interface{}, len(e.ContextData))
		for k, v := range e.ContextData {
			clone.ContextData[k] = v
		}
	}
	clone.Steps = make([]*HuntStep, len(e.Steps))
	for i, s := range e.Steps {
		clone.Steps[i] = s.Clone()
	}
	return clone
}
