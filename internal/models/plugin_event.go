package models

import "time"

// PluginEventType classifies events emitted by a plugin adapter stream.
type PluginEventType string

const (
	PluginEventStatus   PluginEventType = "status"
	PluginEventData     PluginEventType = "data"
	PluginEventComplete PluginEventType = "complete"
	PluginEventError    PluginEventType = "error"
)

// PluginEvent is one element of a plugin adapter's incremental event stream.
// Ordering within a single step's stream is significant and preserved end to
// end; ordering across steps is not guaranteed.
type PluginEvent struct {
	Type    PluginEventType        `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// IsTerminal returns true for complete and error events, which end a stream.
func (e PluginEvent) IsTerminal() bool {
	return e.Type == PluginEventComplete || e.Type == PluginEventError
}

// ErrorMessage extracts the human-readable message from an error event.
func (e PluginEvent) ErrorMessage() string {
	if msg, ok := e.Payload["message"].(string); ok {
		return msg
	}
	return "plugin reported an error"
}

// StatusMessage extracts the message from a status event.
func (e PluginEvent) StatusMessage() string {
	if msg, ok := e.Payload["message"].(string); ok {
		return msg
	}
	return ""
}

// NewStatusEvent builds a status event with a message payload.
func NewStatusEvent(message string) PluginEvent {
	return PluginEvent{Type: PluginEventStatus, Payload: map[string]interface{}{"message": message}}
}

// NewDataEvent builds a data event carrying discovered fields.
func NewDataEvent(payload map[string]interface{}) PluginEvent {
	return PluginEvent{Type: PluginEventData, Payload: payload}
}

// NewCompleteEvent builds a terminal complete event with an optional summary.
func NewCompleteEvent(summary map[string]interface{}) PluginEvent {
	return PluginEvent{Type: PluginEventComplete, Payload: summary}
}

// NewErrorEvent builds a terminal error event with a human-readable message.
func NewErrorEvent(message string) PluginEvent {
	return PluginEvent{Type: PluginEventError, Payload: map[string]interface{}{"message": message}}
}

// UpdateKind classifies updates pushed to execution observers.
type UpdateKind string

const (
	UpdateKindSnapshot  UpdateKind = "snapshot"
	UpdateKindExecution UpdateKind = "execution"
	UpdateKindStep      UpdateKind = "step"
	UpdateKindStatus    UpdateKind = "status"
	UpdateKindTerminal  UpdateKind = "terminal"
)

// StatusLine is an ephemeral progress/log line relayed from a plugin's
// status events. Only the most recent lines are retained for replay.
type StatusLine struct {
	StepID    string    `json:"step_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionUpdate is one element of an observer's update stream. A new
// subscriber always receives a snapshot update (current execution state plus
// recent status lines) before any delta.
type ExecutionUpdate struct {
	Kind         UpdateKind      `json:"kind"`
	ExecutionID  string          `json:"execution_id"`
	Execution    *HuntExecution  `json:"execution,omitempty"`
	StepID       string          `json:"step_id,omitempty"`
	StepStatus   StepStatus      `json:"step_status,omitempty"`
	StatusLine   *StatusLine     `json:"status_line,omitempty"`
	RecentStatus []StatusLine    `json:"recent_status,omitempty"`
	Status       ExecutionStatus `json:"status,omitempty"`
	Progress     float64         `json:"progress"`
	Timestamp    time.Time       `json:"timestamp"`
}
