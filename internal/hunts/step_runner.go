// -----------------------------------------------------------------------
// Step Runner - Drives one plugin invocation's event stream
// -----------------------------------------------------------------------

package hunts

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// stepOutcome is what a step runner reports back to the scheduler. The
// scheduler, not the runner, applies the resulting status transition.
type stepOutcome struct {
	Status       models.StepStatus
	ErrorDetails string
}

// StepRunner consumes a plugin adapter's event stream for exactly one step.
// It appends output and merges context data as events arrive; status fields
// stay untouched here (single-writer discipline lives in the engine).
type StepRunner struct {
	registry    interfaces.PluginRegistry
	store       *ContextStore
	broadcaster *Broadcaster
	events      interfaces.EventService
	cancelGrace time.Duration
	logger      arbor.ILogger
}

// NewStepRunner creates a step runner. cancelGrace bounds how long an
// adapter may keep its stream open after the cancel signal before the
// runner flags it.
func NewStepRunner(registry interfaces.PluginRegistry, store *ContextStore, broadcaster *Broadcaster, events interfaces.EventService, cancelGrace time.Duration, logger arbor.ILogger) *StepRunner {
	return &StepRunner{
		registry:    registry,
		store:       store,
		broadcaster: broadcaster,
		events:      events,
		cancelGrace: cancelGrace,
		logger:      logger,
	}
}

// Run invokes the step's plugin and consumes its stream until a terminal
// event, stream truncation, or cancellation. The consumer loop is the only
// blocking point and always selects over the cancel signal.
// watchDrain drains a cancelled step's stream and flags adapters that keep
// producing past the grace period. An adapter that never honors the signal
// leaks its goroutine; that risk is logged, not hidden.
func (r *StepRunner) watchDrain(executionID, stepID string, stream <-chan models.PluginEvent) {
	deadline := time.NewTimer(r.cancelGrace)
	defer deadline.Stop()

	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline.C:
			r.logger.Warn().
				Str("execution_id", executionID).
				Str("step_id", stepID).
				Dur("grace", r.cancelGrace).
				Msg("Plugin adapter did not stop within cancellation grace period")
			go func() {
				for range stream {
				}
			}()
			return
		}
	}
}

func (r *StepRunner) Run(ctx context.Context, executionID string, step models.StepDefinition, params map[string]interface{}) stepOutcome {
	adapter, err := r.registry.Resolve(step.Plugin)
	if err != nil {
		return stepOutcome{Status: models.StepStatusFailed, ErrorDetails: err.Error()}
	}

	stream, err := adapter.Invoke(ctx, params)
	if err != nil {
		return stepOutcome{Status: models.StepStatusFailed, ErrorDetails: fmt.Sprintf("plugin invocation failed: %v", err)}
	}

	for {
		select {
		case <-ctx.Done():
			// Cancelled before a terminal event arrived. The adapter stops
			// producing within its own grace period; no synthetic complete.
			go r.watchDrain(executionID, step.ID, stream)
			return stepOutcome{Status: models.StepStatusCancelled}

		case event, ok := <-stream:
			if !ok {
				return stepOutcome{
					Status:       models.StepStatusFailed,
					ErrorDetails: "stream truncated: plugin stream ended without a complete or error event",
				}
			}

			switch event.Type {
			case models.PluginEventStatus:
				line := models.StatusLine{
					StepID:    step.ID,
					Message:   event.StatusMessage(),
					Timestamp: time.Now(),
				}
				r.broadcaster.PublishStatusLine(executionID, line)
				r.events.Publish(context.Background(), interfaces.Event{
					Type: interfaces.EventStatusLine,
					Payload: models.ExecutionUpdate{
						Kind:        models.UpdateKindStatus,
						ExecutionID: executionID,
						StepID:      step.ID,
						StatusLine:  &line,
						Timestamp:   line.Timestamp,
					},
				})

			case models.PluginEventData:
				r.store.AppendStepOutput(executionID, step.ID, event.Payload)
				r.store.MergeStepData(executionID, step.ID, event.Payload)

			case models.PluginEventComplete:
				if len(event.Payload) > 0 {
					r.store.AppendStepOutput(executionID, step.ID, event.Payload)
				}
				return stepOutcome{Status: models.StepStatusCompleted}

			case models.PluginEventError:
				// Fail-fast: the stream is terminal the moment an error
				// event arrives, whatever the adapter does afterwards.
				return stepOutcome{Status: models.StepStatusFailed, ErrorDetails: event.ErrorMessage()}

			default:
				r.logger.Warn().
					Str("execution_id", executionID).
					Str("step_id", step.ID).
					Str("event_type", string(event.Type)).
					Msg("Ignoring unknown plugin event type")
			}
		}
	}
}
