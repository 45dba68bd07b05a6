package events

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// RegisterLoggerSubscriber wires an arbor logger onto execution and step
// update events so every transition is visible in the service log.
func RegisterLoggerSubscriber(eventService interfaces.EventService, logger arbor.ILogger) {
	eventService.Subscribe(interfaces.EventExecutionUpdate, func(ctx context.Context, event interfaces.Event) error {
		update, ok := event.Payload.(models.ExecutionUpdate)
		if !ok {
			return nil
		}
		logger.Info().
			Str("execution_id", update.ExecutionID).
			Str("status", string(update.Status)).
			Float64("progress", update.Progress).
			Msg("Execution update")
		return nil
	})

	eventService.Subscribe(interfaces.EventStepUpdate, func(ctx context.Context, event interfaces.Event) error {
		update, ok := event.Payload.(models.ExecutionUpdate)
		if !ok {
			return nil
		}
		logger.Info().
			Str("execution_id", update.ExecutionID).
			Str("step_id", update.StepID).
			Str("step_status", string(update.StepStatus)).
			Msg("Step update")
		return nil
	})
}
