package interfaces

import (
	"context"

	"github.com/ternarybob/venator/internal/models"
)

// HuntService is the surface the presentation layer consumes. The core does
// not authorize; caseID and userID arrive already authorized.
type HuntService interface {
	// StartExecution launches a new execution of a hunt definition against a
	// case and returns its execution ID.
	StartExecution(ctx context.Context, definitionID, caseID, userID string, initialParams map[string]interface{}) (string, error)

	// GetExecution returns a snapshot of an execution with its steps.
	GetExecution(ctx context.Context, executionID string) (*models.HuntExecution, error)

	// ListExecutions returns execution snapshots matching the options.
	ListExecutions(ctx context.Context, opts *ExecutionListOptions) ([]*models.HuntExecution, error)

	// RequestCancel cooperatively cancels an execution. Idempotent; a second
	// request on an already-cancelling execution is a no-op.
	RequestCancel(ctx context.Context, executionID string) error
}

// Subscription is an ephemeral observer registration for one execution.
// Updates is closed when the subscriber unsubscribes or the execution
// reaches a terminal state and the channel is retired.
type Subscription struct {
	ID          string
	ExecutionID string
	Updates     <-chan models.ExecutionUpdate
}

// SubscriptionService registers observers for execution updates. Delivery is
// best-effort at-most-once: slow subscribers drop updates rather than block
// the engine.
type SubscriptionService interface {
	Subscribe(executionID string) (*Subscription, error)
	Unsubscribe(subscriptionID string)
}
