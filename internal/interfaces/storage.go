package interfaces

import (
	"context"

	"github.com/ternarybob/venator/internal/models"
)

// ExecutionListOptions filters and pages execution listings.
type ExecutionListOptions struct {
	Status string
	CaseID string
	Limit  int
	Offset int
}

// DefinitionStorage persists hunt definitions.
type DefinitionStorage interface {
	SaveDefinition(ctx context.Context, def *models.HuntDefinition) error
	GetDefinition(ctx context.Context, id string) (*models.HuntDefinition, error)
	ListDefinitions(ctx context.Context) ([]*models.HuntDefinition, error)
	DeleteDefinition(ctx context.Context, id string) error
}

// ExecutionStorage persists hunt executions with their embedded steps.
type ExecutionStorage interface {
	SaveExecution(ctx context.Context, exec *models.HuntExecution) error
	GetExecution(ctx context.Context, id string) (*models.HuntExecution, error)
	ListExecutions(ctx context.Context, opts *ExecutionListOptions) ([]*models.HuntExecution, error)
	DeleteExecution(ctx context.Context, id string) error
}

// StorageManager owns the database connection and exposes typed stores.
type StorageManager interface {
	DefinitionStorage() DefinitionStorage
	ExecutionStorage() ExecutionStorage
	Close() error
}
