package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// ExecutionStorage implements the ExecutionStorage interface for Badger.
// Executions embed their ordered step records as a single document.
type ExecutionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewExecutionStorage creates a new ExecutionStorage instance
func NewExecutionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ExecutionStorage {
	return &ExecutionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ExecutionStorage) SaveExecution(ctx context.Context, exec *models.HuntExecution) error {
	if exec.ID == "" {
		return fmt.Errorf("execution ID is required")
	}
	if err := s.db.Store().Upsert(exec.ID, exec); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

func (s *ExecutionStorage) GetExecution(ctx context.Context, id string) (*models.HuntExecution, error) {
	var exec models.HuntExecution
	if err := s.db.Store().Get(id, &exec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("execution not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return &exec, nil
}

func (s *ExecutionStorage) ListExecutions(ctx context.Context, opts *interfaces.ExecutionListOptions) ([]*models.HuntExecution, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(models.ExecutionStatus(opts.Status))
		}
		if opts.CaseID != "" {
			query = query.And("CaseID").Eq(opts.CaseID)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}

	query = query.SortBy("CreatedAt").Reverse()

	var execs []models.HuntExecution
	if err := s.db.Store().Find(&execs, query); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	result := make([]*models.HuntExecution, len(execs))
	for i := range execs {
		result[i] = &execs[i]
	}
	return result, nil
}

func (s *ExecutionStorage) DeleteExecution(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.HuntExecution{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("execution not found: %s", id)
		}
		return fmt.Errorf("failed to delete execution: %w", err)
	}
	return nil
}
