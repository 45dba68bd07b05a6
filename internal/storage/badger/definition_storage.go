package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// DefinitionStorage implements the DefinitionStorage interface for Badger
type DefinitionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDefinitionStorage creates a new DefinitionStorage instance
func NewDefinitionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DefinitionStorage {
	return &DefinitionStorage{
		db:     db,
		logger: logger,
	}
}

// SaveDefinition validates and upserts a hunt definition. Definitions with
// dependency cycles are rejected here, before any execution can reference
// them.
func (s *DefinitionStorage) SaveDefinition(ctx context.Context, def *models.HuntDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	if err := s.db.Store().Upsert(def.ID, def); err != nil {
		return fmt.Errorf("failed to save hunt definition: %w", err)
	}
	return nil
}

func (s *DefinitionStorage) GetDefinition(ctx context.Context, id string) (*models.HuntDefinition, error) {
	var def models.HuntDefinition
	if err := s.db.Store().Get(id, &def); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("hunt definition not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get hunt definition: %w", err)
	}
	return &def, nil
}

func (s *DefinitionStorage) ListDefinitions(ctx context.Context) ([]*models.HuntDefinition, error) {
	var defs []models.HuntDefinition
	if err := s.db.Store().Find(&defs, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list hunt definitions: %w", err)
	}

	result := make([]*models.HuntDefinition, len(defs))
	for i := range defs {
		result[i] = &defs[i]
	}
	return result, nil
}

func (s *DefinitionStorage) DeleteDefinition(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.HuntDefinition{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("hunt definition not found: %s", id)
		}
		return fmt.Errorf("failed to delete hunt definition: %w", err)
	}
	return nil
}
