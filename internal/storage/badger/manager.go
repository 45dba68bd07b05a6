package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

// Manager implements interfaces.StorageManager backed by a single BadgerDB
type Manager struct {
	db          *BadgerDB
	definitions interfaces.DefinitionStorage
	executions  interfaces.ExecutionStorage
	logger      arbor.ILogger
}

// NewManager opens the database and wires the typed stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:          db,
		definitions: NewDefinitionStorage(db, logger),
		executions:  NewExecutionStorage(db, logger),
		logger:      logger,
	}, nil
}

func (m *Manager) DefinitionStorage() interfaces.DefinitionStorage {
	return m.definitions
}

func (m *Manager) ExecutionStorage() interfaces.ExecutionStorage {
	return m.executions
}

func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing storage manager")
	return m.db.Close()
}
