// -----------------------------------------------------------------------
// Context Store - Owns live execution records and the context bag
// -----------------------------------------------------------------------

package hunts

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// ContextStore owns the in-flight HuntExecution records and their context
// data. All mutation goes through Mutate under a single lock; observers only
// ever receive deep-copied snapshots. Every mutation is persisted so a
// restart can still serve historical executions from storage.
type ContextStore struct {
	mu         sync.RWMutex
	executions map[string]*models.HuntExecution
	storage    interfaces.ExecutionStorage
	logger     arbor.ILogger
}

// NewContextStore creates a context store backed by the given storage.
func NewContextStore(storage interfaces.ExecutionStorage, logger arbor.ILogger) *ContextStore {
	return &ContextStore{
		executions: make(map[string]*models.HuntExecution),
		storage:    storage,
		logger:     logger,
	}
}

// Add registers a new execution and persists its initial state.
func (s *ContextStore) Add(exec *models.HuntExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[exec.ID]; exists {
		return fmt.Errorf("execution already tracked: %s", exec.ID)
	}
	s.executions[exec.ID] = exec
	s.persist(exec)
	return nil
}

// Snapshot returns a deep copy of an execution, falling back to storage for
// executions no longer live (completed before this process, or released).
func (s *ContextStore) Snapshot(executionID string) (*models.HuntExecution, error) {
	s.mu.RLock()
	exec, ok := s.executions[executionID]
	if ok {
		defer s.mu.RUnlock()
		return exec.Clone(), nil
	}
	s.mu.RUnlock()

	return s.storage.GetExecution(context.Background(), executionID)
}

// Mutate applies fn to the live execution under the store lock and persists
// the result. Only the engine calls this; it is the single-writer discipline
// for execution and step state.
func (s *ContextStore) Mutate(executionID string, fn func(*models.HuntExecution)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[executionID]
	if !ok {
		return fmt.Errorf("execution not active: %s", executionID)
	}
	fn(exec)
	s.persist(exec)
	return nil
}

// AppendStepOutput appends a data-event payload to a step's output, order
// preserved.
func (s *ContextStore) AppendStepOutput(executionID, stepID string, payload map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[executionID]
	if !ok {
		return
	}
	step := exec.Step(stepID)
	if step == nil {
		return
	}
	step.Output = append(step.Output, payload)
	s.persist(exec)
}

// MergeStepData merges a data-event payload into the execution's context
// bag under namespaced keys ("<stepID>.<field>"). The merge is additive:
// a data event never deletes prior context. Namespacing keeps concurrent
// steps writing disjoint keys.
func (s *ContextStore) MergeStepData(executionID, stepID string, payload map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[executionID]
	if !ok {
		return
	}
	if exec.ContextData == nil {
		exec.ContextData = make(map[string]interface{})
	}
	for field, value := range payload {
		exec.ContextData[stepID+"."+field] = value
	}
	s.persist(exec)
}

// ResolutionView returns copies of the initial parameters and context data
// for dispatch-time parameter resolution.
func (s *ContextStore) ResolutionView(executionID string) (initial, contextData map[string]interface{}, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[executionID]
	if !ok {
		return nil, nil, fmt.Errorf("execution not active: %s", executionID)
	}

	initial = make(map[string]interface{}, len(exec.InitialParams))
	for k, v := range exec.InitialParams {
		initial[k] = v
	}
	contextData = make(map[string]interface{}, len(exec.ContextData))
	for k, v := range exec.ContextData {
		contextData[k] = v
	}
	return initial, contextData, nil
}

// Release drops a terminal execution from the live map. Reads keep working
// through the storage fallback.
func (s *ContextStore) Release(executionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executions, executionID)
}

// persist writes through to storage; callers hold the lock. Persistence
// failures are logged, not propagated - the live record stays authoritative
// for the duration of the run.
func (s *ContextStore) persist(exec *models.HuntExecution) {
	if err := s.storage.SaveExecution(context.Background(), exec); err != nil {
		s.logger.Warn().Err(err).Str("execution_id", exec.ID).Msg("Failed to persist execution")
	}
}
