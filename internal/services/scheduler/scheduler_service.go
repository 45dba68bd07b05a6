// -----------------------------------------------------------------------
// Scheduler Service - Cron-driven launches of scheduled hunt definitions
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
)

// Service launches hunt executions on the cron schedules carried by hunt
// definitions. Definitions without a schedule or without a default case are
// never scheduled.
type Service struct {
	definitions interfaces.DefinitionStorage
	hunts       interfaces.HuntService
	logger      arbor.ILogger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID // definitionID -> entry
}

// NewService creates the scheduler.
func NewService(definitions interfaces.DefinitionStorage, hunts interfaces.HuntService, logger arbor.ILogger) *Service {
	return &Service{
		definitions: definitions,
		hunts:       hunts,
		logger:      logger,
		cron:        cron.New(),
		entries:     make(map[string]cron.EntryID),
	}
}

// Start registers every scheduled definition and starts the cron runner.
func (s *Service) Start(ctx context.Context) error {
	defs, err := s.definitions.ListDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list definitions for scheduling: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scheduled := 0
	for _, def := range defs {
		if def.Schedule == "" {
			continue
		}
		if def.DefaultCaseID == "" {
			s.logger.Warn().
				Str("definition_id", def.ID).
				Msg("Scheduled definition has no default case, skipping")
			continue
		}

		definitionID := def.ID
		caseID := def.DefaultCaseID
		entryID, err := s.cron.AddFunc(def.Schedule, func() {
			s.launch(definitionID, caseID)
		})
		if err != nil {
			s.logger.Warn().Err(err).
				Str("definition_id", def.ID).
				Str("schedule", def.Schedule).
				Msg("Invalid schedule, skipping")
			continue
		}
		s.entries[def.ID] = entryID
		scheduled++
	}

	s.cron.Start()
	s.logger.Info().Int("scheduled", scheduled).Msg("Hunt scheduler started")
	return nil
}

// Stop halts the cron runner and waits for in-flight launches.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("Hunt scheduler stopped")
}

func (s *Service) launch(definitionID, caseID string) {
	executionID, err := s.hunts.StartExecution(context.Background(), definitionID, caseID, "scheduler", nil)
	if err != nil {
		s.logger.Error().Err(err).
			Str("definition_id", definitionID).
			Msg("Scheduled execution failed to start")
		return
	}
	s.logger.Info().
		Str("definition_id", definitionID).
		Str("execution_id", executionID).
		Msg("Scheduled execution started")
}
