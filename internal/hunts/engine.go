// -----------------------------------------------------------------------
// Hunt Engine - Dependency scheduler and execution lifecycle
// -----------------------------------------------------------------------

package hunts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// transitionKind distinguishes the two messages a step goroutine reports.
type transitionKind int

const (
	stepStarted transitionKind = iota
	stepFinished
)

// stepTransition is a step runner's report to the scheduler loop. The loop
// is the only writer of execution and step state.
type stepTransition struct {
	stepID       string
	kind         transitionKind
	status       models.StepStatus
	errorDetails string
}

// Engine runs hunt executions: it resolves the step dependency graph,
// dispatches ready steps to step runners under per-execution and global
// concurrency bounds, applies every state transition, and drives the
// execution to its terminal status.
type Engine struct {
	store       *ContextStore
	definitions interfaces.DefinitionStorage
	registry    interfaces.PluginRegistry
	events      interfaces.EventService
	broadcaster *Broadcaster
	runner      *StepRunner
	logger      arbor.ILogger
	cfg         *common.HuntsConfig

	// globalSlots caps concurrently running steps across all executions.
	// It is the only shared mutable resource between executions.
	globalSlots *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewEngine wires the engine. The broadcaster must have been created with
// the store's Snapshot as its snapshot function.
func NewEngine(
	store *ContextStore,
	definitions interfaces.DefinitionStorage,
	registry interfaces.PluginRegistry,
	events interfaces.EventService,
	broadcaster *Broadcaster,
	cfg *common.HuntsConfig,
	logger arbor.ILogger,
) *Engine {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Engine{
		store:       store,
		definitions: definitions,
		registry:    registry,
		events:      events,
		broadcaster: broadcaster,
		runner:      NewStepRunner(registry, store, broadcaster, events, cfg.CancelGraceDuration(), logger),
		logger:      logger,
		cfg:         cfg,
		globalSlots: semaphore.NewWeighted(int64(cfg.MaxRunningSteps)),
		cancels:     make(map[string]context.CancelFunc),
		baseCtx:     baseCtx,
		baseCancel:  baseCancel,
	}
}

// StartExecution launches a new execution of a hunt definition against a
// case. The definition was validated (including acyclicity) at load time.
func (e *Engine) StartExecution(ctx context.Context, definitionID, caseID, userID string, initialParams map[string]interface{}) (string, error) {
	def, err := e.definitions.GetDefinition(ctx, definitionID)
	if err != nil {
		return "", err
	}
	if caseID == "" {
		return "", fmt.Errorf("case ID is required")
	}

	executionID := common.NewExecutionID()
	exec := models.NewHuntExecution(executionID, def, caseID, userID, initialParams)

	if err := e.store.Add(exec); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(e.baseCtx)
	e.mu.Lock()
	e.cancels[executionID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runExecution(runCtx, executionID, def)

	e.logger.Info().
		Str("execution_id", executionID).
		Str("definition_id", definitionID).
		Str("case_id", caseID).
		Str("user_id", userID).
		Int("steps", len(def.Steps)).
		Msg("Hunt execution started")

	return executionID, nil
}

// GetExecution returns a snapshot of an execution with its steps.
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*models.HuntExecution, error) {
	return e.store.Snapshot(executionID)
}

// ListExecutions returns execution snapshots matching the options. Live
// executions are persisted on every transition, so storage is current.
func (e *Engine) ListExecutions(ctx context.Context, opts *interfaces.ExecutionListOptions) ([]*models.HuntExecution, error) {
	return e.store.storage.ListExecutions(ctx, opts)
}

// RequestCancel cooperatively cancels an execution: it marks the execution
// cancel-requested and signals every currently-running step runner.
// Idempotent; cancelling a terminal execution is a no-op.
func (e *Engine) RequestCancel(ctx context.Context, executionID string) error {
	snapshot, err := e.store.Snapshot(executionID)
	if err != nil {
		return err
	}
	if snapshot.Status.IsTerminal() {
		return nil
	}

	if err := e.store.Mutate(executionID, func(exec *models.HuntExecution) {
		exec.CancelRequested = true
	}); err != nil {
		// Raced with finalization; the execution is already terminal.
		return nil
	}

	e.mu.Lock()
	cancel, ok := e.cancels[executionID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	e.logger.Info().Str("execution_id", executionID).Msg("Execution cancellation requested")
	return nil
}

// Shutdown cancels all running executions and waits for their scheduler
// loops to finish, bounded by ctx.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.baseCancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown timed out: %w", ctx.Err())
	}
}

// runExecution is the per-execution scheduler loop: the single writer of
// this execution's state. It dispatches ready steps, applies reported
// transitions, re-evaluates readiness after each one, and computes the
// terminal status once no step is pending or running.
func (e *Engine) runExecution(ctx context.Context, executionID string, def *models.HuntDefinition) {
	defer e.wg.Done()

	logger := e.logger.WithCorrelationId(executionID)

	if err := e.store.Mutate(executionID, func(exec *models.HuntExecution) {
		exec.MarkStarted()
	}); err != nil {
		logger.Error().Err(err).Msg("Cannot start execution")
		return
	}
	e.publishExecution(executionID, models.UpdateKindExecution)

	transitions := make(chan stepTransition)
	dispatched := make(map[string]bool, len(def.Steps))
	active := 0

	for {
		e.dispatchReady(ctx, executionID, def, dispatched, &active, transitions, logger)

		pending := e.countPending(executionID)
		if active == 0 {
			if pending == 0 {
				break
			}
			// Pending steps were skip/cancel-transitioned this pass;
			// re-evaluate the cascade.
			continue
		}

		t := <-transitions
		switch t.kind {
		case stepStarted:
			e.applyStepStarted(executionID, t.stepID, logger)
		case stepFinished:
			active--
			e.applyStepFinished(executionID, t, logger)
		}
	}

	e.finalize(executionID, logger)
}

// dispatchReady walks the step set until stable: cancel-requested pending
// steps become cancelled, steps with a failed/cancelled/skipped dependency
// become skipped (the cascade), and eligible steps are dispatched up to the
// per-execution bound.
func (e *Engine) dispatchReady(ctx context.Context, executionID string, def *models.HuntDefinition, dispatched map[string]bool, active *int, transitions chan stepTransition, logger arbor.ILogger) {
	for {
		var toLaunch []models.StepDefinition
		changed := false

		err := e.store.Mutate(executionID, func(exec *models.HuntExecution) {
			for _, stepDef := range def.Steps {
				step := exec.Step(stepDef.ID)
				if step == nil || step.Status != models.StepStatusPending || dispatched[stepDef.ID] {
					continue
				}

				if exec.CancelRequested {
					now := time.Now()
					step.Status = models.StepStatusCancelled
					step.CompletedAt = &now
					changed = true
					continue
				}

				ready, blocked := e.evaluateDeps(exec, stepDef)
				if blocked {
					now := time.Now()
					step.Status = models.StepStatusSkipped
					step.CompletedAt = &now
					changed = true
					continue
				}
				if ready && *active+len(toLaunch) < e.cfg.MaxStepsPerExecution {
					toLaunch = append(toLaunch, stepDef)
				}
			}
			if changed {
				exec.RecomputeProgress()
			}
		})
		if err != nil {
			logger.Error().Err(err).Msg("Dispatch pass failed")
			return
		}

		if changed {
			e.publishSkippedAndCancelled(executionID)
		}

		for _, stepDef := range toLaunch {
			if e.launchStep(ctx, executionID, stepDef, transitions, logger) {
				dispatched[stepDef.ID] = true
				*active++
			} else {
				// Dispatch-time failure; the failure may unblock the
				// skip cascade, so re-evaluate.
				changed = true
			}
		}

		if !changed {
			return
		}
	}
}

// evaluateDeps applies the readiness rule: a step is ready once every
// dependency is terminal and none is failed, cancelled, or skipped; any
// such dependency blocks the step permanently (skip cascade).
func (e *Engine) evaluateDeps(exec *models.HuntExecution, stepDef models.StepDefinition) (ready, blocked bool) {
	for _, depID := range stepDef.DependsOn {
		dep := exec.Step(depID)
		if dep == nil {
			return false, true
		}
		switch dep.Status {
		case models.StepStatusFailed, models.StepStatusCancelled, models.StepStatusSkipped:
			return false, true
		case models.StepStatusCompleted:
			// satisfied
		default:
			return false, false
		}
	}
	return true, false
}

// launchStep resolves the step's parameter template and starts its runner
// goroutine. Returns false when resolution fails, in which case the step is
// failed without the adapter ever being invoked.
func (e *Engine) launchStep(ctx context.Context, executionID string, stepDef models.StepDefinition, transitions chan stepTransition, logger arbor.ILogger) bool {
	initial, contextData, err := e.store.ResolutionView(executionID)
	if err != nil {
		logger.Error().Err(err).Str("step_id", stepDef.ID).Msg("Cannot resolve parameters")
		return false
	}

	params, err := ResolveParams(stepDef.Params, initial, contextData)
	if err != nil {
		now := time.Now()
		e.store.Mutate(executionID, func(exec *models.HuntExecution) {
			step := exec.Step(stepDef.ID)
			step.Status = models.StepStatusFailed
			step.ErrorDetails = err.Error()
			step.CompletedAt = &now
			exec.RecomputeProgress()
		})
		logger.Warn().Err(err).Str("step_id", stepDef.ID).Msg("Step failed at dispatch: unresolved parameters")
		e.publishStep(executionID, stepDef.ID, models.StepStatusFailed)
		return false
	}

	e.store.Mutate(executionID, func(exec *models.HuntExecution) {
		exec.Step(stepDef.ID).Params = params
	})

	go func() {
		// Global bound: acquired before the step runs, released on its
		// terminal state. Cancellation while waiting yields a cancelled
		// step, never a dispatched one.
		if err := e.globalSlots.Acquire(ctx, 1); err != nil {
			transitions <- stepTransition{stepID: stepDef.ID, kind: stepFinished, status: models.StepStatusCancelled}
			return
		}
		defer e.globalSlots.Release(1)

		transitions <- stepTransition{stepID: stepDef.ID, kind: stepStarted}

		outcome := e.runner.Run(ctx, executionID, stepDef, params)
		transitions <- stepTransition{
			stepID:       stepDef.ID,
			kind:         stepFinished,
			status:       outcome.Status,
			errorDetails: outcome.ErrorDetails,
		}
	}()

	return true
}

// applyStepStarted transitions a step to running.
func (e *Engine) applyStepStarted(executionID, stepID string, logger arbor.ILogger) {
	now := time.Now()
	e.store.Mutate(executionID, func(exec *models.HuntExecution) {
		step := exec.Step(stepID)
		step.Status = models.StepStatusRunning
		step.StartedAt = &now
	})
	logger.Debug().Str("step_id", stepID).Msg("Step running")
	e.publishStep(executionID, stepID, models.StepStatusRunning)
}

// applyStepFinished applies a step's terminal transition and recomputes
// progress.
func (e *Engine) applyStepFinished(executionID string, t stepTransition, logger arbor.ILogger) {
	now := time.Now()
	e.store.Mutate(executionID, func(exec *models.HuntExecution) {
		step := exec.Step(t.stepID)
		step.Status = t.status
		step.ErrorDetails = t.errorDetails
		if step.CompletedAt == nil {
			step.CompletedAt = &now
		}
		exec.RecomputeProgress()
	})

	event := logger.Info().Str("step_id", t.stepID).Str("status", string(t.status))
	if t.errorDetails != "" {
		event = event.Str("error", t.errorDetails)
	}
	event.Msg("Step finished")

	e.publishStep(executionID, t.stepID, t.status)
	e.publishExecution(executionID, models.UpdateKindExecution)
}

// countPending returns the number of steps still pending.
func (e *Engine) countPending(executionID string) int {
	snapshot, err := e.store.Snapshot(executionID)
	if err != nil {
		return 0
	}
	pending := 0
	for _, step := range snapshot.Steps {
		if step.Status == models.StepStatusPending {
			pending++
		}
	}
	return pending
}

// finalize computes the execution's terminal status, publishes the final
// update, and retires the execution's update channel. Terminal status is
// only ever computed here, after no step is pending or running.
func (e *Engine) finalize(executionID string, logger arbor.ILogger) {
	now := time.Now()
	var terminal models.ExecutionStatus
	e.store.Mutate(executionID, func(exec *models.HuntExecution) {
		terminal = exec.ComputeTerminalStatus()
		exec.Status = terminal
		exec.Progress = 1.0
		exec.CompletedAt = &now
	})

	logger.Info().Str("status", string(terminal)).Msg("Hunt execution finished")

	e.publishExecution(executionID, models.UpdateKindTerminal)
	e.broadcaster.Retire(executionID)

	e.mu.Lock()
	if cancel, ok := e.cancels[executionID]; ok {
		delete(e.cancels, executionID)
		cancel()
	}
	e.mu.Unlock()

	e.store.Release(executionID)
}

// publishExecution pushes an execution-level update (with full snapshot) to
// subscribers and the event bus.
func (e *Engine) publishExecution(executionID string, kind models.UpdateKind) {
	snapshot, err := e.store.Snapshot(executionID)
	if err != nil {
		return
	}
	update := models.ExecutionUpdate{
		Kind:        kind,
		ExecutionID: executionID,
		Execution:   snapshot,
		Status:      snapshot.Status,
		Progress:    snapshot.Progress,
		Timestamp:   time.Now(),
	}
	e.broadcaster.Publish(executionID, update)
	e.events.Publish(context.Background(), interfaces.Event{Type: interfaces.EventExecutionUpdate, Payload: update})
}

// publishStep pushes a step-level delta to subscribers and the event bus.
func (e *Engine) publishStep(executionID, stepID string, status models.StepStatus) {
	snapshot, err := e.store.Snapshot(executionID)
	if err != nil {
		return
	}
	update := models.ExecutionUpdate{
		Kind:        models.UpdateKindStep,
		ExecutionID: executionID,
		StepID:      stepID,
		StepStatus:  status,
		Status:      snapshot.Status,
		Progress:    snapshot.Progress,
		Timestamp:   time.Now(),
	}
	e.broadcaster.Publish(executionID, update)
	e.events.Publish(context.Background(), interfaces.Event{Type: interfaces.EventStepUpdate, Payload: update})
}

// publishSkippedAndCancelled emits step deltas for steps that were
// transitioned directly by a dispatch pass (skip cascade, cancel sweep).
func (e *Engine) publishSkippedAndCancelled(executionID string) {
	snapshot, err := e.store.Snapshot(executionID)
	if err != nil {
		return
	}
	for _, step := range snapshot.Steps {
		if step.Status == models.StepStatusSkipped || step.Status == models.StepStatusCancelled {
			if step.StartedAt == nil {
				e.publishStep(executionID, step.ID, step.Status)
			}
		}
	}
	e.publishExecution(executionID, models.UpdateKindExecution)
}
