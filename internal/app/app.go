// -----------------------------------------------------------------------
// App - Component wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/handlers"
	"github.com/ternarybob/venator/internal/hunts"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/plugins"
	"github.com/ternarybob/venator/internal/services/events"
	"github.com/ternarybob/venator/internal/services/scheduler"
	"github.com/ternarybob/venator/internal/storage"
	badgerstorage "github.com/ternarybob/venator/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService

	// Hunt execution
	PluginRegistry interfaces.PluginRegistry
	ContextStore   *hunts.ContextStore
	Broadcaster    *hunts.Broadcaster
	HuntEngine     *hunts.Engine
	Scheduler      *scheduler.Service

	// HTTP handlers
	HuntHandler       *handlers.HuntHandler
	DefinitionHandler *handlers.DefinitionHandler
	StatusHandler     *handlers.StatusHandler
	WSHandler         *handlers.WebSocketHandler
}

// New builds and wires the application. Storage is opened, hunt definitions
// are loaded from the definitions directory, builtin plugins are registered,
// and the scheduler is started.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	if config.Hunts.DefinitionsDir != "" {
		if err := badgerstorage.LoadDefinitionsFromFiles(ctx, storageManager.DefinitionStorage(), config.Hunts.DefinitionsDir, logger); err != nil {
			logger.Warn().Err(err).Str("dir", config.Hunts.DefinitionsDir).Msg("Definition directory scan failed")
		}
	}

	a.EventService = events.NewService(logger)
	events.RegisterLoggerSubscriber(a.EventService, logger)

	registry := plugins.NewRegistry()
	for _, adapter := range []interfaces.PluginAdapter{
		plugins.NewDNSLookupAdapter(),
		plugins.NewHTTPMetaAdapter(),
	} {
		if err := registry.Register(adapter); err != nil {
			return nil, fmt.Errorf("failed to register builtin plugin: %w", err)
		}
	}
	a.PluginRegistry = registry

	a.ContextStore = hunts.NewContextStore(storageManager.ExecutionStorage(), logger)
	a.Broadcaster = hunts.NewBroadcaster(a.ContextStore.Snapshot, &config.Hunts, logger)
	a.HuntEngine = hunts.NewEngine(
		a.ContextStore,
		storageManager.DefinitionStorage(),
		registry,
		a.EventService,
		a.Broadcaster,
		&config.Hunts,
		logger,
	)

	a.Scheduler = scheduler.NewService(storageManager.DefinitionStorage(), a.HuntEngine, logger)
	if err := a.Scheduler.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.HuntHandler = handlers.NewHuntHandler(a.HuntEngine, logger)
	a.DefinitionHandler = handlers.NewDefinitionHandler(storageManager.DefinitionStorage(), logger)
	a.StatusHandler = handlers.NewStatusHandler(registry.Names)
	a.WSHandler = handlers.NewWebSocketHandler(a.Broadcaster, logger)

	logger.Info().
		Str("environment", config.Environment).
		Int("plugins", len(registry.Names())).
		Msg("Application initialized")

	return a, nil
}

// Close shuts components down in reverse dependency order. Running
// executions get a grace period to cancel cleanly.
func (a *App) Close() error {
	a.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.HuntEngine.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn().Err(err).Msg("Hunt engine shutdown incomplete")
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service close failed")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
