package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// LoadDefinitionsFromFiles loads hunt definitions from TOML files in the
// specified directory. Invalid definitions (including dependency cycles) are
// rejected and logged, never stored.
func LoadDefinitionsFromFiles(ctx context.Context, defStorage interfaces.DefinitionStorage, definitionsDir string, logger arbor.ILogger) error {
	if _, err := os.Stat(definitionsDir); os.IsNotExist(err) {
		logger.Debug().Str("dir", definitionsDir).Msg("Hunt definitions directory does not exist, skipping")
		return nil
	}

	logger.Info().Str("dir", definitionsDir).Msg("Loading hunt definitions from files")

	entries, err := os.ReadDir(definitionsDir)
	if err != nil {
		return fmt.Errorf("failed to read hunt definitions directory: %w", err)
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}

		filePath := filepath.Join(definitionsDir, entry.Name())

		tomlBytes, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read hunt definition file")
			continue
		}

		var def models.HuntDefinition
		if err := toml.Unmarshal(tomlBytes, &def); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse hunt definition TOML")
			continue
		}

		// SaveDefinition validates, which includes the acyclicity check.
		if err := defStorage.SaveDefinition(ctx, &def); err != nil {
			if errors.Is(err, models.ErrDefinitionCycle) {
				logger.Error().Err(err).Str("file", entry.Name()).Str("definition_id", def.ID).Msg("Hunt definition rejected: dependency cycle")
			} else {
				logger.Warn().Err(err).Str("file", entry.Name()).Str("definition_id", def.ID).Msg("Hunt definition rejected")
			}
			continue
		}

		logger.Info().Str("file", entry.Name()).Str("definition_id", def.ID).Str("name", def.Name).Msg("Hunt definition loaded from file")
		loadedCount++
	}

	logger.Info().Int("count", loadedCount).Msg("Hunt definitions loaded")
	return nil
}
