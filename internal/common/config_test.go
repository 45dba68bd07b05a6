package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, 2, config.Hunts.MaxStepsPerExecution)
	assert.Equal(t, 8, config.Hunts.MaxRunningSteps)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	content := `
environment = "production"

[server]
port = 9090

[hunts]
max_steps_per_execution = 4
max_running_steps = 16
cancel_grace = "10s"
`
	path := filepath.Join(t.TempDir(), "venator.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 4, config.Hunts.MaxStepsPerExecution)
	assert.Equal(t, 10*time.Second, config.Hunts.CancelGraceDuration())
	// Defaults survive for unset fields.
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("VENATOR_PORT", "7001")
	t.Setenv("VENATOR_LOG_LEVEL", "debug")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7001, config.Server.Port)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := DefaultConfig()
	ApplyFlagOverrides(config, 7777, "0.0.0.0")
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero values leave config untouched.
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 7777, config.Server.Port)
}

func TestConfigValidation(t *testing.T) {
	config := DefaultConfig()
	config.Server.Port = -1
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Hunts.MaxStepsPerExecution = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Hunts.MaxRunningSteps = 1
	config.Hunts.MaxStepsPerExecution = 4
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Hunts.CancelGrace = "soon"
	assert.Error(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
