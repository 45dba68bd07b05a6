package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *HuntDefinition {
	return &HuntDefinition{
		ID:   "domain-recon",
		Name: "Domain Recon",
		Steps: []StepDefinition{
			{ID: "dns", Plugin: "dns_lookup", Params: map[string]string{"domain": "${domain}"}},
			{ID: "meta", Plugin: "http_meta", Params: map[string]string{"url": "${domain}"}, DependsOn: []string{"dns"}},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Run("valid definition passes", func(t *testing.T) {
		require.NoError(t, validDefinition().Validate())
	})

	t.Run("missing name fails", func(t *testing.T) {
		def := validDefinition()
		def.Name = ""
		assert.Error(t, def.Validate())
	})

	t.Run("no steps fails", func(t *testing.T) {
		def := validDefinition()
		def.Steps = nil
		assert.Error(t, def.Validate())
	})

	t.Run("duplicate step id fails", func(t *testing.T) {
		def := validDefinition()
		def.Steps = append(def.Steps, StepDefinition{ID: "dns", Plugin: "dns_lookup"})
		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate step id")
	})

	t.Run("unknown dependency fails", func(t *testing.T) {
		def := validDefinition()
		def.Steps[1].DependsOn = []string{"nonexistent"}
		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown step")
	})

	t.Run("invalid cron schedule fails", func(t *testing.T) {
		def := validDefinition()
		def.Schedule = "not a cron expression"
		assert.Error(t, def.Validate())
	})

	t.Run("valid cron schedule passes", func(t *testing.T) {
		def := validDefinition()
		def.Schedule = "0 6 * * *"
		assert.NoError(t, def.Validate())
	})
}

func TestDefinitionCycleDetection(t *testing.T) {
	t.Run("self dependency is a cycle", func(t *testing.T) {
		def := validDefinition()
		def.Steps[0].DependsOn = []string{"dns"}
		err := def.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDefinitionCycle))
	})

	t.Run("two step cycle is rejected", func(t *testing.T) {
		def := &HuntDefinition{
			ID:   "cyclic",
			Name: "Cyclic",
			Steps: []StepDefinition{
				{ID: "a", Plugin: "dns_lookup", DependsOn: []string{"b"}},
				{ID: "b", Plugin: "dns_lookup", DependsOn: []string{"a"}},
			},
		}
		err := def.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDefinitionCycle))
	})

	t.Run("longer cycle through a chain is rejected", func(t *testing.T) {
		def := &HuntDefinition{
			ID:   "cyclic-chain",
			Name: "Cyclic Chain",
			Steps: []StepDefinition{
				{ID: "a", Plugin: "dns_lookup", DependsOn: []string{"c"}},
				{ID: "b", Plugin: "dns_lookup", DependsOn: []string{"a"}},
				{ID: "c", Plugin: "dns_lookup", DependsOn: []string{"b"}},
			},
		}
		err := def.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDefinitionCycle))
	})

	t.Run("diamond graph is acyclic", func(t *testing.T) {
		def := &HuntDefinition{
			ID:   "diamond",
			Name: "Diamond",
			Steps: []StepDefinition{
				{ID: "root", Plugin: "dns_lookup"},
				{ID: "left", Plugin: "dns_lookup", DependsOn: []string{"root"}},
				{ID: "right", Plugin: "dns_lookup", DependsOn: []string{"root"}},
				{ID: "join", Plugin: "dns_lookup", DependsOn: []string{"left", "right"}},
			},
		}
		assert.NoError(t, def.Validate())
	})
}

func TestDefinitionStepAccessor(t *testing.T) {
	def := validDefinition()
	require.NotNil(t, def.Step("dns"))
	assert.Equal(t, "dns_lookup", def.Step("dns").Plugin)
	assert.Nil(t, def.Step("missing"))
}
