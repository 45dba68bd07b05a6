package badger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "badger"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testDefinition(id string) *models.HuntDefinition {
	return &models.HuntDefinition{
		ID:   id,
		Name: "Definition " + id,
		Steps: []models.StepDefinition{
			{ID: "dns", Plugin: "dns_lookup", Params: map[string]string{"domain": "${domain}"}},
			{ID: "meta", Plugin: "http_meta", Params: map[string]string{"url": "${dns.cname}"}, DependsOn: []string{"dns"}},
		},
	}
}

func TestDefinitionStorageRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewDefinitionStorage(db, common.GetLogger())
	ctx := context.Background()

	def := testDefinition("recon")
	require.NoError(t, store.SaveDefinition(ctx, def))
	assert.False(t, def.CreatedAt.IsZero())

	loaded, err := store.GetDefinition(ctx, "recon")
	require.NoError(t, err)
	assert.Equal(t, def.Name, loaded.Name)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, []string{"dns"}, loaded.Steps[1].DependsOn)

	defs, err := store.ListDefinitions(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	require.NoError(t, store.DeleteDefinition(ctx, "recon"))
	_, err = store.GetDefinition(ctx, "recon")
	assert.Error(t, err)
}

func TestDefinitionStorageRejectsCycles(t *testing.T) {
	db := newTestDB(t)
	store := NewDefinitionStorage(db, common.GetLogger())
	ctx := context.Background()

	def := &models.HuntDefinition{
		ID:   "cyclic",
		Name: "Cyclic",
		Steps: []models.StepDefinition{
			{ID: "a", Plugin: "p", DependsOn: []string{"b"}},
			{ID: "b", Plugin: "p", DependsOn: []string{"a"}},
		},
	}
	err := store.SaveDefinition(ctx, def)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDefinitionCycle))

	// The rejected definition was never stored.
	_, err = store.GetDefinition(ctx, "cyclic")
	assert.Error(t, err)
}

func TestExecutionStorageRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStorage(db, common.GetLogger())
	ctx := context.Background()

	def := testDefinition("recon")
	exec := models.NewHuntExecution("exec_1", def, "case-7", "analyst", map[string]interface{}{"domain": "example.com"})
	exec.Steps[0].Status = models.StepStatusCompleted
	exec.Steps[0].Output = []map[string]interface{}{{"ip": "10.0.0.1"}}
	exec.ContextData["dns.ip"] = "10.0.0.1"

	require.NoError(t, store.SaveExecution(ctx, exec))

	loaded, err := store.GetExecution(ctx, "exec_1")
	require.NoError(t, err)
	assert.Equal(t, "case-7", loaded.CaseID)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, models.StepStatusCompleted, loaded.Steps[0].Status)
	assert.Equal(t, "10.0.0.1", loaded.ContextData["dns.ip"])
}

func TestExecutionStorageListFilters(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStorage(db, common.GetLogger())
	ctx := context.Background()
	def := testDefinition("recon")

	makeExec := func(id, caseID string, status models.ExecutionStatus, age time.Duration) {
		exec := models.NewHuntExecution(id, def, caseID, "", nil)
		exec.Status = status
		exec.CreatedAt = time.Now().Add(-age)
		require.NoError(t, store.SaveExecution(ctx, exec))
	}

	makeExec("exec_a", "case-1", models.ExecutionStatusCompleted, 3*time.Hour)
	makeExec("exec_b", "case-1", models.ExecutionStatusRunning, 2*time.Hour)
	makeExec("exec_c", "case-2", models.ExecutionStatusCompleted, time.Hour)

	all, err := store.ListExecutions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "exec_c", all[0].ID)

	byCase, err := store.ListExecutions(ctx, &interfaces.ExecutionListOptions{CaseID: "case-1"})
	require.NoError(t, err)
	assert.Len(t, byCase, 2)

	byStatus, err := store.ListExecutions(ctx, &interfaces.ExecutionListOptions{Status: "running"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "exec_b", byStatus[0].ID)

	paged, err := store.ListExecutions(ctx, &interfaces.ExecutionListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "exec_b", paged[0].ID)
}

func TestExecutionStorageMissingID(t *testing.T) {
	db := newTestDB(t)
	store := NewExecutionStorage(db, common.GetLogger())
	assert.Error(t, store.SaveExecution(context.Background(), &models.HuntExecution{}))
}

func TestLoadDefinitionsFromFiles(t *testing.T) {
	db := newTestDB(t)
	store := NewDefinitionStorage(db, common.GetLogger())
	ctx := context.Background()
	dir := t.TempDir()

	valid := `
id = "domain-recon"
name = "Domain Recon"
category = "network"

[[steps]]
id = "dns"
plugin = "dns_lookup"
[steps.params]
domain = "${domain}"

[[steps]]
id = "meta"
plugin = "http_meta"
depends_on = ["dns"]
[steps.params]
url = "${dns.cname}"
`
	cyclic := `
id = "cyclic"
name = "Cyclic"

[[steps]]
id = "a"
plugin = "p"
depends_on = ["b"]

[[steps]]
id = "b"
plugin = "p"
depends_on = ["a"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recon.toml"), []byte(valid), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cyclic.toml"), []byte(cyclic), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	require.NoError(t, LoadDefinitionsFromFiles(ctx, store, dir, common.GetLogger()))

	defs, err := store.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "domain-recon", defs[0].ID)

	loaded, err := store.GetDefinition(ctx, "domain-recon")
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, "${domain}", loaded.Steps[0].Params["domain"])
}

func TestLoadDefinitionsMissingDir(t *testing.T) {
	db := newTestDB(t)
	store := NewDefinitionStorage(db, common.GetLogger())
	assert.NoError(t, LoadDefinitionsFromFiles(context.Background(), store, filepath.Join(t.TempDir(), "absent"), common.GetLogger()))
}
