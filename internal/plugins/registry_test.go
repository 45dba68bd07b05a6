package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/models"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Invoke(ctx context.Context, params map[string]interface{}) (<-chan models.PluginEvent, error) {
	out := make(chan models.PluginEvent, 1)
	out <- models.NewCompleteEvent(nil)
	close(out)
	return out, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubAdapter{name: "alpha"}))
	require.NoError(t, r.Register(&stubAdapter{name: "beta"}))

	adapter, err := r.Resolve("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", adapter.Name())

	_, err = r.Resolve("gamma")
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubAdapter{name: "alpha"}))
	err := r.Register(&stubAdapter{name: "alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&stubAdapter{name: ""}))
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubAdapter{name: "zeta"}))
	require.NoError(t, r.Register(&stubAdapter{name: "alpha"}))
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}

func TestBuiltinAdapterNames(t *testing.T) {
	assert.Equal(t, "dns_lookup", NewDNSLookupAdapter().Name())
	assert.Equal(t, "http_meta", NewHTTPMetaAdapter().Name())
}

func TestDNSLookupRequiresDomain(t *testing.T) {
	a := NewDNSLookupAdapter()
	_, err := a.Invoke(context.Background(), map[string]interface{}{})
	assert.Error(t, err)

	_, err = a.Invoke(context.Background(), map[string]interface{}{"domain": 42})
	assert.Error(t, err)
}

func TestHTTPMetaRequiresURL(t *testing.T) {
	a := NewHTTPMetaAdapter()
	_, err := a.Invoke(context.Background(), map[string]interface{}{})
	assert.Error(t, err)
}
