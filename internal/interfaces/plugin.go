package interfaces

import (
	"context"

	"github.com/ternarybob/venator/internal/models"
)

// PluginAdapter wraps a single investigation capability. Invoke returns a
// channel of typed events that the caller consumes incrementally; the
// adapter closes the channel when it stops producing. Adapters must observe
// ctx cancellation within a bounded grace period and must surface their own
// failures as error events, never as panics or silent stream ends.
//
// A stream that closes without a complete or error event is an anomaly the
// step runner treats as a failure ("stream truncated").
type PluginAdapter interface {
	// Name returns the plugin name used for registry lookup.
	Name() string

	// Invoke starts the capability with resolved parameters and returns its
	// event stream. A non-nil error means the invocation could not start at
	// all (no stream was produced).
	Invoke(ctx context.Context, params map[string]interface{}) (<-chan models.PluginEvent, error)
}

// PluginRegistry resolves plugin adapters by name. Adapters are registered
// once at startup; there is no runtime reflection.
type PluginRegistry interface {
	Register(adapter PluginAdapter) error
	Resolve(name string) (PluginAdapter, error)
	Names() []string
}
