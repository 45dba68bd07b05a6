package plugins

import (
	"context"

	"github.com/ternarybob/venator/internal/models"
)

// emit sends an event unless the context is already cancelled. Returns
// false when the consumer is gone and the adapter should stop producing.
func emit(ctx context.Context, out chan<- models.PluginEvent, event models.PluginEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// stringParam pulls a required string parameter out of resolved params.
func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
