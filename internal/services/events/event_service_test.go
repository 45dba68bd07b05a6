package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

func TestSubscribeRequiresHandler(t *testing.T) {
	svc := NewService(common.GetLogger())
	assert.Error(t, svc.Subscribe(interfaces.EventExecutionUpdate, nil))
}

func TestPublishSyncDeliversToAllHandlers(t *testing.T) {
	svc := NewService(common.GetLogger())

	var mu sync.Mutex
	received := 0
	handler := func(ctx context.Context, event interfaces.Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventStepUpdate, handler))
	require.NoError(t, svc.Subscribe(interfaces.EventStepUpdate, handler))

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventStepUpdate}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, received)
}

func TestPublishSyncReportsHandlerErrors(t *testing.T) {
	svc := NewService(common.GetLogger())
	require.NoError(t, svc.Subscribe(interfaces.EventStatusLine, func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("handler broke")
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventStatusLine})
	assert.Error(t, err)
}

func TestPublishIsAsync(t *testing.T) {
	svc := NewService(common.GetLogger())

	done := make(chan struct{})
	require.NoError(t, svc.Subscribe(interfaces.EventExecutionUpdate, func(ctx context.Context, event interfaces.Event) error {
		close(done)
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventExecutionUpdate}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestPublishToUnsubscribedTypeIsNoop(t *testing.T) {
	svc := NewService(common.GetLogger())
	assert.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventStepUpdate}))
}

func TestCloseDropsSubscribers(t *testing.T) {
	svc := NewService(common.GetLogger())
	called := false
	require.NoError(t, svc.Subscribe(interfaces.EventStepUpdate, func(ctx context.Context, event interfaces.Event) error {
		called = true
		return nil
	}))

	require.NoError(t, svc.Close())
	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventStepUpdate}))
	assert.False(t, called)
}
