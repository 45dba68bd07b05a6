// -----------------------------------------------------------------------
// Progress Broadcaster - Subscription registry for execution observers
// -----------------------------------------------------------------------

package hunts

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// SnapshotFunc supplies the current execution snapshot for new subscribers.
type SnapshotFunc func(executionID string) (*models.HuntExecution, error)

// Broadcaster manages execution subscriptions and pushes updates to
// observers. Delivery is best-effort at-most-once: a slow subscriber drops
// updates rather than blocking the engine. A bounded ring of recent status
// lines per execution is replayed to late subscribers inside their snapshot.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[string]map[string]chan models.ExecutionUpdate // executionID -> subID -> channel
	subExec  map[string]string                                 // subID -> executionID
	rings    map[string][]models.StatusLine
	limiters map[string]*rate.Limiter

	snapshotFn SnapshotFunc
	bufferSize int
	ringSize   int
	throttle   time.Duration
	logger     arbor.ILogger
}

// NewBroadcaster creates a subscription registry.
func NewBroadcaster(snapshotFn SnapshotFunc, cfg *common.HuntsConfig, logger arbor.ILogger) *Broadcaster {
	return &Broadcaster{
		subs:       make(map[string]map[string]chan models.ExecutionUpdate),
		subExec:    make(map[string]string),
		rings:      make(map[string][]models.StatusLine),
		limiters:   make(map[string]*rate.Limiter),
		snapshotFn: snapshotFn,
		bufferSize: cfg.SubscriberBuffer,
		ringSize:   cfg.StatusRingSize,
		throttle:   cfg.StatusThrottleDuration(),
		logger:     logger,
	}
}

// Subscribe registers an observer for one execution. The subscriber's first
// update is always a snapshot of current execution state plus the recent
// status ring, so a late subscriber is never starved of context and never
// receives events older than its snapshot.
func (b *Broadcaster) Subscribe(executionID string) (*interfaces.Subscription, error) {
	snapshot, err := b.snapshotFn(executionID)
	if err != nil {
		return nil, fmt.Errorf("cannot subscribe: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subID := common.NewSubscriptionID()
	ch := make(chan models.ExecutionUpdate, b.bufferSize)

	if b.subs[executionID] == nil {
		b.subs[executionID] = make(map[string]chan models.ExecutionUpdate)
	}
	b.subs[executionID][subID] = ch
	b.subExec[subID] = executionID

	recent := make([]models.StatusLine, len(b.rings[executionID]))
	copy(recent, b.rings[executionID])

	// The channel is fresh and buffered, so the snapshot always fits.
	ch <- models.ExecutionUpdate{
		Kind:         models.UpdateKindSnapshot,
		ExecutionID:  executionID,
		Execution:    snapshot,
		RecentStatus: recent,
		Status:       snapshot.Status,
		Progress:     snapshot.Progress,
		Timestamp:    time.Now(),
	}

	b.logger.Debug().
		Str("execution_id", executionID).
		Str("subscription_id", subID).
		Int("subscriber_count", len(b.subs[executionID])).
		Msg("Observer subscribed")

	return &interfaces.Subscription{
		ID:          subID,
		ExecutionID: executionID,
		Updates:     ch,
	}, nil
}

// Unsubscribe removes an observer and closes its channel.
func (b *Broadcaster) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	executionID, ok := b.subExec[subscriptionID]
	if !ok {
		return
	}
	delete(b.subExec, subscriptionID)

	if chans, ok := b.subs[executionID]; ok {
		if ch, ok := chans[subscriptionID]; ok {
			delete(chans, subscriptionID)
			close(ch)
		}
		if len(chans) == 0 {
			delete(b.subs, executionID)
		}
	}
}

// Publish pushes an update to all current subscribers of an execution.
// Full subscriber buffers drop the update for that subscriber only.
func (b *Broadcaster) Publish(executionID string, update models.ExecutionUpdate) {
	update.ExecutionID = executionID
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subs[executionID] {
		select {
		case ch <- update:
		default:
			b.logger.Debug().
				Str("execution_id", executionID).
				Str("subscription_id", subID).
				Str("kind", string(update.Kind)).
				Msg("Subscriber buffer full, update dropped")
		}
	}
}

// PublishStatusLine records a relayed plugin status line in the execution's
// bounded ring and broadcasts it, throttled so chatty plugins cannot flood
// observers. Ring recording is never throttled.
func (b *Broadcaster) PublishStatusLine(executionID string, line models.StatusLine) {
	b.mu.Lock()
	ring := append(b.rings[executionID], line)
	if len(ring) > b.ringSize {
		ring = ring[len(ring)-b.ringSize:]
	}
	b.rings[executionID] = ring

	limiter, ok := b.limiters[executionID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(b.throttle), 1)
		b.limiters[executionID] = limiter
	}
	b.mu.Unlock()

	if !limiter.Allow() {
		return
	}

	b.Publish(executionID, models.ExecutionUpdate{
		Kind:       models.UpdateKindStatus,
		StepID:     line.StepID,
		StatusLine: &line,
		Timestamp:  line.Timestamp,
	})
}

// Retire closes every subscriber channel for a terminal execution and drops
// its ring. Callers publish the final terminal update first.
func (b *Broadcaster) Retire(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subs[executionID] {
		delete(b.subExec, subID)
		close(ch)
	}
	delete(b.subs, executionID)
	delete(b.rings, executionID)
	delete(b.limiters, executionID)

	b.logger.Debug().Str("execution_id", executionID).Msg("Execution update channel retired")
}
