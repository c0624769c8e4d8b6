package pubsub

import (
	"context"
	"sync"

	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/rs/zerolog"
)

// subscriptionBuffer is how many undelivered events a subscriber may lag
// behind before its stream starts dropping.
const subscriptionBuffer = 16

// SyncEventFilter narrows which reconciliation events a subscription
// receives. Zero values match everything.
type SyncEventFilter struct {
	OrganizationID string
	Providers      []domain.Provider
}

func (f *SyncEventFilter) matches(event *domain.SyncEvent) bool {
	if f == nil {
		return true
	}
	if f.OrganizationID != "" && event.OrganizationID != f.OrganizationID {
		return false
	}
	if len(f.Providers) == 0 {
		return true
	}
	for _, p := range f.Providers {
		if event.Provider == p {
			return true
		}
	}
	return false
}

// Subscription is one live event stream. Events is closed once the
// subscriber's context ends.
type Subscription struct {
	Events chan *domain.SyncEvent

	id     uint64
	filter *SyncEventFilter
}

// SyncPubSub fans reconciliation events out to streaming subscribers.
// Delivery is best-effort: a subscriber that stops draining loses events
// instead of stalling the sync path.
type SyncPubSub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	lastID uint64
	logger zerolog.Logger
}

// NewSyncPubSub creates an empty broadcaster.
func NewSyncPubSub(logger zerolog.Logger) *SyncPubSub {
	return &SyncPubSub{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a stream of events matching filter. The subscription
// lives until ctx ends; its Events channel is closed on removal.
func (ps *SyncPubSub) Subscribe(ctx context.Context, filter *SyncEventFilter) *Subscription {
	ps.mu.Lock()
	ps.lastID++
	sub := &Subscription{
		Events: make(chan *domain.SyncEvent, subscriptionBuffer),
		id:     ps.lastID,
		filter: filter,
	}
	ps.subs[sub.id] = sub
	ps.mu.Unlock()

	ps.logger.Debug().
		Uint64("subscriptionId", sub.id).
		Msg("Sync event subscription opened")

	go func() {
		<-ctx.Done()
		ps.remove(sub.id)
	}()

	return sub
}

// Publish hands event to every subscription whose filter matches. Sends
// never block: a full buffer drops the event for that subscriber only.
func (ps *SyncPubSub) Publish(event *domain.SyncEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, sub := range ps.subs {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.Events <- event:
		default:
			ps.logger.Warn().
				Uint64("subscriptionId", sub.id).
				Str("itemId", event.ItemID).
				Msg("Subscriber lagging, event dropped")
		}
	}
}

// remove closes the subscription's channel under the write lock so it can
// never race a concurrent Publish send.
func (ps *SyncPubSub) remove(id uint64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sub, ok := ps.subs[id]
	if !ok {
		return
	}
	delete(ps.subs, id)
	close(sub.Events)

	ps.logger.Debug().
		Uint64("subscriptionId", id).
		Msg("Sync event subscription closed")
}

var _ ports.SyncEventPublisher = (*SyncPubSub)(nil)
