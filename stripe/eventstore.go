package stripe

import (
	"context"
	"sync"
	"time"
)

// EventStore keeps the ids of processed webhook events for a limited time so
// Stripe redeliveries are acknowledged without being handled twice.
type EventStore interface {
	EventExists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	Close() error
}

// MemoryEventStore is a simple in-memory implementation of EventStore. It is
// local to the process, use RedisEventStore when several replicas receive
// webhooks.
type MemoryEventStore struct {
	events map[string]time.Time
	mutex  sync.RWMutex
	ttl    time.Duration
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryEventStore creates a new in-memory event store
func NewMemoryEventStore(ttl time.Duration) *MemoryEventStore {
	if ttl == 0 {
		ttl = defaultEventTTL
	}
	store := &MemoryEventStore{
		events: make(map[string]time.Time),
		ttl:    ttl,
		stop:   make(chan struct{}),
	}
	go store.cleanup(min(ttl, time.Hour))
	return store
}

// EventExists checks if an event has already been processed
func (m *MemoryEventStore) EventExists(_ context.Context, eventID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	processedAt, exists := m.events[eventID]
	return exists && time.Since(processedAt) <= m.ttl, nil
}

// MarkProcessed marks an event as processed
func (m *MemoryEventStore) MarkProcessed(_ context.Context, eventID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.events[eventID] = time.Now()
	return nil
}

// Close stops the cleanup goroutine.
func (m *MemoryEventStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

// cleanup removes expired events periodically
func (m *MemoryEventStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.purge()
		}
	}
}

func (m *MemoryEventStore) purge() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := time.Now()
	for eventID, timestamp := range m.events {
		if now.Sub(timestamp) > m.ttl {
			delete(m.events, eventID)
		}
	}
}

// Size returns the number of stored events (for monitoring/debugging)
func (m *MemoryEventStore) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.events)
}
