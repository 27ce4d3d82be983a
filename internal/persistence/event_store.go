package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/packflow/pkg/api"
)

// EventStore is an append-only history store for flow events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.FlowEvent) error
	// ListEvents returns the events of one instance, oldest first.
	ListEvents(ctx context.Context, instanceID string) ([]api.FlowEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.FlowEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.FlowEvent, error) {
	return nil, nil
}

// MemoryEventStore keeps events in process memory.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]api.FlowEvent
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string][]api.FlowEvent)}
}

var _ EventStore = (*MemoryEventStore)(nil)

func (s *MemoryEventStore) AppendEvent(ctx context.Context, ev api.FlowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.InstanceID] = append(s.events[ev.InstanceID], ev)
	return nil
}

func (s *MemoryEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.FlowEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[instanceID]
	out := make([]api.FlowEvent, len(evs))
	copy(out, evs)
	return out, nil
}
