package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/petrijr/packflow/pkg/api"
)

// MemoryStore is a goroutine-safe FlowStore backed by a map. Instances are
// cloned on the way in and out so callers never share memory with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]api.Instance
	version   int64
	updatedAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instances: make(map[string]api.Instance),
	}
}

var _ FlowStore = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context, instanceID string) (api.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return inst.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, flow api.FlowID) ([]api.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []api.Instance
	for _, inst := range s.instances {
		if matchesFlow(flow, inst) {
			result = append(result, inst.Clone())
		}
	}
	sortInstances(result)
	return result, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, inst api.Instance) error {
	if err := checkInstance(inst); err != nil {
		return err
	}
	m := inst.Meta()

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if cur, ok := s.instances[m.InstanceID]; ok {
		stored = cur.Meta().Revision
	}
	if err := checkRevision(m.InstanceID, stored, m.Revision); err != nil {
		return err
	}

	c := inst.Clone()
	c.Meta().FlowID = c.Flow()
	s.instances[m.InstanceID] = c
	s.bump(writeTime(inst))
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[instanceID]; !ok {
		return ErrInstanceNotFound
	}
	delete(s.instances, instanceID)
	s.bump(time.Now().UTC())
	return nil
}

func (s *MemoryStore) Version(ctx context.Context) (api.StoreVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return api.StoreVersion{Version: s.version, UpdatedAt: s.updatedAt}, nil
}

// bump must be called with s.mu held.
func (s *MemoryStore) bump(at time.Time) {
	s.version++
	s.updatedAt = at
}
