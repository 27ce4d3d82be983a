package engine

import (
	"sort"
	"sync"
)

// Lock keys shared between flows. Instance ids are used as keys directly.
const (
	lockSkuCatalog = "catalog:sku"
	lockPoCatalog  = "catalog:po"
	lockCellPool   = "pool:cells"
	lockSerials    = "serials:receipts"
)

func modulePoolLock(batchID string) string { return "pool:modules:" + batchID }

// keyedMutex serializes work per key. Entries are reference counted and
// dropped once nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires every key in sorted order, so two callers locking
// overlapping sets cannot deadlock. The returned func releases them all.
func (k *keyedMutex) Lock(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	held := make([]*keyedEntry, 0, len(sorted))
	for _, key := range sorted {
		k.mu.Lock()
		ent, ok := k.locks[key]
		if !ok {
			ent = &keyedEntry{}
			k.locks[key] = ent
		}
		ent.refs++
		k.mu.Unlock()

		ent.mu.Lock()
		held = append(held, ent)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			k.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, sorted[i])
			}
			k.mu.Unlock()
		}
	}
}
