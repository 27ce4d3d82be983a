package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		k.Lock("a", "b")()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

func TestKeyedMutex_DisjointKeysDoNotBlock(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	defer unlock()

	done := make(chan struct{})
	go func() {
		k.Lock("b", "", "b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disjoint key blocked")
	}
}

func TestKeyedMutex_OverlappingSetsDoNotDeadlock(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := k.Lock("x", "y")
			counter++
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := k.Lock("y", "x")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 100, counter)
}
