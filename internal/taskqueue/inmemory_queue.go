package taskqueue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryQueue is a Queue held in process memory. Commands are ordered by
// NotBefore, then by arrival. It is safe for concurrent use.
type InMemoryQueue struct {
	mu      sync.Mutex
	pending []queued
	seq     uint64
	wake    chan struct{}
}

type queued struct {
	seq uint64
	cmd Command
}

// NewInMemoryQueue creates an empty queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{wake: make(chan struct{})}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, c Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	q.seq++
	q.pending = append(q.pending, queued{seq: q.seq, cmd: c})
	sort.SliceStable(q.pending, func(i, j int) bool {
		a, b := q.pending[i].cmd.NotBefore, q.pending[j].cmd.NotBefore
		if !a.Equal(b) {
			return a.Before(b)
		}
		return q.pending[i].seq < q.pending[j].seq
	})
	// Wake every waiting Dequeue; they re-check under the lock.
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
	return nil
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Command, error) {
	for {
		q.mu.Lock()
		wake := q.wake
		var wait time.Duration = -1
		if len(q.pending) > 0 {
			head := q.pending[0].cmd
			now := time.Now()
			if head.Ready(now) {
				q.pending = q.pending[1:]
				q.mu.Unlock()
				return &head, nil
			}
			wait = head.NotBefore.Sub(now)
		}
		q.mu.Unlock()

		var (
			t     *time.Timer
			timer <-chan time.Time
		)
		if wait >= 0 {
			t = time.NewTimer(wait)
			timer = t.C
		}
		select {
		case <-ctx.Done():
			err := ctx.Err()
			if t != nil {
				t.Stop()
			}
			return nil, err
		case <-wake:
		case <-timer:
		}
		if t != nil {
			t.Stop()
		}
	}
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
