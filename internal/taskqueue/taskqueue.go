package taskqueue

import (
	"context"
	"time"

	"github.com/petrijr/packflow/pkg/api"
)

// Command is one engine operation waiting to be executed by a worker.
type Command struct {
	ID        string
	Flow      api.FlowID
	Operation string
	Actor     api.Actor

	// Body is the JSON request of the operation, without the actor.
	Body []byte

	EnqueuedAt time.Time

	// NotBefore is the earliest time this command should be eligible
	// for processing. Zero value means "immediately".
	NotBefore time.Time

	// Attempts counts previous executions that failed with a retryable error.
	Attempts int
}

// Ready reports whether c may run at now.
func (c Command) Ready(now time.Time) bool {
	return c.NotBefore.IsZero() || !c.NotBefore.After(now)
}

// Queue is a simple async command queue interface.
type Queue interface {
	// Enqueue adds a command to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, c Command) error

	// Dequeue removes and returns the next ready command, blocking until one
	// is available or the context is cancelled.
	Dequeue(ctx context.Context) (*Command, error)

	// Len returns the approximate number of commands queued.
	Len() int
}
