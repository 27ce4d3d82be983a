package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/packflow/pkg/api"
)

func cmd(id string) Command {
	return Command{ID: id, Flow: api.FlowSku, Operation: "submit", Actor: api.Actor{Role: api.RoleEngineering}}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, q.Enqueue(ctx, cmd(id)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"1", "2", "3"} {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.ID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestInMemoryQueue_NotBeforeDelaysCommand(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	delayed := cmd("later")
	delayed.NotBefore = time.Now().Add(80 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, delayed))
	require.NoError(t, q.Enqueue(ctx, cmd("now")))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "now", got.ID)

	start := time.Now()
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", got.ID)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestInMemoryQueue_DequeueWakesOnEnqueue(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan *Command, 1)
	go func() {
		c, err := q.Dequeue(ctx)
		if err == nil {
			got <- c
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, cmd("x")))

	select {
	case c := <-got:
		assert.Equal(t, "x", c.ID)
	case <-ctx.Done():
		t.Fatal("Dequeue did not wake up")
	}
}

func TestInMemoryQueue_DequeueRespectsContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCodec_RoundTrip(t *testing.T) {
	in := Command{
		ID:         "cmd-1",
		Flow:       api.FlowReceipt,
		Operation:  "release",
		Actor:      api.Actor{Role: api.RoleStores, Name: "stores"},
		Body:       []byte(`{"instanceId":"INB-1"}`),
		EnqueuedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Attempts:   2,
	}
	data, err := EncodeCommand(in)
	require.NoError(t, err)
	out, err := DecodeCommand(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Actor, out.Actor)
	assert.Equal(t, in.Body, out.Body)
	assert.True(t, in.EnqueuedAt.Equal(out.EnqueuedAt))
	assert.Equal(t, 2, out.Attempts)

	_, err = DecodeCommand([]byte("garbage"))
	assert.Error(t, err)
}
