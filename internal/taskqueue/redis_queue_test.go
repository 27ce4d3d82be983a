package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/packflow/internal/testutil"
)

func TestRedisQueueSuite(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testutil.GetRedisAddress(t)})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err(), "redis ping failed")

	suite.Run(t, &queueSuite{newQueue: func() Queue {
		prefix := "packflow:test:" + uuid.NewString() + ":"
		q := NewRedisQueue(client, prefix)
		t.Cleanup(func() { _ = client.Del(context.Background(), q.ready, q.delayed).Err() })
		return q
	}})
}
