package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/packflow/pkg/api"
)

// RedisEventStore appends JSON events to one list per instance:
//
//	<prefix>events:<id>  => LIST of api.FlowEvent
type RedisEventStore struct {
	client *redis.Client
	prefix string
}

var _ EventStore = (*RedisEventStore)(nil)

func NewRedisEventStore(client *redis.Client, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "packflow:"
	}
	return &RedisEventStore{client: client, prefix: prefix}
}

func (s *RedisEventStore) key(instanceID string) string {
	return s.prefix + "events:" + instanceID
}

func (s *RedisEventStore) AppendEvent(ctx context.Context, ev api.FlowEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.key(ev.InstanceID), data).Err()
}

func (s *RedisEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.FlowEvent, error) {
	vals, err := s.client.LRange(ctx, s.key(instanceID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]api.FlowEvent, 0, len(vals))
	for _, v := range vals {
		ev, err := decodeEvent([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
