package taskqueue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements the Queue interface using Redis.
//
// It uses two keys:
//
//	<prefix>commands:ready    => LIST of gob-encoded commands, FIFO
//	<prefix>commands:delayed  => ZSET of commands scored by not_before (unix ms)
//
// Delayed commands move to the ready list once they are due.
type RedisQueue struct {
	client       *redis.Client
	ready        string
	delayed      string
	pollInterval time.Duration
}

// promoteDue moves every delayed command scored <= ARGV[1] onto the ready list.
var promoteDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, m in ipairs(due) do
	redis.call('LPUSH', KEYS[2], m)
	redis.call('ZREM', KEYS[1], m)
end
return #due
`)

// NewRedisQueue constructs a Redis-backed Queue.
// prefix is optional but recommended (e.g. "packflow:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "packflow:"
	}
	return &RedisQueue{
		client:  client,
		ready:   prefix + "commands:ready",
		delayed: prefix + "commands:delayed",
		// BRPOP timeouts have one second resolution.
		pollInterval: time.Second,
	}
}

// Ensure RedisQueue implements Queue.
var _ Queue = (*RedisQueue)(nil)

func (q *RedisQueue) Enqueue(ctx context.Context, c Command) error {
	enqueuedAt, notBefore := queueTimes(c)
	c.EnqueuedAt = enqueuedAt
	data, err := EncodeCommand(c)
	if err != nil {
		return err
	}
	if notBefore.After(time.Now()) {
		return q.client.ZAdd(ctx, q.delayed, redis.Z{
			Score:  float64(notBefore.UnixMilli()),
			Member: data,
		}).Err()
	}
	return q.client.LPush(ctx, q.ready, data).Err()
}

// Dequeue blocks on BRPOP until a command is ready or ctx is cancelled.
// Between pops it promotes delayed commands that have become due.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Command, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if err := promoteDue.Run(ctx, q.client, []string{q.delayed, q.ready}, now).Err(); err != nil {
			return nil, err
		}

		// BRPop returns [key, value]
		res, err := q.client.BRPop(ctx, q.pollInterval, q.ready).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if len(res) != 2 {
			slog.WarnContext(ctx, "redis_queue_unexpected_reply", slog.Any("reply", res))
			continue
		}
		return DecodeCommand([]byte(res[1]))
	}
}

// Len returns the approximate number of commands queued, delayed ones included.
func (q *RedisQueue) Len() int {
	ctx := context.Background()
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.ready)
	delayed := pipe.ZCard(ctx, q.delayed)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis_queue_len_failed", slog.Any("error", err))
		return 0
	}
	return int(ready.Val() + delayed.Val())
}
