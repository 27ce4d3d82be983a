package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/packflow/pkg/api"
)

// RedisStore is a FlowStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>inst:<id>          => HASH {rev, data}
//	<prefix>idx:all            => SET of all instance IDs
//	<prefix>idx:flow:<flowId>  => SET of instance IDs for one flow type
//	<prefix>meta               => HASH {version, updated_at}
//
// Writes run as Lua scripts so the revision check, the payload, the indexes
// and the store version change atomically.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ FlowStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore.
// prefix is optional but recommended (e.g. "packflow:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "packflow:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) keyInstance(id string) string {
	return s.prefix + "inst:" + id
}

func (s *RedisStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisStore) keyFlow(flow api.FlowID) string {
	return s.prefix + "idx:flow:" + string(flow)
}

func (s *RedisStore) keyMeta() string {
	return s.prefix + "meta"
}

var (
	// Compare-and-set on the instance revision. Returns {1, version} on
	// success and {0, storedRevision} on conflict.
	redisUpsertLua = `
local cur = redis.call('HGET', KEYS[1], 'rev')
local stored = 0
if cur then
	stored = tonumber(cur)
end
if stored ~= tonumber(ARGV[1]) - 1 then
	return {0, stored}
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'data', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
redis.call('SADD', KEYS[3], ARGV[3])
local v = redis.call('HINCRBY', KEYS[4], 'version', 1)
redis.call('HSET', KEYS[4], 'updated_at', ARGV[4])
return {1, v}
`

	// Returns 1 if the instance was deleted, 0 if it did not exist.
	redisDeleteLua = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('SREM', KEYS[3], ARGV[1])
redis.call('HINCRBY', KEYS[4], 'version', 1)
redis.call('HSET', KEYS[4], 'updated_at', ARGV[2])
return 1
`
)

func (s *RedisStore) Get(ctx context.Context, instanceID string) (api.Instance, error) {
	data, err := s.client.HGet(ctx, s.keyInstance(instanceID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return decodeInstance(data)
}

func (s *RedisStore) List(ctx context.Context, flow api.FlowID) ([]api.Instance, error) {
	key := s.keyAll()
	if flow != "" {
		key = s.keyFlow(flow)
	}
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, s.keyInstance(id), "data")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var instances []api.Instance
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		inst, err := decodeInstance(data)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	sortInstances(instances)
	return instances, nil
}

func (s *RedisStore) Upsert(ctx context.Context, inst api.Instance) error {
	if err := checkInstance(inst); err != nil {
		return err
	}
	data, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	m := inst.Meta()

	keys := []string{s.keyInstance(m.InstanceID), s.keyAll(), s.keyFlow(inst.Flow()), s.keyMeta()}
	res, err := s.client.Eval(ctx, redisUpsertLua, keys,
		m.Revision, data, m.InstanceID, writeTime(inst).UnixNano(),
	).Result()
	if err != nil {
		return err
	}
	ok, n, err := scriptPair(res)
	if err != nil {
		return err
	}
	if !ok {
		return conflict(m.InstanceID, n, m.Revision)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, instanceID string) error {
	inst, err := s.Get(ctx, instanceID)
	if err != nil {
		return err
	}
	keys := []string{s.keyInstance(instanceID), s.keyAll(), s.keyFlow(inst.Flow()), s.keyMeta()}
	res, err := s.client.Eval(ctx, redisDeleteLua, keys, instanceID, time.Now().UTC().UnixNano()).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func (s *RedisStore) Version(ctx context.Context) (api.StoreVersion, error) {
	vals, err := s.client.HMGet(ctx, s.keyMeta(), "version", "updated_at").Result()
	if err != nil {
		return api.StoreVersion{}, err
	}
	version, err := hashInt(vals[0])
	if err != nil {
		return api.StoreVersion{}, err
	}
	updatedN, err := hashInt(vals[1])
	if err != nil {
		return api.StoreVersion{}, err
	}
	return storeVersion(version, updatedN), nil
}

// scriptPair reads the {flag, number} reply of redisUpsertLua.
func scriptPair(res any) (bool, int64, error) {
	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("redis: unexpected script reply %v", res)
	}
	flag, _ := vals[0].(int64)
	n, _ := vals[1].(int64)
	return flag == 1, n, nil
}

func hashInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("redis: unexpected hash value %T", v)
	}
}
