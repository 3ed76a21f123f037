package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a go-redis client. The caller
// owns the client's lifecycle (construction and Close), matching the
// teacher's pattern of owning the *sql.DB in SQLiteRepository and the
// pack's xraph-dispatch redis store, which also takes an
// already-constructed redis.Cmdable rather than dialing itself.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) HSetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	vals := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		vals[k] = v
	}
	if err := s.client.HSet(ctx, key, vals).Err(); err != nil {
		return fmt.Errorf("store: hset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) HGetField(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: hget %s.%s: %w", key, field, err)
	}
	return v, true, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store: hgetall %s: %w", key, err)
	}
	return m, nil
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("store: hincrby %s.%s: %w", key, field, err)
	}
	return n, nil
}

func (s *RedisStore) LPushValue(ctx context.Context, list, value string) error {
	if err := s.client.LPush(ctx, list, value).Err(); err != nil {
		return fmt.Errorf("store: lpush %s: %w", list, err)
	}
	return nil
}

func (s *RedisStore) RPushValue(ctx context.Context, list, value string) error {
	if err := s.client.RPush(ctx, list, value).Err(); err != nil {
		return fmt.Errorf("store: rpush %s: %w", list, err)
	}
	return nil
}

func (s *RedisStore) BRPop(ctx context.Context, timeout time.Duration, lists ...string) (string, string, error) {
	res, err := s.client.BRPop(ctx, timeout, lists...).Result()
	if err == redis.Nil {
		return "", "", ErrNoJob
	}
	if err != nil {
		return "", "", fmt.Errorf("store: brpop %v: %w", lists, err)
	}
	// go-redis returns [list, value].
	return res[0], res[1], nil
}

func (s *RedisStore) SAdd(ctx context.Context, set, value string) error {
	if err := s.client.SAdd(ctx, set, value).Err(); err != nil {
		return fmt.Errorf("store: sadd %s: %w", set, err)
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, set, value string) error {
	if err := s.client.SRem(ctx, set, value).Err(); err != nil {
		return fmt.Errorf("store: srem %s: %w", set, err)
	}
	return nil
}

func (s *RedisStore) ListDelete(ctx context.Context, list string) error {
	if err := s.client.Del(ctx, list).Err(); err != nil {
		return fmt.Errorf("store: del %s: %w", list, err)
	}
	return nil
}

func (s *RedisStore) ListRange(ctx context.Context, list string) ([]string, error) {
	vals, err := s.client.LRange(ctx, list, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: lrange %s: %w", list, err)
	}
	return vals, nil
}

// redisPipe adapts a redis.Pipeliner to the narrow Pipe interface so
// MultiExec callers never see the go-redis types directly. Read-style
// operations (LLen, SCard) only have valid results once the pipeline
// has executed, so they're recorded as deferred assignments and run
// after TxPipelined returns.
type redisPipe struct {
	ctx      context.Context
	pipe     redis.Pipeliner
	deferred []func()
}

func (p *redisPipe) HSetFields(key string, fields map[string]string) {
	vals := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		vals[k] = v
	}
	p.pipe.HSet(p.ctx, key, vals)
}

func (p *redisPipe) SAdd(set, value string) { p.pipe.SAdd(p.ctx, set, value) }
func (p *redisPipe) SRem(set, value string) { p.pipe.SRem(p.ctx, set, value) }
func (p *redisPipe) LPush(list, value string) { p.pipe.LPush(p.ctx, list, value) }
func (p *redisPipe) RPush(list, value string) { p.pipe.RPush(p.ctx, list, value) }
func (p *redisPipe) Del(key string) { p.pipe.Del(p.ctx, key) }

func (p *redisPipe) LLen(list string, dst *int64) {
	cmd := p.pipe.LLen(p.ctx, list)
	p.deferred = append(p.deferred, func() { *dst = cmd.Val() })
}

func (p *redisPipe) SCard(set string, dst *int64) {
	cmd := p.pipe.SCard(p.ctx, set)
	p.deferred = append(p.deferred, func() { *dst = cmd.Val() })
}

func (s *RedisStore) MultiExec(ctx context.Context, fn func(p Pipe) error) error {
	p := &redisPipe{ctx: ctx, pipe: s.client.TxPipeline()}
	if err := fn(p); err != nil {
		return err
	}
	if _, err := p.pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: multi_exec: %w", err)
	}
	for _, d := range p.deferred {
		d()
	}
	return nil
}

func (s *RedisStore) Snapshot(ctx context.Context) (int64, int64, int64, int64, error) {
	var high, low, dlq, processing int64
	pipe := s.client.TxPipeline()
	highCmd := pipe.LLen(ctx, QueueHigh)
	lowCmd := pipe.LLen(ctx, QueueLow)
	dlqCmd := pipe.LLen(ctx, QueueDLQ)
	procCmd := pipe.SCard(ctx, SetProcessing)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("store: snapshot: %w", err)
	}
	high, low, dlq, processing = highCmd.Val(), lowCmd.Val(), dlqCmd.Val(), procCmd.Val()
	return high, low, dlq, processing, nil
}
