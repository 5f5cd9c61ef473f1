// Package memstore wraps the memory store (component B: counters, sorted
// sets, sets, short-TTL caches) the way pkg/database wraps the durable store.
// It is grounded on the cache-aside Redis client in the teacher pack's
// order-microservices "stock" service (cache.go / store_cached.go),
// generalized from a single Get/Set cache into the full set of primitives
// the coupon, stats and lock components need.
package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client is the subset of Redis operations the domain components use.
// Narrowing to an interface (rather than exposing *redis.Client everywhere)
// keeps components testable against an in-memory fake.
type Client interface {
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	SAdd(ctx context.Context, key string, member string) (bool, error) // true if newly added
	SRem(ctx context.Context, key string, member string) error
	SIsMember(ctx context.Context, key string, member string) (bool, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, member string) error
	ZRangeByScore(ctx context.Context, key string, count int64) ([]string, error)
	// ZRevRange returns the top `count` members by descending score, for
	// popularity-ranking reads.
	ZRevRange(ctx context.Context, key string, count int64) ([]string, error)
	ZRank(ctx context.Context, key string, member string) (int64, bool, error)

	RPush(ctx context.Context, key string, value string) error
	RenameNX(ctx context.Context, src, dst string) (bool, error)
	LRange(ctx context.Context, key string) ([]string, error)

	// SetNX sets key=value with ttl iff key does not exist; used by the lock
	// manager to acquire a lease atomically.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// CompareAndDelete deletes key iff its current value equals expect;
	// implemented server-side (Lua) so it's atomic against concurrent renewal.
	CompareAndDelete(ctx context.Context, key, expect string) (bool, error)
	// CompareAndExpire extends key's TTL iff its current value equals expect;
	// used by the lock manager's background renewal.
	CompareAndExpire(ctx context.Context, key, expect string, ttl time.Duration) (bool, error)

	Publish(ctx context.Context, channel, payload string) error
	// Subscribe opens a channel subscription; messages arrive on the
	// returned Subscription until its context is cancelled or Close is
	// called. Used by the realtime notifier (K) for cross-instance fan-out.
	Subscribe(ctx context.Context, channel string) Subscription
	Ping(ctx context.Context) error
	Close() error
}

// Subscription is a live pub/sub subscription to a single channel.
type Subscription interface {
	// Channel yields published payloads as they arrive. It is closed when
	// the subscription is closed.
	Channel() <-chan string
	Close() error
}

type redisClient struct {
	rdb *redis.Client
}

// New connects to Redis with the given address/credentials, retrying the
// initial ping the same way pkg/database.NewPool retries the Postgres
// connection.
func New(ctx context.Context, addr, password string, db int, dialTimeout time.Duration, maxRetries int) (Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: dialTimeout,
	})

	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			log.Info().Msg("memory store connection established")
			return &redisClient{rdb: rdb}, nil
		}
		lastErr = err

		backoff := time.Duration(1<<attempt) * time.Second
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("next_retry_in", backoff).Msg("memory store connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("failed to connect to memory store after %d attempts: %w", attempts, lastErr)
}

func (c *redisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *redisClient) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.rdb.IncrBy(ctx, key, delta).Result()
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *redisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *redisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *redisClient) SAdd(ctx context.Context, key string, member string) (bool, error) {
	n, err := c.rdb.SAdd(ctx, key, member).Result()
	return n > 0, err
}

func (c *redisClient) SRem(ctx context.Context, key string, member string) error {
	return c.rdb.SRem(ctx, key, member).Err()
}

func (c *redisClient) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	return c.rdb.SIsMember(ctx, key, member).Result()
}

func (c *redisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c *redisClient) ZRem(ctx context.Context, key string, member string) error {
	return c.rdb.ZRem(ctx, key, member).Err()
}

func (c *redisClient) ZRangeByScore(ctx context.Context, key string, count int64) ([]string, error) {
	return c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: count,
	}).Result()
}

func (c *redisClient) ZRevRange(ctx context.Context, key string, count int64) ([]string, error) {
	return c.rdb.ZRevRange(ctx, key, 0, count-1).Result()
}

func (c *redisClient) ZRank(ctx context.Context, key string, member string) (int64, bool, error) {
	rank, err := c.rdb.ZRank(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	return rank, err == nil, err
}

func (c *redisClient) RPush(ctx context.Context, key string, value string) error {
	return c.rdb.RPush(ctx, key, value).Err()
}

func (c *redisClient) RenameNX(ctx context.Context, src, dst string) (bool, error) {
	ok, err := c.rdb.RenameNX(ctx, src, dst).Result()
	if err == redis.Nil {
		return false, nil
	}
	return ok, err
}

func (c *redisClient) LRange(ctx context.Context, key string) ([]string, error) {
	return c.rdb.LRange(ctx, key, 0, -1).Result()
}

func (c *redisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// compareAndDeleteScript atomically deletes key iff its value equals the
// expected owner token, preventing a lock holder from releasing a lease it
// no longer owns (e.g. after TTL expiry and reacquisition by another owner).
const compareAndDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

func (c *redisClient) CompareAndDelete(ctx context.Context, key, expect string) (bool, error) {
	res, err := c.rdb.Eval(ctx, compareAndDeleteScript, []string{key}, expect).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n > 0, nil
}

const compareAndExpireScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`

func (c *redisClient) CompareAndExpire(ctx context.Context, key, expect string, ttl time.Duration) (bool, error) {
	res, err := c.rdb.Eval(ctx, compareAndExpireScript, []string{key}, expect, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n > 0, nil
}

func (c *redisClient) Publish(ctx context.Context, channel, payload string) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

type redisSubscription struct {
	ps *redis.PubSub
	ch chan string
}

func (c *redisClient) Subscribe(ctx context.Context, channel string) Subscription {
	ps := c.rdb.Subscribe(ctx, channel)
	sub := &redisSubscription{ps: ps, ch: make(chan string)}
	go func() {
		defer close(sub.ch)
		for msg := range ps.Channel() {
			select {
			case sub.ch <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub
}

func (s *redisSubscription) Channel() <-chan string { return s.ch }
func (s *redisSubscription) Close() error           { return s.ps.Close() }

func (c *redisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *redisClient) Close() error {
	return c.rdb.Close()
}
