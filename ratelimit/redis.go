package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "vecload:ratelimit:"

// reserveScript runs the window check-and-commit on the Redis server.
// The server clock is used so every process sees the same window.
// Returns {1, 0} when granted, {0, wait_micros} otherwise.
var reserveScript = redis.NewScript(`
redis.replicate_commands()

local key = KEYS[1]
local amount = tonumber(ARGV[1])
local max_rate = tonumber(ARGV[2])
local period = tonumber(ARGV[3])

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000000 + tonumber(t[2])

local start = tonumber(redis.call('HGET', key, 'start'))
local used = tonumber(redis.call('HGET', key, 'used')) or 0

if start == nil or (now - start) > period then
  start = now
  used = 0
  redis.call('HSET', key, 'start', start, 'used', 0)
end

redis.call('PEXPIRE', key, math.ceil(period / 1000) * 2)

if used + amount <= max_rate then
  redis.call('HINCRBY', key, 'used', amount)
  return {1, 0}
end

return {0, period - (now - start)}
`)

// RedisStore keeps the accounting window in Redis so that limiters in
// several processes share one budget.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ WindowStore = (*RedisStore)(nil)

// RedisConfig for creating a Redis store
type RedisConfig struct {
	Addr     string // Redis address (e.g., "localhost:6379")
	Password string // Redis password (empty for no auth)
	DB       int    // Redis database number
	Name     string // Limiter name; limiters with the same name share a window
}

// NewRedisStore creates a new Redis-backed window store.
func NewRedisStore(config RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisStoreFromClient(client, config.Name)
}

// NewRedisStoreFromClient creates a store on an existing client.
func NewRedisStoreFromClient(client *redis.Client, name string) *RedisStore {
	if name == "" {
		name = "default"
	}
	return &RedisStore{
		client: client,
		key:    redisKeyPrefix + name,
	}
}

// Reserve implements WindowStore.
func (s *RedisStore) Reserve(ctx context.Context, amount, maxRate int64, period time.Duration) (bool, time.Duration, error) {
	res, err := reserveScript.Run(ctx, s.client, []string{s.key}, amount, maxRate, period.Microseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("%w: unexpected script reply %v", ErrStoreFailed, res)
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(res[1]) * time.Microsecond, nil
}

// Key returns the Redis key holding the window.
func (s *RedisStore) Key() string {
	return s.key
}

// Reset removes the shared window.
func (s *RedisStore) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
