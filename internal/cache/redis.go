package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // prepended to every key, e.g. "mdhub:"
}

// Redis is a Store backed by a Redis server. All calls go through a Breaker,
// so an unreachable server degrades to misses and dropped writes instead of
// stalling every request on a dial timeout.
type Redis struct {
	client  goredis.UniversalClient
	prefix  string
	breaker *Breaker
	log     *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedis connects and pings the server.
func NewRedis(cfg RedisConfig, log *slog.Logger) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	r := NewRedisWithClient(client, cfg.Prefix, log)
	r.log.Info("connected", "addr", cfg.Addr, "prefix", cfg.Prefix)
	return r, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client goredis.UniversalClient, prefix string, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "cache.redis")
	b := NewBreaker(5, 10*time.Second)
	b.OnStateChange = func(from, to BreakerState) {
		log.Warn("circuit state change", "from", from.String(), "to", to.String())
	}
	return &Redis{client: client, prefix: prefix, breaker: b, log: log}
}

// Breaker exposes the circuit breaker, for health reporting.
func (r *Redis) Breaker() *Breaker { return r.breaker }

// Client exposes the underlying client, for liveness probes.
func (r *Redis) Client() goredis.UniversalClient { return r.client }

// Close releases the client.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := r.breaker.Execute(func() error {
		b, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		val = b
		return err
	})
	if err != nil {
		r.logErr("get", key, err)
	}
	if err != nil || val == nil {
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	err := r.breaker.Execute(func() error {
		return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
	})
	if err != nil {
		r.logErr("set", key, err)
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	err := r.breaker.Execute(func() error {
		return r.client.Del(ctx, r.prefix+key).Err()
	})
	if err != nil {
		r.logErr("delete", key, err)
	}
}

// Clear removes every key under the prefix.
func (r *Redis) Clear(ctx context.Context) {
	err := r.breaker.Execute(func() error {
		return r.scan(ctx, func(keys []string) error {
			return r.client.Del(ctx, keys...).Err()
		})
	})
	if err != nil {
		r.logErr("clear", r.prefix+"*", err)
	}
}

func (r *Redis) Stats(ctx context.Context) Stats {
	keys := 0
	err := r.breaker.Execute(func() error {
		return r.scan(ctx, func(batch []string) error {
			keys += len(batch)
			return nil
		})
	})
	if err != nil {
		r.logErr("stats", r.prefix+"*", err)
	}
	return Stats{
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
		Keys:    keys,
		Backend: "redis",
	}.withRate()
}

func (r *Redis) scan(ctx context.Context, fn func([]string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) logErr(op, key string, err error) {
	if errors.Is(err, ErrBreakerOpen) {
		r.log.Debug("skipped, circuit open", "op", op, "key", key)
		return
	}
	r.log.Warn("redis call failed", "op", op, "key", key, "error", err)
}
