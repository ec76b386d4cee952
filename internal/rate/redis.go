package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisStore: fixed window sobre Redis (INCR + EXPIRE).
// El conteo es atómico en el server de Redis, no hay read-then-write.
type RedisStore struct {
	Client *rdb.Client
	Prefix string
}

// NewRedisStore crea el backend Redis.
func NewRedisStore(client *rdb.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisStore{Client: client, Prefix: prefix}
}

func (s *RedisStore) Check(ctx context.Context, key string, window time.Duration, max int64) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(window)
	redisKey := fmt.Sprintf("%s%s:%d", s.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := s.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return Result{}, err
	}

	// set expiry on first hit
	if incr.Val() == 1 {
		_ = s.Client.Expire(ctx, redisKey, window).Err()
		ttl = s.Client.TTL(ctx, redisKey)
	}

	left := ttl.Val()
	if left < 0 {
		left = window
	}

	hits := incr.Val()
	if hits > max {
		// Los rechazos no cuentan: revertimos el INCR para que el contador
		// almacenado quede en max. Best-effort, si el DECR falla solo
		// sobre-contamos rechazos.
		_ = s.Client.Decr(ctx, redisKey).Err()
		return Result{
			Allowed:    false,
			Remaining:  0,
			Reset:      now.Add(left),
			RetryAfter: left,
		}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: max - hits,
		Reset:     now.Add(left),
	}, nil
}
