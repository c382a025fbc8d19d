package keylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const redisKeyPrefix = "keylock:"

type RedisOption func(*redisLocker)

// WithTTL bounds how long a crashed holder can block a key.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *redisLocker) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *redisLocker) {
		if d > 0 {
			r.retry = d
		}
	}
}

func WithTokenFunc(fn func() string) RedisOption {
	return func(r *redisLocker) {
		if fn != nil {
			r.token = fn
		}
	}
}

func WithLogger(logger *zap.Logger) RedisOption {
	return func(r *redisLocker) {
		if logger != nil {
			r.logger = logger.Named("keylock.redis")
		}
	}
}

type redisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	retry  time.Duration
	token  func() string
	logger *zap.Logger
}

func NewRedis(rdb *redis.Client, opts ...RedisOption) Locker {
	r := &redisLocker{
		rdb:    rdb,
		ttl:    30 * time.Second,
		retry:  50 * time.Millisecond,
		token:  uuid.NewString,
		logger: zap.L().Named("keylock.redis"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := r.token()

	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		timer := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release with a fresh context so a cancelled request still frees the key.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			err := r.rdb.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn("release lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
