package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/intakebot/core/logger"
)

const defaultPrefix = "intakebot:session:"

// RedisStore keeps sessions as JSON strings. TTL is refreshed on every save,
// so an idle session disappears after TTL.
type RedisStore[T any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store on an existing client. An empty prefix
// falls back to "intakebot:session:"; ttl <= 0 disables expiry.
func NewRedisStore[T any](client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore[T] {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore[T]{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore[T]) key(id string) string {
	return s.prefix + id
}

// Load fetches and decodes the value. It returns ErrNotFound for a missing
// key and ErrCorrupt for a value that does not decode.
func (s *RedisStore[T]) Load(ctx context.Context, id string) (T, error) {
	var v T
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return v, ErrNotFound
		}
		return v, fmt.Errorf("redis get session: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, id, err)
	}
	return v, nil
}

// Save encodes v and writes it with the store TTL.
func (s *RedisStore[T]) Save(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete removes the session key.
func (s *RedisStore[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

// RedisLocker takes per-session locks with SET NX PX. Each lock carries a
// random token so only its holder can release it. A held lock is renewed
// every third of its TTL until released, so a slow holder keeps it; a
// holder that dies loses it after one TTL.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	retry  time.Duration
}

// NewRedisLocker builds a locker whose keys live under prefix + "lock:".
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisLocker{client: client, prefix: prefix, retry: 50 * time.Millisecond}
}

// Lock polls until the lock is free, ctx ends, or ttl elapses.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(ttl)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			stop := l.renew(context.WithoutCancel(ctx), lockKey, token, ttl)
			return func(ctx context.Context) error {
				stop()
				return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// renew extends the lock until the returned func is called or the lock is
// found to belong to someone else. The returned func waits for the renewer
// to exit.
func (l *RedisLocker) renew(ctx context.Context, lockKey, token string, ttl time.Duration) func() {
	every := ttl / 3
	if every <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			n, err := renewScript.Run(ctx, l.client, []string{lockKey}, token, ttl.Milliseconds()).Int()
			if err != nil {
				logger.Warn(ctx, "tg.session", "session.lock_renew",
					slog.String("status", "fail"),
					slog.String("lock", lockKey),
					slog.String("err", err.Error()),
				)
				continue
			}
			if n == 0 {
				logger.Warn(ctx, "tg.session", "session.lock_renew",
					slog.String("status", "lost"),
					slog.String("lock", lockKey),
				)
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}
