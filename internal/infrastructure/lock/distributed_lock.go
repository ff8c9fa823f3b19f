package lock

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockFailed = errors.New("acquire distributed lock failed")

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lock expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// DistributedLock is a single Redis key held with SET NX EX.
type DistributedLock struct {
	client     redis.UniversalClient
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client redis.UniversalClient, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock makes one non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock every retryInterval, at most maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// Locker serializes work on a set of resource keys across instances.
type Locker interface {
	// Acquire locks every key and returns a release func. Keys are taken in
	// sorted order so two callers never wait on each other in a cycle.
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// RedisLocker implements Locker with one DistributedLock per key.
type RedisLocker struct {
	client        redis.UniversalClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		prefix:        "crowdfund:lock:",
		ttl:           ttl,
		retryInterval: 20 * time.Millisecond,
		maxRetries:    250,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := dedupSorted(keys)
	token := uuid.NewString()

	held := make([]*DistributedLock, 0, len(sorted))
	release := func() {
		// release must work after the caller's context is gone
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock(unlockCtx)
		}
	}

	for _, key := range sorted {
		l := NewDistributedLock(r.client, r.prefix+key, token, r.ttl)
		if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
			release()
			return nil, err
		}
		held = append(held, l)
	}
	return release, nil
}

func dedupSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
