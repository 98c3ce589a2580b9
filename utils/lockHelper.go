package utils

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/retail_backend/config"
)

// EntityLocker serializes mutations of the same ledger entities across requests.
// Lock blocks until every key is held or ctx is done; release frees them all.
type EntityLocker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}

var errLockNotObtained = errors.New("could not obtain entity lock")

func LockKey(entity string, id string) string {
	return entity + ":" + id
}

func sortedKeys(keys []string) []string {
	out := UniqueSlice(keys)
	sort.Strings(out)
	return out
}

func lockBusyError(cause error) *AppError {
	return &AppError{Kind: KindInternal, Message: "resource is busy, please retry", cause: cause}
}

// RedisEntityLocker holds one redislock per key on the shared Redis.
type RedisEntityLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisEntityLocker(client *redislock.Client, ttl, wait time.Duration) *RedisEntityLocker {
	return &RedisEntityLocker{client: client, ttl: ttl, wait: wait}
}

func (l *RedisEntityLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	logger := config.GetLogger()
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	var held []*redislock.Lock
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// release with a fresh context, the caller's may already be cancelled
			_ = held[i].Release(context.Background())
		}
	}
	for _, key := range sortedKeys(keys) {
		lock, err := l.client.Obtain(waitCtx, "lock:"+key, l.ttl, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
		})
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
				config.LogError(logger, "EntityLocker", "Lock", "Could not obtain lock", key, err)
				return nil, lockBusyError(errLockNotObtained)
			}
			config.LogError(logger, "EntityLocker", "Lock", "Error obtaining lock", key, err)
			return nil, NewInternalError(err)
		}
		held = append(held, lock)
	}
	return release, nil
}

// LocalEntityLocker serializes within one process. Tests and single-node deployments use it.
type LocalEntityLocker struct {
	wait  time.Duration
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalEntityLocker(wait time.Duration) *LocalEntityLocker {
	return &LocalEntityLocker{wait: wait, slots: map[string]chan struct{}{}}
}

func (l *LocalEntityLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalEntityLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, key := range sortedKeys(keys) {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-waitCtx.Done():
			release()
			return nil, lockBusyError(waitCtx.Err())
		}
	}
	return release, nil
}

var (
	entityLocker   EntityLocker
	entityLockerMu sync.Mutex
	localLocker    *LocalEntityLocker
)

// SetEntityLocker injects the locker used by every ledger operation. nil restores the default.
func SetEntityLocker(l EntityLocker) {
	entityLockerMu.Lock()
	defer entityLockerMu.Unlock()
	entityLocker = l
}

// GetEntityLocker returns the injected locker, else a Redis locker when Redis is up, else the in-process one.
func GetEntityLocker() EntityLocker {
	entityLockerMu.Lock()
	defer entityLockerMu.Unlock()
	if entityLocker != nil {
		return entityLocker
	}
	settings := config.GetSettings()
	if client := config.GetRedisLock(); client != nil {
		return NewRedisEntityLocker(client, settings.LockTTL, settings.LockWait)
	}
	if localLocker == nil {
		localLocker = NewLocalEntityLocker(settings.LockWait)
	}
	return localLocker
}

// LockEntities is the usual entry point: lock keys with the current locker.
func LockEntities(ctx context.Context, keys ...string) (func(), error) {
	return GetEntityLocker().Lock(ctx, keys...)
}
