package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitStore counts hits per key inside a fixed window.
type RateLimitStore interface {
	// Hit increments key and returns the count within the current window.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisRateLimitStore shares counters across server instances.
type RedisRateLimitStore struct {
	client redis.UniversalClient
}

func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = "ratelimit:" + key
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// first hit of the window starts the expiry
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryRateLimitStore keeps counters in process. For single-node setups and tests.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{windows: map[string]*memoryWindow{}, now: time.Now}
}

func (s *MemoryRateLimitStore) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now()
	w := s.windows[key]
	if w == nil || !t.Before(w.resetAt) {
		w = &memoryWindow{resetAt: t.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}

type RateLimiter struct {
	store  RateLimitStore
	limit  int64
	window time.Duration
}

func NewRateLimiter(store RateLimitStore, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware limits requests per client IP.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	count, err := rl.store.Hit(c.Request.Context(), c.ClientIP(), rl.window)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{
				"kind":    "RateLimited",
				"message": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			},
		})
		return
	}
	c.Next()
}
