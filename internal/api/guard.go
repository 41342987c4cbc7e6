package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecentGuard serializes analysis per page. Acquire returns false when the
// page was analyzed recently or an analysis is still running. Finish is
// called once the analysis returns; a failed analysis frees the page so the
// owner can retry right away.
type RecentGuard interface {
	Acquire(ctx context.Context, userID, landingPageID string) (bool, error)
	Finish(ctx context.Context, userID, landingPageID string, succeeded bool) error
}

func guardKey(userID, landingPageID string) string {
	return fmt.Sprintf("analysis:%s:%s", userID, landingPageID)
}

// RedisGuard holds a per-page key for the cooldown period
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ RecentGuard = (*RedisGuard)(nil)

// NewRedisGuard connects to Redis and verifies the connection
func NewRedisGuard(ctx context.Context, addr, password string, ttl time.Duration) (*RedisGuard, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisGuard{rdb: rdb, ttl: ttl}, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, userID, landingPageID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, guardKey(userID, landingPageID), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Finish keeps the key for the rest of the cooldown after a success
func (g *RedisGuard) Finish(ctx context.Context, userID, landingPageID string, succeeded bool) error {
	if succeeded {
		return nil
	}
	return g.rdb.Del(ctx, guardKey(userID, landingPageID)).Err()
}

// Close releases the Redis connection pool
func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}

// LatestAnalysis reports when a page was last analyzed
type LatestAnalysis interface {
	LatestAnalysisAt(ctx context.Context, userID, landingPageID string) (time.Time, error)
}

// StoreGuard checks the latest persisted session and tracks in-flight
// analyses in process. It is used when Redis is not configured.
type StoreGuard struct {
	store LatestAnalysis
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
}

var _ RecentGuard = (*StoreGuard)(nil)

func NewStoreGuard(store LatestAnalysis, ttl time.Duration) *StoreGuard {
	return &StoreGuard{
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		inflight: make(map[string]bool),
	}
}

func (g *StoreGuard) Acquire(ctx context.Context, userID, landingPageID string) (bool, error) {
	key := guardKey(userID, landingPageID)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight[key] {
		return false, nil
	}

	latest, err := g.store.LatestAnalysisAt(ctx, userID, landingPageID)
	if err != nil {
		return false, fmt.Errorf("failed to read latest analysis: %w", err)
	}
	if !latest.IsZero() && g.now().Sub(latest) < g.ttl {
		return false, nil
	}

	g.inflight[key] = true
	return true, nil
}

// Finish clears the in-flight marker. After a success the persisted
// session enforces the cooldown.
func (g *StoreGuard) Finish(ctx context.Context, userID, landingPageID string, succeeded bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, guardKey(userID, landingPageID))
	return nil
}
