// Package access answers whether an account may join a project's chat: only
// authors of accepted completions may. Acceptances are never revoked, so a
// positive answer stays true and is cached; negative answers are not.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/chain"
	"earlyadopters/internal/metrics"
)

const defaultCacheSize = 4096

// Checker is the accepted-author predicate the gate guards with.
type Checker interface {
	IsAuthorOfAcceptedCompletedActivity(ctx context.Context, projectID int64, author string) (bool, error)
}

type Gate struct {
	checker    Checker
	localCache *lru.Cache[string, bool]
	redis      *redis.Client
	ttl        time.Duration
	keyPrefix  string
	metrics    *metrics.Metrics
	log        *log.Logger
}

type Options struct {
	CacheSize int
	// Redis is optional; when set, positive answers are shared across
	// processes for TTL.
	Redis   *redis.Client
	TTL     time.Duration
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

func NewGate(checker Checker, opts Options) (*Gate, error) {
	if checker == nil {
		return nil, fmt.Errorf("access checker is required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gate{
		checker:    checker,
		localCache: cache,
		redis:      opts.Redis,
		ttl:        ttl,
		keyPrefix:  "chat-access:",
		metrics:    opts.Metrics,
		log:        logger,
	}, nil
}

func cacheKey(projectID int64, address string) string {
	return fmt.Sprintf("%d:%s", projectID, address)
}

// Check resolves userDID to an account and reports whether it authored an
// accepted completion in the project.
func (g *Gate) Check(ctx context.Context, projectID int64, userDID string) (bool, error) {
	address, err := chain.AddressFromDID(userDID)
	if err != nil {
		return false, err
	}
	key := cacheKey(projectID, address)

	if g.localCache.Contains(key) {
		g.metrics.AccessCheck(true, "local")
		return true, nil
	}

	if g.redis != nil {
		_, err := g.redis.Get(ctx, g.keyPrefix+key).Result()
		switch {
		case err == nil:
			g.localCache.Add(key, true)
			g.metrics.AccessCheck(true, "redis")
			return true, nil
		case errors.Is(err, redis.Nil):
		default:
			g.log.WithError(err).Warn("chat access cache lookup failed")
		}
	}

	allowed, err := g.checker.IsAuthorOfAcceptedCompletedActivity(ctx, projectID, address)
	if err != nil {
		return false, err
	}
	g.metrics.AccessCheck(allowed, "store")
	if !allowed {
		return false, nil
	}
	g.localCache.Add(key, true)
	if g.redis != nil {
		if err := g.redis.Set(ctx, g.keyPrefix+key, time.Now().Unix(), g.ttl).Err(); err != nil {
			g.log.WithError(err).Warn("chat access cache store failed")
		}
	}
	return true, nil
}

// ClearLocal drops the in-process cache.
func (g *Gate) ClearLocal() {
	g.localCache.Purge()
}

// NewRedisClient builds the shared cache client from the access config
// values; an empty address disables it.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
