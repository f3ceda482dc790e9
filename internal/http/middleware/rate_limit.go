package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	metrics "github.com/sifan077/TrackPoint/internal/infra/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Verdict is the outcome of one rate-limit check.
type Verdict struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter decides whether the caller behind key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Verdict, error)
}

// RedisLimiter is a sliding-window log shared by every instance pointing at the same Redis.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

// RedisKeyPrefix namespaces limiter keys. RateLimit already scopes each key, so one prefix serves every route.
const RedisKeyPrefix = "rl"

// NewRedisLimiter allows limit requests per key in any trailing window. Keys are stored as prefix:key.
func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Verdict, error) {
	now := time.Now()
	redisKey := l.prefix + ":" + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	floor := strconv.FormatInt(now.Add(-l.window).UnixMilli(), 10)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+floor)
	card := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.PExpire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Verdict{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	used := int(card.Val()) + 1
	v := Verdict{
		Allowed:   used <= l.limit,
		Limit:     l.limit,
		Remaining: max(0, l.limit-used),
		Reset:     now.Add(l.window),
	}
	if !v.Allowed {
		// Rejected attempts do not occupy the window.
		if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return v, fmt.Errorf("rate limit cleanup: %w", err)
		}
	}
	return v, nil
}

// MemoryLimiter keeps one token bucket per key inside the process.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	every  rate.Limit

	mu       sync.Mutex
	visitors map[string]*visitor
	stopChan chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter refills limit tokens per window and evicts idle keys periodically.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit < 1 {
		limit = 1
	}
	l := &MemoryLimiter{
		limit:    limit,
		window:   window,
		every:    rate.Every(window / time.Duration(limit)),
		visitors: make(map[string]*visitor),
		stopChan: make(chan struct{}),
	}
	go l.cleanup(window)
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Verdict, error) {
	now := time.Now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.limit)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)
	tokens := v.limiter.TokensAt(now)
	l.mu.Unlock()

	return Verdict{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: max(0, int(tokens)),
		Reset:     now.Add(l.window),
	}, nil
}

// Close stops the eviction loop.
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

func (l *MemoryLimiter) cleanup(interval time.Duration) {
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Now())
		case <-l.stopChan:
			return
		}
	}
}

func (l *MemoryLimiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, key)
		}
	}
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Scope   string
	Message string
	Limiter Limiter
	Metrics *metrics.Metrics
}

// RateLimit rejects callers over their budget with 429. Limiter errors let the request through.
func RateLimit(config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		v, err := config.Limiter.Allow(c.UserContext(), config.Scope+":"+c.IP())
		if err != nil {
			logger.Error("rate limit backend error", zap.String("scope", config.Scope), zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(v.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(v.Reset.Unix(), 10))

		if !v.Allowed {
			config.Metrics.RateLimited(config.Scope)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(time.Until(v.Reset).Seconds()+0.5)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": config.Message,
			})
		}

		return c.Next()
	}
}
