package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLimiter(rdb, "rl:track", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.Equal(t, 2-i, v.Remaining)
	}

	v, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Equal(t, 0, v.Remaining)

	card, err := rdb.ZCard(ctx, "rl:track:1.2.3.4").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 3, card, "rejected attempts are not logged")

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	ttl := mr.TTL("rl:track:1.2.3.4")
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestRateLimit_RedisKeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New()
	shared := NewRedisLimiter(rdb, RedisKeyPrefix, 5, time.Minute)
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }
	app.Post("/register", RateLimit(RateLimitConfig{Scope: "register", Limiter: shared}, nil), ok)
	app.Post("/track-click", RateLimit(RateLimitConfig{Scope: "track", Limiter: shared}, nil), ok)

	for _, target := range []string{"/register", "/track-click"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	keys := mr.Keys()
	require.Len(t, keys, 2, "each scope gets its own window")
	var scopes []string
	for _, k := range keys {
		assert.NotContains(t, k, "::")
		parts := strings.SplitN(k, ":", 3)
		require.Len(t, parts, 3, k)
		assert.Equal(t, RedisKeyPrefix, parts[0])
		assert.NotEmpty(t, parts[2], "caller ip")
		scopes = append(scopes, parts[1])
	}
	assert.ElementsMatch(t, []string{"register", "track"}, scopes)
}

func TestRedisLimiter_BackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := NewRedisLimiter(rdb, "rl", 1, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(2, time.Hour)
	defer l.Close()
	ctx := context.Background()

	v1, _ := l.Allow(ctx, "a")
	v2, _ := l.Allow(ctx, "a")
	v3, _ := l.Allow(ctx, "a")
	assert.True(t, v1.Allowed)
	assert.True(t, v2.Allowed)
	assert.False(t, v3.Allowed)
	assert.Equal(t, 2, v3.Limit)

	vb, _ := l.Allow(ctx, "b")
	assert.True(t, vb.Allowed, "keys are independent")

	l.evictIdle(time.Now().Add(2 * time.Hour))
	l.mu.Lock()
	assert.Empty(t, l.visitors)
	l.mu.Unlock()

	l.Close()
	l.Close()
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Verdict, error) {
	return Verdict{}, errors.New("redis down")
}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Hour)
	defer limiter.Close()

	app := fiber.New()
	app.Post("/track-click", RateLimit(RateLimitConfig{Scope: "track", Message: MsgTrackRateLimited, Limiter: limiter}, nil), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	app.Post("/open", RateLimit(RateLimitConfig{Scope: "open", Message: "x", Limiter: failingLimiter{}}, nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/track-click", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/track-click", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, MsgTrackRateLimited, body["error"])

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "limiter errors fail open")
}
