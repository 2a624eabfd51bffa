package middleware

import (
	"strconv"
	"sync"
	"time"

	"smsfilter/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// RateLimiter is a fixed-window limiter keyed by token subject, or client IP
// when the request is unauthenticated.
type RateLimiter struct {
	requests map[string]*requestInfo
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

type requestInfo struct {
	count     int
	expiresAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string]*requestInfo),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Handler limits requests. A non-positive limit disables it.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.limit <= 0 {
			return c.Next()
		}

		key := c.IP()
		if sub, ok := c.Locals("subject").(string); ok && sub != "" {
			key = "sub:" + sub
		}

		rl.mu.Lock()
		now := rl.now()
		rl.sweep(now)

		info, exists := rl.requests[key]
		if !exists {
			info = &requestInfo{expiresAt: now.Add(rl.window)}
			rl.requests[key] = info
		}
		if info.count >= rl.limit {
			retry := int(info.expiresAt.Sub(now).Seconds()) + 1
			rl.mu.Unlock()
			setRateLimitHeaders(c, rl.limit, 0, info)
			return apperr.RateLimited(retry)
		}
		info.count++
		remaining := rl.limit - info.count
		rl.mu.Unlock()

		setRateLimitHeaders(c, rl.limit, remaining, info)
		return c.Next()
	}
}

// sweep drops expired windows. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, info := range rl.requests {
		if !now.Before(info.expiresAt) {
			delete(rl.requests, key)
		}
	}
}

func setRateLimitHeaders(c *fiber.Ctx, limit, remaining int, info *requestInfo) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(info.expiresAt.Unix(), 10))
}
