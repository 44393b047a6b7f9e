package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"pharmaspot/internal/apperr"
)

// Limit allows Max requests per Window for each client, refilled evenly.
type Limit struct {
	Max     int
	Window  time.Duration
	Message string
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit Limit
	every rate.Limit

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewRateLimiter(l Limit) *RateLimiter {
	if l.Max < 1 {
		l.Max = 1
	}
	if l.Window <= 0 {
		l.Window = time.Minute
	}
	if l.Message == "" {
		l.Message = "Too many requests, please try again later."
	}
	return &RateLimiter{
		limit:    l,
		every:    rate.Every(l.Window / time.Duration(l.Max)),
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (rl *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rl.every, rl.limit.Max)}
		rl.visitors[key] = v
	}
	v.seen = now
	return v.lim
}

// Sweep drops clients idle for longer than one window; their bucket would
// be full again anyway.
func (rl *RateLimiter) Sweep() int {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for k, v := range rl.visitors {
		if now.Sub(v.seen) > rl.limit.Window {
			delete(rl.visitors, k)
			n++
		}
	}
	return n
}

// Handler enforces the limit. A disabled limiter passes everything through.
func (rl *RateLimiter) Handler(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		now := rl.now()
		r := rl.get(c.ClientIP(), now).ReserveN(now, 1)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit.Max))
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			abort(c, apperr.TooManyRequests(rl.limit.Message))
			return
		}
		c.Next()
	}
}
