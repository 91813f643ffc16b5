package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// idleBucket is how long a caller may stay quiet before its bucket is
// dropped.
const idleBucket = 10 * time.Minute

// limiter is a set of token buckets keyed by caller. Idle buckets are swept
// on the request path, at most once per idle period.
type limiter struct {
	mu        sync.Mutex
	buckets   map[string]bucket
	rate      float64 // tokens per second
	burst     float64
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// newLimiter allows rps requests per second with a burst of max(10, rps).
func newLimiter(rps int, idle time.Duration) *limiter {
	return &limiter{
		buckets: make(map[string]bucket),
		rate:    float64(rps),
		burst:   math.Max(10, float64(rps)),
		idle:    idle,
		now:     time.Now,
	}
}

// take spends one token for key. When the bucket is empty it reports how
// long until the next token.
func (l *limiter) take(key string) (ok bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now.Add(-l.idle))
		l.lastSweep = now
	}

	b, found := l.buckets[key]
	if !found {
		b = bucket{tokens: l.burst, seen: now}
	}
	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.seen).Seconds()*l.rate)
	b.seen = now
	if b.tokens >= 1 {
		b.tokens--
		ok = true
	} else {
		wait = time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	}
	l.buckets[key] = b
	return ok, wait
}

func (l *limiter) sweep(cutoff time.Time) {
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// RateLimitMiddleware allows each caller rps requests per second.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
// Rejections get 429 with a Retry-After header.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	l := newLimiter(rps, idleBucket)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id := GetUserID(c); id != uuid.Nil {
			key = "user:" + id.String()
		}
		ok, wait := l.take(key)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			abortMessage(c, http.StatusTooManyRequests, "ERR_RATE_LIMITED", "too many requests, please slow down")
			return
		}
		c.Next()
	}
}
