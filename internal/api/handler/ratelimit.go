package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a Gin middleware enforcing a per-client token bucket.
// Clients are keyed by source IP. rps is the sustained requests per second
// and burst the bucket depth. Idle buckets are evicted in the background.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*clientBucket)

	go func() {
		for {
			time.Sleep(3 * time.Minute)
			mu.Lock()
			for key, b := range buckets {
				if time.Since(b.lastSeen) > 10*time.Minute {
					delete(buckets, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := c.ClientIP()

		mu.Lock()
		b, ok := buckets[key]
		if !ok {
			b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			buckets[key] = b
		}
		b.lastSeen = time.Now()
		mu.Unlock()

		if !b.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
