package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/azatarm-prog/telegive-participant/internal/common/errors"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-client token bucket keyed by caller identity:
// the service name for authenticated services, otherwise the client IP.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
	)

	// Drop idle buckets so the map does not grow unbounded.
	go func() {
		for range time.Tick(5 * time.Minute) {
			mu.Lock()
			for key, client := range clients {
				if time.Since(client.lastSeen) > 10*time.Minute {
					delete(clients, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := c.GetHeader("X-Service-Name")
		if key == "" {
			key = c.ClientIP()
		}

		mu.Lock()
		client, ok := clients[key]
		if !ok {
			client = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[key] = client
		}
		client.lastSeen = time.Now()
		mu.Unlock()

		if !client.limiter.Allow() {
			SendError(c, errors.New(errors.ErrCodeTooManyRequests, "Rate limit exceeded").
				WithDetail("client", key))
			return
		}

		c.Next()
	}
}
