package middleware

import (
	"eyescreen/pkg/handlerUtil"
	"eyescreen/pkg/log"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
	"sync"
	"time"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	mutex     *sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		mutex:     &sync.Mutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v, exist := r.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = time.Now()

	return v.limiter
}

// Prune drops limiters idle for longer than maxIdle and returns how many
// were removed.
func (r *rateLimiter) Prune(maxIdle time.Duration) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdle)
	for ip, v := range r.bucket {
		if v.lastSeen.Before(cutoff) {
			delete(r.bucket, ip)
			removed++
		}
	}
	return removed
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.WithFields(log.Fields{
			"request_id": m.GetRequestID(ctx),
			"ip":         clientIP,
			"path":       ctx.Path(),
		}).Warn("Too many requests")
		return ctx.Status(fiber.StatusTooManyRequests).JSON(handlerUtil.ErrorResponse{
			Error: "Too many requests",
			Code:  "RATE_LIMITED",
		})
	}

	if m.rateLimitter.shouldPrune() {
		m.rateLimitter.Prune(10 * time.Minute)
	}

	return ctx.Next()
}

func (r *rateLimiter) shouldPrune() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.bucket) > 10000
}
