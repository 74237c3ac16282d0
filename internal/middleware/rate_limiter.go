package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/pair_quiz/pkg/errors"
	"github.com/mroshb/pair_quiz/pkg/logger"
)

// RateLimiter is a fixed-window in-memory limiter keyed by user id and by client IP.
type RateLimiter struct {
	userLimits map[string]*windowCount
	ipLimits   map[string]*windowCount
	mu         sync.Mutex

	userMaxRequests int
	ipMaxRequests   int
	window          time.Duration
	now             func() time.Time

	stop chan struct{}
	once sync.Once
}

type windowCount struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop. A non-positive max disables that check.
func NewRateLimiter(userMaxRequests, ipMaxRequests int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		userLimits:      make(map[string]*windowCount),
		ipLimits:        make(map[string]*windowCount),
		userMaxRequests: userMaxRequests,
		ipMaxRequests:   ipMaxRequests,
		window:          window,
		now:             time.Now,
		stop:            make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// CheckUserLimit counts a request for userID and reports whether it is allowed.
func (rl *RateLimiter) CheckUserLimit(userID string) bool {
	return rl.check(true, userID, rl.userMaxRequests)
}

// CheckIPLimit counts a request for ip and reports whether it is allowed.
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	return rl.check(false, ip, rl.ipMaxRequests)
}

// limits returns the user or IP table. Callers hold rl.mu.
func (rl *RateLimiter) limits(user bool) map[string]*windowCount {
	if user {
		return rl.userLimits
	}
	return rl.ipLimits
}

func (rl *RateLimiter) check(user bool, key string, max int) bool {
	if max <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	limits := rl.limits(user)
	now := rl.now()
	limit, exists := limits[key]
	if !exists || now.After(limit.resetTime) {
		limits[key] = &windowCount{
			requests:  1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if limit.requests >= max {
		return false
	}

	limit.requests++
	return true
}

// GetUserRemaining returns remaining requests for user
func (rl *RateLimiter) GetUserRemaining(userID string) int {
	return rl.remaining(true, userID, rl.userMaxRequests)
}

// GetIPRemaining returns remaining requests for IP
func (rl *RateLimiter) GetIPRemaining(ip string) int {
	return rl.remaining(false, ip, rl.ipMaxRequests)
}

func (rl *RateLimiter) remaining(user bool, key string, max int) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limits := rl.limits(user)
	limit, exists := limits[key]
	if !exists || rl.now().After(limit.resetTime) {
		return max
	}

	remaining := max - limit.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := rl.now()
		for key, limit := range rl.userLimits {
			if now.After(limit.resetTime) {
				delete(rl.userLimits, key)
			}
		}
		for key, limit := range rl.ipLimits {
			if now.After(limit.resetTime) {
				delete(rl.ipLimits, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Reset clears all rate limits (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.userLimits = make(map[string]*windowCount)
	rl.ipLimits = make(map[string]*windowCount)
}

// IPRateLimit rejects clients over the per-IP budget. Use it before authentication.
func (rl *RateLimiter) IPRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.CheckIPLimit(ip) {
			logger.Warn("IP rate limit exceeded", "ip", ip)
			abortRateLimited(c, rl.window)
			return
		}
		c.Next()
	}
}

// UserRateLimit rejects users over the per-user budget. It must run after AuthMiddleware.
func (rl *RateLimiter) UserRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID != "" && !rl.CheckUserLimit(userID) {
			logger.Warn("User rate limit exceeded", "user_id", userID)
			abortRateLimited(c, rl.window)
			return
		}
		if userID != "" {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.GetUserRemaining(userID)))
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context, window time.Duration) {
	c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
	AbortWithError(c, errors.New(errors.ErrCodeRateLimitExceeded, "too many requests"))
}

// AbortWithError writes err as the JSON error body with the status its code maps to.
func AbortWithError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	message := errors.Message(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    errors.Code(err),
			"message": message,
		},
	})
}
