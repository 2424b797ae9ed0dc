package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"booktrack/internal/core"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

const (
	requestIDHeader = "X-Request-ID"
	userIDKey       = "user_id"
)

// AuthMiddleware validates the bearer token and sets the user id in context
func AuthMiddleware(verifier core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, models.ErrInvalidToken.WithDetail("reason", "missing authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, models.ErrInvalidToken.WithDetail("reason", "invalid authorization format"))
			return
		}

		userID, err := verifier.Verify(parts[1])
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}

// requestIDMiddleware propagates or assigns a request id and stores it in
// the request context for logging
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = utils.GenerateID("req")
		}
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

func accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.HTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), int(time.Since(start).Milliseconds()))
	}
}

// corsMiddleware handles CORS for the configured origins
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userLimiter is a token bucket per authenticated user
type userLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	users    map[string]*limiterEntry
	lastScan time.Time
}

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &userLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		users: make(map[string]*limiterEntry),
	}
}

func (l *userLimiter) allow(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastScan) > limiterIdleTTL {
		for id, e := range l.users {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.users, id)
			}
		}
		l.lastScan = now
	}

	e, ok := l.users[userID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *userLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.Next()
			return
		}
		if !l.allow(userID, time.Now()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.NewErrorResponse("RATE_LIMITED", "too many requests"))
			return
		}
		c.Next()
	}
}

// respondError renders err with the status of its error kind
func respondError(c *gin.Context, err error) {
	appErr := models.AsAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.WithRequestID(c.Request.Context()).
			WithField("path", c.FullPath()).
			WithError(err).
			Error("request failed")
	}
	c.JSON(appErr.StatusCode, appErr.ToHTTPError())
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}
