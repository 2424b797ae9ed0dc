package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"booktrack/internal/core"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
)

// Handler upgrades authenticated requests onto the hub
type Handler struct {
	hub              *Hub
	verifier         core.TokenVerifier
	allowedOrigins   []string
	upgrader         websocket.Upgrader
	totalConnections atomic.Uint64
}

// NewHandler creates a WebSocket handler. An empty allowedOrigins or one
// containing "*" accepts every origin.
func NewHandler(hub *Hub, verifier core.TokenVerifier, allowedOrigins []string) *Handler {
	h := &Handler{
		hub:            hub,
		verifier:       verifier,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// HandleWebSocket serves GET /ws/notifications
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token, err := extractToken(c)
	if err != nil {
		h.sendError(c, models.ErrInvalidToken.Wrap(err))
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		h.sendError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	h.totalConnections.Add(1)
	h.hub.ServeClient(conn, userID)
}

// TotalConnections counts upgrades since start
func (h *Handler) TotalConnections() uint64 {
	return h.totalConnections.Load()
}

// extractToken reads the token from ?token= (browsers cannot set headers on
// WebSocket requests) or the Authorization header
func extractToken(c *gin.Context) (string, error) {
	if token := c.Query("token"); token != "" {
		return token, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], nil
		}
	}

	return "", errors.New("no authentication token provided")
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients may omit Origin
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		return true
	}

	if u, err := url.Parse(origin); err == nil {
		host := strings.ToLower(u.Hostname())
		if host == "localhost" || host == "127.0.0.1" {
			return true
		}
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (h *Handler) sendError(c *gin.Context, err error) {
	appErr := models.AsAppError(err)
	logger.WithFields(map[string]interface{}{
		"status": appErr.StatusCode,
		"code":   appErr.Code,
	}).Warn("websocket request rejected")

	c.JSON(appErr.StatusCode, appErr.ToHTTPError())
}
