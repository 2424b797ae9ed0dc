package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrack/pkg/models"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if strings.HasPrefix(token, "good-") {
		return strings.TrimPrefix(token, "good-"), nil
	}
	return "", models.ErrInvalidToken
}

func (stubVerifier) Issue(userID string) (string, time.Time, error) {
	return "good-" + userID, time.Now().Add(time.Hour), nil
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	handler := NewHandler(hub, stubVerifier{}, nil)

	router := gin.New()
	router.GET("/ws/notifications", handler.HandleWebSocket)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestNotificationReachesOnlyTheTargetUser(t *testing.T) {
	hub, srv := newTestServer(t)

	alice, _, err := dial(t, srv, "good-alice")
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := dial(t, srv, "good-bob")
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool {
		return hub.Connections("alice") == 1 && hub.Connections("bob") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Notify(context.Background(), models.Notification{
		UserID: "alice",
		Kind:   models.NotificationLevelUp,
		Title:  "Level up",
		Body:   "You reached level 2.",
	})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "notification", msg.Type)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, models.NotificationLevelUp, msg.Notification.Kind)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's notification")
}

func TestRejectsInvalidToken(t *testing.T) {
	_, srv := newTestServer(t)

	_, resp, err := dial(t, srv, "forged")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := dial(t, srv, "good-carol")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connections("carol") == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections("carol") == 0 }, 2*time.Second, 10*time.Millisecond)
}
