// Package websocket streams a user's notifications to their live connections
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"booktrack/pkg/logger"
	"booktrack/pkg/models"
)

const (
	maxMessageSize    = 1024
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	sendBuffer        = 32
	broadcastBuffer   = 256
	maxClientsPerUser = 8
)

// Hub tracks connections per user and fans notifications out to them. All
// map mutations happen on the run goroutine.
type Hub struct {
	clientsMu  sync.RWMutex
	clients    map[string]map[*Client]bool // user_id -> connections
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.Notification
	stop       chan struct{}
	wg         sync.WaitGroup
}

// Client is one WebSocket connection of a user
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan *Message
	userID string
}

// Message is the frame written to clients
type Message struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// NewHub creates a hub and starts its loop
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.Notification, broadcastBuffer),
		stop:       make(chan struct{}),
	}

	h.wg.Add(1)
	go h.run()
	return h
}

// Stop closes every connection and ends the loop
func (h *Hub) Stop() {
	close(h.stop)
	h.wg.Wait()
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case n := <-h.broadcast:
			h.deliver(n)
		case <-h.stop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clientsMu.Lock()
	conns := h.clients[client.userID]
	if conns == nil {
		conns = make(map[*Client]bool)
		h.clients[client.userID] = conns
	}
	if len(conns) >= maxClientsPerUser {
		h.clientsMu.Unlock()
		client.reject(models.AsAppError(fmt.Errorf("too many connections: %w", models.ErrForbidden)))
		return
	}
	conns[client] = true
	count := len(conns)
	h.clientsMu.Unlock()

	logger.WebSocket("connect", client.userID, count)
}

func (h *Hub) handleUnregister(client *Client) {
	h.clientsMu.Lock()
	conns := h.clients[client.userID]
	if _, ok := conns[client]; ok {
		delete(conns, client)
		close(client.send)
		if len(conns) == 0 {
			delete(h.clients, client.userID)
		}
	}
	count := len(conns)
	h.clientsMu.Unlock()

	logger.WebSocket("disconnect", client.userID, count)
}

// deliver writes to the user's connections; a connection with a full send
// buffer is dropped
func (h *Hub) deliver(n models.Notification) {
	msg := &Message{Type: "notification", Notification: &n, Timestamp: time.Now()}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	conns := h.clients[n.UserID]
	for client := range conns {
		select {
		case client.send <- msg:
		default:
			logger.Warnf("websocket client of %s is slow, disconnecting", client.userID)
			delete(conns, client)
			close(client.send)
		}
	}
	if conns != nil && len(conns) == 0 {
		delete(h.clients, n.UserID)
	}
}

func (h *Hub) handleStop() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for userID, conns := range h.clients {
		for client := range conns {
			close(client.send)
		}
		delete(h.clients, userID)
	}
	logger.Info("websocket hub stopped")
}

// Notify queues n for the user's live connections without blocking
func (h *Hub) Notify(ctx context.Context, n models.Notification) {
	select {
	case h.broadcast <- n:
	default:
		logger.WithFields(map[string]interface{}{"user_id": n.UserID}).Warn("websocket hub busy, dropping notification")
	}
}

// Connections returns the number of live connections of userID
func (h *Hub) Connections(userID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[userID])
}

// ServeClient registers conn for userID and starts its pumps
func (h *Hub) ServeClient(conn *websocket.Conn, userID string) {
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		userID: userID,
	}

	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; clients do not send messages
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("websocket read error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				logger.Errorf("failed to marshal websocket message: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reject closes a connection that was never registered
func (c *Client) reject(appErr *models.AppError) {
	code, text := appErr.ToWebSocketError()
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	close(c.send)
	c.conn.Close()
}
