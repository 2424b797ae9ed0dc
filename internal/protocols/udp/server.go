// Package udp pushes notifications to the device push gateway as small JSON
// datagrams. Delivery is fire-and-forget.
package udp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

const (
	maxPacketSize    = 1024 // 1KB per datagram
	packetsPerSecond = 100
	burstSize        = 50
	queueSize        = 256
	writeDeadline    = 100 * time.Millisecond
)

// Packet is the datagram read by the push gateway
type Packet struct {
	TraceID      string                  `json:"trace_id"`
	Kind         models.NotificationKind `json:"kind"`
	UserID       string                  `json:"user_id"`
	Title        string                  `json:"title"`
	Body         string                  `json:"body"`
	DeviceTokens []string                `json:"device_tokens,omitempty"`
	Timestamp    time.Time               `json:"timestamp"`
}

// Options tunes the dispatcher. Zero values use the package defaults.
type Options struct {
	QueueSize int
	Rate      float64
	Burst     int
}

// Server queues notifications and drains them to the gateway from a single
// goroutine
type Server struct {
	gatewayAddr      string
	conn             *net.UDPConn
	gateway          *net.UDPAddr
	queue            chan Packet
	stop             chan struct{}
	stopOnce         sync.Once
	done             chan struct{}
	rateLimiter      *rate.Limiter
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	stats            struct {
		mu             sync.RWMutex
		packetsQueued  uint64
		packetsDropped uint64
		packetsSent    uint64
	}
}

// NewServer creates a dispatcher for gatewayAddr (host:port). userRepo may be
// nil, in which case packets carry no device tokens.
func NewServer(gatewayAddr string, notificationRepo repository.NotificationRepository, userRepo repository.UserRepository, opts Options) *Server {
	if opts.QueueSize <= 0 {
		opts.QueueSize = queueSize
	}
	if opts.Rate <= 0 {
		opts.Rate = packetsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = burstSize
	}

	return &Server{
		gatewayAddr:      gatewayAddr,
		queue:            make(chan Packet, opts.QueueSize),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
		rateLimiter:      rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
	}
}

// Start resolves the gateway and starts the drain loop
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.gatewayAddr)
	if err != nil {
		return fmt.Errorf("resolve udp addr: %w", err)
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}

	s.conn = conn
	s.gateway = addr
	logger.Infof("UDP push dispatcher started (gateway %s)", s.gatewayAddr)

	go s.sendLoop()
	return nil
}

// Stop ends the drain loop. Queued packets are discarded. Later calls are
// no-ops.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.conn != nil {
			<-s.done
			s.conn.Close()
		}
		logger.Info("UDP push dispatcher stopped")
	})
}

// Notify logs the notification to the database and queues it. It never
// blocks: a full queue drops the packet.
func (s *Server) Notify(ctx context.Context, n models.Notification) {
	if n.TraceID == "" {
		n.TraceID = utils.NewTraceID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if s.notificationRepo != nil {
		if err := s.notificationRepo.Create(ctx, &n); err != nil {
			logger.WithFields(map[string]interface{}{
				"user_id":  n.UserID,
				"trace_id": n.TraceID,
			}).WithError(err).Warn("failed to log notification")
		}
	}

	packet := Packet{
		TraceID:   n.TraceID,
		Kind:      n.Kind,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		Timestamp: n.CreatedAt,
	}

	select {
	case s.queue <- packet:
		s.stats.mu.Lock()
		s.stats.packetsQueued++
		s.stats.mu.Unlock()
	default:
		s.stats.mu.Lock()
		s.stats.packetsDropped++
		s.stats.mu.Unlock()
		logger.WithFields(map[string]interface{}{"trace_id": n.TraceID}).Warn("UDP: queue full, dropping notification")
	}
}

func (s *Server) sendLoop() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case packet := <-s.queue:
			if err := s.rateLimiter.Wait(ctx); err != nil {
				return
			}
			if err := s.send(ctx, packet); err != nil {
				logger.WithFields(map[string]interface{}{"trace_id": packet.TraceID}).WithError(err).Warn("UDP send failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) send(ctx context.Context, packet Packet) error {
	if s.userRepo != nil && packet.UserID != "" {
		lookupCtx, cancel := utils.WithTimeout(ctx)
		tokens, err := s.userRepo.DeviceTokens(lookupCtx, packet.UserID)
		cancel()
		if err != nil {
			logger.WithFields(map[string]interface{}{"user_id": packet.UserID}).WithError(err).Debug("device token lookup failed")
		}
		packet.DeviceTokens = tokens
	}

	data, err := encode(packet)
	if err != nil {
		return err
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if _, err := s.conn.WriteToUDP(data, s.gateway); err != nil {
		s.stats.mu.Lock()
		s.stats.packetsDropped++
		s.stats.mu.Unlock()
		return err
	}

	s.stats.mu.Lock()
	s.stats.packetsSent++
	s.stats.mu.Unlock()
	logger.UDP(string(packet.Kind), packet.UserID, len(data))
	return nil
}

// encode marshals packet, shortening the body and then dropping device
// tokens until it fits in one datagram
func encode(packet Packet) ([]byte, error) {
	for {
		data, err := json.Marshal(packet)
		if err != nil {
			return nil, fmt.Errorf("marshal packet: %w", err)
		}
		if len(data) <= maxPacketSize {
			return data, nil
		}

		over := len(data) - maxPacketSize
		switch {
		case len(packet.Body) > 0:
			cut := len(packet.Body) - over
			if cut < 0 {
				cut = 0
			}
			for cut > 0 && !utf8.RuneStart(packet.Body[cut]) {
				cut--
			}
			packet.Body = packet.Body[:cut]
		case len(packet.DeviceTokens) > 0:
			packet.DeviceTokens = packet.DeviceTokens[:len(packet.DeviceTokens)-1]
		default:
			return nil, fmt.Errorf("packet exceeds %d bytes", maxPacketSize)
		}
	}
}

// GetStats returns queue and delivery counters
func (s *Server) GetStats() (queued, dropped, sent uint64) {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return s.stats.packetsQueued, s.stats.packetsDropped, s.stats.packetsSent
}
