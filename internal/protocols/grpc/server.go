// Package grpc exposes the ranking aggregator as booktrack.v1.RankingService
package grpc

import (
	"fmt"
	"net"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"booktrack/internal/core"
	"booktrack/pkg/logger"
)

// Server represents the gRPC server
type Server struct {
	server *grpc.Server
	addr   string
	health *health.Server
}

// NewServer creates a gRPC server serving the ranking service, health and
// reflection
func NewServer(addr string, rankings core.RankingService, verifier core.TokenVerifier) *Server {
	grpcLogger := logger.Logrus()

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	server := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			requestIDUnaryInterceptor(),
			grpc_recovery.UnaryServerInterceptor(),
			authUnaryInterceptor(verifier),
		)),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			grpc_logging.StreamServerInterceptor(grpcLogger),
			grpc_recovery.StreamServerInterceptor(),
		)),
	)

	server.RegisterService(&RankingServiceDesc, NewRankingServiceServer(rankings))
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return &Server{
		server: server,
		addr:   addr,
		health: healthServer,
	}
}

// Start begins listening for gRPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	go func() {
		logger.Infof("gRPC server starting on %s", s.addr)
		if err := s.Serve(listener); err != nil {
			logger.Errorf("gRPC server stopped: %v", err)
		}
	}()

	return nil
}

// Serve blocks serving on listener
func (s *Server) Serve(listener net.Listener) error {
	return s.server.Serve(listener)
}

// Stop gracefully shuts down the server
func (s *Server) Stop() {
	logger.Info("gRPC server stopping...")
	s.health.Shutdown()
	s.server.GracefulStop()
	logger.Info("gRPC server stopped")
}
