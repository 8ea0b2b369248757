package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/example/foodorder/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name the order backend reports under.
const ServiceName = "foodorder.OrderService"

// CheckFunc reports whether one dependency is usable.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	fn   CheckFunc
}

// HealthServer exposes grpc.health.v1 for the order backend. The reported
// status is SERVING only while every registered check passes.
type HealthServer struct {
	config *config.ServerConfig
	logger *zap.Logger
	health *health.Server
	server *grpc.Server

	mu     sync.Mutex
	checks []namedCheck
}

func NewHealthServer(cfg *config.ServerConfig, logger *zap.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		config: cfg,
		logger: logger.Named("health"),
		health: hs,
		server: srv,
	}
}

func (s *HealthServer) AddCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, namedCheck{name: name, fn: fn})
}

// Check runs every check once and publishes the result.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	s.mu.Lock()
	checks := append([]namedCheck(nil), s.checks...)
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	for _, c := range checks {
		if err := c.fn(ctx); err != nil {
			s.logger.Warn("Health check failed", zap.String("check", c.name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status
}

// Watch re-runs the checks every interval until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		s.Check(checkCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("Health service started", zap.String("address", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *HealthServer) Start() error {
	addr := s.config.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Stop reports NOT_SERVING to watchers and drains open RPCs.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
