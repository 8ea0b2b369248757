package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/foodorder/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Resolver finds running instances of a service.
type Resolver interface {
	Discover(ctx context.Context, serviceName string) ([]*discovery.ServiceInstance, error)
}

// HealthProber checks the health endpoint of running order backends.
type HealthProber struct {
	resolver Resolver
	fallback string
	logger   *zap.Logger
	dialOpts []grpc.DialOption
}

// NewHealthProber probes instances found by resolver, or fallback when
// resolver is nil or finds nothing.
func NewHealthProber(resolver Resolver, fallback string, logger *zap.Logger, opts ...grpc.DialOption) *HealthProber {
	return &HealthProber{
		resolver: resolver,
		fallback: fallback,
		logger:   logger,
		dialOpts: append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...),
	}
}

// Targets returns the addresses to probe for serviceName.
func (p *HealthProber) Targets(ctx context.Context, serviceName string) []string {
	if p.resolver != nil {
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		instances, err := p.resolver.Discover(dctx, serviceName)
		if err == nil && len(instances) > 0 {
			targets := make([]string, 0, len(instances))
			for _, inst := range instances {
				targets = append(targets, inst.Addr())
			}
			p.logger.Info("Discovered instances", zap.String("service", serviceName), zap.Strings("targets", targets))
			return targets
		}
		p.logger.Info("Using default address", zap.String("service", serviceName), zap.String("address", p.fallback), zap.Error(err))
	}
	return []string{p.fallback}
}

// Probe asks target for the serving status of ServiceName.
func (p *HealthProber) Probe(ctx context.Context, target string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(target, p.dialOpts...)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("check %s: %w", target, err)
	}
	return resp.GetStatus(), nil
}
