package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startBufServer(t *testing.T) (*HealthServer, *HealthProber) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewHealthServer(&config.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop())
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	prober := NewHealthProber(nil, "passthrough:///bufnet", zap.NewNop(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	return s, prober
}

func TestHealthServer_ReportsChecks(t *testing.T) {
	s, prober := startBufServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := prober.Probe(ctx, "passthrough:///bufnet")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	healthy := true
	s.AddCheck("mongo", func(context.Context) error {
		if !healthy {
			return errors.New("server selection timeout")
		}
		return nil
	})

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Check(ctx))
	status, err = prober.Probe(ctx, "passthrough:///bufnet")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	healthy = false
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Check(ctx))
	status, err = prober.Probe(ctx, "passthrough:///bufnet")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}

func TestHealthServer_Watch(t *testing.T) {
	s, prober := startBufServer(t)
	s.AddCheck("noop", func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, 20*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		status, err := prober.Probe(context.Background(), "passthrough:///bufnet")
		return err == nil && status == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

type staticResolver []*discovery.ServiceInstance

func (r staticResolver) Discover(context.Context, string) ([]*discovery.ServiceInstance, error) {
	return r, nil
}

func TestHealthProber_Targets(t *testing.T) {
	p := NewHealthProber(nil, "localhost:50052", zap.NewNop())
	assert.Equal(t, []string{"localhost:50052"}, p.Targets(context.Background(), "order-service"))

	p = NewHealthProber(staticResolver{
		{Name: "order-service", Host: "10.0.0.1", Port: 50052},
		{Name: "order-service", Host: "10.0.0.2", Port: 50052},
	}, "localhost:50052", zap.NewNop())
	assert.Equal(t, []string{"10.0.0.1:50052", "10.0.0.2:50052"}, p.Targets(context.Background(), "order-service"))

	p = NewHealthProber(staticResolver{}, "localhost:50052", zap.NewNop())
	assert.Equal(t, []string{"localhost:50052"}, p.Targets(context.Background(), "order-service"))
}
