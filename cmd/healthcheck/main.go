package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/discovery"
	"github.com/example/foodorder/pkg/grpc"
	"github.com/example/foodorder/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthcheck probes every registered order backend and exits non-zero if
// any of them is not serving.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	target := flag.String("target", "", "probe this address instead of discovering instances")
	timeout := flag.Duration("timeout", 3*time.Second, "per-instance probe timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	fallback := *target
	if fallback == "" {
		fallback = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	}

	var resolver grpc.Resolver
	if *target == "" && cfg.Etcd.Enabled() {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, probing default address", zap.Error(err))
		} else {
			defer sd.Close()
			resolver = sd
		}
	}

	prober := grpc.NewHealthProber(resolver, fallback, log)

	ctx := context.Background()
	healthy := true
	for _, addr := range prober.Targets(ctx, cfg.Server.Name) {
		probeCtx, cancel := context.WithTimeout(ctx, *timeout)
		status, err := prober.Probe(probeCtx, addr)
		cancel()

		if err != nil || status != healthpb.HealthCheckResponse_SERVING {
			healthy = false
			log.Error("Instance unhealthy", zap.String("address", addr), zap.String("status", status.String()), zap.Error(err))
			continue
		}
		log.Info("Instance healthy", zap.String("address", addr))
	}

	if !healthy {
		os.Exit(1)
	}
}
