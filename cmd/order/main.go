package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/foodorder/gateway"
	"github.com/example/foodorder/pkg/auth"
	"github.com/example/foodorder/pkg/clock"
	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/discovery"
	"github.com/example/foodorder/pkg/events"
	"github.com/example/foodorder/pkg/grpc"
	"github.com/example/foodorder/pkg/logger"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"github.com/example/foodorder/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("grpc_port", cfg.Server.Port),
		zap.Int("http_port", cfg.Gateway.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MongoDB
	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoRepo.Close(closeCtx)
	}()
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		log.Warn("Failed to ensure MongoDB indexes", zap.Error(err))
	}

	health := grpc.NewHealthServer(&cfg.Server, log)
	health.AddCheck("mongodb", mongoRepo.Ping)

	// Redis user cache
	var userCache service.UserCache
	if cfg.Redis.Enabled() {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		defer redisRepo.Close()
		if err := redisRepo.Ping(ctx); err != nil {
			log.Warn("Redis connection failed", zap.Error(err))
		} else {
			log.Info("Redis connected successfully")
		}
		userCache = redisRepo
		health.AddCheck("redis", redisRepo.Ping)
	}

	// MySQL payment ledger
	var ledger service.Ledger
	if cfg.MySQL.Enabled() {
		ledgerRepo, err := repository.NewLedgerRepository(&cfg.MySQL)
		if err != nil {
			log.Warn("Payment ledger disabled", zap.Error(err))
		} else {
			defer ledgerRepo.Close()
			ledger = ledgerRepo
			health.AddCheck("mysql", ledgerRepo.Ping)
			log.Info("Payment ledger connected")
		}
	}

	// Payments
	var payments service.PaymentProvider
	if p := payment.NewStripeProvider(&cfg.Payment, nil); p != nil {
		payments = p
	} else {
		log.Warn("Payment provider not configured; checkout will fail")
	}
	webhooks := payment.NewWebhookParser(cfg.Payment.StripeWebhookSecret)
	if !webhooks.Verifies() {
		log.Warn("Webhook secret not configured; webhook payloads are not verified")
	}

	notifier := events.NewNotifier(clock.NewSystem(), log.Named("events"))
	roles := service.NewRoleGate(mongoRepo, userCache, &cfg.Auth, log)

	orders := service.NewOrderService(service.OrderDeps{
		Orders:   mongoRepo,
		Carts:    mongoRepo,
		Payments: payments,
		Events:   notifier,
		Roles:    roles,
		Audit:    mongoRepo,
		Ledger:   ledger,
	}, cfg, log)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	gw := gateway.NewGateway(cfg, log, gateway.Deps{
		Orders:   orders,
		Carts:    service.NewCartService(mongoRepo, log),
		Foods:    service.NewFoodService(mongoRepo, roles, log),
		Tokens:   auth.NewVerifier(cfg.Auth.JWTSecret),
		Webhooks: webhooks,
		Events:   notifier,
	})
	gw.SetupRoutes()
	httpServer := gw.Server()

	// Start servers
	serverErr := make(chan error, 2)
	go func() {
		log.Info("Gateway starting", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	go func() {
		if err := health.Start(); err != nil {
			serverErr <- err
		}
	}()
	go health.Watch(ctx, 10*time.Second)

	// Service discovery
	var sd *discovery.ServiceDiscovery
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.AdvertisedHost(),
		Port: cfg.Server.Port,
	}
	if cfg.Etcd.Enabled() {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.Error(err))
		} else {
			log.Info("Service registered in etcd",
				zap.String("name", instance.Name),
				zap.String("address", instance.Addr()))
		}
	}

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Deregister service
	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			log.Error("Failed to deregister service", zap.Error(err))
		}
		_ = sd.Close()
	}

	// Open order streams never finish on their own; Shutdown returns once
	// the deadline passes and Close drops them.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Gateway shutdown timed out", zap.Error(err))
		_ = httpServer.Close()
	}
	health.Stop()

	log.Info("Service stopped")
}
