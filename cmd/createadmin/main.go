package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/foodorder/pkg/auth"
	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/logger"
	"github.com/example/foodorder/pkg/repository"
	"github.com/example/foodorder/pkg/service"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// createadmin creates an administrator account, or promotes an existing
// user with -promote, and prints a signed token for it.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	name := flag.String("name", "", "admin display name")
	email := flag.String("email", "", "admin email")
	promote := flag.Bool("promote", false, "promote the existing user with -email instead of creating one")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed token")
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

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoRepo.Close(context.Background())
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to ensure MongoDB indexes", zap.Error(err))
	}

	var cache service.UserCacheInvalidator
	if cfg.Redis.Enabled() {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		defer redisRepo.Close()
		cache = redisRepo
	}

	admins := service.NewAdminService(mongoRepo, cache, auth.NewVerifier(cfg.Auth.JWTSecret), *tokenTTL, log)

	var grant *service.AdminGrant
	if *promote {
		grant, err = admins.PromoteToAdmin(ctx, *email)
	} else {
		grant, err = admins.CreateAdmin(ctx, service.AdminInput{
			Name:     *name,
			Email:    *email,
			Password: os.Getenv("FOODORDER_ADMIN_PASSWORD"),
		})
	}
	if err != nil {
		log.Error("Failed to provision admin", zap.String("email", *email), zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("id:    %s\nemail: %s\nrole:  %s\ntoken: %s\n",
		grant.User.ID.Hex(), grant.User.Email, grant.User.Role, grant.Token)
}
