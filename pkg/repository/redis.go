package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON decodes the value at key into dest, returning ErrCacheMiss when
// the key does not exist.
func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// UserCache is the slice of a user document the role gate needs.
type UserCache struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func userKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func (r *RedisRepository) CacheUser(ctx context.Context, user *UserCache) error {
	ttl := r.config.UserTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return r.SetJSON(ctx, userKey(user.ID), user, ttl)
}

func (r *RedisRepository) GetUserCache(ctx context.Context, userID string) (*UserCache, error) {
	var user UserCache
	if err := r.GetJSON(ctx, userKey(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *RedisRepository) InvalidateUser(ctx context.Context, userID string) error {
	return r.Del(ctx, userKey(userID))
}
