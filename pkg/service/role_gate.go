package service

import (
	"context"
	"errors"
	"strings"

	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/repository"
	"go.uber.org/zap"
)

// RoleGate decides whether a caller is an administrator. It fails closed:
// an empty id or any lookup failure means "not admin".
type RoleGate struct {
	users      UserFinder
	cache      UserCache
	adminID    string
	adminEmail string
	logger     *zap.Logger
}

// NewRoleGate builds a gate backed by users. cache may be nil.
func NewRoleGate(users UserFinder, cache UserCache, cfg *config.AuthConfig, logger *zap.Logger) *RoleGate {
	return &RoleGate{
		users:      users,
		cache:      cache,
		adminID:    cfg.AdminID,
		adminEmail: strings.TrimSpace(cfg.AdminEmail),
		logger:     logger.Named("roles"),
	}
}

func (g *RoleGate) IsAdmin(ctx context.Context, callerID string) bool {
	if callerID == "" {
		return false
	}
	if g.adminID != "" && callerID == g.adminID {
		return true
	}

	user, err := g.lookup(ctx, callerID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			g.logger.Warn("Role lookup failed", zap.String("user_id", callerID), zap.Error(err))
		}
		return false
	}

	if user.Role == models.RoleAdmin {
		return true
	}
	return g.adminEmail != "" && strings.EqualFold(user.Email, g.adminEmail)
}

func (g *RoleGate) lookup(ctx context.Context, id string) (*repository.UserCache, error) {
	if g.cache != nil {
		cached, err := g.cache.GetUserCache(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			g.logger.Debug("User cache unavailable", zap.String("user_id", id), zap.Error(err))
		}
	}

	user, err := g.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	entry := &repository.UserCache{
		ID:    id,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
	if g.cache != nil {
		if err := g.cache.CacheUser(ctx, entry); err != nil {
			g.logger.Debug("Failed to cache user", zap.String("user_id", id), zap.Error(err))
		}
	}
	return entry, nil
}
