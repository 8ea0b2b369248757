package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

type AdminInput struct {
	Name     string
	Email    string
	Password string
}

// AdminGrant is an administrator account and a token signed for it.
type AdminGrant struct {
	User  *models.User
	Token string
}

// AdminService provisions administrator accounts out of band. Role changes
// drop the user's cached role so the gate sees them on the next request.
type AdminService struct {
	accounts AccountStore
	cache    UserCacheInvalidator
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewAdminService builds the service. cache may be nil.
func NewAdminService(accounts AccountStore, cache UserCacheInvalidator, tokens TokenIssuer, tokenTTL time.Duration, logger *zap.Logger) *AdminService {
	return &AdminService{
		accounts: accounts,
		cache:    cache,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger.Named("admin"),
	}
}

// CreateAdmin inserts a new user with the admin role. An existing email is
// a conflict.
func (s *AdminService) CreateAdmin(ctx context.Context, in AdminInput) (*AdminGrant, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, validationError("name, email and password are required")
	}

	if _, err := s.accounts.FindUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: user with email %s already exists", ErrConflict, email)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, Password: string(hash), Role: models.RoleAdmin}
	if err := s.accounts.CreateUser(ctx, user); err != nil {
		return nil, translate(err)
	}
	s.logger.Info("Admin created", zap.String("user_id", user.ID.Hex()), zap.String("email", email))

	return s.grant(user)
}

// PromoteToAdmin gives an existing user the admin role.
func (s *AdminService) PromoteToAdmin(ctx context.Context, email string) (*AdminGrant, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, validationError("email is required")
	}

	user, err := s.accounts.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, translate(err)
	}
	if user.Role != models.RoleAdmin {
		user, err = s.accounts.SetUserRole(ctx, user.ID.Hex(), models.RoleAdmin)
		if err != nil {
			return nil, translate(err)
		}
		s.logger.Info("User promoted to admin", zap.String("user_id", user.ID.Hex()))
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, user.ID.Hex()); err != nil {
			s.logger.Warn("Failed to invalidate cached user", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		}
	}

	return s.grant(user)
}

func (s *AdminService) grant(user *models.User) (*AdminGrant, error) {
	token, err := s.tokens.Issue(user.ID.Hex(), s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AdminGrant{User: user, Token: token}, nil
}
