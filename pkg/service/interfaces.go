package service

import (
	"context"
	"time"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	PatchOrder(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
	ListUserOrders(ctx context.Context, userID string) ([]models.Order, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type CartStore interface {
	CartClearer
	GetUser(ctx context.Context, id string) (*models.User, error)
	AddCartItem(ctx context.Context, userID, itemID string) (map[string]int, error)
	RemoveCartItem(ctx context.Context, userID, itemID string) (map[string]int, error)
}

type FoodStore interface {
	ListFoods(ctx context.Context) ([]models.Food, error)
	CreateFood(ctx context.Context, food *models.Food) error
	DeleteFood(ctx context.Context, id string) error
}

type UserFinder interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type UserCache interface {
	GetUserCache(ctx context.Context, userID string) (*repository.UserCache, error)
	CacheUser(ctx context.Context, user *repository.UserCache) error
}

type AccountStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetUserRole(ctx context.Context, id, role string) (*models.User, error)
}

type UserCacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

type TokenIssuer interface {
	Issue(userID string, ttl time.Duration) (string, error)
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
}

type Publisher interface {
	Emit(eventType string, payload interface{})
}

type AdminChecker interface {
	IsAdmin(ctx context.Context, callerID string) bool
}

type Auditor interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

type Ledger interface {
	RecordSession(ctx context.Context, session *repository.PaymentSession) error
	RecordConfirmation(ctx context.Context, confirmation *repository.PaymentConfirmation) error
}
