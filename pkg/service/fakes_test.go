package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[string]models.Order
	createErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[string]models.Order{}}
}

func (f *fakeOrders) CreateOrder(_ context.Context, order *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	f.orders[order.ID.Hex()] = *order
	return nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (f *fakeOrders) PatchOrder(_ context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	patch.Apply(&o)
	f.orders[id] = o
	return &o, nil
}

func (f *fakeOrders) sorted(match func(models.Order) bool) []models.Order {
	out := make([]models.Order, 0)
	for _, o := range f.orders {
		if match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (f *fakeOrders) ListOrders(_ context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sorted(func(o models.Order) bool {
		return filter.Status == "" || o.Status == filter.Status
	})
	total := int64(len(all))
	if filter.Skip >= total {
		return []models.Order{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Skip+filter.Limit < total {
		end = filter.Skip + filter.Limit
	}
	return all[filter.Skip:end], total, nil
}

func (f *fakeOrders) ListUserOrders(_ context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (f *fakeOrders) put(o models.Order) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	f.orders[o.ID.Hex()] = o
	return o.ID.Hex()
}

type fakeCarts struct {
	mu      sync.Mutex
	cleared []string
	err     error
}

func (f *fakeCarts) ClearCart(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, userID)
	return f.err
}

type fakePayments struct {
	mu   sync.Mutex
	reqs []payment.SessionRequest
	err  error
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Session{ID: "cs_test_1", URL: "https://pay.test/cs_test_1", Currency: "inr"}, nil
}

type published struct {
	Type    string
	Payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Emit(eventType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{Type: eventType, Payload: payload})
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeRoles map[string]bool

func (f fakeRoles) IsAdmin(_ context.Context, callerID string) bool {
	return f[callerID]
}

type fakeAudit struct {
	mu        sync.Mutex
	logs      []*repository.AuditLog
	lastLimit int64
}

func (f *fakeAudit) CreateAuditLog(_ context.Context, log *repository.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeAudit) GetAuditLogs(_ context.Context, entityID string, limit int64) ([]*repository.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var out []*repository.AuditLog
	for i := len(f.logs) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if f.logs[i].EntityID == entityID {
			out = append(out, f.logs[i])
		}
	}
	return out, nil
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

type fakeLedger struct {
	mu            sync.Mutex
	sessions      []*repository.PaymentSession
	confirmations []*repository.PaymentConfirmation
}

func (f *fakeLedger) RecordSession(_ context.Context, s *repository.PaymentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeLedger) RecordConfirmation(_ context.Context, c *repository.PaymentConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, c)
	return nil
}

type fakeUsers struct {
	users map[string]*models.User
	err   error
	calls int
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

type fakeUserCache struct {
	entries map[string]*repository.UserCache
	down    bool
}

func (f *fakeUserCache) GetUserCache(_ context.Context, id string) (*repository.UserCache, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	u, ok := f.entries[id]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return u, nil
}

func (f *fakeUserCache) CacheUser(_ context.Context, u *repository.UserCache) error {
	if f.down {
		return errors.New("connection refused")
	}
	f.entries[u.ID] = u
	return nil
}
