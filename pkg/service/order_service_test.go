package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/foodorder/pkg/clock"
	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/events"
	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	customerID = "64b000000000000000000001"
	adminID    = "64b0000000000000000000aa"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type orderFixture struct {
	svc      *OrderService
	orders   *fakeOrders
	carts    *fakeCarts
	payments *fakePayments
	events   *fakePublisher
	audit    *fakeAudit
	ledger   *fakeLedger
	logs     *observer.ObservedLogs
}

func newOrderFixture(t *testing.T, mutate func(*config.Config, *OrderDeps)) *orderFixture {
	t.Helper()
	cfg := &config.Config{
		Payment: config.PaymentConfig{
			FrontendURL: "http://localhost:5173/",
			Currency:    "inr",
			DeliveryFee: 32,
		},
	}
	f := &orderFixture{
		orders:   newFakeOrders(),
		carts:    &fakeCarts{},
		payments: &fakePayments{},
		events:   &fakePublisher{},
		audit:    &fakeAudit{},
		ledger:   &fakeLedger{},
	}
	deps := OrderDeps{
		Orders:   f.orders,
		Carts:    f.carts,
		Payments: f.payments,
		Events:   f.events,
		Roles:    fakeRoles{adminID: true},
		Audit:    f.audit,
		Ledger:   f.ledger,
		Clock:    clock.NewFixed(testNow),
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	f.svc = NewOrderService(deps, cfg, zap.New(core))
	return f
}

func pizzaOrder(amount float64) PlaceOrderInput {
	return PlaceOrderInput{
		UserID:  customerID,
		Items:   []models.OrderItem{{ID: "a", Name: "Pizza", Price: 200, Quantity: 2}},
		Amount:  amount,
		Address: models.Address{FirstName: "Asha", City: "Pune"},
	}
}

func TestOrderService_PlaceOrder(t *testing.T) {
	f := newOrderFixture(t, nil)

	res, err := f.svc.PlaceOrder(context.Background(), pizzaOrder(432))
	require.NoError(t, err)

	assert.Equal(t, "https://pay.test/cs_test_1", res.SessionURL)
	assert.Equal(t, 432.0, res.Order.Amount)
	assert.Equal(t, models.OrderStatusProcessing, res.Order.Status)
	assert.False(t, res.Order.Payment)
	assert.Equal(t, testNow, res.Order.Date)

	stored, err := f.orders.GetOrder(context.Background(), res.Order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 432.0, stored.Amount)

	assert.Equal(t, []string{customerID}, f.carts.cleared)
	assert.Equal(t, []string{events.TypeCreated}, f.events.types())

	require.Len(t, f.payments.reqs, 1)
	req := f.payments.reqs[0]
	id := res.Order.ID.Hex()
	assert.Equal(t, id, req.OrderID)
	assert.Equal(t, "http://localhost:5173/verify?success=true&orderId="+id, req.SuccessURL)
	assert.Equal(t, "http://localhost:5173/verify?success=false&orderId="+id, req.CancelURL)
	require.Len(t, req.LineItems, 2)
	assert.Equal(t, "Pizza", req.LineItems[0].Name)
	assert.Equal(t, int64(2), req.LineItems[0].Quantity)
	assert.Equal(t, "Delivery Charges", req.LineItems[1].Name)
	assert.True(t, req.LineItems[1].UnitPrice.Equal(decimal.NewFromInt(32)))

	require.Len(t, f.ledger.sessions, 1)
	assert.True(t, f.ledger.sessions[0].Amount.Equal(decimal.NewFromInt(432)))
	assert.Equal(t, "cs_test_1", f.ledger.sessions[0].SessionID)

	assert.Eventually(t, func() bool { return f.audit.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestOrderService_Total(t *testing.T) {
	f := newOrderFixture(t, nil)
	items := []models.OrderItem{
		{Name: "Fries", Price: 0.1, Quantity: 3},
		{Name: "Soda", Price: 0.2, Quantity: 1},
	}
	assert.Equal(t, "32.5", f.svc.Total(items).String())
}

func TestOrderService_PlaceOrder_AmountMismatchIsLogged(t *testing.T) {
	f := newOrderFixture(t, nil)

	res, err := f.svc.PlaceOrder(context.Background(), pizzaOrder(999))
	require.NoError(t, err)
	assert.Equal(t, 432.0, res.Order.Amount)

	entries := f.logs.FilterMessage("Order amount mismatch").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "999", entries[0].ContextMap()["client_amount"])
	assert.Equal(t, "432", entries[0].ContextMap()["server_amount"])
}

func TestOrderService_PlaceOrder_AmountMismatchEnforced(t *testing.T) {
	f := newOrderFixture(t, func(cfg *config.Config, _ *OrderDeps) {
		cfg.Orders.EnforceAmount = true
	})

	_, err := f.svc.PlaceOrder(context.Background(), pizzaOrder(999))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.events.types())
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input PlaceOrderInput
		want  error
	}{
		{"no caller", PlaceOrderInput{Items: pizzaOrder(432).Items}, ErrUnauthorized},
		{"empty items", PlaceOrderInput{UserID: customerID}, ErrValidation},
		{"blank name", PlaceOrderInput{UserID: customerID, Items: []models.OrderItem{{Price: 1, Quantity: 1}}}, ErrValidation},
		{"negative price", PlaceOrderInput{UserID: customerID, Items: []models.OrderItem{{Name: "x", Price: -1, Quantity: 1}}}, ErrValidation},
		{"zero quantity", PlaceOrderInput{UserID: customerID, Items: []models.OrderItem{{Name: "x", Price: 1}}}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t, nil)
			_, err := f.svc.PlaceOrder(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.orders.orders)
			assert.Empty(t, f.payments.reqs)
		})
	}
}

func TestOrderService_PlaceOrder_PaymentNotConfigured(t *testing.T) {
	f := newOrderFixture(t, func(_ *config.Config, deps *OrderDeps) {
		deps.Payments = nil
	})

	_, err := f.svc.PlaceOrder(context.Background(), pizzaOrder(432))
	assert.ErrorIs(t, err, ErrPaymentNotConfigured)
	assert.ErrorIs(t, err, ErrPaymentUnavailable)

	assert.Len(t, f.orders.orders, 1)
	assert.Equal(t, []string{customerID}, f.carts.cleared)
	assert.Equal(t, []string{events.TypeCreated}, f.events.types())
}

func TestOrderService_PlaceOrder_ProviderFailure(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.payments.err = errors.New("connection reset")

	_, err := f.svc.PlaceOrder(context.Background(), pizzaOrder(432))
	assert.ErrorIs(t, err, ErrPaymentUnavailable)
	assert.NotErrorIs(t, err, ErrPaymentNotConfigured)
	assert.Len(t, f.orders.orders, 1)
	assert.Empty(t, f.ledger.sessions)
}

func TestOrderService_PlaceOrder_MissingCartOwner(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.carts.err = repository.ErrUserNotFound

	res, err := f.svc.PlaceOrder(context.Background(), pizzaOrder(432))
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionURL)
	assert.Equal(t, 1, f.logs.FilterMessage("Cart owner not found").Len())
}

func TestOrderService_PlaceOrder_StoreFailure(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.createErr = errors.New("write concern")

	_, err := f.svc.PlaceOrder(context.Background(), pizzaOrder(432))
	require.Error(t, err)
	assert.Empty(t, f.carts.cleared)
	assert.Empty(t, f.events.types())
	assert.Empty(t, f.payments.reqs)
}

func TestOrderService_ConfirmPayment_SuccessIsIdempotent(t *testing.T) {
	f := newOrderFixture(t, nil)
	id := f.orders.put(models.Order{UserID: customerID, Status: models.OrderStatusProcessing})

	for i := 0; i < 2; i++ {
		order, err := f.svc.ConfirmPayment(context.Background(), id, true, SourceVerify)
		require.NoError(t, err)
		assert.True(t, order.Payment)
		assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	}

	assert.Equal(t, []string{events.TypeUpdated, events.TypeUpdated}, f.events.types())
	require.Len(t, f.ledger.confirmations, 2)
	assert.Equal(t, "verify", f.ledger.confirmations[0].Source)
}

func TestOrderService_ConfirmPayment_NoRegression(t *testing.T) {
	for _, start := range []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusOutForDelivery,
		models.OrderStatusDelivered,
	} {
		t.Run(string(start), func(t *testing.T) {
			f := newOrderFixture(t, nil)
			id := f.orders.put(models.Order{Status: start, Payment: true})

			order, err := f.svc.ConfirmPayment(context.Background(), id, true, SourceWebhook)
			require.NoError(t, err)
			assert.Equal(t, start, order.Status)
			assert.True(t, order.Payment)
		})
	}
}

func TestOrderService_ConfirmPayment_Failure(t *testing.T) {
	for _, paid := range []bool{false, true} {
		f := newOrderFixture(t, nil)
		id := f.orders.put(models.Order{Status: models.OrderStatusConfirmed, Payment: paid})

		order, err := f.svc.ConfirmPayment(context.Background(), id, false, SourceVerify)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPaymentFailed, order.Status)
		assert.Equal(t, paid, order.Payment)
		assert.Equal(t, []string{events.TypeUpdated}, f.events.types())
	}
}

func TestOrderService_ConfirmPayment_NotFound(t *testing.T) {
	f := newOrderFixture(t, nil)

	_, err := f.svc.ConfirmPayment(context.Background(), "64b00000000000000000ffff", true, SourceVerify)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.events.types())
}

func TestOrderService_ConfirmPayment_ConcurrentSuccess(t *testing.T) {
	f := newOrderFixture(t, nil)
	id := f.orders.put(models.Order{Status: models.OrderStatusProcessing})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := SourceVerify
			if i%2 == 0 {
				source = SourceWebhook
			}
			_, err := f.svc.ConfirmPayment(context.Background(), id, true, source)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	order, err := f.orders.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, order.Payment)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
}

func TestOrderService_HandleWebhook(t *testing.T) {
	f := newOrderFixture(t, nil)
	id := f.orders.put(models.Order{Status: models.OrderStatusProcessing})
	ctx := context.Background()

	order, err := f.svc.HandleWebhook(ctx, &payment.WebhookEvent{Type: "customer.created"})
	assert.NoError(t, err)
	assert.Nil(t, order)

	order, err = f.svc.HandleWebhook(ctx, &payment.WebhookEvent{Type: payment.EventCheckoutCompleted, Outcome: payment.OutcomeSucceeded})
	assert.NoError(t, err)
	assert.Nil(t, order)

	order, err = f.svc.HandleWebhook(ctx, &payment.WebhookEvent{
		Type: payment.EventCheckoutCompleted, Outcome: payment.OutcomeSucceeded, OrderID: "64b00000000000000000ffff",
	})
	assert.NoError(t, err)
	assert.Nil(t, order)
	assert.Equal(t, 1, f.logs.FilterMessage("Webhook references unknown order").Len())

	order, err = f.svc.HandleWebhook(ctx, &payment.WebhookEvent{
		Type: payment.EventCheckoutCompleted, Outcome: payment.OutcomeSucceeded, OrderID: id,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	require.Len(t, f.ledger.confirmations, 1)
	assert.Equal(t, "webhook", f.ledger.confirmations[0].Source)

	order, err = f.svc.HandleWebhook(ctx, &payment.WebhookEvent{
		Type: payment.EventCheckoutExpired, Outcome: payment.OutcomeFailed, OrderID: id,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaymentFailed, order.Status)
	assert.True(t, order.Payment)
}

func TestOrderService_UpdateOrder(t *testing.T) {
	f := newOrderFixture(t, nil)
	id := f.orders.put(models.Order{UserID: customerID, Status: models.OrderStatusProcessing})
	ctx := context.Background()
	delivered := models.OrderStatusDelivered
	processing := models.OrderStatusProcessing
	bogus := models.OrderStatus("Cancelled")
	paid := true

	_, err := f.svc.UpdateOrder(ctx, customerID, id, UpdateOrderInput{Status: &delivered})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateOrder(ctx, adminID, id, UpdateOrderInput{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateOrder(ctx, adminID, id, UpdateOrderInput{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateOrder(ctx, adminID, "64b00000000000000000ffff", UpdateOrderInput{Status: &delivered})
	assert.ErrorIs(t, err, ErrNotFound)

	order, err := f.svc.UpdateOrder(ctx, adminID, id, UpdateOrderInput{Status: &delivered, Payment: &paid})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)
	assert.True(t, order.Payment)

	order, err = f.svc.UpdateOrder(ctx, adminID, id, UpdateOrderInput{Status: &processing})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.True(t, order.Payment)

	assert.Equal(t, []string{events.TypeUpdated, events.TypeUpdated}, f.events.types())
}

func TestListOrdersQuery_Normalize(t *testing.T) {
	tests := []struct {
		in   ListOrdersQuery
		want ListOrdersQuery
	}{
		{ListOrdersQuery{}, ListOrdersQuery{Page: 1, Limit: 1}},
		{ListOrdersQuery{Page: 1, Limit: 0}, ListOrdersQuery{Page: 1, Limit: 1}},
		{ListOrdersQuery{Page: -3, Limit: -5}, ListOrdersQuery{Page: 1, Limit: 1}},
		{ListOrdersQuery{Page: 1, Limit: 100}, ListOrdersQuery{Page: 1, Limit: 100}},
		{ListOrdersQuery{Page: 4, Limit: 500}, ListOrdersQuery{Page: 4, Limit: 100}},
		{ListOrdersQuery{Page: 2, Limit: 20, Status: "Delivered"}, ListOrdersQuery{Page: 2, Limit: 20, Status: "Delivered"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize())
	}
}

func TestOrderService_ListOrders(t *testing.T) {
	f := newOrderFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 45; i++ {
		status := models.OrderStatusProcessing
		if i%3 == 0 {
			status = models.OrderStatusDelivered
		}
		f.orders.put(models.Order{UserID: customerID, Status: status, Date: testNow.Add(time.Duration(i) * time.Minute)})
	}

	_, err := f.svc.ListOrders(ctx, customerID, ListOrdersQuery{})
	assert.ErrorIs(t, err, ErrForbidden)

	page, err := f.svc.ListOrders(ctx, adminID, ListOrdersQuery{Page: 2, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, page.Items, 20)
	assert.Equal(t, PageMeta{Total: 45, Page: 2, Limit: 20}, page.Meta)
	assert.Equal(t, testNow.Add(24*time.Minute), page.Items[0].Date)
	for i := 1; i < len(page.Items); i++ {
		assert.True(t, page.Items[i-1].Date.After(page.Items[i].Date))
	}

	page, err = f.svc.ListOrders(ctx, adminID, ListOrdersQuery{Page: 3, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)

	page, err = f.svc.ListOrders(ctx, adminID, ListOrdersQuery{Status: string(models.OrderStatusDelivered)})
	require.NoError(t, err)
	assert.Equal(t, int64(15), page.Meta.Total)

	_, err = f.svc.ListOrders(ctx, adminID, ListOrdersQuery{Status: "Lost"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrderService_ListMyOrders(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.orders.put(models.Order{UserID: customerID, Date: testNow})
	f.orders.put(models.Order{UserID: customerID, Date: testNow.Add(time.Hour)})
	f.orders.put(models.Order{UserID: "someone-else", Date: testNow})

	orders, err := f.svc.ListMyOrders(context.Background(), customerID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, testNow.Add(time.Hour), orders[0].Date)

	_, err = f.svc.ListMyOrders(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOrderService_GetOrder(t *testing.T) {
	f := newOrderFixture(t, nil)
	id := f.orders.put(models.Order{UserID: customerID})
	ctx := context.Background()

	order, err := f.svc.GetOrder(ctx, customerID, id)
	require.NoError(t, err)
	assert.Equal(t, customerID, order.UserID)

	_, err = f.svc.GetOrder(ctx, adminID, id)
	assert.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, "64b000000000000000000002", id)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetOrder(ctx, customerID, "64b00000000000000000ffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderService_OrderHistory(t *testing.T) {
	f := newOrderFixture(t, nil)
	id := f.orders.put(models.Order{UserID: customerID, Status: models.OrderStatusProcessing})
	ctx := context.Background()

	_, err := f.svc.ConfirmPayment(ctx, id, true, SourceVerify)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.audit.count() == 1 }, time.Second, 10*time.Millisecond)

	_, err = f.svc.OrderHistory(ctx, customerID, id, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	logs, err := f.svc.OrderHistory(ctx, adminID, id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "confirm_payment", logs[0].Action)
	assert.Equal(t, true, logs[0].Data["success"])

	tests := []struct {
		limit int64
		want  int64
	}{
		{limit: 500, want: MaxLimit},
		{limit: 0, want: 1},
		{limit: -2, want: 1},
		{limit: 50, want: 50},
	}
	for _, tt := range tests {
		_, err := f.svc.OrderHistory(ctx, adminID, id, tt.limit)
		require.NoError(t, err)
		f.audit.mu.Lock()
		got := f.audit.lastLimit
		f.audit.mu.Unlock()
		assert.Equal(t, tt.want, got, "limit %d", tt.limit)
	}
}
