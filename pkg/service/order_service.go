package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/foodorder/pkg/clock"
	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/events"
	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	auditService       = "order-service"
	deliveryChargeName = "Delivery Charges"

	DefaultPage  int64 = 1
	DefaultLimit int64 = 20
	MaxLimit     int64 = 100
)

type ConfirmSource string

const (
	SourceVerify  ConfirmSource = "verify"
	SourceWebhook ConfirmSource = "webhook"
)

// OrderDeps are the collaborators of OrderService. Payments, Audit and
// Ledger are optional.
type OrderDeps struct {
	Orders   OrderStore
	Carts    CartClearer
	Payments PaymentProvider
	Events   Publisher
	Roles    AdminChecker
	Audit    Auditor
	Ledger   Ledger
	Clock    clock.Clock
}

// OrderService drives the order lifecycle: checkout, payment confirmation
// and admin fulfillment.
type OrderService struct {
	OrderDeps
	deliveryFee   decimal.Decimal
	frontendURL   string
	enforceAmount bool
	logger        *zap.Logger
}

func NewOrderService(deps OrderDeps, cfg *config.Config, logger *zap.Logger) *OrderService {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	return &OrderService{
		OrderDeps:     deps,
		deliveryFee:   decimal.NewFromFloat(cfg.Payment.DeliveryFee),
		frontendURL:   strings.TrimRight(cfg.Payment.FrontendURL, "/"),
		enforceAmount: cfg.Orders.EnforceAmount,
		logger:        logger.Named("orders"),
	}
}

type PlaceOrderInput struct {
	UserID  string
	Items   []models.OrderItem
	Amount  float64
	Address models.Address
}

type PlaceOrderResult struct {
	Order      *models.Order
	SessionURL string
}

// Total is the server-side order amount: every line plus the delivery fee.
func (s *OrderService) Total(items []models.OrderItem) decimal.Decimal {
	total := s.deliveryFee
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func validateItems(items []models.OrderItem) error {
	if len(items) == 0 {
		return validationError("items must not be empty")
	}
	for i, item := range items {
		switch {
		case strings.TrimSpace(item.Name) == "":
			return validationError("item %d: name is required", i)
		case item.Price < 0:
			return validationError("item %d: price must not be negative", i)
		case item.Quantity < 1:
			return validationError("item %d: quantity must be at least 1", i)
		}
	}
	return nil
}

// PlaceOrder persists a new order, clears the customer's cart, announces the
// order and then asks the payment provider for a checkout session. The order
// stays persisted when the provider step fails.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if in.UserID == "" {
		return nil, ErrUnauthorized
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	total := s.Total(in.Items)
	if client := decimal.NewFromFloat(in.Amount); !client.Equal(total) {
		if s.enforceAmount {
			return nil, validationError("amount %s does not match order total %s", client, total)
		}
		s.logger.Warn("Order amount mismatch",
			zap.String("user_id", in.UserID),
			zap.String("client_amount", client.String()),
			zap.String("server_amount", total.String()))
	}

	order := &models.Order{
		UserID:  in.UserID,
		Items:   append([]models.OrderItem(nil), in.Items...),
		Amount:  total.InexactFloat64(),
		Address: in.Address,
		Payment: false,
		Status:  models.OrderStatusProcessing,
		Date:    s.Clock.Now(),
	}
	if err := s.Orders.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.String("user_id", in.UserID), zap.Error(err))
		return nil, fmt.Errorf("create order: %w", translate(err))
	}
	orderID := order.ID.Hex()

	if err := s.Carts.ClearCart(ctx, in.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn("Cart owner not found", zap.String("user_id", in.UserID), zap.String("order_id", orderID))
		} else {
			s.logger.Error("Failed to clear cart", zap.String("user_id", in.UserID), zap.Error(err))
		}
	}

	s.Events.Emit(events.TypeCreated, order)
	s.audit("create_order", orderID, bson.M{"user_id": in.UserID, "amount": order.Amount})

	if s.Payments == nil {
		s.logger.Error("Payment provider not configured", zap.String("order_id", orderID))
		return nil, fmt.Errorf("order %s: %w", orderID, ErrPaymentNotConfigured)
	}

	req := payment.SessionRequest{
		OrderID:    orderID,
		SuccessURL: fmt.Sprintf("%s/verify?success=true&orderId=%s", s.frontendURL, orderID),
		CancelURL:  fmt.Sprintf("%s/verify?success=false&orderId=%s", s.frontendURL, orderID),
	}
	for _, item := range order.Items {
		req.LineItems = append(req.LineItems, payment.LineItem{
			Name:      item.Name,
			UnitPrice: decimal.NewFromFloat(item.Price),
			Quantity:  int64(item.Quantity),
		})
	}
	req.LineItems = append(req.LineItems, payment.LineItem{Name: deliveryChargeName, UnitPrice: s.deliveryFee, Quantity: 1})

	session, err := s.Payments.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create payment session", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("order %s: %w: %v", orderID, ErrPaymentUnavailable, err)
	}

	if s.Ledger != nil {
		if err := s.Ledger.RecordSession(ctx, &repository.PaymentSession{
			OrderID:   orderID,
			SessionID: session.ID,
			URL:       session.URL,
			Amount:    total,
			Currency:  session.Currency,
		}); err != nil {
			s.logger.Warn("Failed to record payment session", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s.logger.Info("Order placed",
		zap.String("order_id", orderID),
		zap.String("user_id", in.UserID),
		zap.String("session_id", session.ID))

	return &PlaceOrderResult{Order: order, SessionURL: session.URL}, nil
}

// ConfirmPayment applies a payment outcome to an order. Success sets the
// payment flag and moves Processing to Confirmed in one atomic update, so
// repeating it changes nothing. Failure sets PaymentFailed unconditionally.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string, success bool, source ConfirmSource) (*models.Order, error) {
	var patch models.OrderPatch
	if success {
		paid := true
		confirmed, processing := models.OrderStatusConfirmed, models.OrderStatusProcessing
		patch = models.OrderPatch{Payment: &paid, Status: &confirmed, StatusIf: &processing}
	} else {
		failed := models.OrderStatusPaymentFailed
		patch = models.OrderPatch{Status: &failed}
	}

	order, err := s.Orders.PatchOrder(ctx, orderID, patch)
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			s.logger.Error("Failed to confirm payment", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, translate(err)
	}

	s.Events.Emit(events.TypeUpdated, order)
	s.audit("confirm_payment", orderID, bson.M{"success": success, "source": string(source), "status": string(order.Status)})

	if s.Ledger != nil {
		if err := s.Ledger.RecordConfirmation(ctx, &repository.PaymentConfirmation{
			OrderID: orderID,
			Source:  string(source),
			Success: success,
		}); err != nil {
			s.logger.Warn("Failed to record payment confirmation", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s.logger.Info("Payment confirmed",
		zap.String("order_id", orderID),
		zap.Bool("success", success),
		zap.String("source", string(source)),
		zap.String("status", string(order.Status)))

	return order, nil
}

// HandleWebhook applies a parsed provider event. Events that carry no
// outcome, no order reference or an unknown order are acknowledged without
// effect and return a nil order.
func (s *OrderService) HandleWebhook(ctx context.Context, evt *payment.WebhookEvent) (*models.Order, error) {
	if evt.Outcome == payment.OutcomeIgnored {
		s.logger.Debug("Ignoring webhook event", zap.String("event_id", evt.ID), zap.String("type", evt.Type))
		return nil, nil
	}
	if evt.OrderID == "" {
		s.logger.Warn("Webhook event without order reference", zap.String("event_id", evt.ID), zap.String("type", evt.Type))
		return nil, nil
	}

	order, err := s.ConfirmPayment(ctx, evt.OrderID, evt.Outcome == payment.OutcomeSucceeded, SourceWebhook)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("Webhook references unknown order", zap.String("event_id", evt.ID), zap.String("order_id", evt.OrderID))
		return nil, nil
	}
	return order, err
}

type UpdateOrderInput struct {
	Status  *models.OrderStatus
	Payment *bool
}

// UpdateOrder applies an admin change verbatim. Any status may follow any
// other.
func (s *OrderService) UpdateOrder(ctx context.Context, callerID, orderID string, in UpdateOrderInput) (*models.Order, error) {
	if !s.Roles.IsAdmin(ctx, callerID) {
		return nil, ErrForbidden
	}
	if in.Status == nil && in.Payment == nil {
		return nil, validationError("nothing to update")
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, validationError("unknown status %q", *in.Status)
	}

	order, err := s.Orders.PatchOrder(ctx, orderID, models.OrderPatch{Status: in.Status, Payment: in.Payment})
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			s.logger.Error("Failed to update order", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, translate(err)
	}

	data := bson.M{"by": callerID}
	if in.Status != nil {
		data["status"] = string(*in.Status)
	}
	if in.Payment != nil {
		data["payment"] = *in.Payment
	}
	s.Events.Emit(events.TypeUpdated, order)
	s.audit("update_order", orderID, data)

	return order, nil
}

type ListOrdersQuery struct {
	Page   int64
	Limit  int64
	Status string
}

// Normalize clamps the page to at least 1 and the limit to [1, MaxLimit].
// Defaults for absent parameters are applied by the caller.
func (q ListOrdersQuery) Normalize() ListOrdersQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	q.Limit = clampLimit(q.Limit)
	return q
}

func clampLimit(limit int64) int64 {
	switch {
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

type PageMeta struct {
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
}

type OrderPage struct {
	Items []models.Order `json:"data"`
	Meta  PageMeta       `json:"meta"`
}

func (s *OrderService) ListOrders(ctx context.Context, callerID string, q ListOrdersQuery) (*OrderPage, error) {
	if !s.Roles.IsAdmin(ctx, callerID) {
		return nil, ErrForbidden
	}
	q = q.Normalize()

	status := models.OrderStatus(q.Status)
	if status != "" && !status.Valid() {
		return nil, validationError("unknown status %q", q.Status)
	}

	items, total, err := s.Orders.ListOrders(ctx, models.OrderFilter{
		Status: status,
		Skip:   (q.Page - 1) * q.Limit,
		Limit:  q.Limit,
	})
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}

	return &OrderPage{Items: items, Meta: PageMeta{Total: total, Page: q.Page, Limit: q.Limit}}, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, callerID string) ([]models.Order, error) {
	if callerID == "" {
		return nil, ErrUnauthorized
	}
	orders, err := s.Orders.ListUserOrders(ctx, callerID)
	if err != nil {
		s.logger.Error("Failed to list user orders", zap.String("user_id", callerID), zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, callerID, orderID string) (*models.Order, error) {
	order, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	if callerID == "" || (order.UserID != callerID && !s.Roles.IsAdmin(ctx, callerID)) {
		return nil, ErrForbidden
	}
	return order, nil
}

// OrderHistory returns the newest audit entries recorded for an order.
func (s *OrderService) OrderHistory(ctx context.Context, callerID, orderID string, limit int64) ([]*repository.AuditLog, error) {
	if !s.Roles.IsAdmin(ctx, callerID) {
		return nil, ErrForbidden
	}
	if _, err := s.Orders.GetOrder(ctx, orderID); err != nil {
		return nil, translate(err)
	}
	if s.Audit == nil {
		return []*repository.AuditLog{}, nil
	}
	logs, err := s.Audit.GetAuditLogs(ctx, orderID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*repository.AuditLog{}
	}
	return logs, nil
}

// audit writes in the background; a failed audit write never fails the
// request that caused it.
func (s *OrderService) audit(action, orderID string, data bson.M) {
	if s.Audit == nil {
		return
	}
	entry := &repository.AuditLog{
		Service:   auditService,
		Action:    action,
		EntityID:  orderID,
		Data:      data,
		CreatedAt: s.Clock.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("Failed to write audit log",
				zap.String("action", action),
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}()
}
