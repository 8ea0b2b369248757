package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type CartService struct {
	store  CartStore
	logger *zap.Logger
}

func NewCartService(store CartStore, logger *zap.Logger) *CartService {
	return &CartService{store: store, logger: logger.Named("cart")}
}

// Item ids become document field paths, so dots and dollar signs are
// rejected.
func validateItemID(itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return validationError("itemId is required")
	}
	if strings.ContainsAny(itemID, ".$") {
		return validationError("itemId %q contains reserved characters", itemID)
	}
	return nil
}

func (s *CartService) GetCart(ctx context.Context, userID string) (map[string]int, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return user.CartData, nil
}

func (s *CartService) AddToCart(ctx context.Context, userID, itemID string) (map[string]int, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if err := validateItemID(itemID); err != nil {
		return nil, err
	}
	cart, err := s.store.AddCartItem(ctx, userID, itemID)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Debug("Added to cart", zap.String("user_id", userID), zap.String("item_id", itemID))
	return cart, nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, itemID string) (map[string]int, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if err := validateItemID(itemID); err != nil {
		return nil, err
	}
	cart, err := s.store.RemoveCartItem(ctx, userID, itemID)
	if err != nil {
		return nil, translate(err)
	}
	return cart, nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	return translate(s.store.ClearCart(ctx, userID))
}
