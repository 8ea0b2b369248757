package repository

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrFoodNotFound     = errors.New("food not found")
	ErrCartItemNotFound = errors.New("item not in cart")
	ErrCacheMiss        = errors.New("cache miss")
)
