package service

import (
	"errors"
	"fmt"

	"github.com/example/foodorder/pkg/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPaymentUnavailable = errors.New("payment provider unavailable")

	// ErrPaymentNotConfigured is a PaymentUnavailable caused by missing
	// configuration rather than a failed provider call.
	ErrPaymentNotConfigured = fmt.Errorf("%w: not configured", ErrPaymentUnavailable)
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps store errors onto the service taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrFoodNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrCartItemNotFound):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
