package errors

import (
	"errors"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrPersistence         = errors.New("persisting cart failed")

	ErrCartNotFound       = errors.New("cart not found")
	ErrCartUnreadable     = errors.New("cart record unreadable")
	ErrCartUnavailable    = errors.New("cart storage unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrOutcomeUnknown     = errors.New("order outcome unknown")

	ErrEmptyAuth    = errors.New("missing authorization")
	ErrEmptySubject = errors.New("missing subject")
	ErrTokenInvalid = errors.New("invalid token")
	ErrEmptySession = errors.New("missing session")
)

// ValidationError lists the offending fields by their json names.
type ValidationError struct {
	Fields []string
}

func (v ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": missing or invalid fields=" + strings.Join(v.Fields, ",")
}

func (v ValidationError) Is(target error) bool {
	return target == ErrValidation
}
