package service

import (
	"errors"
	"fmt"

	"storefront/internal/store"
)

var (
	// ErrNotFound is shared with the store so either layer's error matches
	ErrNotFound          = store.ErrNotFound
	ErrInvalidRequest    = errors.New("invalid request")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOutOfStock        = errors.New("not enough stock")
	ErrInvalidSignature  = errors.New("payment signature did not verify")
	ErrInvalidTransition = errors.New("order status change not allowed")
	ErrOrderClosed       = errors.New("order is no longer awaiting payment")
)

// GatewayError wraps a failed payment gateway call
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
