package domain

import "errors"

// Caller-visible failures of the reservation core. None are retryable
// without new input; handlers map them to HTTP statuses.
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not purchasable")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 10")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrStockAvailable     = errors.New("stock is available, request a hold instead")
	ErrAlreadyReserved    = errors.New("an active reservation already exists for this product")
	ErrEntityNotFound     = errors.New("entity not found")
)
