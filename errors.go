package match

import "errors"

var (
	ErrInvalidPrice    = errors.New("price must be a positive number of ticks")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidParam    = errors.New("the param is invalid")
	ErrTimeout         = errors.New("timeout")
	ErrShutdown        = errors.New("order book is shutting down")
	ErrNotFound        = errors.New("not found")
)
