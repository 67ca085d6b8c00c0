package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("invalid order state")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StateError reports a transition attempted from the wrong status.
type StateError struct {
	OrderID string
	Current Status
	Want    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("order %s is not %s (current status: %s)", e.OrderID, e.Want, e.Current)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

type StockError struct {
	ProductID string
	Required  int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d", e.ProductID, e.Required, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
