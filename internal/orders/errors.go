package orders

import (
	"errors"
	"fmt"
)

// Sentinel errors of the engine. Each maps to a stable machine code in the
// transport layer; none of them is retried automatically.
var (
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrOrderExpired      = errors.New("ordering closed")
	ErrStockInsufficient = errors.New("stock insufficient")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderAlreadyPaid  = errors.New("order already paid")
	ErrOrderCancelled    = errors.New("order cancelled")
	ErrMenuItemOrdered   = errors.New("menu item has orders")
)

// StockError reports which item lost a reservation and what was left.
// It is the expected outcome of a race loss, not an exceptional condition.
type StockError struct {
	MenuItemID string
	MenuName   string
	Required   int
	Available  int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: insufficient stock (required %d, available %d)",
		e.MenuName, e.Required, e.Available)
}

func (e *StockError) Is(target error) bool { return target == ErrStockInsufficient }
