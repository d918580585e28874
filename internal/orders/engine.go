package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CartLine is one entry of the cart a user submits.
type CartLine struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

// PaymentResult reports the outcome of a payment confirmation.
type PaymentResult struct {
	Order *Order
	// AlreadyPaid is set when the notification was a redelivery and the
	// order had been marked paid before. No second payment row exists.
	AlreadyPaid bool
}

// Engine drives order creation and the order lifecycle on top of a Store.
// Now is injectable so expiry behaviour is testable without wall-clock
// sleeps; nil means time.Now.
type Engine struct {
	Store Store
	Now   func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CreateOrder validates the cart and persists the order together with the
// stock reservation of every line, all or nothing. The cutoff check runs
// before any mutation; the stock check is re-run atomically by the store, so
// losing a race surfaces as ErrStockInsufficient, never as an over-sell.
func (e *Engine) CreateOrder(ctx context.Context, userID string, lines []CartLine, remark string) (*Order, error) {
	if userID == "" {
		return nil, errors.Wrap(ErrBadRequest, "missing user")
	}
	if len(lines) == 0 {
		return nil, errors.Wrap(ErrBadRequest, "empty cart")
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, errors.Wrapf(ErrBadRequest, "invalid quantity for menu item %s", l.MenuItemID)
		}
		ids = append(ids, l.MenuItemID)
	}

	items, err := e.Store.MenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := e.now()
	for _, l := range lines {
		m, ok := items[l.MenuItemID]
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "menu item %s", l.MenuItemID)
		}
		if now.After(m.CutoffTime) {
			return nil, errors.Wrapf(ErrOrderExpired, "%s", m.Name)
		}
	}

	o := &Order{
		ID:        uuid.NewString(),
		OrderNo:   NewOrderNo(now),
		UserID:    userID,
		Status:    StatusPending,
		Remark:    remark,
		CreatedAt: now,
	}
	need := make(map[string]int, len(lines))
	for _, l := range lines {
		m := items[l.MenuItemID]
		// friendly pre-check; the store's conditional update is authoritative.
		// Quantities accumulate across lines so a cart naming the same item
		// twice is checked against its combined demand.
		need[l.MenuItemID] += l.Quantity
		if need[l.MenuItemID] > m.Remaining() {
			return nil, &StockError{
				MenuItemID: m.ID, MenuName: m.Name,
				Required: need[l.MenuItemID], Available: m.Remaining(),
			}
		}
		sub := m.PriceCents * int64(l.Quantity)
		o.TotalCents += sub
		o.Items = append(o.Items, OrderItem{
			ID:            uuid.NewString(),
			OrderID:       o.ID,
			MenuItemID:    m.ID,
			MenuName:      m.Name,
			Quantity:      l.Quantity,
			PriceCents:    m.PriceCents,
			SubtotalCents: sub,
		})
	}

	if err := e.Store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ConfirmPayment applies a payment notification. Notifications are delivered
// at least once, so the operation is idempotent: an order that is already
// Paid reports success without a second payment row. A payment for a
// cancelled order is recorded for manual reconciliation and reported as
// ErrOrderCancelled; the order is never resurrected.
func (e *Engine) ConfirmPayment(ctx context.Context, orderNo, transactionID string, amountCents int64) (*PaymentResult, error) {
	o, err := e.Store.OrderByNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case StatusPaid:
		return &PaymentResult{Order: o, AlreadyPaid: true}, nil
	case StatusCancelled:
		return nil, e.recordConflict(ctx, o, transactionID, amountCents)
	}

	now := e.now()
	p := Payment{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Status:        PaymentConfirmed,
		PaidAt:        now,
	}
	if err := e.Store.MarkPaid(ctx, o.ID, p); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		// lost the race against a concurrent confirm or cancel; re-read to
		// tell which one won
		o, err = e.Store.OrderByNo(ctx, orderNo)
		if err != nil {
			return nil, err
		}
		if o.Status == StatusPaid {
			return &PaymentResult{Order: o, AlreadyPaid: true}, nil
		}
		return nil, e.recordConflict(ctx, o, transactionID, amountCents)
	}
	o.Status = StatusPaid
	o.PaidAt = &now
	return &PaymentResult{Order: o}, nil
}

func (e *Engine) recordConflict(ctx context.Context, o *Order, transactionID string, amountCents int64) error {
	p := Payment{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Status:        PaymentConflict,
		PaidAt:        e.now(),
	}
	if err := e.Store.RecordPayment(ctx, p); err != nil {
		return err
	}
	return errors.Wrapf(ErrOrderCancelled, "order %s", o.OrderNo)
}

// Cancel drives Pending -> Cancelled and releases the stock of every line,
// one atomic unit at the store. Orders in a terminal state report
// ErrInvalidTransition and move no stock.
func (e *Engine) Cancel(ctx context.Context, orderID, reason string) (*Order, error) {
	_ = reason // carried in the published event, not persisted
	return e.Store.CancelOrder(ctx, orderID, e.now())
}

// GetOrder returns an order after checking it belongs to the caller.
func (e *Engine) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := e.Store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, errors.Wrapf(ErrForbidden, "order %s", orderID)
	}
	return o, nil
}

// InitiatePayment verifies the order can still be paid and returns it for
// the payment adapter to build gateway parameters from.
func (e *Engine) InitiatePayment(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := e.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case StatusPaid:
		return nil, errors.Wrapf(ErrOrderAlreadyPaid, "order %s", o.OrderNo)
	case StatusCancelled:
		return nil, errors.Wrapf(ErrOrderCancelled, "order %s", o.OrderNo)
	}
	return o, nil
}
