package orders

import (
	"context"
	"time"
)

// Store is the storage layer the engine runs on. All cross-request
// correctness rests on these operations being atomic at the store: the
// engine holds no shared mutable state between calls.
//
// PGStore is the authoritative Postgres implementation; MemStore mirrors its
// semantics in memory for tests.
type Store interface {
	// MenuItemsByIDs returns the referenced items keyed by id. Missing ids
	// are simply absent from the map.
	MenuItemsByIDs(ctx context.Context, ids []string) (map[string]MenuItem, error)

	// CreateOrder persists the order, its items and the stock reservation of
	// every line as one atomic unit. A line that cannot be reserved aborts
	// the whole operation with a *StockError and leaves no trace.
	CreateOrder(ctx context.Context, o *Order) error

	OrderByID(ctx context.Context, id string) (*Order, error)
	OrderByNo(ctx context.Context, orderNo string) (*Order, error)

	// MarkPaid transitions Pending -> Paid keyed on the current status and
	// appends the payment record in the same atomic unit. A missed
	// conditional update reports ErrInvalidTransition.
	MarkPaid(ctx context.Context, orderID string, p Payment) error

	// RecordPayment appends a payment record without touching the order.
	// Used for late payments against cancelled orders.
	RecordPayment(ctx context.Context, p Payment) error

	// CancelOrder transitions Pending -> Cancelled keyed on the current
	// status and releases the stock of every line in the same atomic unit.
	// Returns the cancelled order with its items.
	CancelOrder(ctx context.Context, orderID string, at time.Time) (*Order, error)

	// ExpiredPending lists ids of Pending orders created before deadline.
	ExpiredPending(ctx context.Context, deadline time.Time) ([]string, error)

	// Read models and merchant operations. Display only: decisions are made
	// exclusively by the atomic operations above.
	UserOrders(ctx context.Context, userID string, page, limit int) ([]Order, int, error)
	OrdersForDay(ctx context.Context, day time.Time, status *Status) ([]Order, error)
	StatsForDay(ctx context.Context, day time.Time) (*DayStats, error)

	MenuItemByID(ctx context.Context, id string) (*MenuItem, error)
	MenuForDay(ctx context.Context, day time.Time) ([]MenuItem, error)
	MenuHistory(ctx context.Context, before time.Time, page, limit int) ([]MenuItem, int, error)
	CreateMenuItem(ctx context.Context, m *MenuItem) error
	UpdateMenuItem(ctx context.Context, m *MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error
	SetCutoff(ctx context.Context, merchantID string, day, cutoff time.Time) error
}
