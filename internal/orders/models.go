package orders

import "time"

// MenuItem is a dish a merchant publishes for one calendar day.
// Stock accounting: stock is capacity, sold is cumulative reserved units.
// 0 <= sold <= stock holds at all times, enforced by the store.
type MenuItem struct {
	ID         string
	MerchantID string
	Date       time.Time // calendar day, midnight
	Name       string
	Image      string
	PriceCents int64
	Stock      int
	Sold       int
	CutoffTime time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Remaining is the capacity still available for new orders.
func (m MenuItem) Remaining() int { return m.Stock - m.Sold }

type Order struct {
	ID         string
	OrderNo    string // externally visible, idempotency key for payment callbacks
	UserID     string
	TotalCents int64
	Status     Status
	Remark     string
	Items      []OrderItem
	CreatedAt  time.Time
	PaidAt     *time.Time
	CanceledAt *time.Time
}

// OrderItem is a line-item snapshot. Name and price are captured at order
// time and stay frozen even if the menu item is later edited or deleted.
type OrderItem struct {
	ID            string
	OrderID       string
	MenuItemID    string
	MenuName      string
	Quantity      int
	PriceCents    int64
	SubtotalCents int64
}

type Payment struct {
	ID            string
	OrderID       string
	TransactionID string
	AmountCents   int64
	Status        PaymentStatus
	PaidAt        time.Time
}

// DayStats aggregates one day of orders for the merchant dashboard.
type DayStats struct {
	TotalOrders   int
	PaidOrders    int
	PendingOrders int
	RevenueCents  int64
	MenuStats     []MenuStat
}

type MenuStat struct {
	MenuItemID    string
	MenuName      string
	TotalQuantity int
	AmountCents   int64
}
